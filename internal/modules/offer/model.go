// README: Offer ledger entries: one per (trip, driver), resolved exactly once.
package offer

import (
	"time"

	"ridedesk/internal/apperr"
	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

type Status string

const (
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

type Offer struct {
	TripID      types.ID   `json:"trip_id"`
	TripKind    trip.Kind  `json:"trip_kind"`
	DriverID    types.ID   `json:"driver_id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

var (
	ErrNotOffered       = apperr.Forbidden("driver was not offered this trip")
	ErrAlreadyResponded = apperr.Forbidden("driver already responded to this offer")
	ErrAlreadyAssigned  = apperr.Conflict("trip already assigned")
	ErrTaken            = apperr.Conflict("trip already taken")
)
