// README: Driver presence: availability plus last known coordinate.
package presence

import (
	"time"

	"ridedesk/internal/apperr"
	"ridedesk/internal/types"
)

type Availability string

const (
	Online  Availability = "ONLINE"
	Offline Availability = "OFFLINE"
)

func (a Availability) Valid() bool {
	return a == Online || a == Offline
}

type Presence struct {
	DriverID     types.ID     `json:"driver_id"`
	Availability Availability `json:"availability"`
	Position     *types.Point `json:"position,omitempty"`
	Cell         string       `json:"cell,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Query selects drivers around a point. Results are nearest first.
type Query struct {
	Center       types.Point
	RadiusMeters float64
	Limit        int
	Availability Availability
}

var ErrNotFound = apperr.NotFound("driver presence not found")

// cellPrecision is the geohash length kept with each presence (~150 m cells).
const cellPrecision = 7

// maxIndexedLat is the highest absolute latitude Redis GEO can index.
const maxIndexedLat = 85.05112878
