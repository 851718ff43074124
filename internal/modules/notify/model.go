// README: Notification events emitted by dispatch and offer resolution.
package notify

import (
	"context"
	"time"

	"ridedesk/internal/types"
)

type EventType string

const (
	// EventTripOffered goes to a driver who has a new SENT offer.
	EventTripOffered EventType = "trip.offered"
	// EventTripAssigned goes to the requester once a driver wins the trip.
	EventTripAssigned EventType = "trip.assigned"
	// EventOfferExpired goes to a driver whose SENT offer lost to another driver.
	EventOfferExpired EventType = "offer.expired"
)

// TripSummary is the part of a trip a recipient needs to decide or track.
type TripSummary struct {
	ID       types.ID    `json:"id"`
	Kind     string      `json:"kind"`
	Pickup   types.Place `json:"pickup"`
	Dropoff  types.Place `json:"dropoff"`
	Category string      `json:"category"`
	Fare     types.Money `json:"fare_estimate"`
	Cell     string      `json:"pickup_cell"`
}

type Event struct {
	Type        EventType   `json:"type"`
	RecipientID types.ID    `json:"recipient_id"`
	DriverID    types.ID    `json:"driver_id,omitempty"`
	Trip        TripSummary `json:"trip"`
	At          time.Time   `json:"at"`
}

// Sink delivers events. Delivery is best effort; callers log and drop errors.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}
