// README: Compact trip view carried by notification events.
package notify

import (
	"github.com/mmcloughlin/geohash"

	"ridedesk/internal/modules/trip"
)

// cellPrecision gives ~5 km cells, coarse enough to group a dispatch radius.
const cellPrecision = 5

func SummaryOf(t *trip.Trip) TripSummary {
	p := t.Pickup.Point
	return TripSummary{
		ID:       t.ID,
		Kind:     string(t.Kind),
		Pickup:   t.Pickup,
		Dropoff:  t.Dropoff,
		Category: t.Category,
		Fare:     t.FareEstimate,
		Cell:     geohash.EncodeWithPrecision(p.Lat, p.Lng, cellPrecision),
	}
}
