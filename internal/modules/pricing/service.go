// README: Pricing service computes fare estimates.
package pricing

import (
	"context"
	"math"

	"ridedesk/internal/apperr"
	"ridedesk/internal/types"
)

type Service struct {
	rates RateSource
}

func NewService(rates RateSource) *Service {
	if rates == nil {
		rates = StaticRates{}
	}
	return &Service{rates: rates}
}

// Estimate prices a trip of distanceKm: base + perKm*distance, never below the
// category minimum. Distances under 1 km are billed as 1 km.
func (s *Service) Estimate(ctx context.Context, distanceKm float64, kind, category string) (types.Money, error) {
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		return types.Money{}, apperr.BadRequest("invalid distance")
	}
	r, err := s.rates.GetRate(ctx, kind, category)
	if err != nil {
		return types.Money{}, err
	}
	d := math.Max(distanceKm, minDistanceKm)
	total := math.Max(float64(r.BaseFare)+d*float64(r.PerKm), float64(r.MinFare))
	return types.Money{Amount: int64(math.Round(total)), Currency: r.Currency}, nil
}

// Quote estimates fare and duration between two points.
func (s *Service) Quote(ctx context.Context, kind, category string, pickup, dropoff types.Point) (Quote, error) {
	if !pickup.Valid() || !dropoff.Valid() {
		return Quote{}, apperr.BadRequest("invalid pickup or dropoff coordinates")
	}
	d := math.Max(types.DistanceKm(pickup, dropoff), minDistanceKm)
	fare, err := s.Estimate(ctx, d, kind, category)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		DistanceKm:           math.Round(d*100) / 100,
		EstimatedDurationMin: int(math.Ceil(d * minutesPerKm)),
		Fare:                 fare,
	}, nil
}
