// README: Presence service validates and records driver availability and position.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mmcloughlin/geohash"

	"ridedesk/internal/apperr"
	"ridedesk/internal/metrics"
	"ridedesk/internal/types"
)

type Service struct {
	store Repository
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, now: time.Now}
}

type UpsertCommand struct {
	DriverID     types.ID
	Availability Availability
	Position     *types.Point
}

// Upsert replaces the driver's presence. ONLINE needs a coordinate; OFFLINE
// without one keeps the last known coordinate.
func (s *Service) Upsert(ctx context.Context, cmd UpsertCommand) (Presence, error) {
	if cmd.DriverID == "" {
		return Presence{}, apperr.BadRequest("missing driver id")
	}
	if !cmd.Availability.Valid() {
		return Presence{}, apperr.BadRequest("availability must be ONLINE or OFFLINE")
	}
	if cmd.Position != nil && !cmd.Position.Valid() {
		return Presence{}, apperr.BadRequest("invalid coordinates")
	}
	if cmd.Position != nil && math.Abs(cmd.Position.Lat) > maxIndexedLat {
		return Presence{}, apperr.BadRequest(fmt.Sprintf("latitude must be within ±%.8f", maxIndexedLat))
	}

	pos := cmd.Position
	if pos == nil {
		prev, err := s.store.Get(ctx, cmd.DriverID)
		switch {
		case err == nil:
			pos = prev.Position
		case !errors.Is(err, ErrNotFound):
			return Presence{}, err
		}
	}
	if cmd.Availability == Online && pos == nil {
		return Presence{}, apperr.BadRequest("coordinates are required to go online")
	}

	p := Presence{DriverID: cmd.DriverID, Availability: cmd.Availability, UpdatedAt: s.now()}
	if pos != nil {
		cp := *pos
		p.Position = &cp
		p.Cell = geohash.EncodeWithPrecision(cp.Lat, cp.Lng, cellPrecision)
	}
	if err := s.store.Save(ctx, p); err != nil {
		return Presence{}, err
	}
	metrics.PresenceUpdates.WithLabelValues(string(p.Availability)).Inc()
	s.log.Debug("presence updated", "driver_id", p.DriverID, "availability", p.Availability, "cell", p.Cell)
	return p, nil
}

// SetAvailability flips availability and keeps the stored coordinate.
func (s *Service) SetAvailability(ctx context.Context, driverID types.ID, a Availability) (Presence, error) {
	return s.Upsert(ctx, UpsertCommand{DriverID: driverID, Availability: a})
}

// FindNearby returns up to limit driver ids with availability a within
// radiusMeters of center, nearest first.
func (s *Service) FindNearby(ctx context.Context, center types.Point, radiusMeters float64, limit int, a Availability) ([]types.ID, error) {
	if !center.Valid() {
		return nil, apperr.BadRequest("invalid coordinates")
	}
	if radiusMeters <= 0 || limit <= 0 {
		return []types.ID{}, nil
	}
	ids, err := s.store.Nearby(ctx, Query{Center: center, RadiusMeters: radiusMeters, Limit: limit, Availability: a})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []types.ID{}
	}
	return ids, nil
}

func (s *Service) Get(ctx context.Context, driverID types.ID) (Presence, error) {
	return s.store.Get(ctx, driverID)
}
