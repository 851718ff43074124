// README: Presence store backed by Redis GEO (one set per availability) and a hash per driver.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ridedesk/internal/types"
)

const (
	geoKeyPrefix    = "presence:geo:"
	driverKeyPrefix = "presence:driver:"
)

// Repository is the persistence the presence service needs.
type Repository interface {
	Save(ctx context.Context, p Presence) error
	Get(ctx context.Context, driverID types.ID) (Presence, error)
	Nearby(ctx context.Context, q Query) ([]types.ID, error)
}

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// Save replaces the driver's record. The driver is moved between GEO sets in one
// MULTI so a proximity query never sees it under both availabilities.
func (s *Store) Save(ctx context.Context, p Presence) error {
	fields := map[string]interface{}{
		"availability": string(p.Availability),
		"updated_at":   p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if p.Position != nil {
		fields["lng"] = strconv.FormatFloat(p.Position.Lng, 'f', -1, 64)
		fields["lat"] = strconv.FormatFloat(p.Position.Lat, 'f', -1, 64)
		fields["cell"] = p.Cell
	}
	member := string(p.DriverID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range []Availability{Online, Offline} {
			if a != p.Availability || p.Position == nil {
				pipe.ZRem(ctx, geoKey(a), member)
			}
		}
		if p.Position != nil {
			pipe.GeoAdd(ctx, geoKey(p.Availability), &redis.GeoLocation{
				Name:      member,
				Longitude: p.Position.Lng,
				Latitude:  p.Position.Lat,
			})
		}
		pipe.HSet(ctx, driverKey(p.DriverID), fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save presence %s: %w", p.DriverID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, driverID types.ID) (Presence, error) {
	vals, err := s.redis.HGetAll(ctx, driverKey(driverID)).Result()
	if err != nil {
		return Presence{}, fmt.Errorf("get presence %s: %w", driverID, err)
	}
	if len(vals) == 0 {
		return Presence{}, ErrNotFound
	}
	p := Presence{DriverID: driverID, Availability: Availability(vals["availability"]), Cell: vals["cell"]}
	if ts, err := time.Parse(time.RFC3339Nano, vals["updated_at"]); err == nil {
		p.UpdatedAt = ts
	}
	lng, lngErr := strconv.ParseFloat(vals["lng"], 64)
	lat, latErr := strconv.ParseFloat(vals["lat"], 64)
	if lngErr == nil && latErr == nil {
		p.Position = &types.Point{Lng: lng, Lat: lat}
	}
	return p, nil
}

func (s *Store) Nearby(ctx context.Context, q Query) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, geoKey(q.Availability), &redis.GeoSearchQuery{
		Longitude:  q.Center.Lng,
		Latitude:   q.Center.Lat,
		Radius:     q.RadiusMeters,
		RadiusUnit: "m",
		Sort:       "ASC",
		Count:      q.Limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search %s: %w", geoKey(q.Availability), err)
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func geoKey(a Availability) string {
	return geoKeyPrefix + string(a)
}

func driverKey(id types.ID) string {
	return driverKeyPrefix + string(id)
}
