// README: Dispatch audit backed by Redis: when a trip was first dispatched and who was notified.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ridedesk/internal/types"
)

const (
	dispatchKeyPrefix = "matching:trip:%s:dispatched_at"
	notifiedKeyPrefix = "matching:trip:%s:notified"
	// TTL for dispatch keys (trips should resolve well within 7 days).
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// RecordDispatch keeps the first dispatch time and adds the notified drivers to
// the trip's set.
func (s *Store) RecordDispatch(ctx context.Context, tripID types.ID, driverIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.SetNX(ctx, dispatchedAtKey(tripID), time.Now().UTC().Format(time.RFC3339), keyTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		pipe.SAdd(ctx, notifiedKey(tripID), members...)
		pipe.Expire(ctx, notifiedKey(tripID), keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetDispatchedAt returns when the trip was first dispatched, and whether it has been dispatched.
func (s *Store) GetDispatchedAt(ctx context.Context, tripID types.ID) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, dispatchedAtKey(tripID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Notified lists every driver ever notified for the trip.
func (s *Store) Notified(ctx context.Context, tripID types.ID) ([]types.ID, error) {
	vals, err := s.redis.SMembers(ctx, notifiedKey(tripID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(vals))
	for i, v := range vals {
		ids[i] = types.ID(v)
	}
	return ids, nil
}

func dispatchedAtKey(tripID types.ID) string {
	return fmt.Sprintf(dispatchKeyPrefix, string(tripID))
}

func notifiedKey(tripID types.ID) string {
	return fmt.Sprintf(notifiedKeyPrefix, string(tripID))
}
