// README: In-memory presence store; linear haversine scan for local runs and tests.
package presence

import (
	"context"
	"sync"

	"ridedesk/internal/types"
)

type MemoryStore struct {
	mu      sync.Mutex
	drivers map[types.ID]Presence
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]Presence)}
}

func (m *MemoryStore) Save(_ context.Context, p Presence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Position != nil {
		pos := *p.Position
		p.Position = &pos
	}
	m.drivers[p.DriverID] = p
	return nil
}

func (m *MemoryStore) Get(_ context.Context, driverID types.ID) (Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.drivers[driverID]
	if !ok {
		return Presence{}, ErrNotFound
	}
	if p.Position != nil {
		pos := *p.Position
		p.Position = &pos
	}
	return p, nil
}

func (m *MemoryStore) Nearby(_ context.Context, q Query) ([]types.ID, error) {
	type hit struct {
		id       types.ID
		distance float64
	}
	m.mu.Lock()
	var hits []hit
	for id, p := range m.drivers {
		if p.Availability != q.Availability || p.Position == nil {
			continue
		}
		d := types.DistanceMeters(q.Center, *p.Position)
		if d <= q.RadiusMeters {
			hits = append(hits, hit{id: id, distance: d})
		}
	}
	m.mu.Unlock()

	sortByDistance(hits, func(h hit) float64 { return h.distance })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	ids := make([]types.ID, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}
