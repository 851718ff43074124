// README: In-memory offer ledger with the same conditional-write contract as Store.
package offer

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridedesk/internal/types"
)

type pairKey struct {
	trip   types.ID
	driver types.ID
}

type MemoryStore struct {
	mu     sync.Mutex
	offers map[pairKey]Offer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{offers: make(map[pairKey]Offer)}
}

func (m *MemoryStore) CreateIfAbsent(_ context.Context, o Offer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{o.TripID, o.DriverID}
	if _, ok := m.offers[k]; ok {
		return false, nil
	}
	m.offers[k] = o
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, tripID, driverID types.ID) (Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[pairKey{tripID, driverID}]
	if !ok {
		return Offer{}, ErrNoOffer
	}
	return o, nil
}

func (m *MemoryStore) Resolve(_ context.Context, tripID, driverID types.ID, to Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{tripID, driverID}
	o, ok := m.offers[k]
	if !ok || o.Status != StatusSent {
		return false, nil
	}
	o.Status = to
	o.RespondedAt = &at
	m.offers[k] = o
	return true, nil
}

func (m *MemoryStore) ExpireOthers(_ context.Context, tripID, keepDriverID types.ID, at time.Time) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []types.ID
	for k, o := range m.offers {
		if k.trip != tripID || k.driver == keepDriverID || o.Status != StatusSent {
			continue
		}
		o.Status = StatusExpired
		ts := at
		o.RespondedAt = &ts
		m.offers[k] = o
		ids = append(ids, k.driver)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) ExpireOpen(ctx context.Context, tripID types.ID) (int64, error) {
	ids, err := m.ExpireOthers(ctx, tripID, "", time.Now())
	return int64(len(ids)), err
}

func (m *MemoryStore) ListByTrip(_ context.Context, tripID types.ID) ([]Offer, error) {
	return m.filter(func(o Offer) bool { return o.TripID == tripID }, false), nil
}

func (m *MemoryStore) ListOpenByDriver(_ context.Context, driverID types.ID) ([]Offer, error) {
	return m.filter(func(o Offer) bool { return o.DriverID == driverID && o.Status == StatusSent }, true), nil
}

func (m *MemoryStore) filter(keep func(Offer) bool, newestFirst bool) []Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Offer
	for _, o := range m.offers {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if newestFirst {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out
}
