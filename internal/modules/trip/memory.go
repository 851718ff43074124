// README: In-memory trip store for local runs and tests; same CAS contract as Store.
package trip

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ridedesk/internal/types"
)

type MemoryStore struct {
	mu     sync.Mutex
	trips  map[types.ID]*Trip
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[types.ID]*Trip)}
}

func (m *MemoryStore) Create(_ context.Context, t *Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, tr Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tr.ID]
	if !ok || t.Status != tr.From || t.StatusVersion != tr.Version {
		return false, nil
	}
	driver := t.DriverID
	switch {
	case tr.ClearDriver:
		driver = nil
	case tr.DriverID != nil:
		d := *tr.DriverID
		driver = &d
	}
	// Same rule as the trips_driver_matches_status constraint.
	if mc, ok := MachineFor(t.Kind); ok && mc.HoldsDriver(tr.To) != (driver != nil) {
		return false, fmt.Errorf("trip %s: %s with driver=%v: %w", tr.ID, tr.To, driver != nil, ErrInvalidState)
	}
	t.Status = tr.To
	t.StatusVersion++
	t.DriverID = driver
	at := tr.At
	switch tr.To {
	case StatusAccepted:
		t.AcceptedAt = &at
	case StatusInProgress, StatusPickedUp:
		t.StartedAt = &at
	case StatusCompleted, StatusDelivered:
		t.CompletedAt = &at
	case StatusCancelled:
		t.CancelledAt = &at
	}
	if tr.Reason != nil {
		r := *tr.Reason
		t.CancelReason = &r
	}
	return true, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := *e
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns the recorded transitions for a trip in append order.
func (m *MemoryStore) Events(id types.ID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.TripID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryStore) ListByRequester(_ context.Context, requesterID types.ID, limit int) ([]*Trip, error) {
	return m.filter(limit, func(t *Trip) bool { return t.RequesterID == requesterID }), nil
}

func (m *MemoryStore) ListByDriver(_ context.Context, driverID types.ID, limit int) ([]*Trip, error) {
	return m.filter(limit, func(t *Trip) bool { return t.IsAssignedTo(driverID) }), nil
}

func (m *MemoryStore) DriverStats(_ context.Context, driverID types.ID) (DriverStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		st       DriverStats
		latest   *Trip
		finished []*Trip
	)
	for _, t := range m.trips {
		if !t.IsAssignedTo(driverID) || (t.Status != StatusCompleted && t.Status != StatusDelivered) {
			continue
		}
		finished = append(finished, t)
		if t.Kind == KindDelivery {
			st.CompletedDeliveries++
		} else {
			st.CompletedRides++
		}
		if latest == nil || completedAfter(t, latest) {
			latest = t
		}
	}
	if latest == nil {
		return st, nil
	}
	st.Earnings.Currency = latest.FareEstimate.Currency
	for _, t := range finished {
		if t.FareEstimate.Currency == st.Earnings.Currency {
			st.Earnings.Amount += t.FareEstimate.Amount
		}
	}
	return st, nil
}

func completedAfter(a, b *Trip) bool {
	switch {
	case a.CompletedAt == nil:
		return false
	case b.CompletedAt == nil:
		return true
	}
	return a.CompletedAt.After(*b.CompletedAt)
}

func (m *MemoryStore) filter(limit int, keep func(*Trip) bool) []*Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Trip
	for _, t := range m.trips {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
