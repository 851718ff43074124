// README: Trip service: booking, driver-driven lifecycle steps, cancellation, history.
package trip

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridedesk/internal/apperr"
	"ridedesk/internal/metrics"
	"ridedesk/internal/types"
)

const historyLimit = 20

type Pricing interface {
	Estimate(ctx context.Context, distanceKm float64, kind, category string) (types.Money, error)
}

// OfferCloser expires outstanding offers once a trip can no longer be accepted.
type OfferCloser interface {
	ExpireOpen(ctx context.Context, tripID types.ID) (int64, error)
}

type Service struct {
	store   Repository
	pricing Pricing
	offers  OfferCloser
	log     *slog.Logger
	now     func() time.Time
}

func NewService(store Repository, pricing Pricing, offers OfferCloser, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, pricing: pricing, offers: offers, log: log, now: time.Now}
}

type CreateCommand struct {
	Kind        Kind
	RequesterID types.ID
	Pickup      types.Place
	Dropoff     types.Place
	Category    string
	Delivery    *DeliveryDetails
}

type AdvanceCommand struct {
	TripID   types.ID
	DriverID types.ID
	Action   Action
}

type CancelCommand struct {
	TripID    types.ID
	ActorID   types.ID
	ActorType string
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if _, ok := MachineFor(cmd.Kind); !ok {
		return nil, apperr.BadRequest("unknown trip kind")
	}
	if cmd.RequesterID == "" {
		return nil, apperr.BadRequest("missing requester")
	}
	if !cmd.Pickup.Point.Valid() || !cmd.Dropoff.Point.Valid() {
		return nil, apperr.BadRequest("invalid pickup or dropoff coordinates")
	}
	if strings.TrimSpace(cmd.Pickup.Address) == "" {
		return nil, apperr.BadRequest("pickup address is required")
	}
	category := cmd.Category
	if category == "" {
		category = defaultCategory(cmd.Kind)
	}
	if cmd.Kind == KindDelivery {
		d := cmd.Delivery
		if d == nil || d.PackageType == "" || d.ReceiverName == "" || d.ReceiverPhone == "" {
			return nil, apperr.BadRequest("delivery needs package type, receiver name and receiver phone")
		}
	} else {
		cmd.Delivery = nil
	}

	now := s.now()
	t := &Trip{
		ID:           types.ID(uuid.NewString()),
		Kind:         cmd.Kind,
		RequesterID:  cmd.RequesterID,
		Status:       StatusPending,
		Pickup:       cmd.Pickup,
		Dropoff:      cmd.Dropoff,
		Category:     category,
		FareEstimate: types.Money{Currency: "NGN"},
		Delivery:     cmd.Delivery,
		CreatedAt:    now,
	}
	if s.pricing != nil {
		fare, err := s.pricing.Estimate(ctx, types.DistanceKm(cmd.Pickup.Point, cmd.Dropoff.Point), string(cmd.Kind), category)
		if err != nil {
			return nil, err
		}
		t.FareEstimate = fare
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, t.ID, StatusNone, StatusPending, "requester", &t.RequesterID)
	metrics.TransitionsTotal.WithLabelValues(string(t.Kind), string(StatusPending)).Inc()
	s.log.Info("trip created", "trip_id", t.ID, "kind", t.Kind, "requester_id", t.RequesterID, "fare", t.FareEstimate.Amount)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

// Advance applies one driver action (pickup/start/complete/deliver). Only the
// assigned driver may act, and only from the action's predecessor state.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) (*Trip, error) {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	m, ok := MachineFor(t.Kind)
	if !ok {
		return nil, ErrInvalidState
	}
	version := t.StatusVersion
	from, to, err := m.Apply(t, cmd.DriverID, cmd.Action)
	if err != nil {
		return nil, err
	}

	now := s.now()
	swapped, err := s.store.UpdateStatus(ctx, Transition{
		ID:      t.ID,
		From:    from,
		To:      to,
		Version: version,
		At:      now,
	})
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrConflict
	}
	t.StatusVersion = version + 1
	switch to {
	case m.Underway:
		t.StartedAt = &now
	case m.Finished:
		t.CompletedAt = &now
	}

	s.appendEvent(ctx, t.ID, from, to, "driver", &cmd.DriverID)
	metrics.TransitionsTotal.WithLabelValues(string(t.Kind), string(to)).Inc()
	s.log.Info("trip advanced", "trip_id", t.ID, "kind", t.Kind, "driver_id", cmd.DriverID, "from", from, "to", to)
	return t, nil
}

// Cancel moves any non-terminal trip to CANCELLED. The requester or the assigned
// driver may cancel. Open offers are expired afterwards.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Trip, error) {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if cmd.ActorID != t.RequesterID && !t.IsAssignedTo(cmd.ActorID) {
		return nil, apperr.Forbidden("only the requester or the assigned driver can cancel")
	}
	m, ok := MachineFor(t.Kind)
	if !ok {
		return nil, ErrInvalidState
	}
	if m.Terminal(t.Status) {
		return nil, apperr.Conflict(fmt.Sprintf("trip already %s", strings.ToLower(string(t.Status))))
	}
	if !m.CanTransition(t.Status, StatusCancelled) {
		return nil, apperr.Conflict("trip can no longer be cancelled")
	}

	now := s.now()
	var reason *string
	if cmd.Reason != "" {
		reason = &cmd.Reason
	}
	from := t.Status
	swapped, err := s.store.UpdateStatus(ctx, Transition{
		ID:          t.ID,
		From:        from,
		To:          StatusCancelled,
		Version:     t.StatusVersion,
		ClearDriver: true,
		Reason:      reason,
		At:          now,
	})
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrConflict
	}
	t.Status = StatusCancelled
	t.StatusVersion++
	t.DriverID = nil
	t.CancelledAt = &now
	t.CancelReason = reason

	if s.offers != nil {
		if n, err := s.offers.ExpireOpen(ctx, t.ID); err != nil {
			s.log.Warn("expire offers after cancel", "trip_id", t.ID, "error", err)
		} else if n > 0 {
			s.log.Info("offers expired after cancel", "trip_id", t.ID, "count", n)
		}
	}
	s.appendEvent(ctx, t.ID, from, StatusCancelled, cmd.ActorType, &cmd.ActorID)
	metrics.TransitionsTotal.WithLabelValues(string(t.Kind), string(StatusCancelled)).Inc()
	return t, nil
}

func (s *Service) ListByRequester(ctx context.Context, requesterID types.ID) ([]*Trip, error) {
	return s.store.ListByRequester(ctx, requesterID, historyLimit)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	return s.store.ListByDriver(ctx, driverID, historyLimit)
}

// DriverSummary reports how many trips the driver finished and what they earned.
func (s *Service) DriverSummary(ctx context.Context, driverID types.ID) (DriverStats, error) {
	if driverID == "" {
		return DriverStats{}, apperr.BadRequest("missing driver id")
	}
	return s.store.DriverStats(ctx, driverID)
}

func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actorType string, actorID *types.ID) {
	err := s.store.AppendEvent(ctx, &Event{
		TripID:     id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
	if err != nil {
		s.log.Warn("append trip event", "trip_id", id, "to", to, "error", err)
	}
}

func defaultCategory(k Kind) string {
	if k == KindDelivery {
		return "standard"
	}
	return "economy"
}
