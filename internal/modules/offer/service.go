// README: Offer resolution: drivers accept or reject; a trip-level CAS picks one winner.
package offer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ridedesk/internal/metrics"
	"ridedesk/internal/modules/notify"
	"ridedesk/internal/modules/presence"
	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

// AvailabilitySetter flips a driver's availability; satisfied by presence.Service.
type AvailabilitySetter interface {
	SetAvailability(ctx context.Context, driverID types.ID, a presence.Availability) (presence.Presence, error)
}

type Service struct {
	trips    trip.Repository
	ledger   Ledger
	presence AvailabilitySetter
	sink     notify.Sink
	log      *slog.Logger
	now      func() time.Time
}

func NewService(trips trip.Repository, ledger Ledger, presence AvailabilitySetter, sink notify.Sink, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{trips: trips, ledger: ledger, presence: presence, sink: sink, log: log, now: time.Now}
}

// Accept assigns the trip to driverID if the driver holds a SENT offer and no
// other driver got there first. The trip row CAS is the only arbiter.
func (s *Service) Accept(ctx context.Context, tripID, driverID types.ID) (*trip.Trip, error) {
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		s.countAccept(err)
		return nil, err
	}
	if t.Status != trip.StatusPending {
		metrics.AcceptTotal.WithLabelValues("conflict").Inc()
		return nil, ErrAlreadyAssigned
	}
	o, err := s.ledger.Get(ctx, tripID, driverID)
	if errors.Is(err, ErrNoOffer) {
		metrics.AcceptTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrNotOffered
	}
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case StatusSent:
	case StatusExpired:
		// Expired by a competing accept or a cancel that landed after our read.
		metrics.AcceptTotal.WithLabelValues("conflict").Inc()
		return nil, ErrTaken
	default:
		metrics.AcceptTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrAlreadyResponded
	}

	now := s.now()
	d := driverID
	swapped, err := s.trips.UpdateStatus(ctx, trip.Transition{
		ID:       t.ID,
		From:     trip.StatusPending,
		To:       trip.StatusAccepted,
		Version:  t.StatusVersion,
		DriverID: &d,
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	if !swapped {
		metrics.AcceptTotal.WithLabelValues("conflict").Inc()
		s.log.Info("accept lost race", "trip_id", tripID, "driver_id", driverID)
		return nil, ErrTaken
	}
	var won trip.Assignable = t
	won.SetStatus(trip.StatusAccepted)
	won.AssignDriver(&d)
	t.StatusVersion++
	t.AcceptedAt = &now
	metrics.AcceptTotal.WithLabelValues("won").Inc()
	metrics.TransitionsTotal.WithLabelValues(string(t.Kind), string(trip.StatusAccepted)).Inc()

	s.settle(ctx, t, driverID, now)
	return t, nil
}

// settle does the bookkeeping that follows a won CAS. None of it can undo the
// assignment, so failures are logged and dropped.
func (s *Service) settle(ctx context.Context, t *trip.Trip, driverID types.ID, at time.Time) {
	log := s.log.With("trip_id", t.ID, "driver_id", driverID)

	if s.presence != nil {
		if _, err := s.presence.SetAvailability(ctx, driverID, presence.Offline); err != nil {
			log.Warn("set driver offline after accept", "error", err)
		}
	}
	if ok, err := s.ledger.Resolve(ctx, t.ID, driverID, StatusAccepted, at); err != nil {
		log.Warn("mark offer accepted", "error", err)
	} else if !ok {
		log.Warn("offer no longer SENT when marking accepted")
	}
	losers, err := s.ledger.ExpireOthers(ctx, t.ID, driverID, at)
	if err != nil {
		log.Warn("expire competing offers", "error", err)
	} else if len(losers) > 0 {
		log.Info("competing offers expired", "count", len(losers))
	}
	if err := s.trips.AppendEvent(ctx, &trip.Event{
		TripID:     t.ID,
		FromStatus: trip.StatusPending,
		ToStatus:   trip.StatusAccepted,
		ActorType:  "driver",
		ActorID:    &driverID,
		CreatedAt:  at,
	}); err != nil {
		log.Warn("append trip event", "error", err)
	}
	summary := notify.SummaryOf(t)
	s.publish(ctx, log, notify.Event{
		Type:        notify.EventTripAssigned,
		RecipientID: t.RequesterID,
		DriverID:    driverID,
		Trip:        summary,
		At:          at,
	})
	for _, loser := range losers {
		s.publish(ctx, log, notify.Event{
			Type:        notify.EventOfferExpired,
			RecipientID: loser,
			DriverID:    loser,
			Trip:        summary,
			At:          at,
		})
	}
	log.Info("trip assigned", "kind", t.Kind)
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, e notify.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, e); err != nil {
		metrics.NotifyFailures.Inc()
		log.Warn("notify", "type", e.Type, "recipient_id", e.RecipientID, "error", err)
	}
}

// Reject declines a SENT offer. Offers already resolved are returned unchanged.
func (s *Service) Reject(ctx context.Context, tripID, driverID types.ID) (Offer, error) {
	o, err := s.ledger.Get(ctx, tripID, driverID)
	if errors.Is(err, ErrNoOffer) {
		return Offer{}, ErrNotOffered
	}
	if err != nil {
		return Offer{}, err
	}
	if o.Status != StatusSent {
		return o, nil
	}
	now := s.now()
	ok, err := s.ledger.Resolve(ctx, tripID, driverID, StatusRejected, now)
	if err != nil {
		return Offer{}, err
	}
	if !ok {
		// Resolved concurrently (accepted or expired); report what won.
		return s.ledger.Get(ctx, tripID, driverID)
	}
	o.Status = StatusRejected
	o.RespondedAt = &now
	s.log.Info("offer rejected", "trip_id", tripID, "driver_id", driverID)
	return o, nil
}

// OpenOffers lists the driver's offers still awaiting a response.
func (s *Service) OpenOffers(ctx context.Context, driverID types.ID) ([]Offer, error) {
	out, err := s.ledger.ListOpenByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Offer{}
	}
	return out, nil
}

func (s *Service) countAccept(err error) {
	if errors.Is(err, trip.ErrNotFound) {
		metrics.AcceptTotal.WithLabelValues("not_found").Inc()
	}
}
