// README: Matching service: finds nearby ONLINE drivers for a pending trip and offers it to them.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ridedesk/internal/config"
	"ridedesk/internal/metrics"
	"ridedesk/internal/modules/notify"
	"ridedesk/internal/modules/offer"
	"ridedesk/internal/modules/presence"
	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

type TripReader interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

type DriverLocator interface {
	FindNearby(ctx context.Context, center types.Point, radiusMeters float64, limit int, a presence.Availability) ([]types.ID, error)
}

// DispatchRecorder keeps an audit of dispatches; optional.
type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, tripID types.ID, driverIDs []types.ID) error
}

// DispatchAudit is implemented by recorders that can also read back what they
// recorded. Store does.
type DispatchAudit interface {
	GetDispatchedAt(ctx context.Context, tripID types.ID) (time.Time, bool, error)
	Notified(ctx context.Context, tripID types.ID) ([]types.ID, error)
}

// History is everything dispatch did for one trip.
type History struct {
	TripID       types.ID      `json:"trip_id"`
	DispatchedAt *time.Time    `json:"dispatched_at,omitempty"`
	Notified     []types.ID    `json:"notified"`
	Offers       []offer.Offer `json:"offers"`
}

// Result reports one dispatch. Notified holds only drivers offered by this
// call; Candidates is everything the proximity query returned.
type Result struct {
	TripID     types.ID   `json:"trip_id"`
	Notified   []types.ID `json:"notified"`
	Candidates []types.ID `json:"candidates"`
}

type Service struct {
	trips    TripReader
	drivers  DriverLocator
	offers   offer.Ledger
	sink     notify.Sink
	recorder DispatchRecorder
	cfg      config.MatchingConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewService(trips TripReader, drivers DriverLocator, offers offer.Ledger, sink notify.Sink, recorder DispatchRecorder, cfg config.MatchingConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = 5000
	}
	if cfg.MaxOffers <= 0 {
		cfg.MaxOffers = 5
	}
	return &Service{
		trips:    trips,
		drivers:  drivers,
		offers:   offers,
		sink:     sink,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Dispatch offers a PENDING trip to the nearest ONLINE drivers. Missing or
// no-longer-pending trips are a no-op. Calling it again only notifies drivers
// who had no offer yet.
func (s *Service) Dispatch(ctx context.Context, tripID types.ID) (Result, error) {
	res := Result{TripID: tripID, Notified: []types.ID{}, Candidates: []types.ID{}}

	t, err := s.trips.Get(ctx, tripID)
	if errors.Is(err, trip.ErrNotFound) {
		s.log.Info("dispatch skipped: trip not found", "trip_id", tripID)
		metrics.DispatchTotal.WithLabelValues("", "skipped").Inc()
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if t.Status != trip.StatusPending {
		s.log.Info("dispatch skipped: trip not pending", "trip_id", tripID, "status", t.Status)
		metrics.DispatchTotal.WithLabelValues(string(t.Kind), "skipped").Inc()
		return res, nil
	}

	candidates, err := s.drivers.FindNearby(ctx, t.Pickup.Point, s.cfg.RadiusMeters, s.cfg.MaxOffers, presence.Online)
	if err != nil {
		return res, fmt.Errorf("find nearby drivers: %w", err)
	}
	if len(candidates) == 0 {
		s.log.Info("no drivers nearby", "trip_id", tripID, "radius_m", s.cfg.RadiusMeters)
		metrics.DispatchTotal.WithLabelValues(string(t.Kind), "no_drivers").Inc()
		return res, nil
	}
	res.Candidates = candidates

	now := s.now()
	summary := notify.SummaryOf(t)
	// Notify each driver right after its offer is created; a retry will not
	// create it again.
	for _, driverID := range candidates {
		created, err := s.offers.CreateIfAbsent(ctx, offer.Offer{
			TripID:    t.ID,
			TripKind:  t.Kind,
			DriverID:  driverID,
			Status:    offer.StatusSent,
			CreatedAt: now,
		})
		if err != nil {
			s.finish(ctx, t, res.Notified)
			metrics.DispatchTotal.WithLabelValues(string(t.Kind), "error").Inc()
			return res, fmt.Errorf("create offer for %s: %w", driverID, err)
		}
		if created {
			res.Notified = append(res.Notified, driverID)
			s.notifyDriver(ctx, driverID, summary, now)
		}
	}
	s.finish(ctx, t, res.Notified)

	outcome := "offered"
	if len(res.Notified) == 0 {
		outcome = "already_offered"
	}
	metrics.DispatchTotal.WithLabelValues(string(t.Kind), outcome).Inc()
	s.log.Info("trip dispatched", "trip_id", t.ID, "kind", t.Kind, "candidates", len(candidates), "notified", len(res.Notified))
	return res, nil
}

// History returns the offers sent for a trip and who was notified. The dispatch
// audit is used when the recorder keeps one; otherwise both are derived from the
// offer ledger.
func (s *Service) History(ctx context.Context, tripID types.ID) (History, error) {
	offers, err := s.offers.ListByTrip(ctx, tripID)
	if err != nil {
		return History{}, fmt.Errorf("list offers for %s: %w", tripID, err)
	}
	h := History{TripID: tripID, Notified: []types.ID{}, Offers: offers}
	if h.Offers == nil {
		h.Offers = []offer.Offer{}
	}

	if audit, ok := s.recorder.(DispatchAudit); ok {
		at, found, err := audit.GetDispatchedAt(ctx, tripID)
		if err != nil {
			return History{}, fmt.Errorf("read dispatch time for %s: %w", tripID, err)
		}
		if found {
			h.DispatchedAt = &at
		}
		ids, err := audit.Notified(ctx, tripID)
		if err != nil {
			return History{}, fmt.Errorf("read notified drivers for %s: %w", tripID, err)
		}
		h.Notified = append(h.Notified, ids...)
	} else {
		for _, o := range h.Offers {
			h.Notified = append(h.Notified, o.DriverID)
			if h.DispatchedAt == nil || o.CreatedAt.Before(*h.DispatchedAt) {
				at := o.CreatedAt
				h.DispatchedAt = &at
			}
		}
	}
	sort.Slice(h.Notified, func(i, j int) bool { return h.Notified[i] < h.Notified[j] })
	return h, nil
}

// finish counts and records the offers a dispatch created.
func (s *Service) finish(ctx context.Context, t *trip.Trip, notified []types.ID) {
	if len(notified) == 0 {
		return
	}
	metrics.OffersCreated.WithLabelValues(string(t.Kind)).Add(float64(len(notified)))
	if s.recorder != nil {
		if err := s.recorder.RecordDispatch(ctx, t.ID, notified); err != nil {
			s.log.Warn("record dispatch", "trip_id", t.ID, "error", err)
		}
	}
}

func (s *Service) notifyDriver(ctx context.Context, driverID types.ID, summary notify.TripSummary, at time.Time) {
	if s.sink == nil {
		return
	}
	err := s.sink.Publish(ctx, notify.Event{
		Type:        notify.EventTripOffered,
		RecipientID: driverID,
		DriverID:    driverID,
		Trip:        summary,
		At:          at,
	})
	if err != nil {
		metrics.NotifyFailures.Inc()
		s.log.Warn("notify driver", "trip_id", summary.ID, "driver_id", driverID, "error", err)
	}
}
