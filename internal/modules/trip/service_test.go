package trip

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ridedesk/internal/apperr"
	"ridedesk/internal/types"
)

type flatPricing struct{ amount int64 }

func (p flatPricing) Estimate(_ context.Context, _ float64, _, _ string) (types.Money, error) {
	return types.Money{Amount: p.amount, Currency: "NGN"}, nil
}

type recordingCloser struct {
	mu    sync.Mutex
	trips []types.ID
}

func (r *recordingCloser) ExpireOpen(_ context.Context, tripID types.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips = append(r.trips, tripID)
	return 1, nil
}

var (
	lagosPickup  = types.Place{Address: "Marina", Point: types.Point{Lng: 3.40, Lat: 6.45}}
	lagosDropoff = types.Place{Address: "Lekki", Point: types.Point{Lng: 3.47, Lat: 6.44}}
)

func newTestService(t *testing.T) (*Service, *MemoryStore, *recordingCloser) {
	t.Helper()
	store := NewMemoryStore()
	closer := &recordingCloser{}
	return NewService(store, flatPricing{amount: 1200}, closer, nil), store, closer
}

func createRide(t *testing.T, svc *Service) *Trip {
	t.Helper()
	tr, err := svc.Create(context.Background(), CreateCommand{
		Kind:        KindRide,
		RequesterID: "p1",
		Pickup:      lagosPickup,
		Dropoff:     lagosDropoff,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return tr
}

// assign moves a trip to ACCEPTED the way the resolution engine does.
func assign(t *testing.T, store *MemoryStore, tr *Trip, driverID types.ID) {
	t.Helper()
	ok, err := store.UpdateStatus(context.Background(), Transition{
		ID: tr.ID, From: StatusPending, To: StatusAccepted, Version: tr.StatusVersion, DriverID: &driverID,
	})
	if err != nil || !ok {
		t.Fatalf("assign: ok=%v err=%v", ok, err)
	}
}

func TestCreateRideDefaults(t *testing.T) {
	svc, store, _ := newTestService(t)
	tr := createRide(t, svc)

	if tr.Status != StatusPending || tr.DriverID != nil {
		t.Fatalf("unexpected new trip state: %s driver=%v", tr.Status, tr.DriverID)
	}
	if tr.Category != "economy" {
		t.Fatalf("expected default category economy, got %s", tr.Category)
	}
	if tr.FareEstimate.Amount != 1200 {
		t.Fatalf("expected fare from pricing, got %d", tr.FareEstimate.Amount)
	}
	if evs := store.Events(tr.ID); len(evs) != 1 || evs[0].ToStatus != StatusPending {
		t.Fatalf("expected one PENDING event, got %+v", evs)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]CreateCommand{
		"unknown kind": {Kind: "boat", RequesterID: "p1", Pickup: lagosPickup, Dropoff: lagosDropoff},
		"no requester": {Kind: KindRide, Pickup: lagosPickup, Dropoff: lagosDropoff},
		"bad point": {Kind: KindRide, RequesterID: "p1", Pickup: types.Place{Address: "x", Point: types.Point{Lng: 200, Lat: 6}}, Dropoff: lagosDropoff},
		"delivery without details": {Kind: KindDelivery, RequesterID: "p1", Pickup: lagosPickup, Dropoff: lagosDropoff},
	}
	for name, cmd := range cases {
		if _, err := svc.Create(ctx, cmd); !errors.Is(err, apperr.ErrBadRequest) {
			t.Fatalf("%s: expected bad request, got %v", name, err)
		}
	}
}

func TestRideLifecycleHappyPath(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)
	assign(t, store, tr, "d1")

	got, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: ActionStart})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.Status != StatusInProgress || got.StartedAt == nil {
		t.Fatalf("expected IN_PROGRESS with started time, got %s", got.Status)
	}
	got, err = svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: ActionComplete})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected COMPLETED with completed time, got %s", got.Status)
	}

	stored, _ := svc.Get(ctx, tr.ID)
	if stored.Status != StatusCompleted || !stored.IsAssignedTo("d1") {
		t.Fatalf("stored trip not completed by d1: %+v", stored)
	}
	if evs := store.Events(tr.ID); len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
}

func TestDeliveryLifecycleUsesParcelStatuses(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tr, err := svc.Create(ctx, CreateCommand{
		Kind:        KindDelivery,
		RequesterID: "p1",
		Pickup:      lagosPickup,
		Dropoff:     lagosDropoff,
		Delivery:    &DeliveryDetails{PackageType: "documents", ReceiverName: "Ada", ReceiverPhone: "+2348000000000"},
	})
	if err != nil {
		t.Fatalf("create delivery: %v", err)
	}
	if tr.Category != "standard" {
		t.Fatalf("expected default category standard, got %s", tr.Category)
	}
	assign(t, store, tr, "d1")

	got, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: ActionPickup})
	if err != nil || got.Status != StatusPickedUp {
		t.Fatalf("pickup: status=%v err=%v", got, err)
	}
	got, err = svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: ActionDeliver})
	if err != nil || got.Status != StatusDelivered {
		t.Fatalf("deliver: status=%v err=%v", got, err)
	}
}

func TestCompleteBeforeStartIsConflict(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)
	assign(t, store, tr, "d1")

	_, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: ActionComplete})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := svc.Get(ctx, tr.ID)
	if stored.Status != StatusAccepted {
		t.Fatalf("status changed on failed advance: %s", stored.Status)
	}
}

func TestAdvanceByOtherDriverIsUnauthorized(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)
	assign(t, store, tr, "d1")

	_, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d2", Action: ActionStart})
	if !errors.Is(err, ErrNotAssigned) || !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAdvanceUnknownTripAndAction(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Advance(ctx, AdvanceCommand{TripID: "missing", DriverID: "d1", Action: ActionStart}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	tr := createRide(t, svc)
	assign(t, store, tr, "d1")
	if _, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: "teleport"}); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestConcurrentAdvanceSingleWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)
	assign(t, store, tr, "d1")

	const attempts = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: ActionStart})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}

func TestCancelClearsDriverAndExpiresOffers(t *testing.T) {
	svc, store, closer := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)
	assign(t, store, tr, "d1")

	got, err := svc.Cancel(ctx, CancelCommand{TripID: tr.ID, ActorID: "p1", ActorType: "passenger", Reason: "changed plans"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled || got.DriverID != nil || got.CancelledAt == nil {
		t.Fatalf("unexpected cancelled trip: %+v", got)
	}
	stored, _ := svc.Get(ctx, tr.ID)
	if stored.DriverID != nil || stored.CancelReason == nil || *stored.CancelReason != "changed plans" {
		t.Fatalf("stored trip not cleared: %+v", stored)
	}
	if len(closer.trips) != 1 || closer.trips[0] != tr.ID {
		t.Fatalf("expected open offers expired for %s, got %v", tr.ID, closer.trips)
	}

	if _, err := svc.Cancel(ctx, CancelCommand{TripID: tr.ID, ActorID: "p1"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on second cancel, got %v", err)
	}
}

func TestCancelByStrangerIsForbidden(t *testing.T) {
	svc, _, _ := newTestService(t)
	tr := createRide(t, svc)

	_, err := svc.Cancel(context.Background(), CancelCommand{TripID: tr.ID, ActorID: "someone"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListsNewestFirst(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	createRide(t, svc)
	second := createRide(t, svc)
	assign(t, store, second, "d9")

	mine, err := svc.ListByRequester(ctx, "p1")
	if err != nil {
		t.Fatalf("list requester: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(mine))
	}
	if mine[0].CreatedAt.Before(mine[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	driver, _ := svc.ListByDriver(ctx, "d9")
	if len(driver) != 1 || driver[0].ID != second.ID {
		t.Fatalf("expected only %s for d9, got %+v", second.ID, driver)
	}
}

func TestDriverSummaryCountsFinishedTripsOfBothKinds(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	ride := createRide(t, svc)
	assign(t, store, ride, "d1")
	for _, a := range []Action{ActionStart, ActionComplete} {
		if _, err := svc.Advance(ctx, AdvanceCommand{TripID: ride.ID, DriverID: "d1", Action: a}); err != nil {
			t.Fatalf("ride %s: %v", a, err)
		}
	}

	parcel, err := svc.Create(ctx, CreateCommand{
		Kind:        KindDelivery,
		RequesterID: "p1",
		Pickup:      lagosPickup,
		Dropoff:     lagosDropoff,
		Delivery:    &DeliveryDetails{PackageType: "documents", ReceiverName: "Ada", ReceiverPhone: "+2348000000000"},
	})
	if err != nil {
		t.Fatalf("create delivery: %v", err)
	}
	assign(t, store, parcel, "d1")
	for _, a := range []Action{ActionPickup, ActionDeliver} {
		if _, err := svc.Advance(ctx, AdvanceCommand{TripID: parcel.ID, DriverID: "d1", Action: a}); err != nil {
			t.Fatalf("delivery %s: %v", a, err)
		}
	}

	// Accepted but unfinished, and finished by someone else: neither counts.
	open := createRide(t, svc)
	assign(t, store, open, "d1")
	other := createRide(t, svc)
	assign(t, store, other, "d2")
	if _, err := svc.Advance(ctx, AdvanceCommand{TripID: other.ID, DriverID: "d2", Action: ActionStart}); err != nil {
		t.Fatalf("other start: %v", err)
	}
	if _, err := svc.Advance(ctx, AdvanceCommand{TripID: other.ID, DriverID: "d2", Action: ActionComplete}); err != nil {
		t.Fatalf("other complete: %v", err)
	}

	st, err := svc.DriverSummary(ctx, "d1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if st.CompletedRides != 1 || st.CompletedDeliveries != 1 || st.CompletedTrips() != 2 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.Earnings.Amount != 2400 || st.Earnings.Currency != "NGN" {
		t.Fatalf("expected 2400 NGN earned, got %+v", st.Earnings)
	}

	idle, err := svc.DriverSummary(ctx, "d7")
	if err != nil {
		t.Fatalf("summary for idle driver: %v", err)
	}
	if idle.CompletedTrips() != 0 || idle.Earnings.Amount != 0 {
		t.Fatalf("expected empty summary, got %+v", idle)
	}

	if _, err := svc.DriverSummary(ctx, ""); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("expected bad request for missing driver, got %v", err)
	}
}

func TestMemoryStoreRejectsDriverStatusMismatch(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)

	ok, err := store.UpdateStatus(ctx, Transition{ID: tr.ID, From: StatusPending, To: StatusAccepted, Version: tr.StatusVersion})
	if ok || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected accept without driver to be rejected, ok=%v err=%v", ok, err)
	}

	assign(t, store, tr, "d1")
	ok, err = store.UpdateStatus(ctx, Transition{ID: tr.ID, From: StatusAccepted, To: StatusCancelled, Version: tr.StatusVersion + 1})
	if ok || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected cancel that keeps the driver to be rejected, ok=%v err=%v", ok, err)
	}

	stored, _ := svc.Get(ctx, tr.ID)
	if stored.Status != StatusAccepted || !stored.IsAssignedTo("d1") || stored.StatusVersion != tr.StatusVersion+1 {
		t.Fatalf("rejected writes changed the trip: %+v", stored)
	}
}

func TestCancelFinishedTripIsConflict(t *testing.T) {
	svc, store, closer := newTestService(t)
	ctx := context.Background()
	tr := createRide(t, svc)
	assign(t, store, tr, "d1")
	for _, a := range []Action{ActionStart, ActionComplete} {
		if _, err := svc.Advance(ctx, AdvanceCommand{TripID: tr.ID, DriverID: "d1", Action: a}); err != nil {
			t.Fatalf("%s: %v", a, err)
		}
	}

	_, err := svc.Cancel(ctx, CancelCommand{TripID: tr.ID, ActorID: "p1", ActorType: "passenger"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := svc.Get(ctx, tr.ID)
	if stored.Status != StatusCompleted || !stored.IsAssignedTo("d1") {
		t.Fatalf("finished trip changed: %+v", stored)
	}
	if len(closer.trips) != 0 {
		t.Fatalf("no offers should be expired, got %v", closer.trips)
	}
}
