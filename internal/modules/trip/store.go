// README: Trip store backed by PostgreSQL; status changes are compare-and-swap updates.
package trip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridedesk/internal/types"
)

// Repository is what the trip engines need from persistence.
type Repository interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	UpdateStatus(ctx context.Context, tr Transition) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListByRequester(ctx context.Context, requesterID types.ID, limit int) ([]*Trip, error)
	ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]*Trip, error)
	DriverStats(ctx context.Context, driverID types.ID) (DriverStats, error)
}

// Transition is a conditional status write. It applies only while the stored
// trip still has status From and version Version.
type Transition struct {
	ID          types.ID
	From        Status
	To          Status
	Version     int
	DriverID    *types.ID
	ClearDriver bool
	Reason      *string
	At          time.Time
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const tripColumns = `
	id, kind, requester_id, driver_id, status, status_version,
	pickup_address, pickup_lng, pickup_lat, dropoff_address, dropoff_lng, dropoff_lat,
	category, fare_amount, fare_currency, package_type, receiver_name, receiver_phone,
	created_at, accepted_at, started_at, completed_at, cancelled_at, cancel_reason`

func (s *Store) Create(ctx context.Context, t *Trip) error {
	var pkg, receiver, phone *string
	if t.Delivery != nil {
		pkg, receiver, phone = &t.Delivery.PackageType, &t.Delivery.ReceiverName, &t.Delivery.ReceiverPhone
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (`+tripColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24
		)`,
		string(t.ID), string(t.Kind), string(t.RequesterID), toStringPtr(t.DriverID), string(t.Status), t.StatusVersion,
		t.Pickup.Address, t.Pickup.Point.Lng, t.Pickup.Point.Lat,
		t.Dropoff.Address, t.Dropoff.Point.Lng, t.Dropoff.Point.Lat,
		t.Category, t.FareEstimate.Amount, t.FareEstimate.Currency, pkg, receiver, phone,
		t.CreatedAt, t.AcceptedAt, t.StartedAt, t.CompletedAt, t.CancelledAt, t.CancelReason,
	)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", id, err)
	}
	return t, nil
}

// UpdateStatus performs the CAS. It reports false when another writer moved the
// trip first; the row is then left untouched.
func (s *Store) UpdateStatus(ctx context.Context, tr Transition) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
			status_version = status_version + 1,
			driver_id = CASE WHEN $3 THEN NULL ELSE COALESCE($2, driver_id) END,
			accepted_at = CASE WHEN $1 = 'ACCEPTED' THEN $4 ELSE accepted_at END,
			started_at = CASE WHEN $1 IN ('IN_PROGRESS', 'PICKED_UP') THEN $4 ELSE started_at END,
			completed_at = CASE WHEN $1 IN ('COMPLETED', 'DELIVERED') THEN $4 ELSE completed_at END,
			cancelled_at = CASE WHEN $1 = 'CANCELLED' THEN $4 ELSE cancelled_at END,
			cancel_reason = COALESCE($5, cancel_reason)
		WHERE id = $6 AND status = $7 AND status_version = $8`,
		string(tr.To),
		toStringPtr(tr.DriverID),
		tr.ClearDriver,
		tr.At,
		tr.Reason,
		string(tr.ID),
		string(tr.From),
		tr.Version,
	)
	if err != nil {
		return false, fmt.Errorf("update trip %s status: %w", tr.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_events (
			trip_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) ListByRequester(ctx context.Context, requesterID types.ID, limit int) ([]*Trip, error) {
	return s.list(ctx, `SELECT `+tripColumns+` FROM trips WHERE requester_id = $1 ORDER BY created_at DESC LIMIT $2`, requesterID, limit)
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]*Trip, error) {
	return s.list(ctx, `SELECT `+tripColumns+` FROM trips WHERE driver_id = $1 ORDER BY created_at DESC LIMIT $2`, driverID, limit)
}

// DriverStats sums finished trips. Fares in more than one currency are not
// mixed: the currency of the most recent finished trip wins and other rows are
// left out of the sum.
func (s *Store) DriverStats(ctx context.Context, driverID types.ID) (DriverStats, error) {
	var (
		st       DriverStats
		currency *string
	)
	err := s.db.QueryRow(ctx, `
		WITH finished AS (
			SELECT kind, fare_amount, fare_currency, completed_at
			FROM trips
			WHERE driver_id = $1 AND status IN ('COMPLETED', 'DELIVERED')
		), latest AS (
			SELECT fare_currency FROM finished ORDER BY completed_at DESC NULLS LAST LIMIT 1
		)
		SELECT
			COUNT(*) FILTER (WHERE kind = 'ride'),
			COUNT(*) FILTER (WHERE kind = 'delivery'),
			COALESCE(SUM(fare_amount) FILTER (WHERE fare_currency = (SELECT fare_currency FROM latest)), 0)::bigint,
			(SELECT fare_currency FROM latest)
		FROM finished`,
		string(driverID),
	).Scan(&st.CompletedRides, &st.CompletedDeliveries, &st.Earnings.Amount, &currency)
	if err != nil {
		return DriverStats{}, fmt.Errorf("driver %s stats: %w", driverID, err)
	}
	if currency != nil {
		st.Earnings.Currency = *currency
	}
	return st, nil
}

func (s *Store) list(ctx context.Context, query string, id types.ID, limit int) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, query, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var (
		t                           Trip
		id, kind, requester, status string
		driverID                    *string
		pkg, receiver, phone        *string
	)
	err := row.Scan(
		&id, &kind, &requester, &driverID, &status, &t.StatusVersion,
		&t.Pickup.Address, &t.Pickup.Point.Lng, &t.Pickup.Point.Lat,
		&t.Dropoff.Address, &t.Dropoff.Point.Lng, &t.Dropoff.Point.Lat,
		&t.Category, &t.FareEstimate.Amount, &t.FareEstimate.Currency, &pkg, &receiver, &phone,
		&t.CreatedAt, &t.AcceptedAt, &t.StartedAt, &t.CompletedAt, &t.CancelledAt, &t.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	t.ID = types.ID(id)
	t.Kind = Kind(kind)
	t.RequesterID = types.ID(requester)
	t.Status = Status(status)
	if driverID != nil {
		d := types.ID(*driverID)
		t.DriverID = &d
	}
	if pkg != nil {
		t.Delivery = &DeliveryDetails{PackageType: *pkg}
		if receiver != nil {
			t.Delivery.ReceiverName = *receiver
		}
		if phone != nil {
			t.Delivery.ReceiverPhone = *phone
		}
	}
	return &t, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
