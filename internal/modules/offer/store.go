// README: Offer ledger backed by PostgreSQL; uniqueness on (trip_id, driver_id).
package offer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

// Ledger is the persistence the matching and resolution engines need.
type Ledger interface {
	// CreateIfAbsent inserts o unless an offer for the same pair exists and
	// reports whether this call created it.
	CreateIfAbsent(ctx context.Context, o Offer) (bool, error)
	Get(ctx context.Context, tripID, driverID types.ID) (Offer, error)
	// Resolve moves a SENT offer to a terminal status; false when it was not SENT.
	Resolve(ctx context.Context, tripID, driverID types.ID, to Status, at time.Time) (bool, error)
	// ExpireOthers expires every SENT offer for the trip except keepDriverID's
	// and returns the drivers whose offers it expired.
	ExpireOthers(ctx context.Context, tripID, keepDriverID types.ID, at time.Time) ([]types.ID, error)
	ListByTrip(ctx context.Context, tripID types.ID) ([]Offer, error)
	ListOpenByDriver(ctx context.Context, driverID types.ID) ([]Offer, error)
	// ExpireOpen expires every SENT offer for the trip.
	ExpireOpen(ctx context.Context, tripID types.ID) (int64, error)
}

// ErrNoOffer is returned by Get when the pair has no ledger row.
var ErrNoOffer = errors.New("offer not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const offerColumns = `trip_id, trip_kind, driver_id, status, created_at, responded_at`

func (s *Store) CreateIfAbsent(ctx context.Context, o Offer) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO trip_offers (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trip_id, driver_id) DO NOTHING`,
		string(o.TripID), string(o.TripKind), string(o.DriverID), string(o.Status), o.CreatedAt, o.RespondedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert offer %s/%s: %w", o.TripID, o.DriverID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Get(ctx context.Context, tripID, driverID types.ID) (Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM trip_offers WHERE trip_id = $1 AND driver_id = $2`,
		string(tripID), string(driverID))
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Offer{}, ErrNoOffer
	}
	if err != nil {
		return Offer{}, fmt.Errorf("get offer %s/%s: %w", tripID, driverID, err)
	}
	return o, nil
}

func (s *Store) Resolve(ctx context.Context, tripID, driverID types.ID, to Status, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trip_offers
		SET status = $1, responded_at = $2
		WHERE trip_id = $3 AND driver_id = $4 AND status = 'SENT'`,
		string(to), at, string(tripID), string(driverID),
	)
	if err != nil {
		return false, fmt.Errorf("resolve offer %s/%s: %w", tripID, driverID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ExpireOthers(ctx context.Context, tripID, keepDriverID types.ID, at time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE trip_offers
		SET status = 'EXPIRED', responded_at = $1
		WHERE trip_id = $2 AND driver_id <> $3 AND status = 'SENT'
		RETURNING driver_id`,
		at, string(tripID), string(keepDriverID),
	)
	if err != nil {
		return nil, fmt.Errorf("expire offers for %s: %w", tripID, err)
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired offer: %w", err)
		}
		ids = append(ids, types.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expire offers for %s: %w", tripID, err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ExpireOpen expires every SENT offer for the trip.
func (s *Store) ExpireOpen(ctx context.Context, tripID types.ID) (int64, error) {
	ids, err := s.ExpireOthers(ctx, tripID, "", time.Now())
	return int64(len(ids)), err
}

func (s *Store) ListByTrip(ctx context.Context, tripID types.ID) ([]Offer, error) {
	return s.list(ctx, `SELECT `+offerColumns+` FROM trip_offers WHERE trip_id = $1 ORDER BY created_at, driver_id`, tripID)
}

func (s *Store) ListOpenByDriver(ctx context.Context, driverID types.ID) ([]Offer, error) {
	return s.list(ctx, `SELECT `+offerColumns+` FROM trip_offers WHERE driver_id = $1 AND status = 'SENT' ORDER BY created_at DESC`, driverID)
}

func (s *Store) list(ctx context.Context, query string, id types.ID) ([]Offer, error) {
	rows, err := s.db.Query(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOffer(row pgx.Row) (Offer, error) {
	var (
		o                              Offer
		tripID, kind, driverID, status string
	)
	if err := row.Scan(&tripID, &kind, &driverID, &status, &o.CreatedAt, &o.RespondedAt); err != nil {
		return Offer{}, err
	}
	o.TripID = types.ID(tripID)
	o.TripKind = trip.Kind(kind)
	o.DriverID = types.ID(driverID)
	o.Status = Status(status)
	return o, nil
}
