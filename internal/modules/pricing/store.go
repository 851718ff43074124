// README: Fare rate store backed by PostgreSQL, falling back to the built-in table.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridedesk/internal/apperr"
)

// RateSource resolves the rate for a (kind, category) pair.
type RateSource interface {
	GetRate(ctx context.Context, kind, category string) (Rate, error)
}

// StaticRates serves the built-in rate table.
type StaticRates struct{}

func (StaticRates) GetRate(_ context.Context, kind, category string) (Rate, error) {
	r, ok := defaultRates[rateKey(kind, category)]
	if !ok {
		return Rate{}, apperr.BadRequest(fmt.Sprintf("no fare rate for %s category %q", kind, category))
	}
	return r, nil
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetRate reads an override from fare_rates; absent rows use the built-in table.
func (s *Store) GetRate(ctx context.Context, kind, category string) (Rate, error) {
	r := Rate{Kind: kind, Category: category}
	err := s.db.QueryRow(ctx, `
		SELECT base_fare, per_km, min_fare, currency
		FROM fare_rates
		WHERE kind = $1 AND category = $2`,
		kind, category,
	).Scan(&r.BaseFare, &r.PerKm, &r.MinFare, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return StaticRates{}.GetRate(ctx, kind, category)
	}
	if err != nil {
		return Rate{}, fmt.Errorf("get fare rate %s: %w", rateKey(kind, category), err)
	}
	return r, nil
}
