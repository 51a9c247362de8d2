package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wyeliu/stockradar/internal/market"
)

// InstrumentRepository persists the tracked universe.
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// ListTracked returns every tracked instrument, ordered by code.
func (r *InstrumentRepository) ListTracked(ctx context.Context) ([]market.Instrument, error) {
	query := `
		SELECT code, name, suspended
		FROM instruments
		WHERE tracked = TRUE
		ORDER BY code ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list instruments: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var instruments []market.Instrument
	for rows.Next() {
		var inst market.Instrument
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Suspended); err != nil {
			return nil, fmt.Errorf("%w: scan instrument: %v", ErrUnavailable, err)
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

// Get returns one instrument by code.
func (r *InstrumentRepository) Get(ctx context.Context, code string) (*market.Instrument, error) {
	query := `SELECT code, name, suspended FROM instruments WHERE code = $1`

	var inst market.Instrument
	err := r.pool.QueryRow(ctx, query, code).Scan(&inst.Code, &inst.Name, &inst.Suspended)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get instrument: %v", ErrUnavailable, err)
	}
	return &inst, nil
}

// Upsert writes an instrument by code, marking it tracked.
func (r *InstrumentRepository) Upsert(ctx context.Context, inst market.Instrument) error {
	query := `
		INSERT INTO instruments (code, name, suspended, tracked)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			suspended = EXCLUDED.suspended,
			tracked = TRUE
	`

	_, err := r.pool.Exec(ctx, query, inst.Code, inst.Name, inst.Suspended)
	if err != nil {
		return fmt.Errorf("%w: upsert instrument: %v", ErrUnavailable, err)
	}
	return nil
}

// SeedCodes ensures every configured code exists in the universe.
// Names and flags are filled in later by the profile refresh.
func (r *InstrumentRepository) SeedCodes(ctx context.Context, codes []string) error {
	for _, code := range codes {
		query := `
			INSERT INTO instruments (code, name, suspended, tracked)
			VALUES ($1, '', FALSE, TRUE)
			ON CONFLICT (code) DO UPDATE SET tracked = TRUE
		`
		if _, err := r.pool.Exec(ctx, query, code); err != nil {
			return fmt.Errorf("%w: seed instrument %s: %v", ErrUnavailable, code, err)
		}
	}
	return nil
}
