package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wyeliu/stockradar/internal/market"
)

// ErrUnavailable marks a failed round-trip to the backing store. A
// sync cycle that hits it is aborted and retried on the next interval.
var ErrUnavailable = errors.New("store unavailable")

// BarRepository persists ordered bars keyed by (code, period, date).
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository creates a new bar repository
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

// GetRange retrieves bars for (code, period) within [from, to],
// ascending by date.
func (r *BarRepository) GetRange(ctx context.Context, code string, period market.Period, from, to time.Time) (market.Series, error) {
	query := `
		SELECT code, period, bar_date, open_price, high_price, low_price, close_price, volume, amount
		FROM bars
		WHERE code = $1 AND period = $2 AND bar_date BETWEEN $3 AND $4
		ORDER BY bar_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code, string(period), from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: query bars: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetAll retrieves the full stored series for (code, period), ascending.
func (r *BarRepository) GetAll(ctx context.Context, code string, period market.Period) (market.Series, error) {
	query := `
		SELECT code, period, bar_date, open_price, high_price, low_price, close_price, volume, amount
		FROM bars
		WHERE code = $1 AND period = $2
		ORDER BY bar_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code, string(period))
	if err != nil {
		return nil, fmt.Errorf("%w: query bars: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// LatestDate returns the newest stored bar date for (code, period).
// A series with no stored data yields the zero time, not an error.
func (r *BarRepository) LatestDate(ctx context.Context, code string, period market.Period) (time.Time, error) {
	query := `
		SELECT bar_date FROM bars
		WHERE code = $1 AND period = $2
		ORDER BY bar_date DESC
		LIMIT 1
	`

	var date time.Time
	err := r.pool.QueryRow(ctx, query, code, string(period)).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: latest date: %v", ErrUnavailable, err)
	}
	return date, nil
}

// EarliestDate returns the oldest stored bar date for (code, period),
// or the zero time when nothing is stored.
func (r *BarRepository) EarliestDate(ctx context.Context, code string, period market.Period) (time.Time, error) {
	query := `
		SELECT bar_date FROM bars
		WHERE code = $1 AND period = $2
		ORDER BY bar_date ASC
		LIMIT 1
	`

	var date time.Time
	err := r.pool.QueryRow(ctx, query, code, string(period)).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: earliest date: %v", ErrUnavailable, err)
	}
	return date, nil
}

// UpsertBatch writes bars by natural key inside one transaction:
// either the whole cycle commits or none of it does. Conflicting dates
// take the incoming values, which also absorbs upstream restatements.
func (r *BarRepository) UpsertBatch(ctx context.Context, bars market.Series) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO bars (code, period, bar_date, open_price, high_price, low_price, close_price, volume, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code, period, bar_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query,
			b.Code, string(b.Period), b.Date,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("%w: upsert bar: %v", ErrUnavailable, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("%w: close batch: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

// Count returns the number of stored bars for (code, period)
func (r *BarRepository) Count(ctx context.Context, code string, period market.Period) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bars WHERE code = $1 AND period = $2`,
		code, string(period),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count bars: %v", ErrUnavailable, err)
	}
	return count, nil
}

func scanBars(rows pgx.Rows) (market.Series, error) {
	var bars market.Series
	for rows.Next() {
		var b market.Bar
		var period string
		if err := rows.Scan(&b.Code, &period, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Amount); err != nil {
			return nil, fmt.Errorf("%w: scan bar: %v", ErrUnavailable, err)
		}
		b.Period = market.Period(period)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}
	return bars, nil
}
