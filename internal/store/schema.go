package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS instruments (
	code      TEXT PRIMARY KEY,
	name      TEXT NOT NULL DEFAULT '',
	suspended BOOLEAN NOT NULL DEFAULT FALSE,
	tracked   BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS bars (
	code        TEXT NOT NULL,
	period      TEXT NOT NULL,
	bar_date    TIMESTAMPTZ NOT NULL,
	open_price  DOUBLE PRECISION NOT NULL,
	high_price  DOUBLE PRECISION NOT NULL,
	low_price   DOUBLE PRECISION NOT NULL,
	close_price DOUBLE PRECISION NOT NULL,
	volume      BIGINT NOT NULL,
	amount      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (code, period, bar_date)
);

CREATE INDEX IF NOT EXISTS idx_bars_code_period_date
	ON bars (code, period, bar_date DESC);
`

// EnsureSchema creates the tables when they are missing. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ErrUnavailable, err)
	}
	return nil
}
