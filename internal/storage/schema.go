package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the trading schema and tables if they do not
// exist. Safe to run on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS trading`,
		`CREATE TABLE IF NOT EXISTS trading.signals (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			action      TEXT NOT NULL,
			price       DOUBLE PRECISION NOT NULL,
			size        DOUBLE PRECISION NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL,
			signal_type TEXT NOT NULL,
			stop_loss   DOUBLE PRECISION NOT NULL DEFAULT 0,
			take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			reason      TEXT NOT NULL DEFAULT '',
			metadata    JSONB,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_time
			ON trading.signals (symbol, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS trading.screen_results (
			run_id     TEXT NOT NULL,
			screener   TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			score      DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			details    JSONB,
			run_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screen_results_screener_time
			ON trading.screen_results (screener, run_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
