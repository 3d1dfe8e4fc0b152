package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// ScreenRepository persists screening runs.
type ScreenRepository struct {
	pool *pgxpool.Pool
}

// NewScreenRepository creates a screen repository over the pool.
func NewScreenRepository(pool *pgxpool.Pool) *ScreenRepository {
	return &ScreenRepository{pool: pool}
}

// SaveRun stores one screener run's results under a fresh run ID and
// returns that ID. An empty result list stores nothing.
func (r *ScreenRepository) SaveRun(ctx context.Context, screener string, results []contracts.ScreenResult) (string, error) {
	if len(results) == 0 {
		return "", nil
	}

	runID := uuid.NewString()
	runAt := time.Now()

	query := `
		INSERT INTO trading.screen_results (
			run_id, screener, symbol, score, confidence, details, run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, symbol) DO UPDATE SET
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			details = EXCLUDED.details
	`

	for _, res := range results {
		details, err := json.Marshal(res.Details)
		if err != nil {
			return "", fmt.Errorf("failed to marshal screen details: %w", err)
		}
		_, err = r.pool.Exec(ctx, query,
			runID, screener, res.Symbol, res.Score, res.Confidence, details, runAt,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert screen result: %w", err)
		}
	}
	return runID, nil
}

// LatestRun returns the most recent run's results for a screener,
// ordered by score descending.
func (r *ScreenRepository) LatestRun(ctx context.Context, screener string) ([]contracts.ScreenResult, error) {
	query := `
		SELECT symbol, score, confidence, details, run_at
		FROM trading.screen_results
		WHERE run_id = (
			SELECT run_id FROM trading.screen_results
			WHERE screener = $1
			ORDER BY run_at DESC
			LIMIT 1
		)
		ORDER BY score DESC, symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, screener)
	if err != nil {
		return nil, fmt.Errorf("failed to query screen results: %w", err)
	}
	defer rows.Close()

	var results []contracts.ScreenResult
	for rows.Next() {
		var res contracts.ScreenResult
		var details []byte

		if err := rows.Scan(&res.Symbol, &res.Score, &res.Confidence, &details, &res.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan screen result row: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &res.Details); err != nil {
				return nil, fmt.Errorf("failed to decode screen details: %w", err)
			}
		}
		res.Strategy = screener
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating screen result rows: %w", err)
	}
	return results, nil
}
