package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// SignalRepository persists trade signals. Signal rows are written
// here and nowhere else.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a signal repository over the pool.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Save upserts one signal by its ID.
func (r *SignalRepository) Save(ctx context.Context, sig contracts.TradeSignal) error {
	metadata, err := json.Marshal(sig.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal signal metadata: %w", err)
	}

	query := `
		INSERT INTO trading.signals (
			id, symbol, action, price, size, confidence,
			signal_type, stop_loss, take_profit, reason, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			price = EXCLUDED.price,
			size = EXCLUDED.size,
			confidence = EXCLUDED.confidence,
			metadata = EXCLUDED.metadata
	`

	_, err = r.pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Action), sig.Price, sig.Size, sig.Confidence,
		string(sig.SignalType), sig.StopLoss, sig.TakeProfit, sig.Reason, metadata, sig.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// Recent returns the newest signals, most recent first.
func (r *SignalRepository) Recent(ctx context.Context, limit int) ([]contracts.TradeSignal, error) {
	query := `
		SELECT
			id, symbol, action, price, size, confidence,
			signal_type, stop_loss, take_profit, reason, metadata, created_at
		FROM trading.signals
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []contracts.TradeSignal
	for rows.Next() {
		var sig contracts.TradeSignal
		var action, signalType string
		var metadata []byte

		err := rows.Scan(
			&sig.ID, &sig.Symbol, &action, &sig.Price, &sig.Size, &sig.Confidence,
			&signalType, &sig.StopLoss, &sig.TakeProfit, &sig.Reason, &metadata, &sig.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}

		sig.Action = contracts.Action(action)
		sig.SignalType = contracts.SignalType(signalType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sig.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode signal metadata: %w", err)
			}
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

// BySymbol returns a symbol's signals within the window, most recent
// first.
func (r *SignalRepository) BySymbol(ctx context.Context, symbol string, since time.Time) ([]contracts.TradeSignal, error) {
	query := `
		SELECT
			id, symbol, action, price, size, confidence,
			signal_type, stop_loss, take_profit, reason, metadata, created_at
		FROM trading.signals
		WHERE symbol = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []contracts.TradeSignal
	for rows.Next() {
		var sig contracts.TradeSignal
		var action, signalType string
		var metadata []byte

		err := rows.Scan(
			&sig.ID, &sig.Symbol, &action, &sig.Price, &sig.Size, &sig.Confidence,
			&signalType, &sig.StopLoss, &sig.TakeProfit, &sig.Reason, &metadata, &sig.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}

		sig.Action = contracts.Action(action)
		sig.SignalType = contracts.SignalType(signalType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sig.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode signal metadata: %w", err)
			}
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}
