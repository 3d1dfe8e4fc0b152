package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	// Skip if DATABASE_URL is not set
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(context.Background(), pool))
	return pool
}

func TestSignalRepositorySaveAndRecent(t *testing.T) {
	pool := testPool(t)
	repo := NewSignalRepository(pool)
	ctx := context.Background()

	sig := contracts.TradeSignal{
		ID:         contracts.NewSignalID(),
		Symbol:     "AAPL",
		Action:     contracts.ActionBuy,
		Price:      187.5,
		Size:       100,
		Confidence: 0.72,
		SignalType: contracts.SignalMomentumEntry,
		StopLoss:   182.0,
		TakeProfit: 198.0,
		Reason:     "momentum_reversal_entry",
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		Metadata:   map[string]interface{}{"strength": 0.8},
	}
	require.NoError(t, repo.Save(ctx, sig))

	// Saving again with updated fields must not duplicate the row.
	sig.Confidence = 0.80
	require.NoError(t, repo.Save(ctx, sig))

	signals, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, signals)

	var found *contracts.TradeSignal
	for i := range signals {
		if signals[i].ID == sig.ID {
			found = &signals[i]
			break
		}
	}
	require.NotNil(t, found, "saved signal not returned by Recent")
	assert.Equal(t, sig.Symbol, found.Symbol)
	assert.Equal(t, contracts.ActionBuy, found.Action)
	assert.InDelta(t, 0.80, found.Confidence, 1e-9)
	assert.Equal(t, 0.8, found.Metadata["strength"])
}

func TestScreenRepositorySaveAndLatestRun(t *testing.T) {
	pool := testPool(t)
	repo := NewScreenRepository(pool)
	ctx := context.Background()

	results := []contracts.ScreenResult{
		{Symbol: "MSFT", Score: 81.5, Confidence: 0.815, Details: map[string]float64{"avg_rsi": 24.0}},
		{Symbol: "AAPL", Score: 64.0, Confidence: 0.64},
	}
	runID, err := repo.SaveRun(ctx, "rsi", results)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	stored, err := repo.LatestRun(ctx, "rsi")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	// Ordered by score descending.
	assert.Equal(t, "MSFT", stored[0].Symbol)
	assert.Equal(t, "rsi", stored[0].Strategy)
	assert.InDelta(t, 24.0, stored[0].Details["avg_rsi"], 1e-9)
	assert.Equal(t, "AAPL", stored[1].Symbol)
}

func TestScreenRepositoryEmptyRun(t *testing.T) {
	pool := testPool(t)
	repo := NewScreenRepository(pool)

	runID, err := repo.SaveRun(context.Background(), "rsi", nil)
	require.NoError(t, err)
	assert.Empty(t, runID)
}
