package screener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

func TestTrendTemplateScreenStocks(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("SPY", flatBars(252, 100))
	provider.SetSeries("LEADER", risingBars(252, 50, 0.4))
	provider.SetSeries("LAGGARD", flatBars(252, 100))
	provider.SetSeries("FADER", decliningBars(252, 200, 0.3))

	cfg := DefaultTrendTemplateConfig([]string{"LEADER", "LAGGARD", "FADER"}, "SPY")
	s, err := NewTrendTemplateScreener(cfg, testLogger())
	require.NoError(t, err)

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)

	// The 30% relative-strength cut keeps only the leader, which
	// then satisfies every trend condition
	require.Len(t, results, 1)
	assert.Equal(t, "LEADER", results[0].Symbol)
	assert.Equal(t, 100.0, results[0].Score)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.Equal(t, 1.0, results[0].Details["above_long_mas"])
	assert.Equal(t, 1.0, results[0].Details["near_high"])
}

func TestTrendTemplateNoBenchmark(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("LEADER", risingBars(252, 50, 0.4))

	cfg := DefaultTrendTemplateConfig([]string{"LEADER"}, "SPY")
	s, err := NewTrendTemplateScreener(cfg, testLogger())
	require.NoError(t, err)

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTrendTemplateSkipsShortHistory(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("SPY", flatBars(252, 100))
	provider.SetSeries("YOUNG", risingBars(120, 50, 0.4))

	cfg := DefaultTrendTemplateConfig([]string{"YOUNG"}, "SPY")
	s, err := NewTrendTemplateScreener(cfg, testLogger())
	require.NoError(t, err)

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRelativeStrength(t *testing.T) {
	// Matching the benchmark rates 100; doubling it rates higher
	assert.InDelta(t, 100.0, relativeStrength(0.10, 0.10), 1e-9)
	assert.Greater(t, relativeStrength(0.30, 0.10), 100.0)
	assert.Less(t, relativeStrength(-0.10, 0.10), 100.0)
}
