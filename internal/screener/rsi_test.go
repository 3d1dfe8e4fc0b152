package screener

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/indicator"
)

func newTestRSIScreener(t *testing.T, universe []string) *RSIScreener {
	t.Helper()
	s, err := NewRSIScreener(DefaultRSIConfig(universe), testLogger())
	require.NoError(t, err)
	return s
}

func TestRSIScoreFormula(t *testing.T) {
	s := newTestRSIScreener(t, []string{"AAPL"})

	tests := []struct {
		name       string
		avgRSI     float64
		slope      float64
		r2         float64
		wantScore  float64
		wantConf   float64
		wantPassed bool
	}{
		{
			// deviation 5 under the 30 floor: 5*5 + 0.4*20
			name:       "oversold with trend confirmation",
			avgRSI:     25,
			slope:      0.5,
			r2:         0.4,
			wantScore:  33,
			wantConf:   0.33,
			wantPassed: true,
		},
		{
			name:       "trend bonus withheld on weak fit",
			avgRSI:     25,
			slope:      0.5,
			r2:         0.2,
			wantScore:  25,
			wantConf:   0.25,
			wantPassed: true,
		},
		{
			name:       "trend bonus withheld on falling fit",
			avgRSI:     25,
			slope:      -0.5,
			r2:         0.9,
			wantScore:  25,
			wantConf:   0.25,
			wantPassed: true,
		},
		{
			// deviation 28 caps the base term at 100
			name:       "deep oversold caps at 100",
			avgRSI:     2,
			slope:      0.5,
			r2:         0.5,
			wantScore:  110,
			wantConf:   1.0,
			wantPassed: true,
		},
		{
			name:       "inside the band",
			avgRSI:     45,
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, conf, ok := s.score(tt.avgRSI, tt.slope, tt.r2)
			require.Equal(t, tt.wantPassed, ok)
			if ok {
				assert.InDelta(t, tt.wantScore, score, 1e-9)
				assert.InDelta(t, tt.wantConf, conf, 1e-9)
			}
		})
	}
}

func TestRSIScreenStocks(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("WEAK", decliningBars(60, 100, 0.3))
	provider.SetSeries("STRONG", risingBars(60, 100, 0.3))
	provider.SetSeries("THIN", decliningBars(60, 3, 0.01))

	s := newTestRSIScreener(t, []string{"WEAK", "STRONG", "THIN"})

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "WEAK", results[0].Symbol)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Equal(t, "rsi", results[0].Strategy)

	// Confidence tracks score within one screener run
	assert.InDelta(t, clampUnit(results[0].Score/100), results[0].Confidence, 1e-9)
}

func TestRSITrendFitUsesClosingPrices(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	bars := decliningBars(60, 100, 0.3)
	provider.SetSeries("WEAK", bars)

	s := newTestRSIScreener(t, []string{"WEAK"})

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)
	require.Len(t, results, 1)

	closes := bars.Closes()
	wantSlope, wantR2 := indicator.LinearTrend(closes[len(closes)-s.config.TrendWindow:])
	assert.InDelta(t, wantSlope, results[0].Details["slope"], 1e-9)
	assert.InDelta(t, wantR2, results[0].Details["trend_r2"], 1e-9)
}

func TestRSIScreenCache(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("WEAK", decliningBars(60, 100, 0.3))

	s := newTestRSIScreener(t, []string{"WEAK"})
	ctx := context.Background()

	first, err := s.ScreenStocks(ctx, provider)
	require.NoError(t, err)
	callsAfterFirst := provider.SeriesCalls()

	second, err := s.ScreenStocks(ctx, provider)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, provider.SeriesCalls())
	assert.Equal(t, int64(1), s.Stats().TotalScreenings)

	// Clearing the cache forces a fresh run
	s.ClearCache()
	_, err = s.ScreenStocks(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Stats().TotalScreenings)
}

func connectionErr(symbol string) error {
	return contracts.Errorf(contracts.KindConnectionFailure, "provider.GetSeries", "dial %s feed: refused", symbol)
}

func TestRSIScreenAbortsAfterConsecutiveFailures(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	universe := make([]string, 0, 8)
	for i := 0; i < 7; i++ {
		symbol := fmt.Sprintf("DOWN%d", i)
		universe = append(universe, symbol)
		provider.SetError(symbol, connectionErr(symbol))
	}
	universe = append(universe, "WEAK")
	provider.SetSeries("WEAK", decliningBars(60, 100, 0.3))

	s := newTestRSIScreener(t, universe)

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)
	assert.Empty(t, results)

	// The scan stopped before reaching the healthy symbol
	assert.Equal(t, maxConsecutiveFailures, provider.SeriesCalls())
	assert.Equal(t, int64(0), s.Stats().StocksScreened)
}

func TestRSIScreenNoDataNeverAborts(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	universe := make([]string, 0, 8)
	for i := 0; i < 7; i++ {
		// Unknown to the provider: the no-data outcome, not a fault
		universe = append(universe, fmt.Sprintf("DELISTED%d", i))
	}
	universe = append(universe, "WEAK")
	provider.SetSeries("WEAK", decliningBars(60, 100, 0.3))

	s := newTestRSIScreener(t, universe)

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)

	// Seven empty symbols in a row must not starve the scan
	require.Len(t, results, 1)
	assert.Equal(t, "WEAK", results[0].Symbol)
	assert.Equal(t, len(universe), provider.SeriesCalls())
	assert.Equal(t, int64(1), s.Stats().StocksScreened)
}

func TestRSIScreenFailureCounterResets(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	universe := []string{"DOWN1", "DOWN2", "WEAK", "DOWN3", "DOWN4", "DOWN5", "DOWN6", "STRONG"}
	for _, symbol := range universe {
		if symbol == "WEAK" || symbol == "STRONG" {
			continue
		}
		provider.SetError(symbol, connectionErr(symbol))
	}
	provider.SetSeries("WEAK", decliningBars(60, 100, 0.3))
	provider.SetSeries("STRONG", risingBars(60, 100, 0.3))

	s := newTestRSIScreener(t, universe)

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)

	// The success at WEAK reset the failure streak, so the scan
	// survived the four failures that followed
	require.Len(t, results, 1)
	assert.Equal(t, "WEAK", results[0].Symbol)
	assert.Equal(t, int64(2), s.Stats().StocksScreened)
}

func TestRSIConfigValidation(t *testing.T) {
	cfg := DefaultRSIConfig(nil) // empty universe
	_, err := NewRSIScreener(cfg, testLogger())
	require.Error(t, err)
	assert.True(t, contracts.IsKind(err, contracts.KindConfigError))
}

func TestRSICacheExpiry(t *testing.T) {
	cache := newResultCache(50 * time.Millisecond)
	now := time.Now()
	cache.put([]contracts.ScreenResult{result("AAPL", 50, 0.5)}, now)

	_, ok := cache.get(now.Add(10 * time.Millisecond))
	assert.True(t, ok)

	_, ok = cache.get(now.Add(60 * time.Millisecond))
	assert.False(t, ok)
}
