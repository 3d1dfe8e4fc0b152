package screener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

func benchmarkQuality(symbol string) *contracts.Fundamentals {
	return &contracts.Fundamentals{
		Symbol:          symbol,
		MarketCap:       5e9,
		ROE:             0.15,
		ROA:             0.08,
		DebtRatio:       0.8,
		RevenueGrowth:   0.10,
		NetIncomeGrowth: 0.12,
		DividendYield:   0.025,
		Sector:          "Technology",
	}
}

func newTestFundamental(t *testing.T, universe []string) *FundamentalScreener {
	t.Helper()
	s, err := NewFundamentalScreener(DefaultFundamentalConfig(universe), testLogger())
	require.NoError(t, err)
	return s
}

func TestFundamentalCompositeScore(t *testing.T) {
	s := newTestFundamental(t, []string{"AAPL"})

	// A company sitting exactly on every reference mean normalizes
	// to 1.0 per factor: 10*(1.2+1.1-1.1+1.25+1.10+0.8) = 43.5
	score := s.compositeScore(benchmarkQuality("AAPL"))
	assert.InDelta(t, 43.5, score, 1e-9)

	// Doubling every factor doubles the raw sum before the clip
	double := benchmarkQuality("AAPL")
	double.ROE *= 2
	double.ROA *= 2
	double.DebtRatio *= 2
	double.RevenueGrowth *= 2
	double.NetIncomeGrowth *= 2
	double.DividendYield *= 2
	assert.InDelta(t, 87.0, s.compositeScore(double), 1e-9)
}

func TestFundamentalHardFilters(t *testing.T) {
	s := newTestFundamental(t, []string{"AAPL"})

	tests := []struct {
		name   string
		mutate func(*contracts.Fundamentals)
		want   bool
	}{
		{name: "benchmark passes", mutate: func(*contracts.Fundamentals) {}, want: true},
		{name: "weak roe", mutate: func(f *contracts.Fundamentals) { f.ROE = 0.05 }, want: false},
		{name: "overlevered", mutate: func(f *contracts.Fundamentals) { f.DebtRatio = 2.0 }, want: false},
		{name: "shrinking revenue", mutate: func(f *contracts.Fundamentals) { f.RevenueGrowth = -0.02 }, want: false},
		{name: "micro cap", mutate: func(f *contracts.Fundamentals) { f.MarketCap = 5e8 }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := benchmarkQuality("AAPL")
			tt.mutate(f)
			assert.Equal(t, tt.want, s.passesHardFilters(f))
		})
	}
}

func TestFundamentalSectorFilter(t *testing.T) {
	cfg := DefaultFundamentalConfig([]string{"AAPL"})
	cfg.Sectors = []string{"Healthcare"}
	s, err := NewFundamentalScreener(cfg, testLogger())
	require.NoError(t, err)

	assert.False(t, s.passesHardFilters(benchmarkQuality("AAPL")))

	f := benchmarkQuality("AAPL")
	f.Sector = "Healthcare"
	assert.True(t, s.passesHardFilters(f))
}

func TestFundamentalScreenStocks(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetFundamentals("GOOD", benchmarkQuality("GOOD"))

	weak := benchmarkQuality("WEAK")
	weak.ROE = 0.02
	provider.SetFundamentals("WEAK", weak)

	s := newTestFundamental(t, []string{"GOOD", "WEAK", "MISSING"})

	results, err := s.ScreenStocks(context.Background(), provider)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "GOOD", results[0].Symbol)
	assert.InDelta(t, 43.5, results[0].Score, 1e-9)
	assert.InDelta(t, 0.435, results[0].Confidence, 1e-9)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.TotalScreenings)
	assert.Equal(t, int64(2), stats.StocksScreened)
	assert.Equal(t, int64(1), stats.StocksPassed)
}
