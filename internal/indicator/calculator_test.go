package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func makeSeries(closes []float64) contracts.Series {
	now := time.Now()
	s := make(contracts.Series, len(closes))
	for i, c := range closes {
		s[i] = contracts.Bar{
			Timestamp: now.Add(time.Duration(i-len(closes)) * time.Minute),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return s
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
		ok     bool
	}{
		{
			name:   "all gains saturate at 100",
			closes: ramp(20, 100, 1),
			period: 14,
			want:   100,
			ok:     true,
		},
		{
			name:   "insufficient history",
			closes: ramp(10, 100, 1),
			period: 14,
			ok:     false,
		},
		{
			name:   "balanced gains and losses near 50",
			closes: []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100},
			period: 14,
			want:   50,
			ok:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSI(tt.closes, tt.period)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1.0)
			}
		})
	}
}

func TestSMAAndEMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	sma, ok := SMA(closes, 5)
	require.True(t, ok)
	assert.InDelta(t, 3.0, sma, 1e-9)

	sma, ok = SMA(closes, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, sma, 1e-9)

	_, ok = SMA(closes, 6)
	assert.False(t, ok)

	// EMA of a constant series is the constant
	ema, ok := EMA([]float64{7, 7, 7, 7, 7, 7}, 3)
	require.True(t, ok)
	assert.InDelta(t, 7.0, ema, 1e-9)
}

func TestATR(t *testing.T) {
	bars := contracts.Series{
		{High: 12, Low: 8, Close: 10},
		{High: 11, Low: 9, Close: 10},
		{High: 13, Low: 10, Close: 12},
	}

	// TR bar1 = max(11-9, |11-10|, |9-10|) = 2
	// TR bar2 = max(13-10, |13-10|, |10-10|) = 3
	atr, ok := ATR(bars, 2)
	require.True(t, ok)
	assert.InDelta(t, 2.5, atr, 1e-9)

	_, ok = ATR(bars, 3)
	assert.False(t, ok)
}

func TestMeanStdAndZScore(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean, std, ok := MeanStd(values, 8)
	require.True(t, ok)
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, std, 1e-9)

	// Latest value 9 sits two standard deviations above the mean
	z, ok := ZScore(values, 8)
	require.True(t, ok)
	assert.InDelta(t, 2.0, z, 1e-9)

	// Constant window has zero deviation
	_, ok = ZScore([]float64{5, 5, 5, 5}, 4)
	assert.False(t, ok)
}

func TestLinearTrend(t *testing.T) {
	// Perfect ascending line
	slope, r2 := LinearTrend(ramp(10, 0, 2))
	assert.InDelta(t, 2.0, slope, 1e-9)
	assert.InDelta(t, 1.0, r2, 1e-9)

	// Flat line carries no trend signal
	slope, r2 = LinearTrend([]float64{3, 3, 3, 3})
	assert.InDelta(t, 0.0, slope, 1e-9)
	assert.InDelta(t, 0.0, r2, 1e-9)
}

func TestBollinger(t *testing.T) {
	closes := ramp(20, 100, 0) // constant 100
	upper, middle, lower, ok := Bollinger(closes, 20, 2.0)
	require.True(t, ok)
	assert.InDelta(t, 100.0, upper, 1e-9)
	assert.InDelta(t, 100.0, middle, 1e-9)
	assert.InDelta(t, 100.0, lower, 1e-9)
}

func TestComputeIndicatorSet(t *testing.T) {
	calc := NewCalculator(testLogger())

	// 60 bars: enough for RSI/MA20/MA50/ATR/MACD/BB, not MA150/MA200
	bars := makeSeries(ramp(60, 100, 0.5))
	ind := calc.Compute(bars)

	assert.True(t, ind.Has(contracts.IndRSI, contracts.IndMA5, contracts.IndMA20, contracts.IndMA50))
	assert.True(t, ind.Has(contracts.IndATR, contracts.IndMACD, contracts.IndMACDSignal))
	assert.True(t, ind.Has(contracts.IndBBUpper, contracts.IndBBMiddle, contracts.IndBBLower))

	// Absent key means insufficient history, never zero
	_, ok := ind.Get(contracts.IndMA200)
	assert.False(t, ok)

	// Empty series yields an empty set
	assert.Empty(t, calc.Compute(nil))
}

func TestRSISeries(t *testing.T) {
	closes := ramp(30, 100, 1)
	series := RSISeries(closes, 14, 5)
	require.Len(t, series, 5)
	for _, v := range series {
		assert.InDelta(t, 100.0, v, 1e-9)
	}

	assert.Nil(t, RSISeries(ramp(10, 100, 1), 14, 5))
}

func TestAnnualizedVolatility(t *testing.T) {
	// Constant prices: zero volatility
	vol, ok := AnnualizedVolatility(ramp(30, 100, 0), 20)
	require.True(t, ok)
	assert.InDelta(t, 0.0, vol, 1e-9)

	_, ok = AnnualizedVolatility(ramp(10, 100, 0), 20)
	assert.False(t, ok)
}
