package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

func newTestZScore(t *testing.T, broker *contracts.MockBroker) *ZScoreReversion {
	t.Helper()
	sizer, err := NewSizer(DefaultSizingConfig(), testLogger())
	require.NoError(t, err)
	strat, err := NewZScoreReversion(DefaultZScoreConfig(), sizer, broker, testLogger())
	require.NoError(t, err)
	return strat
}

// dislocatedBars ends with a drop that puts the rolling z-score near
// -3.16: the 20-bar window holds eighteen 100s, one 104 and the 96
// close, giving mean 100 and stddev 1.265.
func dislocatedBars() contracts.Series {
	closes := flatCloses(23, 100)
	closes = append(closes, 104, 96)
	bars := makeBars(closes, 200000)
	bars[len(bars)-1].Volume = 300000 // confirms on volume
	return bars
}

func zscoreIndicators() contracts.IndicatorSet {
	return contracts.IndicatorSet{
		contracts.IndRSI:  25,
		contracts.IndMA5:  99,
		contracts.IndMA20: 100,
		contracts.IndATR:  2,
	}
}

func TestZScoreEntrySignal(t *testing.T) {
	broker := contracts.NewMockBroker(100000)
	strat := newTestZScore(t, broker)

	signals, err := strat.GenerateSignals(context.Background(), "AAPL", dislocatedBars(), zscoreIndicators())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, contracts.ActionBuy, sig.Action)
	assert.Equal(t, contracts.SignalZScoreEntry, sig.SignalType)
	assert.Equal(t, 96.0, sig.Price)
	assert.InDelta(t, 96*0.97, sig.StopLoss, 1e-9)
	assert.InDelta(t, 96*1.05, sig.TakeProfit, 1e-9)
	// 0.3 + (3.162-1.5)/5 plus the 0.1 oversold-RSI bonus
	assert.InDelta(t, 0.732, sig.Confidence, 0.01)
	assert.Greater(t, sig.Size, 0.0)
}

func TestZScoreEntryCooldown(t *testing.T) {
	broker := contracts.NewMockBroker(100000)
	strat := newTestZScore(t, broker)
	bars := dislocatedBars()
	ind := zscoreIndicators()

	first, err := strat.GenerateSignals(context.Background(), "AAPL", bars, ind)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := strat.GenerateSignals(context.Background(), "AAPL", bars, ind)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestZScoreEntryGates(t *testing.T) {
	broker := contracts.NewMockBroker(100000)

	// a lone extreme outlier against a constant window lands beyond
	// the 3.5 band
	brokenSeries := makeBars(append(flatCloses(24, 100), 80), 200000)
	brokenSeries[len(brokenSeries)-1].Volume = 300000

	// steep downtrend: MA5 under MA20*(1-2%)
	downtrendInd := contracts.IndicatorSet{
		contracts.IndRSI:  25,
		contracts.IndMA5:  95,
		contracts.IndMA20: 100,
		contracts.IndATR:  2,
	}

	noVolumeConfirm := dislocatedBars()
	noVolumeConfirm[len(noVolumeConfirm)-1].Volume = 200000

	tests := []struct {
		name string
		bars contracts.Series
		ind  contracts.IndicatorSet
	}{
		{name: "short history", bars: makeBars(flatCloses(10, 100), 200000), ind: zscoreIndicators()},
		{name: "no dislocation", bars: makeBars(append(flatCloses(24, 100), 100.5), 200000), ind: zscoreIndicators()},
		{name: "beyond the tradable band", bars: brokenSeries, ind: zscoreIndicators()},
		{name: "falling knife filtered by trend", bars: dislocatedBars(), ind: downtrendInd},
		{name: "volume does not confirm", bars: noVolumeConfirm, ind: zscoreIndicators()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := newTestZScore(t, broker)
			signals, err := strat.GenerateSignals(context.Background(), "AAPL", tt.bars, tt.ind)
			require.NoError(t, err)
			assert.Empty(t, signals)
		})
	}
}

func TestZScoreExitPriorities(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name  string
		pos   contracts.Position
		price float64
		want  contracts.ExitReason
	}{
		{
			name:  "hard stop",
			pos:   holding("AAPL", 100, 100, 2*time.Hour),
			price: 96.5,
			want:  contracts.ExitHardStop,
		},
		{
			name:  "take profit",
			pos:   holding("AAPL", 100, 100, 2*time.Hour),
			price: 105.5,
			want:  contracts.ExitTakeProfit,
		},
		{
			name:  "max holding",
			pos:   holding("AAPL", 100, 100, 6*24*time.Hour),
			price: 101,
			want:  contracts.ExitMaxHolding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := newTestZScore(t, contracts.NewMockBroker(100000))
			strat.Store().Set(tt.pos)

			sig, err := strat.CheckExitConditions(ctx, tt.pos.Symbol, tt.price, now, contracts.IndicatorSet{}, contracts.RegimeRanging)
			require.NoError(t, err)
			require.NotNil(t, sig)
			assert.Equal(t, string(tt.want), sig.Reason)
			assert.Equal(t, contracts.ActionSell, sig.Action)
		})
	}
}

func TestZScoreMeanReversionExit(t *testing.T) {
	ctx := context.Background()
	strat := newTestZScore(t, contracts.NewMockBroker(100000))
	strat.Store().Set(holding("AAPL", 100, 100, 2*time.Hour))

	// The signal pass caches the current z-score even while holding
	closes := make([]float64, 25)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 101
		} else {
			closes[i] = 99
		}
	}
	bars := makeBars(closes, 200000)
	signals, err := strat.GenerateSignals(ctx, "AAPL", bars, contracts.IndicatorSet{})
	require.NoError(t, err)
	assert.Empty(t, signals)

	last, _ := bars.Last()
	sig, err := strat.CheckExitConditions(ctx, "AAPL", 100.5, last.Timestamp, contracts.IndicatorSet{}, contracts.RegimeRanging)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, string(contracts.ExitMeanReversion), sig.Reason)
}

func TestZScoreNoExitWhileDislocated(t *testing.T) {
	ctx := context.Background()
	strat := newTestZScore(t, contracts.NewMockBroker(100000))
	strat.Store().Set(holding("AAPL", 100, 96, 2*time.Hour))

	// Cache a still-dislocated z-score
	bars := dislocatedBars()
	_, err := strat.GenerateSignals(ctx, "AAPL", bars, zscoreIndicators())
	require.NoError(t, err)

	// -1.9% sits inside the stop, the z-score is still deep negative
	sig, err := strat.CheckExitConditions(ctx, "AAPL", 94.2, time.Now(), contracts.IndicatorSet{}, contracts.RegimeRanging)
	require.NoError(t, err)
	assert.Nil(t, sig)
}
