package engine

import (
	"context"
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

func testConfig(universe ...string) *config.Config {
	return &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
		Trading: config.TradingConfig{
			Universe: universe,
			Interval: "1m",
			Lookback: 50,
		},
	}
}

// stubStrategy emits a scripted signal per symbol and counts calls.
type stubStrategy struct {
	name        string
	entries     map[string]contracts.TradeSignal
	exits       map[string]contracts.TradeSignal
	synced      int
	generations int
}

func newStubStrategy(name string) *stubStrategy {
	return &stubStrategy{
		name:    name,
		entries: make(map[string]contracts.TradeSignal),
		exits:   make(map[string]contracts.TradeSignal),
	}
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Positions() []contracts.Position { return nil }

func (s *stubStrategy) SyncPositions(context.Context) error {
	s.synced++
	return nil
}

func (s *stubStrategy) GenerateSignals(_ context.Context, symbol string, _ contracts.Series, _ contracts.IndicatorSet) ([]contracts.TradeSignal, error) {
	s.generations++
	if sig, ok := s.entries[symbol]; ok {
		return []contracts.TradeSignal{sig}, nil
	}
	return nil, nil
}

func (s *stubStrategy) CheckExitConditions(_ context.Context, symbol string, _ float64, _ time.Time, _ contracts.IndicatorSet, _ contracts.Regime) (*contracts.TradeSignal, error) {
	if sig, ok := s.exits[symbol]; ok {
		return &sig, nil
	}
	return nil, nil
}

// memoryRecorder collects saved signals.
type memoryRecorder struct {
	saved []contracts.TradeSignal
}

func (r *memoryRecorder) Save(_ context.Context, sig contracts.TradeSignal) error {
	r.saved = append(r.saved, sig)
	return nil
}

func makeBars(n int, price float64) contracts.Series {
	bars := make(contracts.Series, n)
	start := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := range bars {
		bars[i] = contracts.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price * 1.002,
			Low:       price * 0.998,
			Close:     price,
			Volume:    100000,
		}
	}
	return bars
}

func entrySignal(symbol string, size float64) contracts.TradeSignal {
	return contracts.TradeSignal{
		ID:         contracts.NewSignalID(),
		Symbol:     symbol,
		Action:     contracts.ActionBuy,
		Price:      100,
		Size:       size,
		Confidence: 0.7,
		SignalType: contracts.SignalMomentumEntry,
		Reason:     "test_entry",
		Timestamp:  time.Now(),
	}
}

func TestRunCyclePlacesOrders(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("AAPL", makeBars(50, 100))
	provider.SetSeries("MSFT", makeBars(50, 300))

	broker := contracts.NewMockBroker(100000)
	broker.SetPrice("AAPL", 100)
	broker.SetPrice("MSFT", 300)

	strat := newStubStrategy("stub")
	strat.entries["AAPL"] = entrySignal("AAPL", 50)

	eng, err := New(testConfig("AAPL", "MSFT"), provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)

	result, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SymbolsScanned)
	assert.Equal(t, 1, result.SignalsEmitted)
	assert.Equal(t, 1, result.OrdersFilled)
	assert.False(t, result.Aborted)
	assert.Equal(t, 1, strat.synced)

	orders := broker.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "AAPL", orders[0].Symbol)
	assert.Equal(t, contracts.ActionBuy, orders[0].Action)
	assert.Equal(t, 50.0, orders[0].Size)
}

func connectionErr(symbol string) error {
	return contracts.Errorf(contracts.KindConnectionFailure, "provider.GetSeries", "dial %s feed: refused", symbol)
}

func TestRunCycleSkipsNoDataSymbols(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("MSFT", makeBars(50, 300))
	// AAPL is unknown to the provider: a no-data outcome, not a fault.

	broker := contracts.NewMockBroker(100000)
	strat := newStubStrategy("stub")

	eng, err := New(testConfig("AAPL", "MSFT"), provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)

	result, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SymbolsScanned)
	assert.Equal(t, 1, result.SymbolsSkipped)
	assert.Equal(t, 0, result.DataFailures)
	assert.False(t, result.Aborted)
	assert.Equal(t, 1, strat.generations)
}

func TestRunCycleNoDataNeverAborts(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	universe := []string{"D1", "D2", "D3", "D4", "D5", "D6", "GOOD"}
	provider.SetSeries("GOOD", makeBars(50, 100))

	broker := contracts.NewMockBroker(100000)
	strat := newStubStrategy("stub")

	eng, err := New(testConfig(universe...), provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)

	result, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	// Six delisted symbols in a row must not consume the abort budget.
	assert.False(t, result.Aborted)
	assert.Equal(t, 6, result.SymbolsSkipped)
	assert.Equal(t, 0, result.DataFailures)
	assert.Equal(t, 1, result.SymbolsScanned)
	assert.Equal(t, len(universe), provider.SeriesCalls())
}

func TestRunCycleAbortsAfterConsecutiveFailures(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	universe := []string{"M1", "M2", "M3", "M4", "M5", "GOOD"}
	provider.SetSeries("GOOD", makeBars(50, 100))
	for _, symbol := range universe[:5] {
		provider.SetError(symbol, connectionErr(symbol))
	}

	broker := contracts.NewMockBroker(100000)
	strat := newStubStrategy("stub")

	eng, err := New(testConfig(universe...), provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)

	result, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	assert.Equal(t, 5, result.DataFailures)
	// GOOD was never reached.
	assert.Equal(t, 0, result.SymbolsScanned)
	assert.Equal(t, 5, provider.SeriesCalls())
}

func TestRunCycleFailureCounterResets(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	universe := []string{"M1", "M2", "GOOD1", "M3", "M4", "GOOD2"}
	for _, symbol := range []string{"M1", "M2", "M3", "M4"} {
		provider.SetError(symbol, connectionErr(symbol))
	}
	provider.SetSeries("GOOD1", makeBars(50, 100))
	provider.SetSeries("GOOD2", makeBars(50, 200))

	broker := contracts.NewMockBroker(100000)
	strat := newStubStrategy("stub")

	eng, err := New(testConfig(universe...), provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)

	result, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Aborted)
	assert.Equal(t, 2, result.SymbolsScanned)
	assert.Equal(t, 4, result.DataFailures)
}

func TestRunCycleRecordsSignals(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("AAPL", makeBars(50, 100))

	broker := contracts.NewMockBroker(100000)
	broker.SetPrice("AAPL", 100)

	strat := newStubStrategy("stub")
	strat.entries["AAPL"] = entrySignal("AAPL", 10)

	cfg := testConfig("AAPL")
	cfg.Trading.RecordSignals = true

	recorder := &memoryRecorder{}
	eng, err := New(cfg, provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)
	eng.WithRecorder(recorder)

	_, err = eng.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, recorder.saved, 1)
	assert.Equal(t, "AAPL", recorder.saved[0].Symbol)
}

func TestRunCycleBrokerUnavailable(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	provider.SetSeries("AAPL", makeBars(50, 100))

	broker := contracts.NewMockBroker(100000)
	broker.SetPrice("AAPL", 100)
	broker.FailNextOrder()

	strat := newStubStrategy("stub")
	strat.entries["AAPL"] = entrySignal("AAPL", 10)

	eng, err := New(testConfig("AAPL"), provider, broker, nil, testLogger(), strat)
	require.NoError(t, err)

	result, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SignalsEmitted)
	assert.Equal(t, 0, result.OrdersFilled)
	assert.Equal(t, 0, result.OrdersRejected)
}

func TestNewRequiresStrategy(t *testing.T) {
	provider := contracts.NewMockDataProvider()
	broker := contracts.NewMockBroker(100000)

	_, err := New(testConfig(), provider, broker, nil, testLogger())
	assert.Error(t, err)
}
