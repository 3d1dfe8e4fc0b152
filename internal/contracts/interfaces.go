package contracts

import (
	"context"
	"time"
)

// DataProvider supplies bar series and fundamentals. An empty result
// with a nil error is a valid "no data" outcome: the caller skips the
// symbol rather than treating it as a failure.
type DataProvider interface {
	GetSeries(ctx context.Context, symbol, interval string, lookback int) (Series, error)
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
}

// Broker is the order/holdings collaborator. Connection failures are
// retried inside the implementation; after exhaustion the core sees a
// nil OrderResult, never a panic.
type Broker interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetHoldings(ctx context.Context) ([]Position, error)
	GetBalance(ctx context.Context) (*Balance, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// Strategy converts bar series + indicators + position state into
// trade signals. Entry signals are only generated while flat; exit
// signals only while a position is open.
type Strategy interface {
	Name() string
	GenerateSignals(ctx context.Context, symbol string, bars Series, indicators IndicatorSet) ([]TradeSignal, error)
	CheckExitConditions(ctx context.Context, symbol string, price float64, now time.Time, indicators IndicatorSet, regime Regime) (*TradeSignal, error)
	SyncPositions(ctx context.Context) error
	Positions() []Position
}

// Screener scores a stock universe against a rule set, independent of
// any position.
type Screener interface {
	Name() string
	ScreenStocks(ctx context.Context, provider DataProvider) ([]ScreenResult, error)
	Stats() ScreenerStats
	ClearCache()
}
