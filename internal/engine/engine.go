package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/indicator"
	"github.com/a772616239/AutoTrader-sub001/internal/regime"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
	"github.com/a772616239/AutoTrader-sub001/pkg/metrics"
)

const defaultMaxFailures = 5

// SignalRecorder persists emitted signals. Recording is best effort;
// a failed write never blocks order flow.
type SignalRecorder interface {
	Save(ctx context.Context, sig contracts.TradeSignal) error
}

// Engine drives the trading cycle: fetch data, compute indicators,
// classify the regime, ask each strategy for signals, and route them
// to the broker. Order placement is initiated here and nowhere else.
type Engine struct {
	config     *config.Config
	provider   contracts.DataProvider
	broker     contracts.Broker
	strategies []contracts.Strategy
	calculator *indicator.Calculator
	classifier *regime.Classifier
	recorder   SignalRecorder
	logger     *logger.Logger
}

// CycleResult summarizes one trading cycle.
type CycleResult struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	SymbolsScanned  int           `json:"symbols_scanned"`
	SymbolsSkipped  int           `json:"symbols_skipped"`
	SignalsEmitted  int           `json:"signals_emitted"`
	OrdersFilled    int           `json:"orders_filled"`
	OrdersRejected  int           `json:"orders_rejected"`
	DataFailures    int           `json:"data_failures"`
	Aborted         bool          `json:"aborted"`
}

// New creates a trading engine.
func New(
	cfg *config.Config,
	provider contracts.DataProvider,
	broker contracts.Broker,
	classifier *regime.Classifier,
	log *logger.Logger,
	strategies ...contracts.Strategy,
) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("engine: data provider is required")
	}
	if broker == nil {
		return nil, fmt.Errorf("engine: broker is required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("engine: at least one strategy is required")
	}
	if classifier == nil {
		classifier = regime.NewClassifier(regime.DefaultConfig(), log)
	}
	return &Engine{
		config:     cfg,
		provider:   provider,
		broker:     broker,
		strategies: strategies,
		calculator: indicator.NewCalculator(log),
		classifier: classifier,
		logger:     log.WithField("component", "engine"),
	}, nil
}

// WithRecorder attaches a signal recorder. Returns the engine for
// chaining.
func (e *Engine) WithRecorder(rec SignalRecorder) *Engine {
	e.recorder = rec
	return e
}

// RunCycle executes one full pass over the configured universe. A
// failing symbol is logged and skipped; the cycle aborts only when
// the provider fails too many times in a row or the context ends.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	if e.config.Trading.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Trading.CycleTimeout)
		defer cancel()
	}

	result := &CycleResult{StartedAt: time.Now()}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		metrics.CycleDuration.Observe(result.Duration.Seconds())
	}()

	for _, strat := range e.strategies {
		if err := strat.SyncPositions(ctx); err != nil {
			e.logger.WithError(err).WithField("strategy", strat.Name()).
				Warn("Position sync failed, continuing with last known state")
		}
	}

	maxFailures := e.config.Trading.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}

	failures := 0
	for _, symbol := range e.config.Trading.Universe {
		if ctx.Err() != nil {
			result.Aborted = true
			break
		}

		series, err := e.provider.GetSeries(ctx, symbol, e.config.Trading.Interval, e.config.Trading.Lookback)
		if err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Warn("Series fetch failed")
			// No data for a symbol is a valid outcome, not a provider
			// fault. Only faults count toward the abort budget.
			if contracts.IsKind(err, contracts.KindDataUnavailable) {
				result.SymbolsSkipped++
				continue
			}
			failures++
			result.DataFailures++
			if failures >= maxFailures {
				e.logger.WithField("failures", failures).Error("Aborting cycle after consecutive provider failures")
				result.Aborted = true
				break
			}
			continue
		}
		failures = 0

		if len(series) == 0 {
			result.SymbolsSkipped++
			continue
		}
		result.SymbolsScanned++

		e.processSymbol(ctx, symbol, series, result)
	}

	e.logger.WithFields(map[string]interface{}{
		"scanned":  result.SymbolsScanned,
		"skipped":  result.SymbolsSkipped,
		"signals":  result.SignalsEmitted,
		"filled":   result.OrdersFilled,
		"rejected": result.OrdersRejected,
		"aborted":  result.Aborted,
		"took":     time.Since(result.StartedAt).String(),
	}).Info("Trading cycle complete")

	return result, nil
}

func (e *Engine) processSymbol(ctx context.Context, symbol string, series contracts.Series, result *CycleResult) {
	indicators := e.calculator.Compute(series)
	marketRegime := e.classifier.Classify(series)
	last, _ := series.Last()
	now := time.Now()

	for _, strat := range e.strategies {
		signals, err := strat.GenerateSignals(ctx, symbol, series, indicators)
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":   symbol,
				"strategy": strat.Name(),
			}).Warn("Signal generation failed")
			continue
		}

		exit, err := strat.CheckExitConditions(ctx, symbol, last.Close, now, indicators, marketRegime)
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":   symbol,
				"strategy": strat.Name(),
			}).Warn("Exit check failed")
		} else if exit != nil {
			signals = append(signals, *exit)
		}

		for _, sig := range signals {
			e.dispatch(ctx, strat.Name(), sig, result)
		}
	}
}

// dispatch records the signal and routes it to the broker.
func (e *Engine) dispatch(ctx context.Context, strategy string, sig contracts.TradeSignal, result *CycleResult) {
	result.SignalsEmitted++
	metrics.SignalsEmitted.WithLabelValues(strategy, string(sig.Action)).Inc()

	log := e.logger.WithFields(map[string]interface{}{
		"strategy":   strategy,
		"symbol":     sig.Symbol,
		"action":     string(sig.Action),
		"size":       sig.Size,
		"price":      sig.Price,
		"confidence": sig.Confidence,
		"reason":     sig.Reason,
	})
	log.Info("Signal emitted")

	if e.recorder != nil && e.config.Trading.RecordSignals {
		if err := e.recorder.Save(ctx, sig); err != nil {
			log.WithError(err).Warn("Signal persistence failed")
		}
	}

	order, err := e.broker.PlaceOrder(ctx, contracts.OrderRequest{
		Symbol: sig.Symbol,
		Action: sig.Action,
		Size:   sig.Size,
		Type:   contracts.OrderTypeMarket,
	})
	if err != nil {
		log.WithError(err).Error("Order placement failed")
		return
	}
	if order == nil {
		log.Warn("Broker unavailable, symbol skipped for this cycle")
		return
	}

	switch order.Status {
	case contracts.OrderStatusRejected:
		result.OrdersRejected++
		log.WithField("order_id", order.OrderID).Warn("Order rejected")
	default:
		result.OrdersFilled++
		log.WithFields(map[string]interface{}{
			"order_id":     order.OrderID,
			"filled_size":  order.FilledSize,
			"filled_price": order.FilledPrice,
		}).Info("Order placed")
	}
}
