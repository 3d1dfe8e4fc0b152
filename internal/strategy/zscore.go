package strategy

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/indicator"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// ZScoreReversion buys statistical dislocations: when the close
// drops more than EntryThreshold standard deviations below its
// rolling mean, it enters and waits for the z-score to revert toward
// zero. Dislocations beyond MaxAbsZ are treated as broken series and
// skipped.
type ZScoreReversion struct {
	config ZScoreConfig
	sizer  *Sizer
	broker contracts.Broker
	logger *logger.Logger

	mu         sync.RWMutex
	store      *PositionStore
	cooldowns  *CooldownTracker
	lastZ      map[string]float64
	lastEquity float64
}

// NewZScoreReversion creates the mean-reversion engine.
func NewZScoreReversion(cfg ZScoreConfig, sizer *Sizer, broker contracts.Broker, log *logger.Logger) (*ZScoreReversion, error) {
	if err := validateConfig("strategy.NewZScoreReversion", cfg); err != nil {
		return nil, err
	}
	return &ZScoreReversion{
		config:    cfg,
		sizer:     sizer,
		broker:    broker,
		logger:    log.WithField("strategy", "zscore_reversion"),
		store:     NewPositionStore(),
		cooldowns: NewCooldownTracker(),
		lastZ:     make(map[string]float64),
	}, nil
}

// Name implements contracts.Strategy.
func (z *ZScoreReversion) Name() string {
	return "zscore_reversion"
}

// Positions implements contracts.Strategy.
func (z *ZScoreReversion) Positions() []contracts.Position {
	return z.store.All()
}

// Store exposes the position store for the owning engine.
func (z *ZScoreReversion) Store() *PositionStore {
	return z.store
}

// PurgeCooldowns drops expired cooldown entries.
func (z *ZScoreReversion) PurgeCooldowns(now time.Time) {
	z.cooldowns.Purge(now)
}

// SyncPositions replaces the position store from the broker holdings
// snapshot and refreshes account equity.
func (z *ZScoreReversion) SyncPositions(ctx context.Context) error {
	holdings, err := z.broker.GetHoldings(ctx)
	if err != nil {
		return contracts.E(contracts.KindConnectionFailure, "zscore.SyncPositions", err)
	}
	z.store.ReplaceAll(holdings)

	if balance, err := z.broker.GetBalance(ctx); err == nil && balance != nil {
		z.mu.Lock()
		z.lastEquity = balance.Equity
		z.mu.Unlock()
	}
	return nil
}

// GenerateSignals computes the rolling z-score and emits at most one
// entry. The z-score is always cached, entry or not, so the exit
// check that follows in the same cycle sees the current value.
func (z *ZScoreReversion) GenerateSignals(ctx context.Context, symbol string, bars contracts.Series, indicators contracts.IndicatorSet) ([]contracts.TradeSignal, error) {
	if len(bars) < z.config.MinDataPoints {
		return nil, nil
	}

	closes := bars.Closes()
	score, ok := indicator.ZScore(closes, z.config.Lookback)
	if !ok {
		return nil, nil
	}
	z.mu.Lock()
	z.lastZ[symbol] = score
	z.mu.Unlock()

	if _, open := z.store.Get(symbol); open {
		return nil, nil
	}

	last, _ := bars.Last()
	if bars.AverageVolume(10) < z.config.MinAvgVolume {
		return nil, nil
	}

	now := last.Timestamp
	if z.cooldowns.Active(SymbolTypeKey(symbol, contracts.SignalZScoreEntry), now) {
		return nil, nil
	}

	if score >= z.config.EntryThreshold {
		// Dislocation to the upside. Short entries are not traded.
		z.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"zscore": score,
		}).Debug("Upside dislocation detected, short entry not traded")
		return nil, nil
	}
	if score > -z.config.EntryThreshold {
		return nil, nil
	}
	if math.Abs(score) > z.config.MaxAbsZ {
		z.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"zscore": score,
		}).Debug("Dislocation beyond the tradable band, skipping")
		return nil, nil
	}

	// Volume must confirm the move
	avgVol := bars.AverageVolume(20)
	if avgVol == 0 || float64(last.Volume) <= avgVol*z.config.VolumeConfirm {
		return nil, nil
	}

	// A close below a firmly falling trend is a knife, not a
	// dislocation
	ma5, okMA5 := indicators.Get(contracts.IndMA5)
	ma20, okMA20 := indicators.Get(contracts.IndMA20)
	if okMA5 && okMA20 && ma5 < ma20*(1-z.config.TrendFilterBand) {
		return nil, nil
	}

	confidence := math.Min(0.3+(math.Abs(score)-z.config.MinAbsZ)/5, 0.8)
	if rsi, okRSI := indicators.Get(contracts.IndRSI); okRSI && rsi < 30 {
		confidence += 0.1
	}
	confidence = clamp(confidence, 0, 1)

	reason := "zscore_dislocation"
	hash := SignalHash(symbol, contracts.SignalZScoreEntry, contracts.ActionBuy, reason, last.Close)
	if z.cooldowns.Active(hash, now) {
		return nil, nil
	}

	equity := z.equity(ctx)
	shares := z.sizer.Shares(SizingInput{
		Equity:        equity,
		Price:         last.Close,
		ATR:           indicators[contracts.IndATR],
		Confidence:    confidence,
		OpenPositions: z.store.Count(),
	})
	if shares == 0 {
		return nil, nil
	}

	cooldown := time.Duration(z.config.CooldownHours) * time.Hour
	z.cooldowns.Register(hash, now, cooldown)
	z.cooldowns.Register(SymbolTypeKey(symbol, contracts.SignalZScoreEntry), now, cooldown)

	sig := contracts.TradeSignal{
		ID:         contracts.NewSignalID(),
		Symbol:     symbol,
		Action:     contracts.ActionBuy,
		Price:      last.Close,
		Size:       shares,
		Confidence: confidence,
		SignalType: contracts.SignalZScoreEntry,
		StopLoss:   last.Close * (1 - z.config.HardStopPct),
		TakeProfit: last.Close * (1 + z.config.TakeProfitPct),
		Reason:     reason,
		Timestamp:  now,
		Metadata: map[string]interface{}{
			"zscore": score,
		},
	}

	z.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"zscore":     score,
		"size":       shares,
		"confidence": confidence,
	}).Info("Entry signal generated")

	return []contracts.TradeSignal{sig}, nil
}

// CheckExitConditions evaluates exits in priority order: the hard
// stop, the profit target, reversion of the z-score toward its mean,
// and the maximum holding window.
func (z *ZScoreReversion) CheckExitConditions(ctx context.Context, symbol string, price float64, now time.Time, indicators contracts.IndicatorSet, regime contracts.Regime) (*contracts.TradeSignal, error) {
	pos, open := z.store.Get(symbol)
	if !open {
		return nil, nil
	}

	profit := pos.ProfitPct(price)

	if profit <= -z.config.HardStopPct {
		return z.exitSignal(pos, price, now, contracts.ExitHardStop, profit), nil
	}
	if profit >= z.config.TakeProfitPct {
		return z.exitSignal(pos, price, now, contracts.ExitTakeProfit, profit), nil
	}

	z.mu.RLock()
	score, haveZ := z.lastZ[symbol]
	z.mu.RUnlock()
	if haveZ && pos.IsLong() && score >= -z.config.ExitThreshold {
		return z.exitSignal(pos, price, now, contracts.ExitMeanReversion, profit), nil
	}

	if pos.HoldingDuration(now) > time.Duration(z.config.MaxHoldingDays)*24*time.Hour {
		return z.exitSignal(pos, price, now, contracts.ExitMaxHolding, profit), nil
	}

	return nil, nil
}

func (z *ZScoreReversion) exitSignal(pos contracts.Position, price float64, now time.Time, reason contracts.ExitReason, profit float64) *contracts.TradeSignal {
	action := contracts.ActionSell
	if pos.IsShort() {
		action = contracts.ActionBuy
	}

	z.logger.WithFields(map[string]interface{}{
		"symbol":     pos.Symbol,
		"reason":     string(reason),
		"profit_pct": profit,
	}).Info("Exit signal generated")

	return &contracts.TradeSignal{
		ID:         contracts.NewSignalID(),
		Symbol:     pos.Symbol,
		Action:     action,
		Price:      price,
		Size:       pos.AbsSize(),
		Confidence: 1.0,
		SignalType: contracts.SignalExit,
		Reason:     string(reason),
		Timestamp:  now,
		Metadata: map[string]interface{}{
			"profit_pct": profit,
		},
	}
}

func (z *ZScoreReversion) equity(ctx context.Context) float64 {
	z.mu.RLock()
	eq := z.lastEquity
	z.mu.RUnlock()
	if eq > 0 {
		return eq
	}

	balance, err := z.broker.GetBalance(ctx)
	if err != nil || balance == nil {
		z.logger.WithError(err).Warn("Balance unavailable, sizing with zero equity")
		return 0
	}
	z.mu.Lock()
	z.lastEquity = balance.Equity
	z.mu.Unlock()
	return balance.Equity
}

var _ contracts.Strategy = (*ZScoreReversion)(nil)
