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

// MomentumReversal trades exhaustion extremes: an oversold RSI plus a
// stretched deviation from MA20, confirmed by candle structure, buys
// into the expected snap-back. The short side of the book is detected
// but deliberately not traded; see the design notes.
type MomentumReversal struct {
	config MomentumConfig
	sizer  *Sizer
	broker contracts.Broker
	logger *logger.Logger

	regimeOf func(contracts.Series) contracts.Regime

	mu           sync.RWMutex
	store        *PositionStore
	cooldowns    *CooldownTracker
	highWater    map[string]float64
	partialTaken map[string]bool
	lastEquity   float64
}

// entryCandidate is an entry that passed detection but not yet the
// cooldown and sizing gates.
type entryCandidate struct {
	action      contracts.Action
	price       float64
	confidence  float64
	strength    float64
	enhancement float64
	stopLoss    float64
	takeProfit  float64
	reason      string
	regime      contracts.Regime
}

// sellSignal is one technical exit vote with its strength in [0,1].
type sellSignal struct {
	name     string
	strength float64
}

// NewMomentumReversal creates the momentum-reversal engine. The
// regime function classifies the bar series; pass nil to disable
// regime adjustments.
func NewMomentumReversal(cfg MomentumConfig, sizer *Sizer, broker contracts.Broker, regimeOf func(contracts.Series) contracts.Regime, log *logger.Logger) (*MomentumReversal, error) {
	if err := validateConfig("strategy.NewMomentumReversal", cfg); err != nil {
		return nil, err
	}
	if regimeOf == nil {
		regimeOf = func(contracts.Series) contracts.Regime { return contracts.RegimeRanging }
	}
	return &MomentumReversal{
		config:       cfg,
		sizer:        sizer,
		broker:       broker,
		logger:       log.WithField("strategy", "momentum_reversal"),
		regimeOf:     regimeOf,
		store:        NewPositionStore(),
		cooldowns:    NewCooldownTracker(),
		highWater:    make(map[string]float64),
		partialTaken: make(map[string]bool),
	}, nil
}

// Name implements contracts.Strategy.
func (m *MomentumReversal) Name() string {
	return "momentum_reversal"
}

// Positions implements contracts.Strategy.
func (m *MomentumReversal) Positions() []contracts.Position {
	return m.store.All()
}

// Store exposes the position store for the owning engine.
func (m *MomentumReversal) Store() *PositionStore {
	return m.store
}

// PurgeCooldowns drops expired cooldown entries.
func (m *MomentumReversal) PurgeCooldowns(now time.Time) {
	m.cooldowns.Purge(now)
}

// SyncPositions replaces the position store wholesale from the broker
// holdings snapshot and refreshes account equity.
func (m *MomentumReversal) SyncPositions(ctx context.Context) error {
	holdings, err := m.broker.GetHoldings(ctx)
	if err != nil {
		return contracts.E(contracts.KindConnectionFailure, "momentum.SyncPositions", err)
	}
	m.store.ReplaceAll(holdings)

	if balance, err := m.broker.GetBalance(ctx); err == nil && balance != nil {
		m.mu.Lock()
		m.lastEquity = balance.Equity
		m.mu.Unlock()
	}

	// Drop trailing state for symbols no longer held
	held := make(map[string]bool, len(holdings))
	for _, p := range holdings {
		held[p.Symbol] = true
	}
	m.mu.Lock()
	for sym := range m.highWater {
		if !held[sym] {
			delete(m.highWater, sym)
			delete(m.partialTaken, sym)
		}
	}
	m.mu.Unlock()

	return nil
}

// GenerateSignals emits at most one entry signal per call. Entries
// are only generated while flat; short history or thin volume yields
// an empty result, not an error.
func (m *MomentumReversal) GenerateSignals(ctx context.Context, symbol string, bars contracts.Series, indicators contracts.IndicatorSet) ([]contracts.TradeSignal, error) {
	if len(bars) < m.config.MinDataPoints {
		return nil, nil
	}
	last, ok := bars.Last()
	if !ok || last.Close < m.config.MinPrice {
		return nil, nil
	}
	if bars.AverageVolume(10) < m.config.MinAvgVolume {
		return nil, nil
	}
	if _, open := m.store.Get(symbol); open {
		return nil, nil
	}

	now := last.Timestamp
	if m.cooldowns.Active(SymbolTypeKey(symbol, contracts.SignalMomentumEntry), now) {
		return nil, nil
	}

	var cand *entryCandidate
	switch m.config.Variant {
	case VariantSession:
		cand = m.detectSessionEntry(symbol, bars, indicators)
	default:
		cand = m.detectConfirmedEntry(symbol, bars, indicators)
	}
	if cand == nil {
		return nil, nil
	}

	hash := SignalHash(symbol, contracts.SignalMomentumEntry, cand.action, cand.reason, cand.price)
	if m.cooldowns.Active(hash, now) {
		m.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"hash":   hash,
		}).Debug("Entry suppressed by signal cooldown")
		return nil, nil
	}

	equity := m.equity(ctx)
	shares := m.sizer.Shares(SizingInput{
		Equity:        equity,
		Price:         cand.price,
		ATR:           indicators[contracts.IndATR],
		Confidence:    cand.confidence,
		Enhancement:   cand.enhancement,
		OpenPositions: m.store.Count(),
	})
	if shares == 0 {
		return nil, nil
	}

	m.cooldowns.Register(hash, now, time.Duration(m.config.SignalCooldownMinutes)*time.Minute)
	m.cooldowns.Register(SymbolTypeKey(symbol, contracts.SignalMomentumEntry), now,
		time.Duration(m.config.SameSymbolCooldownMinutes)*time.Minute)

	sig := contracts.TradeSignal{
		ID:         contracts.NewSignalID(),
		Symbol:     symbol,
		Action:     cand.action,
		Price:      cand.price,
		Size:       shares,
		Confidence: cand.confidence,
		SignalType: contracts.SignalMomentumEntry,
		StopLoss:   cand.stopLoss,
		TakeProfit: cand.takeProfit,
		Reason:     cand.reason,
		Timestamp:  now,
		Metadata: map[string]interface{}{
			"strength":    cand.strength,
			"enhancement": cand.enhancement,
			"regime":      string(cand.regime),
			"variant":     string(m.config.Variant),
		},
	}

	m.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"price":      cand.price,
		"size":       shares,
		"confidence": cand.confidence,
		"reason":     cand.reason,
	}).Info("Entry signal generated")

	return []contracts.TradeSignal{sig}, nil
}

// detectConfirmedEntry runs the elaborated extreme detector: RSI and
// deviation extremes build a weighted strength and confidence, candle
// confirmation gates emission, and the enhancement step adjusts the
// final confidence.
func (m *MomentumReversal) detectConfirmedEntry(symbol string, bars contracts.Series, ind contracts.IndicatorSet) *entryCandidate {
	rsi, okRSI := ind.Get(contracts.IndRSI)
	ma20, okMA := ind.Get(contracts.IndMA20)
	atr, okATR := ind.Get(contracts.IndATR)
	if !okRSI || !okMA || !okATR || ma20 == 0 {
		return nil
	}

	last, _ := bars.Last()
	deviation := (last.Close - ma20) / ma20

	// Overbought extreme: detected, but the short-entry path is not
	// traded. TODO: wire a short entry once the desk signs off on the
	// symmetric rule set.
	if rsi > m.config.RSIOverbought && deviation > m.config.DeviationThreshold {
		m.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"rsi":    rsi,
		}).Debug("Overbought extreme detected, short entry not traded")
		return nil
	}

	if rsi >= m.config.RSIOversold || deviation >= -m.config.DeviationThreshold {
		return nil
	}

	// Evidence strengths
	rsiStrength := math.Min((m.config.RSIOversold-rsi)/30, 1)
	devStrength := math.Min(math.Abs(deviation)/(m.config.DeviationThreshold*2), 1)

	avgVol := bars.AverageVolume(20)
	volRatio := 0.0
	if avgVol > 0 {
		volRatio = float64(last.Volume) / avgVol
	}
	volContraction := volRatio > 0 && volRatio < m.config.VolumeContractionRatio
	volStrength := 0.0
	if volContraction {
		volStrength = math.Min((m.config.VolumeContractionRatio-volRatio)/m.config.VolumeContractionRatio, 1)
	}

	divergence := bullishDivergence(bars)
	divStrength := 0.0
	if divergence {
		divStrength = 0.5
	}

	strength := rsiStrength*0.4 + devStrength*0.3 + volStrength*0.2 + divStrength*0.1

	// Confidence is the sum of independently weighted evidence
	confidence := 0.3 + 0.25 // RSI and deviation extremes both hold here
	if volContraction {
		confidence += 0.25
	}
	if divergence {
		confidence += 0.2
	}
	confidence = clamp(confidence, 0, 1)

	if !m.buyConfirmation(bars) {
		return nil
	}

	regime := m.regimeOf(bars)
	enhancement := m.enhance(bars, ind, regime)
	confidence = clamp(confidence+enhancement, 0, 1)

	return &entryCandidate{
		action:      contracts.ActionBuy,
		price:       last.Close,
		confidence:  confidence,
		strength:    strength,
		enhancement: enhancement,
		stopLoss:    last.Close - m.config.StopATRMultiple*atr,
		takeProfit:  last.Close + m.config.TakeProfitATRMultiple*atr,
		reason:      "oversold_reversal",
		regime:      regime,
	}
}

// buyConfirmation checks the candle patterns a buy wants: a long lower
// shadow, a strong close position, or rising volume over the last
// three bars. Any one confirms; a bar showing none of them vetoes the
// entry.
func (m *MomentumReversal) buyConfirmation(bars contracts.Series) bool {
	if len(bars) < 3 {
		return false
	}
	last := bars[len(bars)-1]

	barRange := last.High - last.Low
	if barRange <= 0 {
		return false
	}

	body := math.Min(last.Open, last.Close)
	if (body-last.Low)/barRange > 0.3 {
		return true
	}

	if (last.Close-last.Low)/barRange > 0.66 {
		return true
	}

	v := bars.Volumes()
	n := len(v)
	return v[n-1] > v[n-2] && v[n-2] > v[n-3]
}

// detectSessionEntry runs the simpler morning-momentum / afternoon-
// reversal detector. The session is taken from the last bar's clock.
func (m *MomentumReversal) detectSessionEntry(symbol string, bars contracts.Series, ind contracts.IndicatorSet) *entryCandidate {
	rsi, okRSI := ind.Get(contracts.IndRSI)
	ma20, okMA := ind.Get(contracts.IndMA20)
	atr, okATR := ind.Get(contracts.IndATR)
	if !okRSI || !okMA || !okATR || ma20 == 0 {
		return nil
	}

	last, _ := bars.Last()
	deviation := (last.Close - ma20) / ma20
	regime := m.regimeOf(bars)

	build := func(confidence float64, reason string) *entryCandidate {
		return &entryCandidate{
			action:     contracts.ActionBuy,
			price:      last.Close,
			confidence: clamp(confidence, 0, 1),
			strength:   confidence,
			stopLoss:   last.Close - m.config.StopATRMultiple*atr,
			takeProfit: last.Close + m.config.TakeProfitATRMultiple*atr,
			reason:     reason,
			regime:     regime,
		}
	}

	if last.Timestamp.Hour() < 12 {
		// Morning momentum continuation
		if rsi <= m.config.MorningRSILow || rsi >= m.config.MorningRSIHigh {
			return nil
		}
		if deviation < m.config.MorningMinDev {
			return nil
		}
		avg5 := bars.AverageVolume(5)
		if avg5 == 0 || float64(last.Volume) <= avg5*1.05 {
			return nil
		}
		confidence := 0.5 + math.Min(deviation*100/5, 0.3)
		if rsi > 55 {
			confidence += 0.1
		}
		return build(math.Min(confidence, 0.9), "morning_momentum")
	}

	// Afternoon reversal from an oversold extreme near the session low
	if rsi > m.config.RSIOverbought {
		// Short side not traded
		m.logger.WithField("symbol", symbol).Debug("Afternoon overbought extreme, short entry not traded")
		return nil
	}
	if rsi >= m.config.RSIOversold {
		return nil
	}
	low20 := bars.LowestLow(20)
	if low20 == 0 || last.Close > low20*(1+m.config.AfternoonNearBand) {
		return nil
	}
	avgVol := bars.AverageVolume(20)
	if avgVol == 0 {
		return nil
	}
	volRatio := float64(last.Volume) / avgVol
	if volRatio <= 0.5 || volRatio >= 2.5 {
		return nil
	}
	confidence := math.Min(0.4+(m.config.RSIOversold-rsi)/30, 0.8)
	return build(confidence, "afternoon_reversal")
}

// enhance sums bounded sub-scores into a confidence adjustment in
// [-0.2, +0.5], then applies the regime adjustment.
func (m *MomentumReversal) enhance(bars contracts.Series, ind contracts.IndicatorSet, regime contracts.Regime) float64 {
	e := 0.0
	closes := bars.Closes()
	n := len(closes)
	last, _ := bars.Last()

	// Momentum persistence over the last 5 bars
	if n >= 6 {
		ups := 0
		for i := n - 5; i < n; i++ {
			if closes[i] > closes[i-1] {
				ups++
			}
		}
		if ups >= 3 {
			e += 0.1
		} else if ups <= 1 {
			e -= 0.05
		}
	}

	// Relative volume surge
	avgVol := bars.AverageVolume(20)
	if avgVol > 0 && float64(last.Volume) > avgVol*1.5 {
		e += 0.1
	}

	// Proximity to the support band
	low20 := bars.LowestLow(20)
	if low20 > 0 && last.Close <= low20*1.02 {
		e += 0.1
	}

	// Trend alignment
	if macd, ok := ind.Get(contracts.IndMACD); ok {
		if signal, ok := ind.Get(contracts.IndMACDSignal); ok {
			if macd > signal {
				e += 0.1
			} else {
				e -= 0.1
			}
		}
	}
	if ma5, ok := ind.Get(contracts.IndMA5); ok && last.Close > ma5 {
		e += 0.05
	}

	// Breakout above the prior 20-bar high on volume
	if n > 21 {
		priorHigh := bars[:n-1].HighestHigh(20)
		if last.Close > priorHigh && avgVol > 0 && float64(last.Volume) > avgVol {
			e += 0.15
		}
	}

	e = clamp(e, -0.2, 0.5)

	switch regime {
	case contracts.RegimeTrending:
		e += 0.05
	case contracts.RegimeHighVolatility:
		e -= 0.1
	}
	return clamp(e, -0.2, 0.5)
}

// bullishDivergence reports a lower price low with a higher RSI low
// across the last ten bars.
func bullishDivergence(bars contracts.Series) bool {
	closes := bars.Closes()
	if len(closes) < 25 {
		return false
	}
	rsis := indicator.RSISeries(closes, 14, 10)
	if rsis == nil {
		return false
	}

	n := len(closes)
	priceRecent := minOf(closes[n-5:])
	pricePrior := minOf(closes[n-10 : n-5])
	rsiRecent := minOf(rsis[5:])
	rsiPrior := minOf(rsis[:5])

	return priceRecent < pricePrior && rsiRecent > rsiPrior
}

func minOf(values []float64) float64 {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// CheckExitConditions evaluates the tiered exit cascade in strict
// priority order and returns at most one signal. It is a no-op when
// no position is open for the symbol.
func (m *MomentumReversal) CheckExitConditions(ctx context.Context, symbol string, price float64, now time.Time, indicators contracts.IndicatorSet, regime contracts.Regime) (*contracts.TradeSignal, error) {
	pos, open := m.store.Get(symbol)
	if !open {
		return nil, nil
	}

	m.mu.Lock()
	hwm, ok := m.highWater[symbol]
	if !ok || price > hwm {
		hwm = math.Max(price, pos.AvgCost)
		m.highWater[symbol] = hwm
	}
	partialDone := m.partialTaken[symbol]
	m.mu.Unlock()

	profit := pos.ProfitPct(price)
	sells := m.technicalSellSignals(price, indicators)

	// 1. Multiple independent sell signals while in profit
	if len(sells) >= 2 && profit > m.config.MinProfitPct {
		return m.exitSignal(pos, price, now, contracts.ExitTechnicalBreakdown, profit, 1.0, sellNames(sells)), nil
	}

	// 2. A single strong sell signal while profitable
	for _, s := range sells {
		if s.strength > 0.7 && profit > 0 {
			return m.exitSignal(pos, price, now, contracts.ExitStrongSellSignal, profit, 1.0, []string{s.name}), nil
		}
	}

	// 3. Dynamic stop, replaced by the trailing stop once armed
	if pos.IsLong() {
		if atr, okATR := indicators.Get(contracts.IndATR); okATR && atr > 0 {
			multiple := m.config.StopATRMultiple * regimeStopFactor(regime)
			stop := pos.AvgCost - atr*multiple
			reason := contracts.ExitDynamicStop

			if hwm >= pos.AvgCost*(1+m.config.TrailingActivation) {
				trailing := hwm * (1 - m.config.TrailingDistance)
				if trailing > stop {
					stop = trailing
					reason = contracts.ExitTrailingStop
				}
			}
			if price <= stop {
				return m.exitSignal(pos, price, now, reason, profit, 1.0, nil), nil
			}
		}
	}

	// 4. Tiered profit targets
	if profit >= m.config.SecondProfitTarget {
		return m.exitSignal(pos, price, now, contracts.ExitTakeProfit, profit, 1.0, nil), nil
	}
	if profit >= m.config.FirstProfitTarget && !partialDone {
		m.mu.Lock()
		m.partialTaken[symbol] = true
		m.mu.Unlock()
		// A position too small to split exits in full instead
		if math.Floor(pos.AbsSize()*m.config.PartialExitFraction) < 1 {
			return m.exitSignal(pos, price, now, contracts.ExitTakeProfit, profit, 1.0, nil), nil
		}
		return m.exitSignal(pos, price, now, contracts.ExitPartialTakeProfit, profit, m.config.PartialExitFraction, nil), nil
	}

	// 5. Quick loss cutoff
	if profit <= m.config.QuickLossCutoff {
		return m.exitSignal(pos, price, now, contracts.ExitQuickLoss, profit, 1.0, nil), nil
	}

	// 6. Maximum holding time
	if pos.HoldingDuration(now) > time.Duration(m.config.MaxHoldingMinutes)*time.Minute {
		return m.exitSignal(pos, price, now, contracts.ExitMaxHolding, profit, 1.0, nil), nil
	}

	// 7. Regime change with any profit
	if regime.IsHighVolatility() && profit > 0 {
		return m.exitSignal(pos, price, now, contracts.ExitRegimeChange, profit, 1.0, nil), nil
	}

	return nil, nil
}

// technicalSellSignals collects independent exit votes from the
// indicator set.
func (m *MomentumReversal) technicalSellSignals(price float64, ind contracts.IndicatorSet) []sellSignal {
	var out []sellSignal

	if rsi, ok := ind.Get(contracts.IndRSI); ok && rsi > m.config.RSIOverbought {
		strength := math.Min((rsi-m.config.RSIOverbought)/(100-m.config.RSIOverbought), 1)
		out = append(out, sellSignal{name: "rsi_overbought", strength: strength})
	}

	// Price pushing the 20-bar high on fading volume
	if high, ok := ind.Get(contracts.IndHigh20); ok && high > 0 && price >= high*0.99 {
		if ratio, okR := ind.Get(contracts.IndVolumeRatio); okR && ratio > 0 && ratio < 1 {
			out = append(out, sellSignal{name: "volume_price_divergence", strength: math.Min(1-ratio, 1)})
		}
	}

	if macd, ok := ind.Get(contracts.IndMACD); ok {
		if signal, okS := ind.Get(contracts.IndMACDSignal); okS && macd < signal {
			strength := 0.6
			if signal != 0 {
				strength = math.Min(0.5+math.Abs(macd-signal)/math.Abs(signal), 1)
			}
			out = append(out, sellSignal{name: "macd_death_cross", strength: strength})
		}
	}

	if upper, ok := ind.Get(contracts.IndBBUpper); ok && upper > 0 && price > upper {
		strength := math.Min((price-upper)/upper*20, 1)
		out = append(out, sellSignal{name: "bollinger_upper_breach", strength: strength})
	}

	if ma20, ok := ind.Get(contracts.IndMA20); ok && ma20 > 0 && price < ma20 {
		dev := (ma20 - price) / ma20
		strength := math.Min(dev/m.config.DeviationThreshold, 1)
		out = append(out, sellSignal{name: "ma_breakdown", strength: strength})
	}

	return out
}

func sellNames(sells []sellSignal) []string {
	names := make([]string, len(sells))
	for i, s := range sells {
		names[i] = s.name
	}
	return names
}

// regimeStopFactor widens the stop in high volatility and loosens it
// in a trend.
func regimeStopFactor(regime contracts.Regime) float64 {
	switch regime {
	case contracts.RegimeHighVolatility:
		return 1.5
	case contracts.RegimeTrending:
		return 1.2
	default:
		return 1.0
	}
}

// exitSignal builds an exit for fraction of the position. An exit's
// size is always derived from the held size, never the sizing
// formula.
func (m *MomentumReversal) exitSignal(pos contracts.Position, price float64, now time.Time, reason contracts.ExitReason, profit, fraction float64, triggers []string) *contracts.TradeSignal {
	action := contracts.ActionSell
	if pos.IsShort() {
		action = contracts.ActionBuy
	}

	size := pos.AbsSize() * fraction
	if fraction < 1 {
		size = math.Floor(size)
	}

	meta := map[string]interface{}{
		"profit_pct": profit,
		"partial":    fraction < 1,
	}
	if len(triggers) > 0 {
		meta["triggers"] = triggers
	}

	m.logger.WithFields(map[string]interface{}{
		"symbol":     pos.Symbol,
		"reason":     string(reason),
		"profit_pct": profit,
		"size":       size,
	}).Info("Exit signal generated")

	return &contracts.TradeSignal{
		ID:         contracts.NewSignalID(),
		Symbol:     pos.Symbol,
		Action:     action,
		Price:      price,
		Size:       size,
		Confidence: 1.0,
		SignalType: contracts.SignalExit,
		Reason:     string(reason),
		Timestamp:  now,
		Metadata:   meta,
	}
}

// equity returns the last synced account equity, fetching it on first
// use.
func (m *MomentumReversal) equity(ctx context.Context) float64 {
	m.mu.RLock()
	eq := m.lastEquity
	m.mu.RUnlock()
	if eq > 0 {
		return eq
	}

	balance, err := m.broker.GetBalance(ctx)
	if err != nil || balance == nil {
		m.logger.WithError(err).Warn("Balance unavailable, sizing with zero equity")
		return 0
	}
	m.mu.Lock()
	m.lastEquity = balance.Equity
	m.mu.Unlock()
	return balance.Equity
}

var _ contracts.Strategy = (*MomentumReversal)(nil)
