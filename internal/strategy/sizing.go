package strategy

import (
	"math"

	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// Sizer converts a qualifying signal into a bounded whole-share
// quantity. The same formula serves every strategy engine.
type Sizer struct {
	config SizingConfig
	logger *logger.Logger
}

// NewSizer creates a sizer, validating its configuration.
func NewSizer(cfg SizingConfig, log *logger.Logger) (*Sizer, error) {
	if err := validateConfig("strategy.NewSizer", cfg); err != nil {
		return nil, err
	}
	return &Sizer{config: cfg, logger: log}, nil
}

// SizingInput carries the account and signal state sizing needs.
type SizingInput struct {
	Equity           float64
	Price            float64
	ATR              float64
	Confidence       float64
	Enhancement      float64
	OpenPositions    int
	ExistingNotional float64 // already-held notional in this symbol
}

// Shares returns the whole-share quantity for an entry, or 0 when no
// trade should be taken. The implied notional never exceeds the
// per-trade cap, the per-position cap, or the equity fraction cap.
func (s *Sizer) Shares(in SizingInput) float64 {
	if in.Price <= 0 || in.ATR <= 0 || in.Equity <= 0 {
		return 0
	}
	if in.OpenPositions >= s.config.MaxActivePositions {
		s.logger.WithFields(map[string]interface{}{
			"open": in.OpenPositions,
			"max":  s.config.MaxActivePositions,
		}).Debug("Sizing blocked by max active positions")
		return 0
	}

	riskAmount := in.Equity * s.config.RiskPerTrade * clamp(in.Confidence, 0, 1)
	baseShares := riskAmount / (in.ATR * s.config.StopATRMultiple)

	// A materially positive enhancement scales size up
	if in.Enhancement > 0.1 {
		baseShares *= 1 + in.Enhancement
	}

	// Notional cap: per-trade cap, cash buffer, equity fraction, and
	// remaining headroom under the per-position cap
	notionalCap := math.Min(s.config.PerTradeNotionalCap, in.Equity*(1-s.config.MinCashBuffer))
	notionalCap = math.Min(notionalCap, in.Equity*s.config.MaxPositionFraction)
	notionalCap = math.Min(notionalCap, s.config.MaxPositionNotional-in.ExistingNotional)
	if notionalCap <= 0 {
		return 0
	}

	shares := math.Floor(math.Min(baseShares, notionalCap/in.Price))
	if shares < 1 {
		return 0
	}
	return shares
}

// Config returns the sizing parameters in effect.
func (s *Sizer) Config() SizingConfig {
	return s.config
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
