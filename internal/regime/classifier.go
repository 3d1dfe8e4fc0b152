package regime

import (
	"math"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/indicator"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// Config holds the regime classification thresholds.
type Config struct {
	VolatilityWindow    int     `json:"volatility_window"`
	VolatilityThreshold float64 `json:"volatility_threshold"`
	ChangeWindow        int     `json:"change_window"`
	TrendThreshold      float64 `json:"trend_threshold"`
}

// DefaultConfig returns the standard regime thresholds.
func DefaultConfig() Config {
	return Config{
		VolatilityWindow:    20,
		VolatilityThreshold: 0.25,
		ChangeWindow:        20,
		TrendThreshold:      0.03,
	}
}

// Classifier assigns a coarse market regime to a bar series.
type Classifier struct {
	config Config
	logger *logger.Logger
}

// NewClassifier creates a regime classifier
func NewClassifier(cfg Config, log *logger.Logger) *Classifier {
	return &Classifier{config: cfg, logger: log}
}

// Classify buckets the series into high-volatility, trending, or
// ranging. High volatility wins over trend; too little history
// defaults to ranging.
func (c *Classifier) Classify(bars contracts.Series) contracts.Regime {
	closes := bars.Closes()

	vol, ok := indicator.AnnualizedVolatility(closes, c.config.VolatilityWindow)
	if ok && vol > c.config.VolatilityThreshold {
		c.logger.WithFields(map[string]interface{}{
			"volatility": vol,
			"threshold":  c.config.VolatilityThreshold,
		}).Debug("High volatility regime")
		return contracts.RegimeHighVolatility
	}

	change := bars.CumulativeReturn(c.config.ChangeWindow)
	if math.Abs(change) > c.config.TrendThreshold {
		return contracts.RegimeTrending
	}

	return contracts.RegimeRanging
}
