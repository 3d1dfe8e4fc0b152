package screener

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/indicator"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(op string, cfg interface{}) error {
	if err := validate.Struct(cfg); err != nil {
		return contracts.E(contracts.KindConfigError, op, err)
	}
	return nil
}

// RSIMode selects which side of the band the screener hunts.
type RSIMode string

const (
	RSIModeOversold   RSIMode = "oversold"
	RSIModeOverbought RSIMode = "overbought"
)

// RSIConfig parameterizes the RSI screener. The config is an
// immutable snapshot; a changed universe or threshold means a new
// screener instance.
type RSIConfig struct {
	Universe []string `json:"universe" validate:"min=1"`
	Interval string   `json:"interval" validate:"required"`

	Mode         RSIMode `json:"mode" validate:"oneof=oversold overbought"`
	RSIPeriod    int     `json:"rsi_period" validate:"gte=2"`
	AvgWindow    int     `json:"avg_window" validate:"gte=1"`
	Oversold     float64 `json:"oversold" validate:"gt=0,lt=50"`
	Overbought   float64 `json:"overbought" validate:"gt=50,lt=100"`
	HistoryBars  int     `json:"history_bars" validate:"gte=30"`
	TrendConfirm bool    `json:"trend_confirm"`
	TrendWindow  int     `json:"trend_window" validate:"gte=2"`

	MaxScreenSize int           `json:"max_screen_size" validate:"gte=0"`
	CacheTTL      time.Duration `json:"cache_ttl" validate:"gte=0"`
	Filter        FilterConfig  `json:"filter"`
}

// DefaultRSIConfig returns the oversold hunter with trend
// confirmation on.
func DefaultRSIConfig(universe []string) RSIConfig {
	return RSIConfig{
		Universe:      universe,
		Interval:      "1d",
		Mode:          RSIModeOversold,
		RSIPeriod:     14,
		AvgWindow:     5,
		Oversold:      30,
		Overbought:    70,
		HistoryBars:   60,
		TrendConfirm:  true,
		TrendWindow:   50,
		MaxScreenSize: 50,
		CacheTTL:      10 * time.Minute,
		Filter:        DefaultFilterConfig(),
	}
}

// RSIScreener scores symbols by how far their average RSI sits
// beyond the configured band, with an optional trend-fit bonus.
type RSIScreener struct {
	config RSIConfig
	cache  *resultCache
	stats  statsTracker
	logger *logger.Logger
}

// NewRSIScreener validates the config and builds the screener.
func NewRSIScreener(cfg RSIConfig, log *logger.Logger) (*RSIScreener, error) {
	if err := validateConfig("screener.NewRSIScreener", cfg); err != nil {
		return nil, err
	}
	return &RSIScreener{
		config: cfg,
		cache:  newResultCache(cfg.CacheTTL),
		logger: log.WithField("screener", "rsi"),
	}, nil
}

// Name implements contracts.Screener.
func (s *RSIScreener) Name() string {
	return "rsi"
}

// WithOverrides returns a fresh screener with the override keys merged
// over this screener's config.
func (s *RSIScreener) WithOverrides(overrides Overrides) (contracts.Screener, error) {
	cfg := s.config
	if err := mergeOverrides(s.config, overrides, &cfg); err != nil {
		return nil, contracts.E(contracts.KindConfigError, "screener.rsi.WithOverrides", err)
	}
	return NewRSIScreener(cfg, s.logger)
}

// Stats implements contracts.Screener.
func (s *RSIScreener) Stats() contracts.ScreenerStats {
	return s.stats.snapshot()
}

// ClearCache implements contracts.Screener.
func (s *RSIScreener) ClearCache() {
	s.cache.clear()
}

// ScreenStocks walks the universe sequentially. A no-data symbol is
// skipped outright; five consecutive provider faults abort the
// remainder and the partial list is returned. A fresh cache hit
// short-circuits without touching the stats.
func (s *RSIScreener) ScreenStocks(ctx context.Context, provider contracts.DataProvider) ([]contracts.ScreenResult, error) {
	started := time.Now()
	if cached, ok := s.cache.get(started); ok {
		s.logger.Debug("Returning cached screen results")
		return cached, nil
	}

	var results []contracts.ScreenResult
	screened := 0
	failures := 0

	for _, symbol := range s.config.Universe {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		bars, err := provider.GetSeries(ctx, symbol, s.config.Interval, s.config.HistoryBars)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Series unavailable, skipping")
			if noData(err) {
				continue
			}
			failures++
			if failures >= maxConsecutiveFailures {
				s.logger.Warnf("Aborting scan after %d consecutive failures", failures)
				break
			}
			continue
		}
		failures = 0
		screened++

		if !passesFilter(s.config.Filter, bars) {
			continue
		}

		result, ok := s.scoreSymbol(symbol, bars)
		if !ok {
			continue
		}
		results = append(results, result)
	}

	results = rankResults(results, s.config.MaxScreenSize)
	s.cache.put(results, time.Now())
	s.stats.record(screened, len(results), time.Since(started))

	s.logger.WithFields(map[string]interface{}{
		"screened": screened,
		"passed":   len(results),
	}).Info("RSI screen complete")

	return results, nil
}

func (s *RSIScreener) scoreSymbol(symbol string, bars contracts.Series) (contracts.ScreenResult, bool) {
	closes := bars.Closes()
	rsis := indicator.RSISeries(closes, s.config.RSIPeriod, s.config.AvgWindow)
	if rsis == nil {
		return contracts.ScreenResult{}, false
	}

	avg := 0.0
	for _, v := range rsis {
		avg += v
	}
	avg /= float64(len(rsis))

	// Trend confirmation fits closing prices over the trend window,
	// not the oscillator itself.
	trend := closes
	if len(trend) > s.config.TrendWindow {
		trend = trend[len(trend)-s.config.TrendWindow:]
	}
	slope, r2 := indicator.LinearTrend(trend)
	score, confidence, ok := s.score(avg, slope, r2)
	if !ok {
		return contracts.ScreenResult{}, false
	}

	return contracts.ScreenResult{
		Symbol:     symbol,
		Score:      score,
		Confidence: confidence,
		Strategy:   s.Name(),
		Timestamp:  time.Now(),
		Details: map[string]float64{
			"avg_rsi":  avg,
			"slope":    slope,
			"trend_r2": r2,
		},
	}, true
}

// score turns the average RSI and the price-trend fit into the screen
// score. The deviation is the signed distance beyond the threshold;
// the trend bonus only counts a rising fit with R-squared above 0.3.
func (s *RSIScreener) score(avgRSI, slope, r2 float64) (score, confidence float64, ok bool) {
	var deviation float64
	switch s.config.Mode {
	case RSIModeOverbought:
		deviation = avgRSI - s.config.Overbought
	default:
		deviation = s.config.Oversold - avgRSI
	}
	if deviation <= 0 {
		return 0, 0, false
	}

	score = math.Min(100, deviation*5)
	if s.config.TrendConfirm && slope > 0 && r2 > 0.3 {
		score += r2 * 20
	}
	confidence = clampUnit(score / 100)
	return score, confidence, true
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ contracts.Screener = (*RSIScreener)(nil)
