package screener

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/indicator"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// TrendTemplateConfig parameterizes the relative-strength trend
// screen.
type TrendTemplateConfig struct {
	Universe  []string `json:"universe" validate:"min=1"`
	Benchmark string   `json:"benchmark" validate:"required"`
	Interval  string   `json:"interval" validate:"required"`

	// HistoryBars must cover the long moving averages; candidates
	// with fewer bars are skipped.
	HistoryBars int `json:"history_bars" validate:"gte=200"`
	RSLookback  int `json:"rs_lookback" validate:"gte=20"`

	// TopFraction keeps only the strongest slice of the universe by
	// relative strength before scoring trend conditions.
	TopFraction float64 `json:"top_fraction" validate:"gt=0,lte=1"`

	// LowMarginMultiple requires price at least this multiple of the
	// 52-week low; HighCeilingFraction requires price within this
	// fraction of the 52-week high.
	LowMarginMultiple   float64 `json:"low_margin_multiple" validate:"gt=1"`
	HighCeilingFraction float64 `json:"high_ceiling_fraction" validate:"gt=0,lt=1"`

	MaxScreenSize int           `json:"max_screen_size" validate:"gte=0"`
	CacheTTL      time.Duration `json:"cache_ttl" validate:"gte=0"`
	Filter        FilterConfig  `json:"filter"`
}

// DefaultTrendTemplateConfig screens a year of daily bars against
// the benchmark.
func DefaultTrendTemplateConfig(universe []string, benchmark string) TrendTemplateConfig {
	return TrendTemplateConfig{
		Universe:            universe,
		Benchmark:           benchmark,
		Interval:            "1d",
		HistoryBars:         252,
		RSLookback:          126,
		TopFraction:         0.30,
		LowMarginMultiple:   1.3,
		HighCeilingFraction: 0.75,
		MaxScreenSize:       30,
		CacheTTL:            6 * time.Hour,
		Filter:              DefaultFilterConfig(),
	}
}

// TrendTemplateScreener keeps the top slice of the universe by
// relative strength against a benchmark, then scores five trend
// conditions on the survivors.
type TrendTemplateScreener struct {
	config TrendTemplateConfig
	cache  *resultCache
	stats  statsTracker
	logger *logger.Logger
}

// NewTrendTemplateScreener validates the config and builds the
// screener.
func NewTrendTemplateScreener(cfg TrendTemplateConfig, log *logger.Logger) (*TrendTemplateScreener, error) {
	if err := validateConfig("screener.NewTrendTemplateScreener", cfg); err != nil {
		return nil, err
	}
	return &TrendTemplateScreener{
		config: cfg,
		cache:  newResultCache(cfg.CacheTTL),
		logger: log.WithField("screener", "trend_template"),
	}, nil
}

// Name implements contracts.Screener.
func (s *TrendTemplateScreener) Name() string {
	return "trend_template"
}

// WithOverrides returns a fresh screener with the override keys merged
// over this screener's config.
func (s *TrendTemplateScreener) WithOverrides(overrides Overrides) (contracts.Screener, error) {
	cfg := s.config
	if err := mergeOverrides(s.config, overrides, &cfg); err != nil {
		return nil, contracts.E(contracts.KindConfigError, "screener.trend_template.WithOverrides", err)
	}
	return NewTrendTemplateScreener(cfg, s.logger)
}

// Stats implements contracts.Screener.
func (s *TrendTemplateScreener) Stats() contracts.ScreenerStats {
	return s.stats.snapshot()
}

// ClearCache implements contracts.Screener.
func (s *TrendTemplateScreener) ClearCache() {
	s.cache.clear()
}

type rsCandidate struct {
	symbol string
	bars   contracts.Series
	rating float64
}

// ScreenStocks fetches the benchmark first; without it there is no
// relative strength and the run returns empty.
func (s *TrendTemplateScreener) ScreenStocks(ctx context.Context, provider contracts.DataProvider) ([]contracts.ScreenResult, error) {
	started := time.Now()
	if cached, ok := s.cache.get(started); ok {
		s.logger.Debug("Returning cached screen results")
		return cached, nil
	}

	benchBars, err := provider.GetSeries(ctx, s.config.Benchmark, s.config.Interval, s.config.HistoryBars)
	if err != nil {
		s.logger.WithError(err).Warn("Benchmark series unavailable, returning empty screen")
		return nil, nil
	}
	benchReturn := benchBars.CumulativeReturn(s.config.RSLookback)

	var candidates []rsCandidate
	screened := 0
	failures := 0

	for _, symbol := range s.config.Universe {
		if err := ctx.Err(); err != nil {
			return nil, err
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

		if len(bars) < s.config.HistoryBars*4/5 {
			continue
		}
		if !passesFilter(s.config.Filter, bars) {
			continue
		}

		candidates = append(candidates, rsCandidate{
			symbol: symbol,
			bars:   bars,
			rating: relativeStrength(bars.CumulativeReturn(s.config.RSLookback), benchReturn),
		})
	}

	// Keep the strongest slice by rating
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rating > candidates[j].rating
	})
	keep := int(math.Ceil(float64(len(candidates)) * s.config.TopFraction))
	if keep < len(candidates) {
		candidates = candidates[:keep]
	}

	var results []contracts.ScreenResult
	for _, c := range candidates {
		if result, ok := s.scoreCandidate(c); ok {
			results = append(results, result)
		}
	}

	results = rankResults(results, s.config.MaxScreenSize)
	s.cache.put(results, time.Now())
	s.stats.record(screened, len(results), time.Since(started))

	s.logger.WithFields(map[string]interface{}{
		"screened": screened,
		"passed":   len(results),
	}).Info("Trend template screen complete")

	return results, nil
}

// relativeStrength is the candidate return over the benchmark
// return, scaled to a rating where 100 means matching the benchmark.
func relativeStrength(candidate, benchmark float64) float64 {
	return (1 + candidate) / (1 + benchmark) * 100
}

// scoreCandidate awards the five trend conditions their fixed points
// plus the capped relative-strength bonus.
func (s *TrendTemplateScreener) scoreCandidate(c rsCandidate) (contracts.ScreenResult, bool) {
	closes := c.bars.Closes()
	last, _ := c.bars.Last()
	price := last.Close

	ma50, ok50 := indicator.SMA(closes, 50)
	ma150, ok150 := indicator.SMA(closes, 150)
	ma200, ok200 := indicator.SMA(closes, 200)
	if !ok50 || !ok150 || !ok200 {
		return contracts.ScreenResult{}, false
	}

	// Slope of the long averages over the last month
	ma200Prior, _ := indicator.SMA(closes[:len(closes)-21], 200)
	ma150Prior, _ := indicator.SMA(closes[:len(closes)-21], 150)

	low52 := c.bars.LowestLow(252)
	high52 := c.bars.HighestHigh(252)

	score := 0.0
	details := map[string]float64{"rs_rating": c.rating}

	if price > ma150 && price > ma200 && ma200 > ma200Prior {
		score += 25
		details["above_long_mas"] = 1
	}
	if ma150 > ma200 && ma150 > ma150Prior {
		score += 20
		details["ma_order"] = 1
	}
	if price > ma50 && ma50 > ma150 {
		score += 20
		details["above_short_ma"] = 1
	}
	if low52 > 0 && price >= low52*s.config.LowMarginMultiple {
		score += 20
		details["off_low"] = 1
	}
	if high52 > 0 && price >= high52*s.config.HighCeilingFraction {
		score += 15
		details["near_high"] = 1
	}

	score += math.Min(20, c.rating/5)

	if score <= 0 {
		return contracts.ScreenResult{}, false
	}

	return contracts.ScreenResult{
		Symbol:     c.symbol,
		Score:      math.Min(score, 100),
		Confidence: clampUnit(score / 100),
		Strategy:   s.Name(),
		Timestamp:  time.Now(),
		Details:    details,
	}, true
}

var _ contracts.Screener = (*TrendTemplateScreener)(nil)
