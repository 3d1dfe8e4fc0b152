package screener

import (
	"context"
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// FactorWeights weight each normalized fundamental factor in the
// composite. Negative weights penalize.
type FactorWeights struct {
	ROE             float64 `json:"roe"`
	ROA             float64 `json:"roa"`
	DebtRatio       float64 `json:"debt_ratio"`
	RevenueGrowth   float64 `json:"revenue_growth"`
	NetIncomeGrowth float64 `json:"net_income_growth"`
	DividendYield   float64 `json:"dividend_yield"`
}

// FactorMeans are the universe reference means each factor is
// normalized against.
type FactorMeans struct {
	ROE             float64 `json:"roe" validate:"gt=0"`
	ROA             float64 `json:"roa" validate:"gt=0"`
	DebtRatio       float64 `json:"debt_ratio" validate:"gt=0"`
	RevenueGrowth   float64 `json:"revenue_growth" validate:"gt=0"`
	NetIncomeGrowth float64 `json:"net_income_growth" validate:"gt=0"`
	DividendYield   float64 `json:"dividend_yield" validate:"gt=0"`
}

// FundamentalConfig parameterizes the multi-factor quality screener.
type FundamentalConfig struct {
	Universe []string `json:"universe" validate:"min=1"`

	// Hard filters
	MinROE             float64  `json:"min_roe"`
	MinROA             float64  `json:"min_roa"`
	MaxDebtRatio       float64  `json:"max_debt_ratio" validate:"gt=0"`
	MinRevenueGrowth   float64  `json:"min_revenue_growth"`
	MinNetIncomeGrowth float64  `json:"min_net_income_growth"`
	RequireDividend    bool     `json:"require_dividend"`
	Sectors            []string `json:"sectors"`
	MinMarketCap       float64  `json:"min_market_cap" validate:"gte=0"`

	Weights FactorWeights `json:"weights"`
	Means   FactorMeans   `json:"means"`

	MaxScreenSize int           `json:"max_screen_size" validate:"gte=0"`
	CacheTTL      time.Duration `json:"cache_ttl" validate:"gte=0"`
}

// DefaultFundamentalConfig returns the quality screen with the
// reference means of a broad large-cap universe.
func DefaultFundamentalConfig(universe []string) FundamentalConfig {
	return FundamentalConfig{
		Universe:           universe,
		MinROE:             0.10,
		MinROA:             0.05,
		MaxDebtRatio:       1.5,
		MinRevenueGrowth:   0.05,
		MinNetIncomeGrowth: 0.05,
		MinMarketCap:       1e9,
		Weights: FactorWeights{
			ROE:             1.2,
			ROA:             1.1,
			DebtRatio:       -1.1,
			RevenueGrowth:   1.25,
			NetIncomeGrowth: 1.10,
			DividendYield:   0.8,
		},
		Means: FactorMeans{
			ROE:             0.15,
			ROA:             0.08,
			DebtRatio:       0.8,
			RevenueGrowth:   0.10,
			NetIncomeGrowth: 0.12,
			DividendYield:   0.025,
		},
		MaxScreenSize: 50,
		CacheTTL:      6 * time.Hour,
	}
}

// FundamentalScreener applies hard quality filters, then scores the
// survivors with a weighted composite of normalized factors.
type FundamentalScreener struct {
	config FundamentalConfig
	cache  *resultCache
	stats  statsTracker
	logger *logger.Logger
}

// NewFundamentalScreener validates the config and builds the
// screener.
func NewFundamentalScreener(cfg FundamentalConfig, log *logger.Logger) (*FundamentalScreener, error) {
	if err := validateConfig("screener.NewFundamentalScreener", cfg); err != nil {
		return nil, err
	}
	return &FundamentalScreener{
		config: cfg,
		cache:  newResultCache(cfg.CacheTTL),
		logger: log.WithField("screener", "fundamental"),
	}, nil
}

// Name implements contracts.Screener.
func (s *FundamentalScreener) Name() string {
	return "fundamental"
}

// WithOverrides returns a fresh screener with the override keys merged
// over this screener's config.
func (s *FundamentalScreener) WithOverrides(overrides Overrides) (contracts.Screener, error) {
	cfg := s.config
	if err := mergeOverrides(s.config, overrides, &cfg); err != nil {
		return nil, contracts.E(contracts.KindConfigError, "screener.fundamental.WithOverrides", err)
	}
	return NewFundamentalScreener(cfg, s.logger)
}

// Stats implements contracts.Screener.
func (s *FundamentalScreener) Stats() contracts.ScreenerStats {
	return s.stats.snapshot()
}

// ClearCache implements contracts.Screener.
func (s *FundamentalScreener) ClearCache() {
	s.cache.clear()
}

// ScreenStocks pulls fundamentals per symbol. Missing data skips the
// symbol without penalty; five consecutive provider faults abort the
// scan.
func (s *FundamentalScreener) ScreenStocks(ctx context.Context, provider contracts.DataProvider) ([]contracts.ScreenResult, error) {
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

		f, err := provider.GetFundamentals(ctx, symbol)
		if err != nil || f == nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Fundamentals unavailable, skipping")
			if err == nil || noData(err) {
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

		if !s.passesHardFilters(f) {
			continue
		}

		score := s.compositeScore(f)
		results = append(results, contracts.ScreenResult{
			Symbol:     symbol,
			Score:      score,
			Confidence: clampUnit(score / 100),
			Strategy:   s.Name(),
			Timestamp:  time.Now(),
			Details: map[string]float64{
				"roe":               f.ROE,
				"roa":               f.ROA,
				"debt_ratio":        f.DebtRatio,
				"revenue_growth":    f.RevenueGrowth,
				"net_income_growth": f.NetIncomeGrowth,
				"dividend_yield":    f.DividendYield,
			},
		})
	}

	results = rankResults(results, s.config.MaxScreenSize)
	s.cache.put(results, time.Now())
	s.stats.record(screened, len(results), time.Since(started))

	s.logger.WithFields(map[string]interface{}{
		"screened": screened,
		"passed":   len(results),
	}).Info("Fundamental screen complete")

	return results, nil
}

func (s *FundamentalScreener) passesHardFilters(f *contracts.Fundamentals) bool {
	if f.ROE < s.config.MinROE || f.ROA < s.config.MinROA {
		return false
	}
	if f.DebtRatio > s.config.MaxDebtRatio {
		return false
	}
	if f.RevenueGrowth < s.config.MinRevenueGrowth {
		return false
	}
	if f.NetIncomeGrowth < s.config.MinNetIncomeGrowth {
		return false
	}
	if s.config.RequireDividend && f.DividendYield <= 0 {
		return false
	}
	if f.MarketCap < s.config.MinMarketCap {
		return false
	}
	if len(s.config.Sectors) > 0 {
		match := false
		for _, sector := range s.config.Sectors {
			if f.Sector == sector {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// compositeScore normalizes each factor against its reference mean,
// weights it, and scales the sum into [0,100].
func (s *FundamentalScreener) compositeScore(f *contracts.Fundamentals) float64 {
	w := s.config.Weights
	m := s.config.Means

	sum := 0.0
	sum += f.ROE / m.ROE * w.ROE
	sum += f.ROA / m.ROA * w.ROA
	sum += f.DebtRatio / m.DebtRatio * w.DebtRatio
	sum += f.RevenueGrowth / m.RevenueGrowth * w.RevenueGrowth
	sum += f.NetIncomeGrowth / m.NetIncomeGrowth * w.NetIncomeGrowth
	sum += f.DividendYield / m.DividendYield * w.DividendYield

	score := sum * 10
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

var _ contracts.Screener = (*FundamentalScreener)(nil)
