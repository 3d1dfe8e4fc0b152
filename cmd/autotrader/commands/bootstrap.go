package commands

import (
	"fmt"
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/broker"
	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/marketdata"
	"github.com/a772616239/AutoTrader-sub001/internal/regime"
	"github.com/a772616239/AutoTrader-sub001/internal/strategy"
	"github.com/a772616239/AutoTrader-sub001/internal/strategyconfig"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/httputil"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
	"github.com/a772616239/AutoTrader-sub001/pkg/redis"
)

// stack holds the wired runtime components shared by the trade and
// serve commands.
type stack struct {
	provider   *marketdata.Provider
	broker     contracts.Broker
	quotes     *marketdata.QuoteCache
	strategies []contracts.Strategy
	classifier *regime.Classifier
	redis      *redis.Client
}

// buildStack wires the data provider, broker, and strategies from
// config. Redis is optional; without it the provider runs uncached.
func buildStack(cfg *config.Config, log *logger.Logger) (*stack, error) {
	httpClient := httputil.New(cfg, log)

	var redisClient *redis.Client
	var cache *redis.Cache
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, running without cache")
		} else {
			redisClient = client
			cache = redis.NewCache(client, "md")
		}
	}

	var scraper *marketdata.FundamentalsScraper
	if cfg.MarketData.ScrapeBaseURL != "" {
		scraper = marketdata.NewFundamentalsScraper(cfg.MarketData.ScrapeBaseURL, httpClient, log)
	}

	provider := marketdata.NewProvider(cfg.MarketData, httpClient, cache, scraper, log)
	quotes := marketdata.NewQuoteCache(time.Minute)

	var brk contracts.Broker
	switch cfg.Broker.Mode {
	case "paper":
		brk = broker.NewPaperBroker(cfg.Broker.InitialEquity, quotes, provider, log)
	case "http":
		brk = broker.NewHTTPBroker(cfg.Broker, httpClient, log)
	default:
		return nil, fmt.Errorf("unknown broker mode %q", cfg.Broker.Mode)
	}

	classifier := regime.NewClassifier(regime.DefaultConfig(), log)

	// Strategy parameters are resolved once per process.
	var snap *strategyconfig.Snapshot
	var err error
	if cfg.Trading.StrategyConfig != "" {
		snap, err = strategyconfig.Load(cfg.Trading.StrategyConfig)
	} else {
		snap, err = strategyconfig.Default()
	}
	if err != nil {
		return nil, err
	}
	log.WithField("config_hash", snap.Hash).Info("Strategy parameters resolved")

	sizer, err := strategy.NewSizer(snap.Sizing, log)
	if err != nil {
		return nil, fmt.Errorf("build sizer: %w", err)
	}

	momentum, err := strategy.NewMomentumReversal(
		snap.Momentum, sizer, brk, classifier.Classify, log)
	if err != nil {
		return nil, fmt.Errorf("build momentum strategy: %w", err)
	}

	zscore, err := strategy.NewZScoreReversion(
		snap.ZScore, sizer, brk, log)
	if err != nil {
		return nil, fmt.Errorf("build zscore strategy: %w", err)
	}

	return &stack{
		provider:   provider,
		broker:     brk,
		quotes:     quotes,
		strategies: []contracts.Strategy{momentum, zscore},
		classifier: classifier,
		redis:      redisClient,
	}, nil
}

// Close releases the stack's connections.
func (s *stack) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
}
