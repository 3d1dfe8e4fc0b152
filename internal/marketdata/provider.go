package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/httputil"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
	"github.com/a772616239/AutoTrader-sub001/pkg/metrics"
	"github.com/a772616239/AutoTrader-sub001/pkg/redis"
)

// Provider fetches bar series and fundamentals over the market data
// REST API. All upstream market data calls go through this client.
// Responses are cached in Redis when a cache is attached; a local
// token bucket throttles the upstream regardless.
type Provider struct {
	client  *httputil.Client
	cache   *redis.Cache
	scraper *FundamentalsScraper
	limiter *rate.Limiter
	logger  *logger.Logger
	baseURL string
}

// NewProvider creates the REST provider. cache and scraper may be
// nil; caching and the scrape fallback are then disabled.
func NewProvider(cfg config.MarketDataConfig, client *httputil.Client, cache *redis.Cache, scraper *FundamentalsScraper, log *logger.Logger) *Provider {
	return &Provider{
		client:  client,
		cache:   cache,
		scraper: scraper,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  log.WithField("component", "marketdata"),
		baseURL: cfg.BaseURL,
	}
}

type candlePayload struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
}

type candleResponse struct {
	Symbol  string          `json:"symbol"`
	Candles []candlePayload `json:"candles"`
}

// GetSeries implements contracts.DataProvider.
func (p *Provider) GetSeries(ctx context.Context, symbol, interval string, lookback int) (contracts.Series, error) {
	key := redis.SeriesKey(symbol, interval, lookback)
	if p.cache != nil {
		var cached contracts.Series
		if ok, err := p.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, contracts.E(contracts.KindConnectionFailure, "marketdata.GetSeries", err)
	}

	endpoint := fmt.Sprintf("%s/v1/markets/%s/candles?%s", p.baseURL, url.PathEscape(symbol), url.Values{
		"interval": {interval},
		"limit":    {fmt.Sprintf("%d", lookback)},
	}.Encode())

	var payload candleResponse
	if err := p.getJSON(ctx, endpoint, &payload); err != nil {
		metrics.ProviderFailures.Inc()
		return nil, contracts.E(contracts.KindConnectionFailure, "marketdata.GetSeries", err)
	}
	if len(payload.Candles) == 0 {
		return nil, contracts.Errorf(contracts.KindDataUnavailable, "marketdata.GetSeries", "empty series for %s", symbol)
	}

	series := make(contracts.Series, len(payload.Candles))
	for i, c := range payload.Candles {
		series[i] = contracts.Bar{
			Timestamp: time.Unix(c.Time, 0).UTC(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, series, redis.TTLMedium); err != nil {
			p.logger.WithError(err).Debug("Series cache write failed")
		}
	}
	return series, nil
}

// GetFundamentals implements contracts.DataProvider. A failed API
// call falls back to the HTML scraper when one is attached.
func (p *Provider) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	key := redis.FundamentalsKey(symbol)
	if p.cache != nil {
		var cached contracts.Fundamentals
		if ok, err := p.cache.Get(ctx, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, contracts.E(contracts.KindConnectionFailure, "marketdata.GetFundamentals", err)
	}

	endpoint := fmt.Sprintf("%s/v1/markets/%s/fundamentals", p.baseURL, url.PathEscape(symbol))

	var f contracts.Fundamentals
	err := p.getJSON(ctx, endpoint, &f)
	if err != nil && p.scraper != nil {
		p.logger.WithError(err).WithField("symbol", symbol).Warn("Fundamentals API failed, scraping fallback")
		scraped, scrapeErr := p.scraper.Scrape(ctx, symbol)
		if scrapeErr != nil {
			metrics.ProviderFailures.Inc()
			return nil, contracts.E(contracts.KindDataUnavailable, "marketdata.GetFundamentals", scrapeErr)
		}
		f = *scraped
		err = nil
	}
	if err != nil {
		metrics.ProviderFailures.Inc()
		return nil, contracts.E(contracts.KindDataUnavailable, "marketdata.GetFundamentals", err)
	}
	f.Symbol = symbol

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, &f, redis.TTLLong); err != nil {
			p.logger.WithError(err).Debug("Fundamentals cache write failed")
		}
	}
	return &f, nil
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	resp, err := p.client.Get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ contracts.DataProvider = (*Provider)(nil)
