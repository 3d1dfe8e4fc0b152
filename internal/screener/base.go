package screener

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// maxConsecutiveFailures bounds how many back-to-back provider
// failures a universe scan tolerates before returning partial
// results.
const maxConsecutiveFailures = 5

// noData reports whether err is a per-symbol no-data outcome rather
// than a provider fault. A delisted or thinly listed symbol skips
// without touching the abort budget; only real faults count toward it.
func noData(err error) bool {
	return contracts.IsKind(err, contracts.KindDataUnavailable)
}

// mergeOverrides lays the override keys over base and decodes the
// result into out. Keys the config does not declare are rejected.
func mergeOverrides(base interface{}, overrides Overrides, out interface{}) error {
	raw, err := json.Marshal(base)
	if err != nil {
		return err
	}
	merged := make(map[string]interface{})
	if err := json.Unmarshal(raw, &merged); err != nil {
		return err
	}
	for k, v := range overrides {
		merged[k] = v
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// FilterConfig is the pre-filter applied before scoring.
type FilterConfig struct {
	MinPrice     float64 `json:"min_price" validate:"gte=0"`
	MinAvgVolume float64 `json:"min_avg_volume" validate:"gte=0"`
	MinMarketCap float64 `json:"min_market_cap" validate:"gte=0"`
}

// DefaultFilterConfig returns the shared pre-filter defaults.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinPrice:     5.0,
		MinAvgVolume: 100000,
		MinMarketCap: 0,
	}
}

// resultCache holds one screening run's results for a TTL. Reads and
// writes serialize on the mutex so concurrent callers never race a
// recomputation.
type resultCache struct {
	mu       sync.Mutex
	results  []contracts.ScreenResult
	storedAt time.Time
	ttl      time.Duration
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl}
}

// get returns a copy of the cached results while they are fresh.
func (c *resultCache) get(now time.Time) ([]contracts.ScreenResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil || c.ttl <= 0 || now.Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	out := make([]contracts.ScreenResult, len(c.results))
	copy(out, c.results)
	return out, true
}

func (c *resultCache) put(results []contracts.ScreenResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]contracts.ScreenResult, len(results))
	copy(stored, results)
	c.results = stored
	c.storedAt = now
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = nil
	c.storedAt = time.Time{}
}

// statsTracker accumulates per-screener counters. The average
// processing time updates incrementally, never from history.
type statsTracker struct {
	mu    sync.Mutex
	stats contracts.ScreenerStats
}

func (t *statsTracker) record(screened, passed int, took time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalScreenings++
	t.stats.StocksScreened += int64(screened)
	t.stats.StocksPassed += int64(passed)

	n := t.stats.TotalScreenings
	prev := t.stats.AvgProcessingTime
	t.stats.AvgProcessingTime = time.Duration((int64(prev)*(n-1) + int64(took)) / n)
}

func (t *statsTracker) snapshot() contracts.ScreenerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// rankResults orders results descending by score and truncates to
// maxSize. maxSize <= 0 keeps everything. Ties break on symbol so
// repeated runs over the same inputs produce the same list.
func rankResults(results []contracts.ScreenResult, maxSize int) []contracts.ScreenResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Symbol < results[j].Symbol
	})
	if maxSize > 0 && len(results) > maxSize {
		results = results[:maxSize]
	}
	return results
}

// passesFilter applies the price and volume pre-filter to a series.
func passesFilter(filter FilterConfig, bars contracts.Series) bool {
	last, ok := bars.Last()
	if !ok {
		return false
	}
	if last.Close < filter.MinPrice {
		return false
	}
	if bars.AverageVolume(20) < filter.MinAvgVolume {
		return false
	}
	return true
}
