package marketdata

import (
	"sync"
	"time"
)

// Quote is one live price observation.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteCache is the in-memory store for live quotes. All live price
// reads go through this cache.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	ttl    time.Duration
}

// NewQuoteCache creates a cache whose entries go stale after ttl.
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]Quote),
		ttl:    ttl,
	}
}

// Update stores a quote. Older data than what is already cached is
// rejected.
func (c *QuoteCache) Update(q Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.quotes[q.Symbol]; ok && q.Timestamp.Before(existing.Timestamp) {
		return false
	}
	c.quotes[q.Symbol] = q
	return true
}

// Get returns the cached quote if it is still fresh.
func (c *QuoteCache) Get(symbol string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[symbol]
	if !ok {
		return Quote{}, false
	}
	if c.ttl > 0 && time.Since(q.Timestamp) > c.ttl {
		return Quote{}, false
	}
	return q, true
}

// Len returns the number of cached symbols, stale or not.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
