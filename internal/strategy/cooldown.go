package strategy

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// CooldownTracker suppresses re-emission of equivalent signals within
// a time window. Expired entries are purged lazily on access.
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{entries: make(map[string]time.Time)}
}

// Active reports whether key is still cooling down at now.
func (t *CooldownTracker) Active(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.entries[key]
	if !ok {
		return false
	}
	if now.After(expiry) {
		delete(t.entries, key)
		return false
	}
	return true
}

// Register starts a cooldown for key lasting d from now.
func (t *CooldownTracker) Register(key string, now time.Time, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = now.Add(d)
}

// Purge drops all expired entries.
func (t *CooldownTracker) Purge(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, expiry := range t.entries {
		if now.After(expiry) {
			delete(t.entries, k)
		}
	}
}

// Len returns the number of live entries, counting expired ones that
// have not been purged yet.
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// SignalHash identifies an equivalent signal for deduplication. The
// price enters through a coarse bucket so near-identical prices hash
// the same.
func SignalHash(symbol string, st contracts.SignalType, action contracts.Action, reason string, price float64) string {
	bucket := int64(price*100) / 5
	raw := fmt.Sprintf("%s_%s_%s_%s_%d", symbol, st, action, reason, bucket)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:8]
}

// SymbolTypeKey is the cooldown key gating new entries for a
// symbol/signal-type pair.
func SymbolTypeKey(symbol string, st contracts.SignalType) string {
	return fmt.Sprintf("%s:%s", symbol, st)
}
