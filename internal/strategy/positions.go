package strategy

import (
	"sync"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// PositionStore is the per-strategy symbol to open-position map. It
// is owned and mutated exclusively by one strategy engine instance;
// SyncFromBroker replaces the contents wholesale, no diffing.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]contracts.Position
}

// NewPositionStore creates an empty store.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]contracts.Position)}
}

// Get returns the open position for symbol, if any.
func (s *PositionStore) Get(symbol string) (contracts.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// Set records an open position. A zero size deletes the entry.
func (s *PositionStore) Set(p contracts.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Size == 0 {
		delete(s.positions, p.Symbol)
		return
	}
	s.positions[p.Symbol] = p
}

// Reduce shrinks a position by qty (unsigned). The position is
// removed when its size reaches zero.
func (s *PositionStore) Reduce(symbol string, qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		return
	}
	if p.Size > 0 {
		p.Size -= qty
		if p.Size <= 0 {
			delete(s.positions, symbol)
			return
		}
	} else {
		p.Size += qty
		if p.Size >= 0 {
			delete(s.positions, symbol)
			return
		}
	}
	s.positions[symbol] = p
}

// Delete removes the position for symbol.
func (s *PositionStore) Delete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
}

// ReplaceAll swaps the full contents for the given snapshot.
func (s *PositionStore) ReplaceAll(positions []contracts.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]contracts.Position, len(positions))
	for _, p := range positions {
		if p.Size != 0 {
			s.positions[p.Symbol] = p
		}
	}
}

// All returns a copy of every open position.
func (s *PositionStore) All() []contracts.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Count returns the number of open positions.
func (s *PositionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}
