package contracts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockDataProvider is an in-memory DataProvider for tests.
type MockDataProvider struct {
	mu           sync.Mutex
	series       map[string]Series
	fundamentals map[string]*Fundamentals
	errs         map[string]error
	seriesCalls  int
}

// NewMockDataProvider creates an empty mock provider.
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{
		series:       make(map[string]Series),
		fundamentals: make(map[string]*Fundamentals),
		errs:         make(map[string]error),
	}
}

// SetSeries registers a bar series for a symbol.
func (m *MockDataProvider) SetSeries(symbol string, bars Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol] = bars
}

// SetFundamentals registers fundamentals for a symbol.
func (m *MockDataProvider) SetFundamentals(symbol string, f *Fundamentals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fundamentals[symbol] = f
}

// SetError makes every call for symbol fail with err.
func (m *MockDataProvider) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// SeriesCalls returns how many GetSeries calls were made.
func (m *MockDataProvider) SeriesCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seriesCalls
}

func (m *MockDataProvider) GetSeries(_ context.Context, symbol, _ string, _ int) (Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seriesCalls++
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	series, ok := m.series[symbol]
	if !ok {
		return nil, E(KindDataUnavailable, "mockprovider.GetSeries", fmt.Errorf("no series for %s", symbol))
	}
	return series, nil
}

func (m *MockDataProvider) GetFundamentals(_ context.Context, symbol string) (*Fundamentals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	f, ok := m.fundamentals[symbol]
	if !ok {
		return nil, E(KindDataUnavailable, "mockprovider.GetFundamentals", fmt.Errorf("no fundamentals for %s", symbol))
	}
	return f, nil
}

// MockBroker is an in-memory Broker for tests.
type MockBroker struct {
	mu       sync.Mutex
	prices   map[string]float64
	holdings map[string]Position
	balance  Balance
	orders   []OrderRequest
	failNext bool
}

// NewMockBroker creates a mock broker with the given equity.
func NewMockBroker(equity float64) *MockBroker {
	return &MockBroker{
		prices:   make(map[string]float64),
		holdings: make(map[string]Position),
		balance:  Balance{Cash: equity, Equity: equity, UpdatedAt: time.Now()},
	}
}

// SetPrice sets the current price for a symbol.
func (m *MockBroker) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetHolding registers an open position.
func (m *MockBroker) SetHolding(p Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[p.Symbol] = p
}

// FailNextOrder makes the next PlaceOrder return a nil result.
func (m *MockBroker) FailNextOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// Orders returns all submitted order requests.
func (m *MockBroker) Orders() []OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}

func (m *MockBroker) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[symbol]
	if !ok {
		return 0, E(KindDataUnavailable, "mockbroker.GetCurrentPrice", fmt.Errorf("no price for %s", symbol))
	}
	return price, nil
}

func (m *MockBroker) GetHoldings(_ context.Context) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.holdings))
	for _, p := range m.holdings {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockBroker) GetBalance(_ context.Context) (*Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balance
	return &b, nil
}

func (m *MockBroker) PlaceOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return nil, nil
	}

	m.orders = append(m.orders, req)

	price := req.LimitPrice
	if price == 0 {
		price = m.prices[req.Symbol]
	}

	// Apply the fill to holdings
	pos, exists := m.holdings[req.Symbol]
	delta := req.Size
	if req.Action == ActionSell {
		delta = -req.Size
	}
	if exists {
		pos.Size += delta
		if pos.Size == 0 {
			delete(m.holdings, req.Symbol)
		} else {
			m.holdings[req.Symbol] = pos
		}
	} else {
		m.holdings[req.Symbol] = Position{
			Symbol:    req.Symbol,
			Size:      delta,
			AvgCost:   price,
			EntryTime: time.Now(),
		}
	}

	return &OrderResult{
		OrderID:     NewSignalID(),
		Status:      OrderStatusFilled,
		FilledSize:  req.Size,
		FilledPrice: price,
		SubmittedAt: time.Now(),
	}, nil
}
