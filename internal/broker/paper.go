package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/marketdata"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
	"github.com/a772616239/AutoTrader-sub001/pkg/metrics"
)

// PaperBroker simulates fills against live prices without touching a
// real account. Holdings and cash mutate only here.
type PaperBroker struct {
	mu       sync.Mutex
	cash     float64
	holdings map[string]contracts.Position

	quotes   *marketdata.QuoteCache
	provider contracts.DataProvider
	logger   *logger.Logger
}

// NewPaperBroker creates a simulated account with the given starting
// cash. quotes may be nil; prices then always come from the
// provider's last close.
func NewPaperBroker(initialCash float64, quotes *marketdata.QuoteCache, provider contracts.DataProvider, log *logger.Logger) *PaperBroker {
	return &PaperBroker{
		cash:     initialCash,
		holdings: make(map[string]contracts.Position),
		quotes:   quotes,
		provider: provider,
		logger:   log.WithField("component", "paper_broker"),
	}
}

// GetCurrentPrice implements contracts.Broker. The live quote cache
// wins; a stale or missing quote falls back to the latest close.
func (b *PaperBroker) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if b.quotes != nil {
		if q, ok := b.quotes.Get(symbol); ok {
			return q.Price, nil
		}
	}

	if b.provider == nil {
		return 0, contracts.Errorf(contracts.KindDataUnavailable, "paperbroker.GetCurrentPrice", "no price source for %s", symbol)
	}
	series, err := b.provider.GetSeries(ctx, symbol, "1d", 1)
	if err != nil {
		return 0, err
	}
	last, ok := series.Last()
	if !ok {
		return 0, contracts.Errorf(contracts.KindDataUnavailable, "paperbroker.GetCurrentPrice", "no bars for %s", symbol)
	}
	return last.Close, nil
}

// GetHoldings implements contracts.Broker.
func (b *PaperBroker) GetHoldings(ctx context.Context) ([]contracts.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]contracts.Position, 0, len(b.holdings))
	for _, p := range b.holdings {
		out = append(out, p)
	}
	return out, nil
}

// GetBalance implements contracts.Broker. Equity marks every holding
// to the current price, falling back to cost when no price is
// available.
func (b *PaperBroker) GetBalance(ctx context.Context) (*contracts.Balance, error) {
	b.mu.Lock()
	holdings := make([]contracts.Position, 0, len(b.holdings))
	for _, p := range b.holdings {
		holdings = append(holdings, p)
	}
	cash := b.cash
	b.mu.Unlock()

	equity := cash
	for _, p := range holdings {
		price, err := b.GetCurrentPrice(ctx, p.Symbol)
		if err != nil {
			price = p.AvgCost
		}
		equity += p.Size * price
	}

	return &contracts.Balance{
		Cash:      cash,
		Equity:    equity,
		UpdatedAt: time.Now(),
	}, nil
}

// PlaceOrder implements contracts.Broker. Market orders fill
// immediately at the current price; a limit price, when set, is used
// as the fill price instead. Sells are clamped to the held size.
func (b *PaperBroker) PlaceOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.OrderResult, error) {
	if req.Size <= 0 {
		return nil, contracts.Errorf(contracts.KindComputationError, "paperbroker.PlaceOrder", "non-positive order size %f", req.Size)
	}

	price := req.LimitPrice
	if price == 0 {
		p, err := b.GetCurrentPrice(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
		price = p
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	size := req.Size
	pos, held := b.holdings[req.Symbol]

	switch req.Action {
	case contracts.ActionBuy:
		cost := size * price
		if cost > b.cash {
			b.logger.WithFields(map[string]interface{}{
				"symbol": req.Symbol,
				"cost":   cost,
				"cash":   b.cash,
			}).Warn("Order rejected, insufficient cash")
			metrics.OrdersSubmitted.WithLabelValues(string(contracts.OrderStatusRejected)).Inc()
			return &contracts.OrderResult{
				OrderID:     uuid.NewString(),
				Status:      contracts.OrderStatusRejected,
				SubmittedAt: time.Now(),
			}, nil
		}
		b.cash -= cost
		if held {
			total := pos.Size + size
			pos.AvgCost = (pos.AvgCost*pos.Size + price*size) / total
			pos.Size = total
		} else {
			pos = contracts.Position{Symbol: req.Symbol, Size: size, AvgCost: price, EntryTime: time.Now()}
		}
		b.holdings[req.Symbol] = pos

	case contracts.ActionSell:
		if !held || pos.Size <= 0 {
			metrics.OrdersSubmitted.WithLabelValues(string(contracts.OrderStatusRejected)).Inc()
			return &contracts.OrderResult{
				OrderID:     uuid.NewString(),
				Status:      contracts.OrderStatusRejected,
				SubmittedAt: time.Now(),
			}, nil
		}
		if size > pos.Size {
			size = pos.Size
		}
		b.cash += size * price
		pos.Size -= size
		if pos.Size == 0 {
			delete(b.holdings, req.Symbol)
		} else {
			b.holdings[req.Symbol] = pos
		}

	default:
		return nil, contracts.Errorf(contracts.KindComputationError, "paperbroker.PlaceOrder", "unknown action %q", req.Action)
	}

	result := &contracts.OrderResult{
		OrderID:     uuid.NewString(),
		Status:      contracts.OrderStatusFilled,
		FilledSize:  size,
		FilledPrice: price,
		SubmittedAt: time.Now(),
	}

	metrics.OrdersSubmitted.WithLabelValues(string(contracts.OrderStatusFilled)).Inc()
	b.logger.WithFields(map[string]interface{}{
		"symbol": req.Symbol,
		"action": string(req.Action),
		"size":   size,
		"price":  price,
	}).Info("Paper order filled")

	return result, nil
}

var _ contracts.Broker = (*PaperBroker)(nil)
