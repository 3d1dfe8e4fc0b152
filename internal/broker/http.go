package broker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/jpillora/backoff"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/httputil"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
	"github.com/a772616239/AutoTrader-sub001/pkg/metrics"
)

// HTTPBroker talks to the brokerage gateway's REST API. Orders retry
// with exponential backoff; after the attempts run out the caller
// gets a nil result and a connection failure, and is expected to
// skip the symbol for the cycle.
type HTTPBroker struct {
	client    *httputil.Client
	logger    *logger.Logger
	baseURL   string
	accountNo string
	retries   int
}

// NewHTTPBroker builds the gateway client from the broker config.
func NewHTTPBroker(cfg config.BrokerConfig, client *httputil.Client, log *logger.Logger) *HTTPBroker {
	return &HTTPBroker{
		client:    client,
		logger:    log.WithField("component", "http_broker"),
		baseURL:   cfg.BaseURL,
		accountNo: cfg.AccountNo,
		retries:   cfg.MaxRetries,
	}
}

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type positionsResponse struct {
	Positions []positionPayload `json:"positions"`
}

type positionPayload struct {
	Symbol    string  `json:"symbol"`
	Size      float64 `json:"size"`
	AvgCost   float64 `json:"avg_cost"`
	EntryTime int64   `json:"entry_time"`
}

type balanceResponse struct {
	Cash   float64 `json:"cash"`
	Equity float64 `json:"equity"`
}

type orderPayload struct {
	AccountNo  string  `json:"account_no"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Size       float64 `json:"size"`
	Type       string  `json:"type"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

type orderResponse struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	FilledSize  float64 `json:"filled_size"`
	FilledPrice float64 `json:"filled_price"`
}

// GetCurrentPrice implements contracts.Broker.
func (b *HTTPBroker) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var payload quoteResponse
	url := fmt.Sprintf("%s/v1/quotes/%s", b.baseURL, symbol)
	if err := b.getJSON(ctx, url, &payload); err != nil {
		return 0, contracts.E(contracts.KindConnectionFailure, "httpbroker.GetCurrentPrice", err)
	}
	if payload.Price <= 0 {
		return 0, contracts.Errorf(contracts.KindDataUnavailable, "httpbroker.GetCurrentPrice", "no price for %s", symbol)
	}
	return payload.Price, nil
}

// GetHoldings implements contracts.Broker.
func (b *HTTPBroker) GetHoldings(ctx context.Context) ([]contracts.Position, error) {
	var payload positionsResponse
	url := fmt.Sprintf("%s/v1/accounts/%s/positions", b.baseURL, b.accountNo)
	if err := b.getJSON(ctx, url, &payload); err != nil {
		return nil, contracts.E(contracts.KindConnectionFailure, "httpbroker.GetHoldings", err)
	}

	out := make([]contracts.Position, 0, len(payload.Positions))
	for _, p := range payload.Positions {
		out = append(out, contracts.Position{
			Symbol:    p.Symbol,
			Size:      p.Size,
			AvgCost:   p.AvgCost,
			EntryTime: time.Unix(p.EntryTime, 0).UTC(),
		})
	}
	return out, nil
}

// GetBalance implements contracts.Broker.
func (b *HTTPBroker) GetBalance(ctx context.Context) (*contracts.Balance, error) {
	var payload balanceResponse
	url := fmt.Sprintf("%s/v1/accounts/%s/balance", b.baseURL, b.accountNo)
	if err := b.getJSON(ctx, url, &payload); err != nil {
		return nil, contracts.E(contracts.KindConnectionFailure, "httpbroker.GetBalance", err)
	}
	return &contracts.Balance{
		Cash:      payload.Cash,
		Equity:    payload.Equity,
		UpdatedAt: time.Now(),
	}, nil
}

// PlaceOrder implements contracts.Broker. Submission retries with
// exponential backoff; a nil result after exhaustion signals the
// caller to skip the symbol this cycle.
func (b *HTTPBroker) PlaceOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.OrderResult, error) {
	payload := orderPayload{
		AccountNo:  b.accountNo,
		Symbol:     req.Symbol,
		Action:     string(req.Action),
		Size:       req.Size,
		Type:       string(req.Type),
		LimitPrice: req.LimitPrice,
	}

	bo := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Jitter: true,
	}

	var lastErr error
	attempts := b.retries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		var resp orderResponse
		err := b.postJSON(ctx, b.baseURL+"/v1/orders", payload, &resp)
		if err == nil {
			status := contracts.OrderStatus(resp.Status)
			metrics.OrdersSubmitted.WithLabelValues(resp.Status).Inc()
			return &contracts.OrderResult{
				OrderID:     resp.OrderID,
				Status:      status,
				FilledSize:  resp.FilledSize,
				FilledPrice: resp.FilledPrice,
				SubmittedAt: time.Now(),
			}, nil
		}

		lastErr = err
		b.logger.WithError(err).Warnf("Order submission attempt %d/%d failed", attempt, attempts)

		select {
		case <-ctx.Done():
			return nil, contracts.E(contracts.KindConnectionFailure, "httpbroker.PlaceOrder", ctx.Err())
		case <-time.After(bo.Duration()):
		}
	}

	metrics.OrdersSubmitted.WithLabelValues("error").Inc()
	return nil, contracts.E(contracts.KindConnectionFailure, "httpbroker.PlaceOrder", lastErr)
}

func (b *HTTPBroker) getJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := b.client.Get(ctx, url)
	if err != nil {
		return err
	}
	return decodeResponse(resp, dest)
}

func (b *HTTPBroker) postJSON(ctx context.Context, url string, payload, dest interface{}) error {
	resp, err := b.client.PostJSON(ctx, url, payload)
	if err != nil {
		return err
	}
	return decodeResponse(resp, dest)
}

func decodeResponse(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway error status %d: %s", resp.StatusCode, string(body))
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

var _ contracts.Broker = (*HTTPBroker)(nil)
