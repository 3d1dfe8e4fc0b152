package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/httputil"
)

func newTestHTTPBroker(baseURL string, retries int) *HTTPBroker {
	cfg := config.BrokerConfig{
		Mode:       "http",
		BaseURL:    baseURL,
		AccountNo:  "12345678",
		MaxRetries: retries,
	}
	appCfg := &config.Config{Env: "development", LogLevel: "error", LogFormat: "json"}
	client := httputil.NewWithTimeout(appCfg, testLogger(), 5*time.Second).DisableRetry()
	return NewHTTPBroker(cfg, client, testLogger())
}

func TestHTTPBrokerGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/12345678/balance", r.URL.Path)
		fmt.Fprint(w, `{"cash":25000,"equity":104000}`)
	}))
	defer server.Close()

	b := newTestHTTPBroker(server.URL, 1)
	balance, err := b.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25000.0, balance.Cash)
	assert.Equal(t, 104000.0, balance.Equity)
}

func TestHTTPBrokerGetHoldings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"positions":[{"symbol":"AAPL","size":100,"avg_cost":180.5,"entry_time":1700000000}]}`)
	}))
	defer server.Close()

	b := newTestHTTPBroker(server.URL, 1)
	holdings, err := b.GetHoldings(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, 180.5, holdings[0].AvgCost)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), holdings[0].EntryTime)
}

func TestHTTPBrokerPlaceOrderRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"order_id":"ord-1","status":"FILLED","filled_size":10,"filled_price":99.5}`)
	}))
	defer server.Close()

	b := newTestHTTPBroker(server.URL, 5)
	result, err := b.PlaceOrder(context.Background(), contracts.OrderRequest{
		Symbol: "AAPL",
		Action: contracts.ActionBuy,
		Size:   10,
		Type:   contracts.OrderTypeMarket,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, contracts.OrderStatusFilled, result.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPBrokerPlaceOrderExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	b := newTestHTTPBroker(server.URL, 2)
	result, err := b.PlaceOrder(context.Background(), contracts.OrderRequest{
		Symbol: "AAPL",
		Action: contracts.ActionBuy,
		Size:   10,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, contracts.IsKind(err, contracts.KindConnectionFailure))
}

func TestHTTPBrokerGetCurrentPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes/AAPL", r.URL.Path)
		fmt.Fprint(w, `{"symbol":"AAPL","price":189.3}`)
	}))
	defer server.Close()

	b := newTestHTTPBroker(server.URL, 1)
	price, err := b.GetCurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 189.3, price)
}
