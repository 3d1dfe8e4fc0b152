package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quoteServer upgrades the connection, waits for a subscribe frame,
// and replies with one quote per subscribed symbol.
func quoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var frame subscribeFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Op != "subscribe" {
				continue
			}
			for _, sym := range frame.Symbols {
				payload, _ := json.Marshal(quoteFrame{
					Symbol: sym,
					Price:  123.45,
					Volume: 1000,
					Time:   time.Now().Unix(),
				})
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	}))
}

func TestQuoteStreamDeliversQuotes(t *testing.T) {
	server := quoteServer(t)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	cache := NewQuoteCache(time.Minute)
	stream := NewQuoteStream(wsURL, cache, testLogger())

	received := make(chan Quote, 1)
	stream.OnQuote(func(q Quote) {
		select {
		case received <- q:
		default:
		}
	})

	require.NoError(t, stream.Start(context.Background()))
	defer stream.Stop()

	require.NoError(t, stream.Subscribe("AAPL"))

	select {
	case q := <-received:
		assert.Equal(t, "AAPL", q.Symbol)
		assert.Equal(t, 123.45, q.Price)
	case <-time.After(5 * time.Second):
		t.Fatal("no quote received")
	}

	cached, ok := cache.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 123.45, cached.Price)
}
