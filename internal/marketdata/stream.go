package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

const (
	pingInterval         = 30 * time.Second
	writeTimeout         = 10 * time.Second
	maxReconnectAttempts = 10
)

// QuoteStream maintains the websocket quote feed and pushes every
// quote into the attached cache. Reconnects re-subscribe the full
// symbol set.
type QuoteStream struct {
	url    string
	cache  *QuoteCache
	logger *logger.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	subs  map[string]bool
	subMu sync.RWMutex

	onQuote func(Quote)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewQuoteStream creates a stream against the given websocket URL.
func NewQuoteStream(url string, cache *QuoteCache, log *logger.Logger) *QuoteStream {
	return &QuoteStream{
		url:    url,
		cache:  cache,
		logger: log.WithField("component", "quote_stream"),
		subs:   make(map[string]bool),
		stopCh: make(chan struct{}),
	}
}

// OnQuote registers a callback invoked for every accepted quote.
// Must be set before Start.
func (s *QuoteStream) OnQuote(fn func(Quote)) {
	s.onQuote = fn
}

// Start connects and launches the read and ping loops.
func (s *QuoteStream) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	s.wg.Add(2)
	go s.readLoop(ctx)
	go s.pingLoop()

	s.logger.WithField("url", s.url).Info("Quote stream started")
	return nil
}

// Stop closes the connection and waits for the loops to exit.
func (s *QuoteStream) Stop() {
	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connected = false
	s.connMu.Unlock()

	s.wg.Wait()
	s.logger.Info("Quote stream stopped")
}

// Subscribe registers symbols and sends the subscription frame when
// connected.
func (s *QuoteStream) Subscribe(symbols ...string) error {
	s.subMu.Lock()
	for _, sym := range symbols {
		s.subs[sym] = true
	}
	s.subMu.Unlock()

	return s.sendSubscribe(symbols)
}

type subscribeFrame struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type quoteFrame struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume int64   `json:"v"`
	Time   int64   `json:"t"`
}

func (s *QuoteStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.connected = true
	s.connMu.Unlock()
	return nil
}

func (s *QuoteStream) sendSubscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if !s.connected || s.conn == nil {
		return nil // sent on next reconnect
	}

	frame, err := json.Marshal(subscribeFrame{Op: "subscribe", Symbols: symbols})
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *QuoteStream) readLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.logger.WithError(err).Warn("Quote stream read failed, reconnecting")
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		var frame quoteFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.WithError(err).Debug("Dropping malformed quote frame")
			continue
		}
		if frame.Symbol == "" {
			continue
		}

		quote := Quote{
			Symbol:    frame.Symbol,
			Price:     frame.Price,
			Volume:    frame.Volume,
			Timestamp: time.Unix(frame.Time, 0).UTC(),
		}
		if s.cache.Update(quote) && s.onQuote != nil {
			s.onQuote(quote)
		}
	}
}

// reconnect retries with exponential backoff, then replays the
// subscription set. Returns false when the attempts run out or the
// stream is stopping.
func (s *QuoteStream) reconnect(ctx context.Context) bool {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connected = false
	s.connMu.Unlock()

	b := &backoff.Backoff{
		Min:    1 * time.Second,
		Max:    30 * time.Second,
		Jitter: true,
	}

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-s.stopCh:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(b.Duration()):
		}

		if err := s.connect(ctx); err != nil {
			s.logger.WithError(err).Warnf("Reconnect attempt %d failed", attempt)
			continue
		}

		s.subMu.RLock()
		symbols := make([]string, 0, len(s.subs))
		for sym := range s.subs {
			symbols = append(symbols, sym)
		}
		s.subMu.RUnlock()

		if err := s.sendSubscribe(symbols); err != nil {
			s.logger.WithError(err).Warn("Resubscribe failed")
			continue
		}

		s.logger.WithField("symbols", len(symbols)).Info("Quote stream reconnected")
		return true
	}

	s.logger.Error("Quote stream gave up reconnecting")
	return false
}

func (s *QuoteStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.connected && s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.WithError(err).Debug("Ping failed")
				}
			}
			s.connMu.Unlock()
		}
	}
}
