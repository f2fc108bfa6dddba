// Package feed streams last-trade prices over the venue websocket and
// serves them as the second price source for pre-submission verification.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultDemoURL = "wss://demo-api.kalshi.co/trade-api/ws/v2"

	defaultPingInterval   = 10 * time.Second
	defaultReconnectDelay = 2 * time.Second
	defaultFreshness      = 10 * time.Second
)

// tickerMessage is the wire shape of a price update.
type tickerMessage struct {
	Type string `json:"type"`
	Msg  struct {
		MarketTicker string `json:"market_ticker"`
		Price        int    `json:"price"`
	} `json:"msg"`
}

// subscribeCommand asks the venue to push ticker updates for a set of markets.
type subscribeCommand struct {
	ID     uint64 `json:"id"`
	Cmd    string `json:"cmd"`
	Params struct {
		Channels      []string `json:"channels"`
		MarketTickers []string `json:"market_tickers"`
	} `json:"params"`
}

type pricePoint struct {
	cents int
	at    time.Time
}

// Stream maintains a websocket connection to the venue ticker channel and
// keeps the last seen price per market. Implements ports.PriceSource.
//
// A price older than the freshness window is reported as not fresh rather
// than dropped: the verifier treats a stale feed the same as a missing one.
type Stream struct {
	url       string
	freshness time.Duration
	pingEvery time.Duration
	redial    time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	priceMu sync.RWMutex
	prices  map[string]pricePoint

	subMu   sync.Mutex
	markets map[string]struct{}
	nextID  uint64

	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool

	now func() time.Time
}

// NewStream creates a Stream for the given websocket URL. An empty URL
// falls back to the demo venue. The connection is established in the
// background; prices are simply not fresh until the first tick lands.
func NewStream(rawURL string, freshness time.Duration) (*Stream, error) {
	if rawURL == "" {
		rawURL = defaultDemoURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("feed.NewStream: parse url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, errors.New("feed.NewStream: url must use ws:// or wss://")
	}
	if freshness <= 0 {
		freshness = defaultFreshness
	}

	s := &Stream{
		url:       rawURL,
		freshness: freshness,
		pingEvery: defaultPingInterval,
		redial:    defaultReconnectDelay,
		prices:    make(map[string]pricePoint),
		markets:   make(map[string]struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}

	go s.run()
	go s.pingLoop()

	return s, nil
}

// Subscribe registers markets for ticker updates. Safe to call before the
// connection is up: the pending set is replayed on every (re)connect.
func (s *Stream) Subscribe(marketIDs ...string) error {
	s.subMu.Lock()
	fresh := make([]string, 0, len(marketIDs))
	for _, id := range marketIDs {
		if _, ok := s.markets[id]; !ok {
			s.markets[id] = struct{}{}
			fresh = append(fresh, id)
		}
	}
	s.subMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return s.sendSubscribe(fresh)
}

// LastPrice returns the last streamed price for a market in cents and
// whether it is still inside the freshness window.
func (s *Stream) LastPrice(marketID string) (int, bool) {
	s.priceMu.RLock()
	p, ok := s.prices[marketID]
	s.priceMu.RUnlock()
	if !ok {
		return 0, false
	}
	return p.cents, s.now().Sub(p.at) < s.freshness
}

// Close tears down the connection and stops the background loops.
func (s *Stream) Close() error {
	s.closing.Store(true)
	s.closeConn()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *Stream) run() {
	for {
		if s.closing.Load() {
			return
		}
		if err := s.connect(); err != nil {
			slog.Warn("price feed dial failed", "url", s.url, "error", err)
			s.sleep(s.redial)
			continue
		}
		s.resubscribe()

		if err := s.readLoop(); err != nil {
			if s.closing.Load() {
				return
			}
			slog.Warn("price feed disconnected, redialing", "error", err)
			s.sleep(s.redial)
		}
	}
}

func (s *Stream) connect() error {
	s.closeConn()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	slog.Debug("price feed connected", "url", s.url)
	return nil
}

func (s *Stream) readLoop() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("connection not established")
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick tickerMessage
		if err := json.Unmarshal(message, &tick); err != nil {
			continue
		}
		if tick.Type != "ticker" || tick.Msg.MarketTicker == "" {
			continue
		}
		if tick.Msg.Price < 1 || tick.Msg.Price > 99 {
			continue
		}

		s.priceMu.Lock()
		s.prices[tick.Msg.MarketTicker] = pricePoint{cents: tick.Msg.Price, at: s.now()}
		s.priceMu.Unlock()
	}
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Stream) resubscribe() {
	s.subMu.Lock()
	all := make([]string, 0, len(s.markets))
	for id := range s.markets {
		all = append(all, id)
	}
	s.subMu.Unlock()
	if len(all) == 0 {
		return
	}
	if err := s.sendSubscribe(all); err != nil {
		slog.Warn("price feed resubscribe failed", "error", err)
	}
}

func (s *Stream) sendSubscribe(marketIDs []string) error {
	cmd := subscribeCommand{
		ID:  atomic.AddUint64(&s.nextID, 1),
		Cmd: "subscribe",
	}
	cmd.Params.Channels = []string{"ticker"}
	cmd.Params.MarketTickers = marketIDs

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil // replayed by resubscribe once connected
	}
	return s.conn.WriteJSON(cmd)
}

func (s *Stream) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Stream) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-s.done:
	}
}
