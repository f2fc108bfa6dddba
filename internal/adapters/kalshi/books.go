package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prognohq/alphabot/internal/domain"
)

// BookReader implements ports.BookProvider with a short-lived cache. Books
// go stale in seconds, but within one cycle the same book may be wanted by
// the pricer and the verifier; the cache keeps that to one request.
type BookReader struct {
	client *Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cachedBook
}

type cachedBook struct {
	book      domain.OrderBook
	fetchedAt time.Time
}

// NewBookReader wraps a Client with a TTL cache.
func NewBookReader(client *Client, ttl time.Duration) *BookReader {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &BookReader{client: client, ttl: ttl, cache: make(map[string]cachedBook)}
}

// FetchOrderBook returns the current book for a market.
func (r *BookReader) FetchOrderBook(ctx context.Context, marketID string) (domain.OrderBook, error) {
	r.mu.Lock()
	if entry, ok := r.cache[marketID]; ok && time.Since(entry.fetchedAt) < r.ttl {
		r.mu.Unlock()
		return entry.book, nil
	}
	r.mu.Unlock()

	var resp orderBookResponse
	path := fmt.Sprintf("/markets/%s/orderbook", marketID)
	if err := r.client.get(ctx, path, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("kalshi.FetchOrderBook %s: %w", marketID, err)
	}

	book := mapOrderBook(marketID, resp)
	r.mu.Lock()
	r.cache[marketID] = cachedBook{book: book, fetchedAt: time.Now()}
	r.mu.Unlock()

	slog.Debug("order book fetched",
		"market", marketID,
		"yes_bid", book.Yes.BestBid(), "yes_ask", book.Yes.BestAsk())
	return book, nil
}
