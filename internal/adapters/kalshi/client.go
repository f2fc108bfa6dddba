package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/prognohq/alphabot/internal/domain"
)

const (
	defaultDemoBase = "https://demo-api.kalshi.co"
	apiPrefix       = "/trade-api/v2"

	maxReadRetries = 3
	baseRetryWait  = 500 * time.Millisecond
)

// Client is the Kalshi HTTP client. One token bucket is shared across every
// outbound call because the venue's rate ceiling is account-wide, not
// per-market.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient creates a Client for the given base URL. An empty base falls
// back to the demo venue; live is never a default.
func NewClient(base string, reqPerSec float64, burst int, timeout time.Duration) *Client {
	if base == "" {
		base = defaultDemoBase
	}
	if reqPerSec <= 0 {
		reqPerSec = 8
	}
	if burst <= 0 {
		burst = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(reqPerSec), burst),
	}
}

// Base returns the configured venue base URL, for the risk gate's
// origin check.
func (c *Client) Base() string { return c.base }

// get performs a rate-limited GET with retries. Only read paths retry:
// anything that moves money goes through doOnce.
func (c *Client) get(ctx context.Context, path string, out any) error {
	for attempt := 0; attempt <= maxReadRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+apiPrefix+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxReadRetries {
				return &domain.VenueError{Op: "GET " + path, Err: err}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxReadRetries {
				return &domain.VenueError{Op: "GET " + path, Status: resp.StatusCode, Body: "retries exhausted"}
			}
			slog.Warn("venue throttled or erroring, backing off",
				"path", path, "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &domain.VenueError{Op: "GET " + path, Status: resp.StatusCode, Body: string(body)}
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries on %s", maxReadRetries, path)
}

// doOnce performs a single rate-limited POST with no retry. Used for order
// submission: a duplicate retry against the venue would break the
// one-open-order-per-market invariant, so retry is the next cycle's call.
func (c *Client) doOnce(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+apiPrefix+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return err // caller maps to TimedOutError with market context
		}
		return &domain.VenueError{Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Warn("venue rejected request",
			"path", path, "status", resp.StatusCode,
			"request", string(b), "response", string(respBody))
		return &domain.VenueError{Op: "POST " + path, Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
