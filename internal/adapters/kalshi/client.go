package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

const (
	defaultAPIBase = "https://trading-api.kalshi.com/trade-api/v2"

	// Kalshi allows 10 requests/s on the portfolio endpoints; stay
	// under it with headroom for the cancel+place pairs.
	ordersRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the Kalshi HTTP client: login, order placement, cancels.
// Implements ports.OrderExecutor for one market ticker.
type Client struct {
	http    *http.Client
	base    string
	ticker  string
	token   string
	limiter *rate.Limiter
}

// NewClient creates a client for one market. Call Login before trading.
func NewClient(base, ticker string) *Client {
	if base == "" {
		base = defaultAPIBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		ticker:  ticker,
		limiter: rate.NewLimiter(ordersRatePerSec, 10),
	}
}

// Ticker returns the market this client trades.
func (c *Client) Ticker() string { return c.ticker }

// Token returns the bearer token obtained by Login, for the websocket
// handshake.
func (c *Client) Token() string { return c.token }

// Login obtains a bearer token. Safe to call again to refresh.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var res loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &res); err != nil {
		return fmt.Errorf("kalshi.Login: %w", err)
	}
	if res.Token == "" {
		return fmt.Errorf("kalshi.Login: no token in response")
	}
	c.token = res.Token
	slog.Info("kalshi: logged in", "member", res.MemberID)
	return nil
}

// PlaceLimitOrder submits a buy limit order on the given outcome side.
func (c *Client) PlaceLimitOrder(ctx context.Context, outcome domain.Outcome, price, count int, clientID string) (string, error) {
	if !domain.ValidPrice(price) {
		return "", fmt.Errorf("kalshi.PlaceLimitOrder: price %d out of range", price)
	}

	req := orderRequest{
		Action:        "buy",
		Ticker:        c.ticker,
		Count:         count,
		ClientOrderID: clientID,
		Type:          "limit",
	}
	if outcome == domain.Yes {
		req.Side = "yes"
		req.YesPrice = &price
	} else {
		req.Side = "no"
		req.NoPrice = &price
	}

	var res orderResponse
	if err := c.do(ctx, http.MethodPost, "/portfolio/orders", req, &res); err != nil {
		return "", fmt.Errorf("kalshi.PlaceLimitOrder: %w", err)
	}
	if res.Error != nil {
		return "", fmt.Errorf("kalshi.PlaceLimitOrder: %s: %s", res.Error.Code, res.Error.Message)
	}
	return res.Order.OrderID, nil
}

// CancelOrder cancels one resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil); err != nil {
		return fmt.Errorf("kalshi.CancelOrder: %w", err)
	}
	return nil
}

// CancelAll cancels every open order on our market.
func (c *Client) CancelAll(ctx context.Context) error {
	var res ordersResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/orders?ticker="+c.ticker, nil, &res); err != nil {
		return fmt.Errorf("kalshi.CancelAll: list orders: %w", err)
	}
	for _, o := range res.Orders {
		if err := c.CancelOrder(ctx, o.OrderID); err != nil {
			return fmt.Errorf("kalshi.CancelAll: %w", err)
		}
	}
	return nil
}

// do runs one rate-limited request with bounded retries and exponential
// backoff plus jitter.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("kalshi: retrying request", "status", resp.StatusCode, "attempt", attempt+1, "path", path)
			c.sleep(ctx, attempt)
			continue
		}

		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))
		}
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(float64(baseRetryWait) * math.Pow(2, float64(attempt)))
	wait += time.Duration(rand.Int63n(int64(baseRetryWait)))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
