// Package reference polls the brokerage quote API for the underlying
// index price and feeds it into the event stream.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// Config for the quote poller. Credentials come from the environment via
// the config package.
type Config struct {
	BaseURL      string
	Symbol       string // e.g. "$SPX.X"
	Interval     time.Duration
	RefreshToken string
	ConsumerKey  string
}

// Poller fetches the index quote on an interval and emits ReferencePrice
// events.
type Poller struct {
	cfg    Config
	http   *http.Client
	token  string
	events chan domain.MarketEvent
}

// New creates a poller; Start begins polling.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Poller{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		events: make(chan domain.MarketEvent, 16),
	}
}

// Events is the stream of reference price updates.
func (p *Poller) Events() <-chan domain.MarketEvent { return p.events }

// Start launches the polling loop; the channel closes when ctx ends.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.events)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	price, err := p.fetch(ctx)
	if err != nil {
		// Quote failures are transient: drop the tick, keep the token
		// refresh path warm, try again next interval.
		slog.Warn("reference: quote fetch failed", "err", err)
		p.token = ""
		return
	}

	ev := domain.MarketEvent{Time: time.Now().UTC(), Reference: &domain.ReferenceEvent{Price: price}}
	select {
	case <-ctx.Done():
	case p.events <- ev:
	}
}

func (p *Poller) fetch(ctx context.Context) (float64, error) {
	if p.token == "" {
		if err := p.refreshAccessToken(ctx); err != nil {
			return 0, err
		}
	}

	u := fmt.Sprintf("%s/marketdata/quotes?symbol=%s", strings.TrimRight(p.cfg.BaseURL, "/"), url.QueryEscape(p.cfg.Symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("reference.fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reference.fetch: status %d", resp.StatusCode)
	}

	var quotes map[string]struct {
		LastPrice float64 `json:"lastPrice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return 0, fmt.Errorf("reference.fetch: decode: %w", err)
	}

	quote, ok := quotes[p.cfg.Symbol]
	if !ok || quote.LastPrice <= 0 {
		return 0, fmt.Errorf("reference.fetch: no quote for %s", p.cfg.Symbol)
	}
	return quote.LastPrice, nil
}

func (p *Poller) refreshAccessToken(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {p.cfg.RefreshToken},
		"client_id":     {p.cfg.ConsumerKey + "@AMER.OAUTHAP"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("reference.refreshAccessToken: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reference.refreshAccessToken: read: %w", err)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		return fmt.Errorf("reference.refreshAccessToken: no access token (status %d)", resp.StatusCode)
	}

	p.token = out.AccessToken
	slog.Info("reference: access token refreshed")
	return nil
}
