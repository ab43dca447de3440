package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

const (
	defaultWSBase = "wss://trading-api.kalshi.com/trade-api/ws/v2"

	readTimeout      = 15 * time.Second
	reconnectWait    = time.Second
	maxConnFailures  = 5
	eventsBufferSize = 256
)

// Feed streams the Kalshi orderbook_delta and fill channels for one
// market as domain events. Implements ports.EventFeed.
//
// Sequence numbers are checked on every book message; a gap surfaces as
// a Resync event and a fresh subscribe, so the engine discards depth and
// rebuilds from the next snapshot. Reconnects use a bounded retry with a
// consecutive-failure counter; past the threshold the feed shuts down
// and Next returns the error.
type Feed struct {
	url    string
	token  string
	ticker string
	dialer *websocket.Dialer

	events chan domain.MarketEvent
	err    error // set before events is closed

	cancel context.CancelFunc
}

// NewFeed creates a feed for one market ticker. token is the bearer
// token from Client.Login.
func NewFeed(url, token, ticker string) *Feed {
	if url == "" {
		url = defaultWSBase
	}
	return &Feed{
		url:    url,
		token:  token,
		ticker: ticker,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		events: make(chan domain.MarketEvent, eventsBufferSize),
	}
}

// Start launches the connection loop. Call once.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	go f.run(ctx)
}

// Next blocks for the next event. Returns the terminal feed error once
// the connection loop has given up.
func (f *Feed) Next(ctx context.Context) (domain.MarketEvent, error) {
	select {
	case <-ctx.Done():
		return domain.MarketEvent{}, ctx.Err()
	case ev, ok := <-f.events:
		if !ok {
			return domain.MarketEvent{}, f.err
		}
		return ev, nil
	}
}

// Close stops the connection loop.
func (f *Feed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	return nil
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.events)

	failures := 0
	for {
		if ctx.Err() != nil {
			f.err = ctx.Err()
			return
		}

		conn, err := f.connect(ctx)
		if err != nil {
			failures++
			slog.Warn("kalshi ws: connect failed", "attempt", failures, "err", err)
			if failures > maxConnFailures {
				f.err = fmt.Errorf("kalshi ws: giving up after %d consecutive failures: %w", failures, err)
				return
			}
			f.backoff(ctx, failures)
			continue
		}
		failures = 0

		err = f.consume(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			f.err = ctx.Err()
			return
		}

		// Dropped connection or sequence gap: the book can no longer be
		// trusted. Tell the engine, then resubscribe for a snapshot.
		slog.Warn("kalshi ws: stream interrupted, resyncing", "err", err)
		if !f.deliver(ctx, domain.MarketEvent{Time: time.Now().UTC(), Resync: &domain.ResyncEvent{}}) {
			f.err = ctx.Err()
			return
		}
	}
}

// connect dials and subscribes to the book and fill channels.
func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token)

	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	sub := wsCommand{
		ID:  1,
		Cmd: "subscribe",
		Params: wsParams{
			Channels:     []string{"orderbook_delta", "fill"},
			MarketTicker: f.ticker,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	slog.Info("kalshi ws: subscribed", "ticker", f.ticker)
	return conn, nil
}

// consume reads frames until the connection drops or the book sequence
// breaks.
func (f *Feed) consume(ctx context.Context, conn *websocket.Conn) error {
	lastSeq := int64(-1)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("kalshi ws: skipping unparseable frame", "err", err)
			continue
		}

		if env.Type == "orderbook_snapshot" || env.Type == "orderbook_delta" {
			if lastSeq >= 0 && env.Seq != lastSeq+1 {
				return fmt.Errorf("sequence gap: have %d, got %d", lastSeq, env.Seq)
			}
			lastSeq = env.Seq
		}

		ev, ok, err := decodeFrame(env)
		if err != nil {
			slog.Warn("kalshi ws: skipping malformed message", "type", env.Type, "err", err)
			continue
		}
		if !ok {
			continue
		}
		if !f.deliver(ctx, ev) {
			return ctx.Err()
		}
	}
}

func (f *Feed) deliver(ctx context.Context, ev domain.MarketEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case f.events <- ev:
		return true
	}
}

func (f *Feed) backoff(ctx context.Context, failures int) {
	wait := reconnectWait * time.Duration(failures)
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// decodeFrame converts one wire frame into a domain event. ok == false
// for frames that carry nothing for the engine (acks, pings).
func decodeFrame(env wsEnvelope) (domain.MarketEvent, bool, error) {
	now := time.Now().UTC()

	switch env.Type {
	case "orderbook_snapshot":
		var msg wsSnapshot
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			return domain.MarketEvent{}, false, err
		}
		return domain.MarketEvent{Time: now, Snapshot: snapshotEvent(msg)}, true, nil

	case "orderbook_delta":
		var msg wsDelta
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			return domain.MarketEvent{}, false, err
		}
		delta, err := deltaEvent(msg)
		if err != nil {
			return domain.MarketEvent{}, false, err
		}
		return domain.MarketEvent{Time: now, Delta: delta}, true, nil

	case "fill":
		var msg wsFill
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			return domain.MarketEvent{}, false, err
		}
		fill, err := fillEvent(msg)
		if err != nil {
			return domain.MarketEvent{}, false, err
		}
		return domain.MarketEvent{Time: now, Fill: fill}, true, nil

	default:
		return domain.MarketEvent{}, false, nil
	}
}

// snapshotEvent maps wire depth to book levels: "yes" depth is the bid
// side at its own price, "no" depth at price p is the ask side at 100-p.
func snapshotEvent(msg wsSnapshot) *domain.SnapshotEvent {
	snap := &domain.SnapshotEvent{}
	for _, lvl := range msg.Yes {
		if !domain.ValidPrice(lvl[0]) || lvl[1] <= 0 {
			continue
		}
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: lvl[0], Qty: lvl[1]})
	}
	for _, lvl := range msg.No {
		price := domain.NoPrice(lvl[0])
		if !domain.ValidPrice(price) || lvl[1] <= 0 {
			continue
		}
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: price, Qty: lvl[1]})
	}
	return snap
}

func deltaEvent(msg wsDelta) (*domain.DeltaEvent, error) {
	if msg.Delta == 0 {
		return nil, fmt.Errorf("zero delta")
	}

	ev := &domain.DeltaEvent{}
	switch msg.Side {
	case "yes":
		ev.Side = domain.Bid
		ev.Price = msg.Price
	case "no":
		ev.Side = domain.Ask
		ev.Price = domain.NoPrice(msg.Price)
	default:
		return nil, fmt.Errorf("unknown side %q", msg.Side)
	}
	if !domain.ValidPrice(ev.Price) {
		return nil, fmt.Errorf("price %d out of range", ev.Price)
	}

	if msg.Delta > 0 {
		ev.Op = domain.Insert
		ev.Qty = msg.Delta
	} else {
		ev.Op = domain.Cancel
		ev.Qty = -msg.Delta
	}
	return ev, nil
}

func fillEvent(msg wsFill) (*domain.FillEvent, error) {
	if msg.Count <= 0 {
		return nil, fmt.Errorf("non-positive count %d", msg.Count)
	}
	ev := &domain.FillEvent{Count: msg.Count}
	switch msg.Side {
	case "yes":
		ev.Outcome = domain.Yes
		ev.Price = msg.YesPrice
	case "no":
		ev.Outcome = domain.No
		ev.Price = msg.NoPrice
	default:
		return nil, fmt.Errorf("unknown side %q", msg.Side)
	}
	if !domain.ValidPrice(ev.Price) {
		return nil, fmt.Errorf("price %d out of range", ev.Price)
	}
	return ev, nil
}
