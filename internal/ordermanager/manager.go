// Package ordermanager reconciles the strategy's desired quotes with the
// orders actually resting on the exchange: cancel-then-place per side,
// never a silent amend.
package ordermanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	"github.com/nikhilnd/kalshi-market-making/internal/ports"
	"github.com/nikhilnd/kalshi-market-making/internal/strategy"
)

// ErrFatal is returned once consecutive exchange failures pass the
// configured threshold; the session must abort.
var ErrFatal = errors.New("ordermanager: too many consecutive failures")

// Interrupt is an explicit cancellation token for one reconcile pass.
// The event loop trips it when newer market data arrives; the manager
// checks it between exchange calls and abandons the now-stale quote.
type Interrupt struct {
	fired atomic.Bool
}

// Trip marks the token. Safe from any goroutine.
func (i *Interrupt) Trip() { i.fired.Store(true) }

// Tripped reports whether the token has fired.
func (i *Interrupt) Tripped() bool { return i.fired.Load() }

type restingOrder struct {
	id    string
	price int
	count int
}

// Manager tracks our resting yes/no orders and drives the executor to
// match the latest quote. Safe for the two-goroutine split the trader
// runs: the quote loop reconciles while the event loop applies fills.
type Manager struct {
	mu          sync.Mutex
	exec        ports.OrderExecutor
	resting     [2]restingOrder // indexed by domain.Outcome
	failures    int
	maxFailures int
}

// New creates a manager. maxFailures bounds consecutive exchange errors
// before ErrFatal.
func New(exec ports.OrderExecutor, maxFailures int) *Manager {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &Manager{exec: exec, maxFailures: maxFailures}
}

// Resting returns the tracked resting order on one outcome side.
func (m *Manager) Resting(outcome domain.Outcome) (price, count int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.resting[outcome]
	return r.price, r.count, r.id != ""
}

// ApplyFill reconciles an exchange fill report against the tracked
// resting order.
func (m *Manager) ApplyFill(outcome domain.Outcome, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &m.resting[outcome]
	if r.id == "" {
		return
	}
	r.count -= count
	if r.count <= 0 {
		*r = restingOrder{}
	}
}

// Reconcile converts the quote into exchange orders: the bid side buys
// "yes" at the bid price, the ask side buys "no" at 100 minus the ask
// price. At most one cancel+place per side per call. The interrupt token
// is checked between exchange calls; a tripped token abandons the pass
// and pulls all orders so the next wake starts clean.
func (m *Manager) Reconcile(ctx context.Context, quote strategy.Quote, intr *Interrupt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sides := []struct {
		outcome domain.Outcome
		price   int
		count   int
	}{
		{domain.Yes, quote.BidPrice, quote.BidQty},
		{domain.No, domain.NoPrice(quote.AskPrice), quote.AskQty},
	}

	for _, s := range sides {
		if s.count <= 0 || !domain.ValidPrice(s.price) {
			continue
		}
		if r := m.resting[s.outcome]; r.id != "" && r.price == s.price && r.count == s.count {
			continue
		}

		if err := m.replaceSide(ctx, s.outcome, s.price, s.count, intr); err != nil {
			return err
		}
		if intr.Tripped() {
			slog.Info("ordermanager: new information received, abandoning quote")
			return m.pullAll(ctx)
		}
	}
	return nil
}

func (m *Manager) replaceSide(ctx context.Context, outcome domain.Outcome, price, count int, intr *Interrupt) error {
	r := &m.resting[outcome]

	if r.id != "" {
		if err := m.exec.CancelOrder(ctx, r.id); err != nil {
			return m.fail(ctx, fmt.Errorf("cancel %s order: %w", outcome, err))
		}
		*r = restingOrder{}
	}

	if intr.Tripped() {
		return nil
	}

	clientID := uuid.New().String()
	orderID, err := m.exec.PlaceLimitOrder(ctx, outcome, price, count, clientID)
	if err != nil {
		return m.fail(ctx, fmt.Errorf("place %s order: %w", outcome, err))
	}

	*r = restingOrder{id: orderID, price: price, count: count}
	m.failures = 0
	slog.Info("ordermanager: order placed",
		"side", outcome.String(), "price", price, "count", count, "order_id", orderID)
	return nil
}

// fail counts a consecutive exchange failure, pulls open orders so we
// never quote blind, and escalates past the threshold.
func (m *Manager) fail(ctx context.Context, cause error) error {
	m.failures++
	slog.Error("ordermanager: exchange call failed", "failures", m.failures, "err", cause)

	if err := m.pullAll(ctx); err != nil {
		slog.Error("ordermanager: cancel-all failed", "err", err)
	}

	if m.failures > m.maxFailures {
		return fmt.Errorf("%w: %d failures, last: %v", ErrFatal, m.failures, cause)
	}
	return nil
}

// Shutdown pulls every open order on the way out of a session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pullAll(ctx)
}

// pullAll cancels everything we have open and forgets the local state.
// Caller holds mu.
func (m *Manager) pullAll(ctx context.Context) error {
	m.resting[domain.Yes] = restingOrder{}
	m.resting[domain.No] = restingOrder{}
	if err := m.exec.CancelAll(ctx); err != nil {
		return fmt.Errorf("ordermanager.pullAll: %w", err)
	}
	return nil
}
