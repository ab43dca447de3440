// Package trader runs the live session: it merges the exchange feed and
// the reference price stream into the engine, and drives the quoter and
// order manager on every wake signal.
package trader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	"github.com/nikhilnd/kalshi-market-making/internal/engine"
	"github.com/nikhilnd/kalshi-market-making/internal/ordermanager"
	"github.com/nikhilnd/kalshi-market-making/internal/ports"
	"github.com/nikhilnd/kalshi-market-making/internal/strategy"
)

// Trader wires one market session together. Two goroutines share the
// state: the event loop applies market events, the quote loop reacts to
// engine wakes. mu serializes engine access between them; the order
// manager carries its own lock so exchange calls never hold mu.
type Trader struct {
	mu     sync.Mutex
	eng    *engine.Engine
	quoter *strategy.Quoter
	om     *ordermanager.Manager

	feed ports.EventFeed
	refs <-chan domain.MarketEvent

	// intr is the cancellation token for the in-flight reconcile pass.
	// Guarded by mu; the event loop trips it, the quote loop replaces it.
	intr *ordermanager.Interrupt
}

// New creates a trader for one market session.
func New(eng *engine.Engine, quoter *strategy.Quoter, om *ordermanager.Manager,
	feed ports.EventFeed, refs <-chan domain.MarketEvent) *Trader {
	return &Trader{eng: eng, quoter: quoter, om: om, feed: feed, refs: refs}
}

// Run blocks until the context ends, the feed dies, or the order manager
// escalates a fatal error. Open orders are pulled on the way out.
func (t *Trader) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- t.eventLoop(ctx) }()
	go func() { errCh <- t.quoteLoop(ctx) }()

	err := <-errCh
	cancel()
	<-errCh

	// Never leave orders resting after the session ends.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if perr := t.om.Shutdown(shutdownCtx); perr != nil {
		slog.Error("trader: failed to pull orders on shutdown", "err", perr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// eventLoop merges the exchange feed and the reference stream into the
// engine in arrival order.
func (t *Trader) eventLoop(ctx context.Context) error {
	feedEvents := make(chan domain.MarketEvent)
	feedErr := make(chan error, 1)
	go func() {
		for {
			ev, err := t.feed.Next(ctx)
			if err != nil {
				feedErr <- err
				return
			}
			select {
			case <-ctx.Done():
				return
			case feedEvents <- ev:
			}
		}
	}()

	refs := t.refs
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-feedErr:
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case ev := <-feedEvents:
			t.apply(ev)
		case ev, ok := <-refs:
			if !ok {
				refs = nil
				continue
			}
			t.apply(ev)
		}
	}
}

func (t *Trader) apply(ev domain.MarketEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Any applied event makes the in-flight quote stale.
	if t.intr != nil {
		t.intr.Trip()
	}
	if err := t.eng.Apply(ev); err != nil {
		slog.Warn("trader: event rejected", "kind", ev.Kind(), "err", err)
		return
	}
	if ev.Fill != nil {
		t.om.ApplyFill(ev.Fill.Outcome, ev.Fill.Count)
		slog.Info("trader: fill applied",
			"side", ev.Fill.Outcome.String(), "count", ev.Fill.Count,
			"price", ev.Fill.Price, "position", t.eng.Position())
	}
}

// quoteLoop re-quotes on every engine wake. One reconcile pass at a
// time; a wake arriving mid-pass trips its token and coalesces into the
// next iteration.
func (t *Trader) quoteLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.eng.Wake():
			if err := t.requote(ctx); err != nil {
				return err
			}
		}
	}
}

func (t *Trader) requote(ctx context.Context) error {
	t.mu.Lock()
	view, ok := t.view()
	contract := t.eng.Contract()
	intr := &ordermanager.Interrupt{}
	t.intr = intr
	t.mu.Unlock()

	if !ok {
		return nil
	}

	quote, ok := t.quoter.Quote(time.Now(), contract.Lower, contract.Upper, view, true)
	if !ok {
		return nil
	}

	err := t.om.Reconcile(ctx, quote, intr)
	if errors.Is(err, ordermanager.ErrFatal) {
		return err
	}
	if err != nil {
		slog.Warn("trader: reconcile failed, will retry on next wake", "err", err)
	}
	return nil
}

// view snapshots the engine state. Caller holds mu.
func (t *Trader) view() (strategy.MarketView, bool) {
	ref, haveRef := t.eng.ReferencePrice()
	if !haveRef {
		return strategy.MarketView{}, false
	}
	bid, haveBid := t.eng.BestBid()
	ask, haveAsk := t.eng.BestAsk()
	return strategy.MarketView{
		Ref:      ref,
		BestBid:  bid,
		BestAsk:  ask,
		HasBook:  haveBid && haveAsk,
		Position: t.eng.Position(),
	}, true
}
