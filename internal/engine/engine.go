// Package engine is the single-threaded core of the market maker: it owns
// the order book, the ledger, and the contract, applies the ordered event
// stream one event at a time, and exposes the snapshot reads and order
// intents the strategy works with.
//
// Nothing here blocks or performs I/O. The caller serializes event
// delivery; reads never mutate, so the strategy may query mid-sequence
// without any transaction boundary.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/nikhilnd/kalshi-market-making/internal/book"
	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	"github.com/nikhilnd/kalshi-market-making/internal/ledger"
)

// Engine applies market events to the book and ledger for one market.
type Engine struct {
	book     *book.Book
	ledger   *ledger.Ledger
	contract domain.RangeContract

	refPrice float64 // last underlying reference price, < 0 until seen

	// wake pulses after every state-mutating event. Buffered size 1 and
	// sent non-blocking: coalescing wakeups is fine, losing state is not.
	wake chan struct{}
}

// New creates an engine for one range contract.
func New(contract domain.RangeContract) *Engine {
	led := ledger.New()
	return &Engine{
		book:     book.New(led),
		ledger:   led,
		contract: contract,
		refPrice: -1,
		wake:     make(chan struct{}, 1),
	}
}

// Wake returns the new-information signal. One receive may cover several
// applied events.
func (e *Engine) Wake() <-chan struct{} { return e.wake }

// Apply processes one market event as an atomic transition. Malformed
// events are skipped with a log line; feed corruption must never take the
// session down.
func (e *Engine) Apply(ev domain.MarketEvent) error {
	switch {
	case ev.Snapshot != nil:
		e.book.ApplySnapshot(ev.Snapshot.Bids, ev.Snapshot.Asks)

	case ev.Delta != nil:
		if err := e.applyDelta(ev.Delta); err != nil {
			return err
		}

	case ev.Fill != nil:
		// Authoritative exchange fill: bypasses the matching walk, the
		// exchange already arbitrated it.
		if ev.Fill.Count <= 0 || !domain.ValidPrice(ev.Fill.Price) {
			return fmt.Errorf("engine.Apply: invalid fill count=%d price=%d", ev.Fill.Count, ev.Fill.Price)
		}
		e.ledger.Fill(ev.Fill.Outcome, ev.Fill.Count, ev.Fill.Price)

	case ev.Reference != nil:
		e.refPrice = ev.Reference.Price

	case ev.Resync != nil:
		slog.Warn("engine: resync requested, discarding book state")
		e.book.MarkStale()

	default:
		return fmt.Errorf("engine.Apply: empty event")
	}

	e.pulse()
	return nil
}

func (e *Engine) applyDelta(d *domain.DeltaEvent) error {
	if e.book.State() == book.StateStale {
		slog.Warn("engine: dropping delta while stale, awaiting snapshot",
			"op", d.Op.String(), "side", d.Side.String(), "price", d.Price)
		return nil
	}
	if !domain.ValidPrice(d.Price) {
		return fmt.Errorf("engine.applyDelta: price %d out of range", d.Price)
	}
	if d.Qty <= 0 {
		return fmt.Errorf("engine.applyDelta: non-positive qty %d", d.Qty)
	}

	if d.Op == domain.Insert {
		e.book.ApplyInsert(d.Side, d.Price, d.Qty, d.Bot)
	} else {
		e.book.ApplyCancel(d.Side, d.Price, d.Qty)
	}
	return nil
}

// Replace swaps our resting order on side for a fresh quote. qty == 0
// cancels without re-inserting. The insert may be marketable and fill
// immediately against the simulated book.
func (e *Engine) Replace(side domain.Side, price, qty int) error {
	if qty < 0 {
		return fmt.Errorf("engine.Replace: negative qty %d", qty)
	}
	if qty > 0 && !domain.ValidPrice(price) {
		return fmt.Errorf("engine.Replace: price %d out of range", price)
	}
	e.book.Replace(side, price, qty)
	e.pulse()
	return nil
}

// Cancel pulls our resting order on side, if any.
func (e *Engine) Cancel(side domain.Side) {
	e.book.CancelOwn(side)
	e.pulse()
}

// BestBid returns the highest bid, ok == false when the side is empty.
func (e *Engine) BestBid() (int, bool) { return e.book.BestBid() }

// BestAsk returns the lowest ask, ok == false when the side is empty.
func (e *Engine) BestAsk() (int, bool) { return e.book.BestAsk() }

// Depth returns the aggregate quantity at price on side.
func (e *Engine) Depth(side domain.Side, price int) int {
	return e.book.Depth(side, price)
}

// Self returns our resting order on side.
func (e *Engine) Self(side domain.Side) book.SelfOrder {
	return e.book.Self(side)
}

// Position returns the signed net contract count.
func (e *Engine) Position() int { return e.ledger.Position() }

// Basis returns the accumulated cost basis on one outcome side.
func (e *Engine) Basis(outcome domain.Outcome) ledger.CostBasis {
	return e.ledger.Basis(outcome)
}

// ReferencePrice returns the last underlying price, ok == false before
// the first update.
func (e *Engine) ReferencePrice() (float64, bool) {
	if e.refPrice < 0 {
		return 0, false
	}
	return e.refPrice, true
}

// Contract returns the range contract this engine trades.
func (e *Engine) Contract() domain.RangeContract { return e.contract }

// UnrealizedPnL marks the ledger against the current reference price:
// the YES-regime formula while the price sits inside the range, the
// NO-regime formula outside it. ok == false before the first reference
// update.
func (e *Engine) UnrealizedPnL() (float64, bool) {
	ref, ok := e.ReferencePrice()
	if !ok {
		return 0, false
	}
	return e.ledger.PnL(e.contract.Outcome(ref)), true
}

// PnLIf marks the ledger as if the contract settled to outcome. The
// simulator uses the NO regime before the first reference print, which is
// what an out-of-range price would resolve to.
func (e *Engine) PnLIf(outcome domain.Outcome) float64 {
	return e.ledger.PnL(outcome)
}

// Settle resolves the contract against the final reference price and
// returns the realized PnL. Terminal: callers stop applying events after
// settlement.
func (e *Engine) Settle() (domain.Outcome, float64, error) {
	ref, ok := e.ReferencePrice()
	if !ok {
		return domain.No, 0, fmt.Errorf("engine.Settle: no reference price observed")
	}
	outcome := e.contract.Outcome(ref)
	return outcome, e.ledger.Settle(outcome), nil
}

func (e *Engine) pulse() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
