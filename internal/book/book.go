package book

import (
	"log/slog"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// State is the book lifecycle. Deltas are only trusted while Live; a
// sequence gap marks the book Stale until the next snapshot rebuilds it.
type State int

const (
	StateEmpty State = iota
	StateLive
	StateStale
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateStale:
		return "stale"
	}
	return "empty"
}

// FillSink receives fill attributions from the matching walk. Price is the
// contract price in cents on the acquired outcome side (an ask-side fill at
// book price p is a "no" acquisition at 100-p).
type FillSink interface {
	Fill(outcome domain.Outcome, qty, price int)
}

// Book is the canonical depth view for one market plus the bot's resting
// order on each side. It is a pure in-memory state machine: no I/O, no
// locking, single logical owner.
type Book struct {
	bids levels
	asks levels
	self [2]SelfOrder // indexed by domain.Side
	sink FillSink

	state State
}

// New creates an empty book. Fills discovered by the matching walk are
// reported to sink.
func New(sink FillSink) *Book {
	return &Book{
		bids: make(levels),
		asks: make(levels),
		sink: sink,
	}
}

// State returns the current lifecycle state.
func (b *Book) State() State { return b.state }

// BestBid returns the highest bid price, ok == false on an empty side.
func (b *Book) BestBid() (int, bool) { return b.bids.maxPrice() }

// BestAsk returns the lowest ask price, ok == false on an empty side.
func (b *Book) BestAsk() (int, bool) { return b.asks.minPrice() }

// Depth returns the aggregate quantity resting at price on the given side.
func (b *Book) Depth(side domain.Side, price int) int {
	return b.sideLevels(side).depth(price)
}

// TotalDepth returns the summed resting quantity on one side.
func (b *Book) TotalDepth(side domain.Side) int {
	return b.sideLevels(side).total()
}

// Self returns the bot's resting order on the given side. Qty == 0 means
// no order is resting.
func (b *Book) Self(side domain.Side) SelfOrder {
	return b.self[side]
}

func (b *Book) sideLevels(side domain.Side) levels {
	if side == domain.Bid {
		return b.bids
	}
	return b.asks
}

// ApplySnapshot replaces the entire book. Any resting self orders are
// discarded along with the depth they were part of; the ledger lives
// elsewhere and keeps its state.
func (b *Book) ApplySnapshot(bids, asks []domain.PriceLevel) {
	b.bids = make(levels, len(bids))
	b.asks = make(levels, len(asks))
	b.self[domain.Bid] = SelfOrder{}
	b.self[domain.Ask] = SelfOrder{}

	for _, lvl := range bids {
		if !domain.ValidPrice(lvl.Price) || lvl.Qty <= 0 {
			slog.Warn("book: dropping invalid snapshot level", "side", "B", "price", lvl.Price, "qty", lvl.Qty)
			continue
		}
		b.bids.add(lvl.Price, lvl.Qty)
	}
	for _, lvl := range asks {
		if !domain.ValidPrice(lvl.Price) || lvl.Qty <= 0 {
			slog.Warn("book: dropping invalid snapshot level", "side", "A", "price", lvl.Price, "qty", lvl.Qty)
			continue
		}
		b.asks.add(lvl.Price, lvl.Qty)
	}

	b.state = StateLive
}

// MarkStale discards all depth and self-order state after a sequence gap.
// The book stays Stale until the next snapshot.
func (b *Book) MarkStale() {
	b.bids = make(levels)
	b.asks = make(levels)
	b.self[domain.Bid] = SelfOrder{}
	b.self[domain.Ask] = SelfOrder{}
	b.state = StateStale
}

// ApplyInsert applies an insert of qty at price. A marketable insert (one
// that crosses the best opposing price) is resolved by the matching walk
// before anything rests; only the unfilled remainder reaches the book.
// bot marks inserts that originate from our own quoting.
func (b *Book) ApplyInsert(side domain.Side, price, qty int, bot bool) {
	if !domain.ValidPrice(price) || qty <= 0 {
		slog.Warn("book: rejecting invalid insert", "side", side.String(), "price", price, "qty", qty)
		return
	}
	if b.state == StateEmpty {
		b.state = StateLive
	}

	if b.marketable(side, price) {
		rem := b.walk(side, price, qty, bot)
		if rem > 0 {
			b.rest(side, price, rem, bot, 1)
		}
		return
	}

	// Queue position counts everything already resting at this price,
	// plus one for our own slot.
	b.rest(side, price, qty, bot, b.sideLevels(side).depth(price)+1)
}

// rest adds qty at price on side. When the order is ours it becomes the
// new self order with the given queue position; any previous self order on
// this side must already have been cancelled by the caller.
func (b *Book) rest(side domain.Side, price, qty int, bot bool, queue int) {
	if bot {
		b.self[side] = SelfOrder{Price: price, Qty: qty, Queue: queue}
	}
	b.sideLevels(side).add(price, qty)
}

// marketable reports whether an insert at price on side crosses the best
// opposing price. An empty opposing side never crosses.
func (b *Book) marketable(side domain.Side, price int) bool {
	if side == domain.Ask {
		bestBid, ok := b.bids.maxPrice()
		return ok && price <= bestBid
	}
	bestAsk, ok := b.asks.minPrice()
	return ok && price >= bestAsk
}

// ApplyCancel removes up to qty from the level at price. The bot's own
// reserved quantity is excluded from the cancellable pool: strangers
// cannot cancel our contracts.
func (b *Book) ApplyCancel(side domain.Side, price, qty int) {
	if !domain.ValidPrice(price) || qty <= 0 {
		slog.Warn("book: rejecting invalid cancel", "side", side.String(), "price", price, "qty", qty)
		return
	}

	lvls := b.sideLevels(side)
	cur := lvls.depth(price)
	if cur == 0 {
		return
	}

	cancellable := qty
	if cancellable > cur {
		cancellable = cur
	}
	if self := b.self[side]; self.restingAt(price) {
		cancellable -= self.Qty
		if cancellable < 0 {
			cancellable = 0
		}
	}

	lvls.reduce(price, cancellable)
	b.checkSelfInvariant(side)
}

// Replace swaps the bot's resting order on side for a fresh one: full
// cancel of the previous order, then a new insert at price/qty. The new
// order may be marketable and fill immediately.
func (b *Book) Replace(side domain.Side, price, qty int) {
	b.CancelOwn(side)
	if qty <= 0 {
		return
	}
	b.ApplyInsert(side, price, qty, true)
}

// CancelOwn removes the bot's resting order on side, taking exactly its
// reserved quantity out of the book.
func (b *Book) CancelOwn(side domain.Side) {
	self := b.self[side]
	if !self.Active() {
		return
	}
	b.sideLevels(side).reduce(self.Price, self.Qty)
	b.self[side] = SelfOrder{}
}

// checkSelfInvariant clamps the self order's reserved quantity to the
// level quantity at its price. A violation means the feed handed us
// corrupt depth; we must not crash mid-session.
func (b *Book) checkSelfInvariant(side domain.Side) {
	self := b.self[side]
	if !self.Active() {
		return
	}
	lvl := b.sideLevels(side).depth(self.Price)
	if self.Qty > lvl {
		slog.Error("book: self order exceeds level depth, clamping",
			"side", side.String(), "price", self.Price, "self_qty", self.Qty, "level_qty", lvl)
		b.self[side].Qty = lvl
	}
}
