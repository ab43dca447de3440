package book

import (
	"log/slog"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// walk resolves a marketable insert against the opposing side, best price
// first, until the incoming quantity is exhausted or the next level no
// longer crosses. Returns the unfilled remainder.
//
// Within a level, price-time priority is approximated through the self
// order's queue position: incoming volume must consume everything ahead of
// our slot before any of it reaches us. Third-party volume has no
// sub-level ordering of its own.
func (b *Book) walk(incoming domain.Side, price, qty int, bot bool) int {
	opposing := incoming.Opposite()
	lvls := b.sideLevels(opposing)

	rem := qty
	for rem > 0 {
		level, ok := b.bestCrossing(incoming, price)
		if !ok {
			break
		}

		fill := rem
		if avail := lvls.depth(level); fill > avail {
			fill = avail
		}

		if self := b.self[opposing]; self.restingAt(level) {
			b.fillSelf(opposing, level, fill)
		} else if bot {
			// Our own aggressive order trading against stranger depth:
			// the entire fill is ours.
			b.credit(incoming, level, fill)
		}

		lvls.reduce(level, fill)
		b.checkSelfInvariant(opposing)
		rem -= fill
	}
	return rem
}

// bestCrossing returns the best opposing price that still crosses the
// incoming price, ok == false when the opposing side is empty or no
// longer crosses.
func (b *Book) bestCrossing(incoming domain.Side, price int) (int, bool) {
	if incoming == domain.Ask {
		bestBid, ok := b.bids.maxPrice()
		if !ok || bestBid < price {
			return 0, false
		}
		return bestBid, true
	}
	bestAsk, ok := b.asks.minPrice()
	if !ok || bestAsk > price {
		return 0, false
	}
	return bestAsk, true
}

// fillSelf executes the part of fill that reaches our resting order at
// level on side: everything strictly ahead in the queue absorbs volume
// first.
func (b *Book) fillSelf(side domain.Side, level, fill int) {
	self := &b.self[side]

	selfFill := fill - self.Queue + 1
	if selfFill > self.Qty {
		selfFill = self.Qty
	}
	if selfFill <= 0 {
		return
	}

	self.Qty -= selfFill
	self.Queue -= fill
	if self.Queue < 1 {
		self.Queue = 1
	}

	slog.Debug("book: self order filled",
		"side", side.String(), "price", level, "qty", selfFill, "remaining", self.Qty)

	b.credit(side, level, selfFill)
}

// credit reports an acquisition on restingSide at book price level to the
// fill sink. Bid-side fills acquire "yes" at the level price; ask-side
// fills acquire "no" at the complementary price.
func (b *Book) credit(restingSide domain.Side, level, qty int) {
	if b.sink == nil || qty <= 0 {
		return
	}
	if restingSide == domain.Bid {
		b.sink.Fill(domain.Yes, qty, level)
		return
	}
	b.sink.Fill(domain.No, qty, domain.NoPrice(level))
}
