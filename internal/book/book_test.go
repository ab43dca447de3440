package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

type recordedFill struct {
	outcome domain.Outcome
	qty     int
	price   int
}

type fillRecorder struct {
	fills []recordedFill
}

func (r *fillRecorder) Fill(outcome domain.Outcome, qty, price int) {
	r.fills = append(r.fills, recordedFill{outcome, qty, price})
}

func newTestBook() (*Book, *fillRecorder) {
	sink := &fillRecorder{}
	return New(sink), sink
}

func TestApplySnapshot_ReplacesDepth(t *testing.T) {
	b, _ := newTestBook()

	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}, {Price: 39, Qty: 3}},
		[]domain.PriceLevel{{Price: 44, Qty: 7}},
	)

	assert.Equal(t, StateLive, b.State())

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 40, bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 44, ask)

	assert.Equal(t, 5, b.Depth(domain.Bid, 40))
	assert.Equal(t, 3, b.Depth(domain.Bid, 39))
	assert.Equal(t, 7, b.Depth(domain.Ask, 44))
}

func TestApplySnapshot_DropsInvalidLevels(t *testing.T) {
	b, _ := newTestBook()

	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 0, Qty: 5}, {Price: 40, Qty: -1}, {Price: 41, Qty: 2}},
		[]domain.PriceLevel{{Price: 100, Qty: 5}},
	)

	assert.Equal(t, 2, b.TotalDepth(domain.Bid))
	assert.Equal(t, 0, b.TotalDepth(domain.Ask))
}

func TestApplySnapshot_ClearsSelfOrders(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)
	b.Replace(domain.Bid, 42, 6)
	require.True(t, b.Self(domain.Bid).Active())

	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 41, Qty: 5}},
		[]domain.PriceLevel{{Price: 49, Qty: 5}},
	)

	assert.False(t, b.Self(domain.Bid).Active())
	assert.Equal(t, 0, b.Depth(domain.Bid, 42))
}

func TestMarkStale_DiscardsEverything(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)
	b.Replace(domain.Bid, 42, 6)

	b.MarkStale()

	assert.Equal(t, StateStale, b.State())
	assert.Equal(t, 0, b.TotalDepth(domain.Bid))
	assert.Equal(t, 0, b.TotalDepth(domain.Ask))
	assert.False(t, b.Self(domain.Bid).Active())

	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestApplyInsert_RestsWhenNotMarketable(t *testing.T) {
	b, sink := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)

	b.ApplyInsert(domain.Bid, 45, 4, false)

	assert.Equal(t, 4, b.Depth(domain.Bid, 45))
	assert.Empty(t, sink.fills)

	bid, _ := b.BestBid()
	assert.Equal(t, 45, bid)
}

func TestApplyInsert_MarketableStrangerLeavesNoFills(t *testing.T) {
	b, sink := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}, {Price: 39, Qty: 10}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)

	// Stranger sells 8 at 40: consumes the 5 at 40, the 39 level no
	// longer crosses, remainder rests on the ask side.
	b.ApplyInsert(domain.Ask, 40, 8, false)

	assert.Equal(t, 0, b.Depth(domain.Bid, 40))
	assert.Equal(t, 10, b.Depth(domain.Bid, 39))
	assert.Equal(t, 3, b.Depth(domain.Ask, 40))
	assert.Empty(t, sink.fills, "stranger-vs-stranger volume is not ours")
}

func TestApplyInsert_RejectsInvalid(t *testing.T) {
	b, _ := newTestBook()
	b.ApplyInsert(domain.Bid, 0, 5, false)
	b.ApplyInsert(domain.Bid, 45, 0, false)
	b.ApplyInsert(domain.Bid, 100, 5, false)

	assert.Equal(t, 0, b.TotalDepth(domain.Bid))
}

func TestApplyCancel_ExcludesSelfQty(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 45, Qty: 4}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)
	b.Replace(domain.Bid, 45, 6)
	require.Equal(t, 10, b.Depth(domain.Bid, 45))

	// A cancel for the whole level can only touch the 4 stranger
	// contracts; our 6 stay.
	b.ApplyCancel(domain.Bid, 45, 10)

	assert.Equal(t, 6, b.Depth(domain.Bid, 45))
	assert.Equal(t, 6, b.Self(domain.Bid).Qty)
}

func TestApplyCancel_EmptyLevelIsNoop(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 45, Qty: 4}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)

	b.ApplyCancel(domain.Bid, 44, 3)

	assert.Equal(t, 4, b.Depth(domain.Bid, 45))
}

func TestReplace_CancelsPreviousOrder(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 4}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)

	b.Replace(domain.Bid, 45, 6)
	b.Replace(domain.Bid, 44, 5)

	assert.Equal(t, 0, b.Depth(domain.Bid, 45), "old order must leave the book")
	assert.Equal(t, 5, b.Depth(domain.Bid, 44))

	self := b.Self(domain.Bid)
	assert.Equal(t, 44, self.Price)
	assert.Equal(t, 5, self.Qty)
}

func TestReplace_ZeroQtyCancelsOnly(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 4}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)
	b.Replace(domain.Bid, 45, 6)

	b.Replace(domain.Bid, 0, 0)

	assert.False(t, b.Self(domain.Bid).Active())
	assert.Equal(t, 0, b.Depth(domain.Bid, 45))
}

func TestRest_QueueBehindExistingDepth(t *testing.T) {
	b, _ := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 45, Qty: 4}},
		[]domain.PriceLevel{{Price: 50, Qty: 5}},
	)

	b.Replace(domain.Bid, 45, 6)

	self := b.Self(domain.Bid)
	assert.Equal(t, 5, self.Queue, "4 contracts ahead plus our own slot")
}
