package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// Base fixture: 4 stranger contracts bid at 45, our 6 behind them
// (queue position 5), far ask so nothing crosses on setup.
func queuedBook(t *testing.T) (*Book, *fillRecorder) {
	t.Helper()
	b, sink := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 45, Qty: 4}},
		[]domain.PriceLevel{{Price: 60, Qty: 1}},
	)
	b.Replace(domain.Bid, 45, 6)
	require.Equal(t, 5, b.Self(domain.Bid).Queue)
	require.Equal(t, 10, b.Depth(domain.Bid, 45))
	return b, sink
}

func TestWalk_FillReachesSelfPastQueue(t *testing.T) {
	b, sink := queuedBook(t)

	// 6 incoming: 4 absorbed ahead of us plus our slot, 2 are ours.
	b.ApplyInsert(domain.Ask, 45, 6, false)

	self := b.Self(domain.Bid)
	assert.Equal(t, 4, self.Qty)
	assert.Equal(t, 1, self.Queue, "we are now at the front")
	assert.Equal(t, 4, b.Depth(domain.Bid, 45))

	require.Len(t, sink.fills, 1)
	assert.Equal(t, recordedFill{domain.Yes, 2, 45}, sink.fills[0])
}

func TestWalk_VolumeAbsorbedAheadOfUs(t *testing.T) {
	b, sink := queuedBook(t)

	// 3 incoming all land on the strangers ahead; we get nothing and
	// our queue estimate stays put.
	b.ApplyInsert(domain.Ask, 45, 3, false)

	self := b.Self(domain.Bid)
	assert.Equal(t, 6, self.Qty)
	assert.Equal(t, 5, self.Queue)
	assert.Equal(t, 7, b.Depth(domain.Bid, 45))
	assert.Empty(t, sink.fills)
}

func TestWalk_SelfFillCappedAtOwnQty(t *testing.T) {
	b, sink := queuedBook(t)

	// 20 incoming against 10 resting: fill is capped at the level, our
	// share at our own quantity, remainder rests on the other side.
	b.ApplyInsert(domain.Ask, 45, 20, false)

	self := b.Self(domain.Bid)
	assert.Equal(t, 0, self.Qty)
	assert.False(t, self.Active())
	assert.Equal(t, 0, b.Depth(domain.Bid, 45))
	assert.Equal(t, 10, b.Depth(domain.Ask, 45))

	require.Len(t, sink.fills, 1)
	assert.Equal(t, recordedFill{domain.Yes, 6, 45}, sink.fills[0])
}

func TestWalk_BotAggressiveCreditsWholeFill(t *testing.T) {
	b, sink := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}},
		[]domain.PriceLevel{{Price: 44, Qty: 5}},
	)

	// Our bid at 45 lifts the ask: 5 fill at 44, remainder rests at 45.
	b.Replace(domain.Bid, 45, 10)

	require.Len(t, sink.fills, 1)
	assert.Equal(t, recordedFill{domain.Yes, 5, 44}, sink.fills[0])

	self := b.Self(domain.Bid)
	assert.Equal(t, 45, self.Price)
	assert.Equal(t, 5, self.Qty)
	assert.Equal(t, 1, self.Queue)
	assert.Equal(t, 0, b.TotalDepth(domain.Ask))
}

func TestWalk_AskSideFillCreditsNo(t *testing.T) {
	b, sink := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 5}},
		[]domain.PriceLevel{{Price: 44, Qty: 4}},
	)
	b.Replace(domain.Ask, 44, 6)
	require.Equal(t, 5, b.Self(domain.Ask).Queue)

	// Incoming buy at 44 reaches 2 of our ask contracts: a "no"
	// acquisition at 100-44.
	b.ApplyInsert(domain.Bid, 44, 6, false)

	require.Len(t, sink.fills, 1)
	assert.Equal(t, recordedFill{domain.No, 2, 56}, sink.fills[0])
	assert.Equal(t, 4, b.Self(domain.Ask).Qty)
}

func TestWalk_MultipleLevels(t *testing.T) {
	b, sink := newTestBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{{Price: 40, Qty: 2}},
		[]domain.PriceLevel{{Price: 44, Qty: 3}, {Price: 46, Qty: 3}},
	)

	// Our bid at 46 walks both ask levels, best price first.
	b.Replace(domain.Bid, 46, 10)

	require.Len(t, sink.fills, 2)
	assert.Equal(t, recordedFill{domain.Yes, 3, 44}, sink.fills[0])
	assert.Equal(t, recordedFill{domain.Yes, 3, 46}, sink.fills[1])

	self := b.Self(domain.Bid)
	assert.Equal(t, 46, self.Price)
	assert.Equal(t, 4, self.Qty)
}
