package kalshi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

func frame(t *testing.T, typ, msg string) wsEnvelope {
	t.Helper()
	return wsEnvelope{Type: typ, Msg: json.RawMessage(msg)}
}

func TestDecodeFrame_Snapshot(t *testing.T) {
	env := frame(t, "orderbook_snapshot",
		`{"yes": [[40, 5], [39, 3]], "no": [[55, 7], [0, 2]]}`)

	ev, ok, err := decodeFrame(env)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, ev.Snapshot)

	assert.Equal(t, []domain.PriceLevel{{Price: 40, Qty: 5}, {Price: 39, Qty: 3}}, ev.Snapshot.Bids)
	// "no" depth at 55 is ask-side depth at 45; the level at no price 0
	// maps outside the tradeable range and is dropped.
	assert.Equal(t, []domain.PriceLevel{{Price: 45, Qty: 7}}, ev.Snapshot.Asks)
}

func TestDecodeFrame_DeltaInsertAndCancel(t *testing.T) {
	ev, ok, err := decodeFrame(frame(t, "orderbook_delta",
		`{"price": 44, "delta": 5, "side": "yes"}`))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, domain.Insert, ev.Delta.Op)
	assert.Equal(t, domain.Bid, ev.Delta.Side)
	assert.Equal(t, 44, ev.Delta.Price)
	assert.Equal(t, 5, ev.Delta.Qty)

	ev, ok, err = decodeFrame(frame(t, "orderbook_delta",
		`{"price": 55, "delta": -3, "side": "no"}`))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, domain.Cancel, ev.Delta.Op)
	assert.Equal(t, domain.Ask, ev.Delta.Side)
	assert.Equal(t, 45, ev.Delta.Price, "no price 55 is ask book price 45")
	assert.Equal(t, 3, ev.Delta.Qty)
}

func TestDecodeFrame_DeltaRejectsZeroAndBadSide(t *testing.T) {
	_, _, err := decodeFrame(frame(t, "orderbook_delta",
		`{"price": 44, "delta": 0, "side": "yes"}`))
	assert.Error(t, err)

	_, _, err = decodeFrame(frame(t, "orderbook_delta",
		`{"price": 44, "delta": 5, "side": "maybe"}`))
	assert.Error(t, err)

	_, _, err = decodeFrame(frame(t, "orderbook_delta",
		`{"price": 120, "delta": 5, "side": "yes"}`))
	assert.Error(t, err)
}

func TestDecodeFrame_Fill(t *testing.T) {
	ev, ok, err := decodeFrame(frame(t, "fill",
		`{"side": "no", "count": 4, "yes_price": 45, "no_price": 55}`))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, ev.Fill)

	assert.Equal(t, domain.No, ev.Fill.Outcome)
	assert.Equal(t, 4, ev.Fill.Count)
	assert.Equal(t, 55, ev.Fill.Price, "a no fill is priced on the no side")
}

func TestDecodeFrame_IgnoresAcks(t *testing.T) {
	_, ok, err := decodeFrame(frame(t, "subscribed", `{"sid": 7}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = decodeFrame(frame(t, "heartbeat", `{}`))
	require.NoError(t, err)
	assert.False(t, ok)
}
