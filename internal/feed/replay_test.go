package feed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

func writeReplay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenReplay_RejectsMissingColumns(t *testing.T) {
	path := writeReplay(t, "Time,Operation,Side,Volume,Price\n")
	_, err := OpenReplay(path)
	assert.ErrorContains(t, err, "Instrument")
}

func TestReplay_ParsesReferenceAndBookRows(t *testing.T) {
	path := writeReplay(t,
		"Time,Operation,Instrument,Side,Volume,Price\n"+
			"2021-09-17 09:30:00.123456,Insert,0,B,0,4475.3\n"+
			"2021-09-17 09:30:01,Insert,1,B,5,4400\n"+
			"2021-09-17 09:30:02,Cancel,1,A,2,4500\n")

	r, err := OpenReplay(path)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()

	ev, err := r.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev.Reference)
	assert.InDelta(t, 4475.3, ev.Reference.Price, 1e-9)
	assert.Equal(t, 123456000, ev.Time.Nanosecond())

	ev, err = r.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, domain.Insert, ev.Delta.Op)
	assert.Equal(t, domain.Bid, ev.Delta.Side)
	assert.Equal(t, 44, ev.Delta.Price, "book prices arrive as cents x 100")
	assert.Equal(t, 5, ev.Delta.Qty)
	assert.False(t, ev.Delta.Bot)

	ev, err = r.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, domain.Cancel, ev.Delta.Op)
	assert.Equal(t, domain.Ask, ev.Delta.Side)
	assert.Equal(t, 45, ev.Delta.Price)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplay_SkipsMalformedRows(t *testing.T) {
	path := writeReplay(t,
		"Time,Operation,Instrument,Side,Volume,Price\n"+
			"not-a-time,Insert,1,B,5,4400\n"+
			"2021-09-17 09:30:01,Insert,1,B,xx,4400\n"+
			"2021-09-17 09:30:02,Insert,1,B,0,4400\n"+
			"2021-09-17 09:30:03,Insert,1,Q,5,4400\n"+
			"2021-09-17 09:30:04,Insert,1,B,5,12000\n"+
			"2021-09-17 09:30:05,Insert,1,B,5,4400\n")

	r, err := OpenReplay(path)
	require.NoError(t, err)
	defer r.Close()

	ev, err := r.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, 44, ev.Delta.Price)
	assert.Equal(t, 5, ev.Time.Second(), "the five bad rows were skipped")
}

func TestReplay_IgnoresExtraColumns(t *testing.T) {
	// Older captures carry per-order metadata we do not use.
	path := writeReplay(t,
		"Time,Operation,Instrument,OrderId,Side,Volume,Price,Lifespan\n"+
			"2021-09-17 09:30:01,Insert,1,9913,A,3,5600,0\n")

	r, err := OpenReplay(path)
	require.NoError(t, err)
	defer r.Close()

	ev, err := r.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, domain.Ask, ev.Delta.Side)
	assert.Equal(t, 56, ev.Delta.Price)
	assert.Equal(t, 3, ev.Delta.Qty)
}

func TestReplay_ContextCancellation(t *testing.T) {
	path := writeReplay(t,
		"Time,Operation,Instrument,Side,Volume,Price\n"+
			"2021-09-17 09:30:01,Insert,1,B,5,4400\n")

	r, err := OpenReplay(path)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
