package ports

import (
	"context"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// EventFeed delivers the ordered market event stream the engine consumes.
// Both the live websocket adapter and the replay-file reader normalize
// their wire formats into domain.MarketEvent before it crosses this
// boundary.
type EventFeed interface {
	// Next blocks for the next event. Returns io.EOF when the stream is
	// exhausted (end of replay file or connection permanently closed).
	Next(ctx context.Context) (domain.MarketEvent, error)

	// Close releases the underlying source.
	Close() error
}
