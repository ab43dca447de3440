package domain

import "time"

// PriceLevel is one price point and its aggregate resting quantity.
type PriceLevel struct {
	Price int
	Qty   int
}

// Operation discriminates book-modifying events.
type Operation int

const (
	Insert Operation = iota
	Cancel
)

func (o Operation) String() string {
	if o == Insert {
		return "Insert"
	}
	return "Cancel"
}

// MarketEvent is the tagged variant all feeds normalize into. Exactly one
// of the pointer fields is non-nil. Internal logic never sees wire-shaped
// maps, only this type.
type MarketEvent struct {
	Time time.Time

	Snapshot  *SnapshotEvent
	Delta     *DeltaEvent
	Fill      *FillEvent
	Reference *ReferenceEvent
	Resync    *ResyncEvent
}

// SnapshotEvent replaces the entire book. Feeds are responsible for the
// yes/no → bid/ask mapping: "no" depth at price p arrives here as an ask
// level at 100-p.
type SnapshotEvent struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// DeltaEvent is a single insert or cancel at one price level. Bot marks
// book changes that originate from our own quoting; feed adapters always
// leave it false.
type DeltaEvent struct {
	Op    Operation
	Side  Side
	Price int
	Qty   int
	Bot   bool
}

// FillEvent is an authoritative execution report for one of our own
// orders. Live only: the exchange, not the book simulation, is the source
// of truth for real fills. Price is the contract price paid, in cents,
// on the filled outcome side.
type FillEvent struct {
	Outcome Outcome
	Count   int
	Price   int
}

// ReferenceEvent carries an update of the underlying index price.
type ReferenceEvent struct {
	Price float64
}

// ResyncEvent signals a sequence gap: book-only state must be discarded
// and rebuilt from the next snapshot. Ledger and position are untouched.
type ResyncEvent struct{}

// Kind returns a short label for logging.
func (e MarketEvent) Kind() string {
	switch {
	case e.Snapshot != nil:
		return "snapshot"
	case e.Delta != nil:
		return "delta"
	case e.Fill != nil:
		return "fill"
	case e.Reference != nil:
		return "reference"
	case e.Resync != nil:
		return "resync"
	}
	return "empty"
}
