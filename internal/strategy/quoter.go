// Package strategy prices the range contract from the underlying
// reference price and turns it into a two-sided quote.
//
// The fair value model treats the log-distance from the reference price
// to each strike bound as Cauchy-distributed, with a scale parameter that
// decays toward zero as expiry approaches: the probability mass inside
// the range collapses to 0 or 1 at end of day.
package strategy

import (
	"math"
	"time"
)

// Config parametrizes the quoter.
type Config struct {
	PositionLimit int     // hard cap on absolute position
	QuoteSize     int     // target size per side
	X0            float64 // Cauchy location
	Gamma         float64 // Cauchy base scale, before time decay
	Expiry        time.Time
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		PositionLimit: 40,
		QuoteSize:     10,
		X0:            0,
		Gamma:         0.000005,
	}
}

// MarketView is the engine snapshot the quoter prices from.
type MarketView struct {
	Ref      float64
	BestBid  int
	BestAsk  int
	HasBook  bool // both sides of the book populated
	Position int
}

// Quote is one re-quote cycle's intent: at most one order per side.
// A side with Qty == 0 or an out-of-range price is simply not quoted.
type Quote struct {
	BidPrice int
	BidQty   int
	AskPrice int
	AskQty   int
}

// Quoter derives quotes from a MarketView. Stateless apart from config.
type Quoter struct {
	cfg Config
}

// New creates a Quoter. Expiry must be set by the caller.
func New(cfg Config) *Quoter {
	if cfg.PositionLimit <= 0 {
		cfg.PositionLimit = DefaultConfig().PositionLimit
	}
	if cfg.QuoteSize <= 0 {
		cfg.QuoteSize = DefaultConfig().QuoteSize
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = DefaultConfig().Gamma
	}
	return &Quoter{cfg: cfg}
}

// Quote computes the two-sided quote for the given market state, pricing
// the contract with bounds [lower, upper]. avoidCross additionally walks
// quotes off the opposing best so a reference-price move never lifts the
// market, as long as position has room. ok == false when there is nothing
// sane to quote: empty book, unknown reference price, or expiry reached.
func (q *Quoter) Quote(now time.Time, lower, upper float64, view MarketView, avoidCross bool) (Quote, bool) {
	if !view.HasBook || view.Ref <= 0 {
		return Quote{}, false
	}

	offset := q.cfg.Expiry.Sub(now).Seconds()
	if offset <= 0 {
		return Quote{}, false
	}
	gamma := q.cfg.Gamma * math.Pow(offset, 0.6)
	if gamma == 0 {
		return Quote{}, false
	}

	// Probability the reference price finishes inside the range.
	p := cauchyCDF((upper-view.Ref)/view.Ref, q.cfg.X0, gamma) -
		cauchyCDF((lower-view.Ref)/view.Ref, q.cfg.X0, gamma)

	fair := int(math.Round(p * 100))
	bid := fair - 1
	ask := fair + 1

	// Inventory skew: lean both quotes away from the position, one cent
	// per ten contracts.
	if view.Position > 0 {
		lean := int(math.Round(float64(view.Position) / 10))
		bid -= lean
		ask -= lean
	} else if view.Position < 0 {
		lean := int(math.Round(float64(-view.Position) / 10))
		bid += lean
		ask += lean
	}

	quote := Quote{
		BidPrice: bid,
		BidQty:   min(q.cfg.QuoteSize, q.cfg.PositionLimit-view.Position),
		AskPrice: ask,
		AskQty:   min(q.cfg.QuoteSize, q.cfg.PositionLimit+view.Position),
	}

	if avoidCross {
		half := q.cfg.PositionLimit / 2
		if quote.BidPrice >= view.BestAsk && view.Position > -half {
			quote.BidPrice = view.BestAsk - 1
		}
		if quote.AskPrice <= view.BestBid && view.Position < half {
			quote.AskPrice = view.BestBid + 1
		}
	}

	return quote, true
}

// cauchyCDF is the cumulative distribution of the Cauchy distribution
// with location x0 and scale gamma.
func cauchyCDF(x, x0, gamma float64) float64 {
	return 0.5 + math.Atan((x-x0)/gamma)/math.Pi
}
