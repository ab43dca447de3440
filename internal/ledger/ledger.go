// Package ledger tracks the bot's position and two-sided cost basis, and
// derives PnL from them. It is a pure data holder: every number here is
// recomputed from the cost basis on demand, nothing is cached across
// mutations.
package ledger

import "github.com/nikhilnd/kalshi-market-making/internal/domain"

// CostBasis accumulates acquisitions on one outcome side. It is only ever
// incremented; settlement reads it, nothing resets it.
type CostBasis struct {
	Contracts int
	TotalCost float64 // dollars paid: sum of qty × price/100
}

// Ledger is the running position and per-outcome cost basis for one
// trading day. A live resync never touches it: only book depth is
// discarded on a sequence gap.
type Ledger struct {
	yes      CostBasis
	no       CostBasis
	position int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Fill credits qty contracts acquired on outcome at price cents each.
// Acquiring "yes" lengthens the position, acquiring "no" shortens it.
// Implements book.FillSink.
func (l *Ledger) Fill(outcome domain.Outcome, qty, price int) {
	if qty <= 0 {
		return
	}
	cost := float64(qty) * float64(price) / 100

	if outcome == domain.Yes {
		l.yes.Contracts += qty
		l.yes.TotalCost += cost
		l.position += qty
		return
	}
	l.no.Contracts += qty
	l.no.TotalCost += cost
	l.position -= qty
}

// Position returns the signed net contract count (positive = net yes).
func (l *Ledger) Position() int { return l.position }

// Basis returns the cost basis accumulated on one outcome side.
func (l *Ledger) Basis(outcome domain.Outcome) CostBasis {
	if outcome == domain.Yes {
		return l.yes
	}
	return l.no
}

// PnL computes profit assuming the contract settles to outcome: winning
// contracts pay $1 each, both sides' cost is sunk. The same formula serves
// unrealized marks (outcome from the current reference price) and final
// settlement, so the two regimes can never drift apart.
func (l *Ledger) PnL(outcome domain.Outcome) float64 {
	if outcome == domain.Yes {
		return (float64(l.yes.Contracts) - l.yes.TotalCost) - l.no.TotalCost
	}
	return (float64(l.no.Contracts) - l.no.TotalCost) - l.yes.TotalCost
}

// Settle returns the realized PnL under the final outcome. Idempotent:
// it is the same computation as PnL and mutates nothing.
func (l *Ledger) Settle(outcome domain.Outcome) float64 {
	return l.PnL(outcome)
}
