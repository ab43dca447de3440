package domain

import "time"

// Mark is one event-log row of a simulation: the ledger marked against
// the reference price after an applied event. AdjPnL mirrors PnL and is
// kept so existing analysis sheets keep their column layout.
type Mark struct {
	Time     time.Time
	PnL      float64
	Position int
	AdjPnL   float64
	RefPrice float64
}

// RunRecord summarizes one completed simulation run.
type RunRecord struct {
	File        string
	Contract    RangeContract
	Outcome     Outcome
	Position    int
	RealizedPnL float64

	YesContracts int
	YesCost      float64
	NoContracts  int
	NoCost       float64

	StartedAt  time.Time
	FinishedAt time.Time

	Marks []Mark
}
