// Package sim replays a recorded session through the quoting engine and
// produces the event log and settlement report. No authoritative fill
// stream exists offline, so fills are inferred by the book's matching
// walk instead of taken from the exchange.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	"github.com/nikhilnd/kalshi-market-making/internal/engine"
	"github.com/nikhilnd/kalshi-market-making/internal/ports"
	"github.com/nikhilnd/kalshi-market-making/internal/strategy"
)

// Config controls one simulation run.
type Config struct {
	ReplayPath   string
	EventLogPath string // per-event marks CSV, "" disables
	Strategy     strategy.Config
}

// Simulator drives one replay file through an engine plus quoter.
type Simulator struct {
	cfg   Config
	feed  ports.EventFeed
	store ports.RunStorage // may be nil
	out   io.Writer
}

// New creates a simulator. store may be nil to skip persistence.
func New(cfg Config, f ports.EventFeed, store ports.RunStorage) *Simulator {
	return &Simulator{cfg: cfg, feed: f, store: store, out: os.Stdout}
}

// SetOutput redirects the settlement report, for tests.
func (s *Simulator) SetOutput(w io.Writer) { s.out = w }

// Run replays the full file and settles at the end.
func (s *Simulator) Run(ctx context.Context) (domain.RunRecord, error) {
	started := time.Now().UTC()

	// The daily strike range comes from the session-open reference
	// print; book events that arrive before it are buffered and applied
	// once the engine exists.
	pending, openRef, err := s.readUntilReference(ctx)
	if err != nil {
		return domain.RunRecord{}, err
	}

	contract := domain.BoundsFromOpen(openRef.Reference.Price)
	slog.Info("sim: strike range derived from open",
		"open", openRef.Reference.Price, "lower", contract.Lower, "upper", contract.Upper)

	quoterCfg := s.cfg.Strategy
	if quoterCfg.Expiry.IsZero() {
		quoterCfg.Expiry = defaultExpiry(openRef.Time)
		slog.Info("sim: expiry defaulted to session close", "expiry", quoterCfg.Expiry)
	}

	eng := engine.New(contract)
	quoter := strategy.New(quoterCfg)

	var log *eventLog
	if s.cfg.EventLogPath != "" {
		log, err = newEventLog(s.cfg.EventLogPath)
		if err != nil {
			return domain.RunRecord{}, err
		}
		defer log.Close()
	}

	run := domain.RunRecord{
		File:      s.cfg.ReplayPath,
		Contract:  contract,
		StartedAt: started,
	}

	loop := &replayLoop{
		eng:    eng,
		quoter: quoter,
		run:    &run,
		log:    log,
	}

	// One event-ahead lookahead so marks for bursts of rows sharing a
	// timestamp collapse into a single row, like the capture tool wrote
	// them.
	for _, ev := range pending {
		loop.apply(ev, false)
	}

	cur := openRef
	for {
		next, err := s.feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			loop.apply(cur, false)
			break
		}
		if err != nil {
			return run, fmt.Errorf("sim.Run: %w", err)
		}
		loop.apply(cur, next.Time.Equal(cur.Time) && next.Delta != nil && cur.Delta != nil)
		cur = next
	}

	outcome, realized, err := eng.Settle()
	if err != nil {
		return run, fmt.Errorf("sim.Run: %w", err)
	}

	run.Outcome = outcome
	run.Position = eng.Position()
	run.RealizedPnL = realized
	yes, no := eng.Basis(domain.Yes), eng.Basis(domain.No)
	run.YesContracts, run.YesCost = yes.Contracts, yes.TotalCost
	run.NoContracts, run.NoCost = no.Contracts, no.TotalCost
	run.FinishedAt = time.Now().UTC()

	s.report(run)

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			slog.Warn("sim: failed to persist run", "err", err)
		}
	}

	return run, nil
}

// readUntilReference buffers events until the first reference print,
// which anchors the strike range.
func (s *Simulator) readUntilReference(ctx context.Context) ([]domain.MarketEvent, domain.MarketEvent, error) {
	var pending []domain.MarketEvent
	for {
		ev, err := s.feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil, domain.MarketEvent{}, fmt.Errorf("sim: replay has no reference price rows")
		}
		if err != nil {
			return nil, domain.MarketEvent{}, fmt.Errorf("sim.readUntilReference: %w", err)
		}
		if ev.Reference != nil {
			return pending, ev, nil
		}
		pending = append(pending, ev)
	}
}

// replayLoop holds the per-run mutable state of the event loop.
type replayLoop struct {
	eng    *engine.Engine
	quoter *strategy.Quoter
	run    *domain.RunRecord
	log    *eventLog

	pnl float64
}

// apply processes one event. coalesce suppresses the mark and re-quote
// when the following row shares this row's timestamp: the burst is
// treated as one transition.
func (l *replayLoop) apply(ev domain.MarketEvent, coalesce bool) {
	switch {
	case ev.Reference != nil:
		if err := l.eng.Apply(ev); err != nil {
			slog.Warn("sim: dropping event", "kind", ev.Kind(), "err", err)
			return
		}
		prev := l.pnl
		l.pnl = l.currentPnL()
		if l.pnl != prev {
			l.mark(ev.Time)
		}
		l.requote(ev.Time, true)

	case ev.Delta != nil:
		if err := l.eng.Apply(ev); err != nil {
			slog.Warn("sim: dropping event", "kind", ev.Kind(), "err", err)
			return
		}
		l.pnl = l.currentPnL()
		if coalesce {
			return
		}
		l.mark(ev.Time)
		l.requote(ev.Time, false)

	default:
		// Snapshot, fill, and resync events never occur in replay
		// captures; apply them anyway so a hand-built stream works.
		if err := l.eng.Apply(ev); err != nil {
			slog.Warn("sim: dropping event", "kind", ev.Kind(), "err", err)
		}
	}
}

// currentPnL marks against the latest reference print; before the first
// print the contract would resolve NO.
func (l *replayLoop) currentPnL() float64 {
	if pnl, ok := l.eng.UnrealizedPnL(); ok {
		return pnl
	}
	return l.eng.PnLIf(domain.No)
}

func (l *replayLoop) mark(ts time.Time) {
	ref, ok := l.eng.ReferencePrice()
	if !ok {
		ref = -1
	}
	m := domain.Mark{
		Time:     ts,
		PnL:      l.pnl,
		Position: l.eng.Position(),
		AdjPnL:   l.pnl,
		RefPrice: ref,
	}
	l.run.Marks = append(l.run.Marks, m)
	if l.log != nil {
		if err := l.log.append(len(l.run.Marks)-1, m); err != nil {
			slog.Warn("sim: event log write failed", "err", err)
		}
	}
}

// requote recomputes the two-sided quote and replaces our resting orders.
// Replacing is skipped per side when price and size are unchanged.
func (l *replayLoop) requote(now time.Time, avoidCross bool) {
	view := strategy.MarketView{Position: l.eng.Position()}

	ref, ok := l.eng.ReferencePrice()
	if !ok {
		return
	}
	view.Ref = ref

	bestBid, bidOK := l.eng.BestBid()
	bestAsk, askOK := l.eng.BestAsk()
	if !bidOK || !askOK {
		return
	}
	view.BestBid, view.BestAsk, view.HasBook = bestBid, bestAsk, true

	contract := l.eng.Contract()
	quote, ok := l.quoter.Quote(now, contract.Lower, contract.Upper, view, avoidCross)
	if !ok {
		return
	}

	l.place(domain.Bid, quote.BidPrice, quote.BidQty)
	l.place(domain.Ask, quote.AskPrice, quote.AskQty)
	l.pnl = l.currentPnL() // a marketable quote may have filled
}

func (l *replayLoop) place(side domain.Side, price, qty int) {
	if qty <= 0 || !domain.ValidPrice(price) {
		return
	}
	if self := l.eng.Self(side); self.Active() && self.Price == price && self.Qty == qty {
		return
	}
	if err := l.eng.Replace(side, price, qty); err != nil {
		slog.Warn("sim: replace rejected", "side", side.String(), "price", price, "qty", qty, "err", err)
	}
}

// defaultExpiry is 16:00 on the session date, in the capture's clock.
func defaultExpiry(first time.Time) time.Time {
	return time.Date(first.Year(), first.Month(), first.Day(), 16, 0, 0, 0, first.Location())
}
