package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nikhilnd/kalshi-market-making/config"
	"github.com/nikhilnd/kalshi-market-making/internal/adapters/kalshi"
	"github.com/nikhilnd/kalshi-market-making/internal/adapters/reference"
	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	"github.com/nikhilnd/kalshi-market-making/internal/engine"
	"github.com/nikhilnd/kalshi-market-making/internal/ordermanager"
	"github.com/nikhilnd/kalshi-market-making/internal/strategy"
	"github.com/nikhilnd/kalshi-market-making/internal/trader"
)

func runLive(ctx context.Context, cfg *config.Config) {
	slog.Info("=== LIVE TRADING MODE (REAL MONEY) ===",
		"ticker_prefix", cfg.Market.TickerPrefix,
		"position_limit", cfg.Strategy.PositionLimit,
		"quote_size", cfg.Strategy.QuoteSize,
	)

	if cfg.Market.Email == "" || cfg.Market.Password == "" {
		slog.Error("KALSHI_EMAIL and KALSHI_PASSWORD must be set for live trading")
		os.Exit(1)
	}

	fmt.Printf("\n⚠️  LIVE TRADING MODE — REAL MONEY WILL BE SPENT\n")
	fmt.Printf("   Position limit: %d | Quote size: %d\n",
		cfg.Strategy.PositionLimit, cfg.Strategy.QuoteSize)
	fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

	abortTimer := time.NewTimer(5 * time.Second)
	select {
	case <-abortTimer.C:
	case <-ctx.Done():
		slog.Info("live trading aborted by user")
		return
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		slog.Error("failed to load exchange timezone", "err", err)
		os.Exit(1)
	}
	now := time.Now().In(loc)

	poller := reference.New(reference.Config{
		BaseURL:      cfg.Reference.BaseURL,
		Symbol:       cfg.Reference.Symbol,
		Interval:     cfg.PollInterval(),
		RefreshToken: cfg.Reference.RefreshToken,
		ConsumerKey:  cfg.Reference.ConsumerKey,
	})
	poller.Start(ctx)

	// Today's strike range comes from the current index print; the
	// market ticker encodes the midpoint of that range.
	open, ok := awaitReference(ctx, poller)
	if !ok {
		slog.Error("no reference price received, cannot select market")
		os.Exit(1)
	}
	contract := domain.BoundsFromOpen(open)
	ticker := sessionTicker(cfg.Market.TickerPrefix, now, contract)
	slog.Info("live: market selected",
		"ticker", ticker, "open", open, "lower", contract.Lower, "upper", contract.Upper)

	client := kalshi.NewClient(cfg.Market.APIBase, ticker)
	if err := client.Login(ctx, cfg.Market.Email, cfg.Market.Password); err != nil {
		slog.Error("kalshi login failed", "err", err)
		os.Exit(1)
	}

	wsFeed := kalshi.NewFeed(cfg.Market.WSBase, client.Token(), ticker)
	wsFeed.Start(ctx)
	defer wsFeed.Close()

	strategyCfg := strategy.Config{
		PositionLimit: cfg.Strategy.PositionLimit,
		QuoteSize:     cfg.Strategy.QuoteSize,
		X0:            cfg.Strategy.X0,
		Gamma:         cfg.Strategy.Gamma,
		Expiry:        cfg.Expiry(now, loc),
	}

	eng := engine.New(contract)
	quoter := strategy.New(strategyCfg)
	manager := ordermanager.New(client, cfg.Strategy.MaxFailures)

	t := trader.New(eng, quoter, manager, wsFeed, poller.Events())
	if err := t.Run(ctx); err != nil {
		slog.Error("trader exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("marketmaker stopped cleanly", "position", eng.Position())
}

// awaitReference blocks for the first index print, with a deadline.
func awaitReference(ctx context.Context, p *reference.Poller) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return 0, false
		case ev, ok := <-p.Events():
			if !ok {
				return 0, false
			}
			if ev.Reference != nil {
				return ev.Reference.Price, true
			}
		}
	}
}

// sessionTicker builds the Kalshi market ticker for today's range, e.g.
// "INXD-23AUG11-B4475" for the 4450..4500 band.
func sessionTicker(prefix string, day time.Time, c domain.RangeContract) string {
	date := strings.ToUpper(day.Format("06Jan02"))
	strike := int(c.Lower) + 25
	return fmt.Sprintf("%s-%s-B%d", prefix, date, strike)
}
