package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nikhilnd/kalshi-market-making/config"
	"github.com/nikhilnd/kalshi-market-making/internal/adapters/storage"
	"github.com/nikhilnd/kalshi-market-making/internal/feed"
	"github.com/nikhilnd/kalshi-market-making/internal/ports"
	"github.com/nikhilnd/kalshi-market-making/internal/sim"
	"github.com/nikhilnd/kalshi-market-making/internal/strategy"
)

func runReplay(ctx context.Context, cfg *config.Config, replayPath string) {
	slog.Info("=== REPLAY MODE ===", "file", replayPath, "event_log", cfg.Sim.EventLogPath)

	replay, err := feed.OpenReplay(replayPath)
	if err != nil {
		slog.Error("failed to open replay file", "err", err, "path", replayPath)
		os.Exit(1)
	}
	defer replay.Close()

	var store ports.RunStorage
	if cfg.Storage.DSN != "" {
		sqlStore, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	strategyCfg := strategy.Config{
		PositionLimit: cfg.Strategy.PositionLimit,
		QuoteSize:     cfg.Strategy.QuoteSize,
		X0:            cfg.Strategy.X0,
		Gamma:         cfg.Strategy.Gamma,
	}

	simCfg := sim.Config{
		ReplayPath:   replayPath,
		EventLogPath: cfg.Sim.EventLogPath,
		Strategy:     strategyCfg,
	}

	run, err := sim.New(simCfg, replay, store).Run(ctx)
	if err != nil {
		slog.Error("replay failed", "err", err)
		os.Exit(1)
	}

	slog.Info("replay complete",
		"outcome", run.Outcome.String(),
		"pnl", run.RealizedPnL,
		"position", run.Position,
		"marks", len(run.Marks),
	)
}
