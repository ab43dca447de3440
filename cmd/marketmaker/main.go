package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikhilnd/kalshi-market-making/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	replayPath := flag.String("replay", "", "replay a recorded session CSV instead of trading live")
	eventLog := flag.String("out", "", "event log CSV path (replay mode, overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("marketmaker starting",
		"config", *configPath,
		"replay", *replayPath,
		"position_limit", cfg.Strategy.PositionLimit,
		"quote_size", cfg.Strategy.QuoteSize,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *replayPath != "" {
		if *eventLog != "" {
			cfg.Sim.EventLogPath = *eventLog
		}
		runReplay(ctx, cfg, *replayPath)
		return
	}

	runLive(ctx, cfg)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
