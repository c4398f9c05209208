package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/spreadbot/config"
	"github.com/alejandrodnm/spreadbot/internal/adapters/notify"
	"github.com/alejandrodnm/spreadbot/internal/adapters/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "backtest", "backtest | sweep | collect | import-fx | report")
	coin := flag.String("coin", "", "coin to simulate (overrides config)")
	fxFile := flag.String("fx", "", "CSV file with date,rate for import-fx")
	runID := flag.String("run", "", "run ID for report (empty = list recent runs)")
	limit := flag.Int("limit", 20, "number of runs listed by report")
	maxTrades := flag.Int("trades", 0, "show only the last N trades (0 = all)")
	noSave := flag.Bool("no-save", false, "do not persist the backtest run")
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
	if *coin != "" {
		cfg.Backtest.Coin = *coin
	}
	setupLogger(cfg.Log)

	slog.Info("spreadbot starting",
		"config", *configPath,
		"mode", *mode,
		"coin", cfg.Backtest.Coin,
		"dsn", cfg.Storage.DSN,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	reporter := notify.NewConsole(*maxTrades)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "backtest":
		err = runBacktest(ctx, cfg, store, reporter, !*noSave)
	case "sweep":
		err = runSweep(ctx, cfg, store, reporter)
	case "collect":
		err = runCollect(ctx, cfg, store)
	case "import-fx":
		err = runImportFX(ctx, store, *fxFile)
	case "report":
		err = runReport(ctx, store, reporter, *runID, *limit)
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("spreadbot exited with error", "mode", *mode, "err", err)
		store.Close()
		os.Exit(1)
	}

	slog.Info("spreadbot stopped cleanly", "mode", *mode)
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
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
