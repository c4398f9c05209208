package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/spreadbot/config"
	"github.com/alejandrodnm/spreadbot/internal/adapters/exchange"
	"github.com/alejandrodnm/spreadbot/internal/adapters/export"
	"github.com/alejandrodnm/spreadbot/internal/adapters/storage"
	"github.com/alejandrodnm/spreadbot/internal/ports"
)

func runCollect(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) error {
	from, to, err := cfg.Range(time.Now())
	if err != nil {
		return err
	}

	opts := exchange.Options{
		RequestsPerSecond: cfg.Collector.RequestsPerSecond,
		Timeout:           cfg.CollectorTimeout(),
		MaxRetries:        cfg.Collector.MaxRetries,
	}

	var providers []ports.CandleProvider
	for _, ex := range cfg.Backtest.Exchanges {
		switch ex.Name {
		case "upbit":
			providers = append(providers, exchange.NewUpbit(cfg.Collector.UpbitBase, opts))
		case "binance":
			providers = append(providers, exchange.NewBinance(cfg.Collector.BinanceBase, opts))
		default:
			slog.Warn("no collector for exchange, skipping", "exchange", ex.Name)
		}
	}
	if len(providers) == 0 {
		return errors.New("no configured exchange has a collector")
	}

	slog.Info("=== COLLECT ===",
		"coin", cfg.Backtest.Coin,
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"exchanges", len(providers),
	)

	results, err := exchange.Collect(ctx, providers, store, cfg.Backtest.Coin, from, to)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		slog.Info("candles stored",
			"exchange", r.Exchange,
			"candles", r.Candles,
			"first", r.First.Format("2006-01-02"),
			"last", r.Last.Format("2006-01-02"),
		)
	}
	if err != nil {
		return err
	}

	counts, err := store.CandleCount(ctx, cfg.Backtest.Coin)
	if err != nil {
		return err
	}
	slog.Info("collect complete", "stored", counts)
	return nil
}

func runImportFX(ctx context.Context, store *storage.SQLiteStorage, path string) error {
	if path == "" {
		return errors.New("import-fx needs -fx <file.csv>")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fx file: %w", err)
	}
	defer f.Close()

	rates, err := export.ReadFXRates(f)
	if err != nil {
		return err
	}
	if err := store.SaveFXRates(ctx, rates); err != nil {
		return err
	}

	slog.Info("fx rates imported", "file", path, "rates", len(rates))
	return nil
}

// runReport lista los últimos runs, o muestra uno completo si se pasa su ID.
func runReport(ctx context.Context, store ports.RunStorage, reporter ports.Reporter, id string, limit int) error {
	if id == "" {
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		reporter.PrintRuns(runs)
		return nil
	}

	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	slog.Info("stored run", "id", run.ID, "created", run.CreatedAt.Format("2006-01-02 15:04"),
		"entry_z", run.Params.EntryZ, "exit_z", run.Params.ExitZ, "stop_loss", run.Params.StopLoss)
	return reporter.Report(ctx, run.Coin, run.Metrics, run.Trades)
}
