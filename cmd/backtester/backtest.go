package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/spreadbot/config"
	"github.com/alejandrodnm/spreadbot/internal/adapters/export"
	"github.com/alejandrodnm/spreadbot/internal/adapters/notify"
	"github.com/alejandrodnm/spreadbot/internal/adapters/storage"
	"github.com/alejandrodnm/spreadbot/internal/backtest"
	"github.com/alejandrodnm/spreadbot/internal/ports"
)

func runBacktest(ctx context.Context, cfg *config.Config, store backtestStore, reporter ports.Reporter, save bool) error {
	from, to, err := cfg.Range(time.Now())
	if err != nil {
		return err
	}

	req := backtest.Request{
		Coin:   cfg.Backtest.Coin,
		From:   from,
		To:     to,
		Params: cfg.Params(),
	}
	slog.Info("=== BACKTEST ===",
		"coin", req.Coin,
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"entry_z", req.Params.EntryZ,
		"exit_z", req.Params.ExitZ,
		"stop_loss", req.Params.StopLoss,
		"window", req.Params.RollingWindow,
	)

	res, err := backtest.Run(ctx, store, req)
	if err != nil {
		return err
	}

	if res.Empty() {
		slog.Warn("nothing to simulate", "coin", req.Coin, "reason", res.Reason)
		reporter.PrintInsufficient(req.Coin, res.Reason)
		return nil
	}

	if err := reporter.Report(ctx, req.Coin, res.Metrics, res.Trades); err != nil {
		slog.Warn("reporter error", "err", err)
	}

	if save {
		id, err := store.SaveRun(ctx, ports.RunRecord{
			Coin:    req.Coin,
			Params:  req.Params,
			Metrics: res.Metrics,
			Trades:  res.Trades,
			Capital: res.Capital,
		})
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info("run saved", "id", id)
	}

	if cfg.Export.Dir != "" {
		files, err := export.Write(cfg.Export.Dir, strings.ToLower(req.Coin)+"_", res.Metrics, res.Trades, res.Capital)
		if err != nil {
			return err
		}
		slog.Info("results exported", "trades", files.Trades, "capital", files.Capital, "metrics", files.Metrics)
	}

	slog.Info("backtest complete",
		"trades", res.Metrics.TotalTrades,
		"final_return", res.Metrics.FinalReturn,
		"sharpe", res.Metrics.SharpeRatio,
	)
	return nil
}

// backtestStore es lo que runBacktest necesita del almacenamiento.
type backtestStore interface {
	ports.PriceProvider
	SaveRun(ctx context.Context, run ports.RunRecord) (string, error)
}

func runSweep(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, reporter *notify.Console) error {
	from, to, err := cfg.Range(time.Now())
	if err != nil {
		return err
	}

	base := cfg.Params()
	if err := base.Validate(); err != nil {
		return err
	}

	// Las filas se cargan una vez y se comparten entre todos los puntos.
	rows, err := backtest.LoadData(ctx, store, cfg.Backtest.Coin, base.Exchanges, from, to)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		reporter.PrintInsufficient(cfg.Backtest.Coin, "no price rows in range, run -mode collect first")
		return nil
	}

	grid := backtest.Grid{
		EntryZ:   cfg.Sweep.EntryZ,
		ExitZ:    cfg.Sweep.ExitZ,
		StopLoss: cfg.Sweep.StopLoss,
	}
	slog.Info("=== SWEEP ===",
		"coin", cfg.Backtest.Coin,
		"rows", len(rows),
		"points", len(grid.Points(base)),
		"workers", cfg.Sweep.Workers,
	)

	start := time.Now()
	results := backtest.Sweep(ctx, rows, base, grid, cfg.Sweep.Workers)
	if err := ctx.Err(); err != nil {
		return err
	}

	reporter.PrintSweep(results, cfg.Sweep.Top)
	slog.Info("sweep complete", "points", len(results), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
