package exchange

// collector.go: descarga concurrente de velas, un worker por exchange.
//
// Cada exchange tiene su propio rate limiter y breaker, así que descargarlos
// en paralelo no comparte cuota. El guardado es secuencial (SQLite es single-writer).

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
)

// CollectResult resume la descarga de un exchange.
type CollectResult struct {
	Exchange string
	Candles  int
	First    time.Time
	Last     time.Time
	Err      error
}

// Collect descarga [from, to] de todos los proveedores y guarda las velas.
// Un exchange que falla no impide guardar los demás; el error devuelto
// agrupa todos los fallos.
func Collect(
	ctx context.Context,
	providers []ports.CandleProvider,
	store ports.CandleStorage,
	coin string,
	from, to time.Time,
) ([]CollectResult, error) {
	type fetched struct {
		idx     int
		candles []domain.Candle
		err     error
	}

	resultCh := make(chan fetched, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p ports.CandleProvider) {
			defer wg.Done()
			candles, err := p.FetchDailyCandles(ctx, coin, from, to)
			resultCh <- fetched{idx: i, candles: candles, err: err}
		}(i, p)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]CollectResult, len(providers))
	var errs []error
	for f := range resultCh {
		name := providers[f.idx].Name()
		r := CollectResult{Exchange: name, Err: f.err}

		if f.err == nil {
			if err := store.SaveCandles(ctx, f.candles); err != nil {
				r.Err = fmt.Errorf("save: %w", err)
			}
		}
		if r.Err != nil {
			slog.Error("collect failed", "exchange", name, "err", r.Err)
			errs = append(errs, fmt.Errorf("%s: %w", name, r.Err))
			results[f.idx] = r
			continue
		}

		r.Candles = len(f.candles)
		if r.Candles > 0 {
			r.First = f.candles[0].Date
			r.Last = f.candles[len(f.candles)-1].Date
		}
		slog.Info("candles collected",
			"exchange", name,
			"coin", coin,
			"candles", r.Candles,
		)
		results[f.idx] = r
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("exchange.Collect: %w", errors.Join(errs...))
	}
	return results, nil
}
