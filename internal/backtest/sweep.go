package backtest

// sweep.go: worker pool para barridos de parámetros.
//
// Cada punto del grid es un backtest independiente: comparte solo el slice de
// filas (solo lectura) y escribe su resultado en su propio índice, por lo que
// el orden de salida es el del grid sin importar el scheduling.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// Grid enumera los valores a probar. Un eje vacío usa el valor de base.
type Grid struct {
	EntryZ   []float64 `yaml:"entry_z"`
	ExitZ    []float64 `yaml:"exit_z"`
	StopLoss []float64 `yaml:"stop_loss"`
}

// SweepResult es el resultado de un punto del grid.
type SweepResult struct {
	Params  domain.Params
	Outcome Outcome
	Metrics domain.Metrics
	Err     error // configuración inválida o contexto cancelado
}

// Points expande el grid sobre base en orden entry_z → exit_z → stop_loss.
func (g Grid) Points(base domain.Params) []domain.Params {
	entries := orDefault(g.EntryZ, base.EntryZ)
	exits := orDefault(g.ExitZ, base.ExitZ)
	stops := orDefault(g.StopLoss, base.StopLoss)

	points := make([]domain.Params, 0, len(entries)*len(exits)*len(stops))
	for _, entry := range entries {
		for _, exit := range exits {
			for _, stop := range stops {
				p := base
				p.EntryZ = entry
				p.ExitZ = exit
				p.StopLoss = stop
				points = append(points, p)
			}
		}
	}
	return points
}

func orDefault(values []float64, def float64) []float64 {
	if len(values) == 0 {
		return []float64{def}
	}
	return values
}

// Sweep ejecuta un backtest por punto del grid en paralelo.
// Si workers <= 0 usa runtime.NumCPU(). Al cancelarse ctx, los puntos
// pendientes se devuelven con Err = ctx.Err().
func Sweep(ctx context.Context, rows []domain.PriceRow, base domain.Params, grid Grid, workers int) []SweepResult {
	points := grid.Points(base)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]SweepResult, len(points))
	workCh := make(chan int, len(points))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				results[idx] = runPoint(ctx, rows, points[idx])
			}
		}()
	}

	for i := range points {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	slog.Debug("sweep complete",
		"points", len(points),
		"workers", workers,
	)
	return results
}

func runPoint(ctx context.Context, rows []domain.PriceRow, params domain.Params) SweepResult {
	r := SweepResult{Params: params}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}

	res, err := RunRows(rows, params)
	if err != nil {
		slog.Debug("sweep point rejected",
			"entry_z", params.EntryZ,
			"exit_z", params.ExitZ,
			"stop_loss", params.StopLoss,
			"err", err,
		)
		r.Err = err
		return r
	}
	r.Outcome = res.Outcome
	r.Metrics = res.Metrics
	return r
}
