package backtest

// pipeline.go: orquesta las etapas en orden fijo:
// LoadData → CalculateIndicators → CalculateBenchmark → GenerateSignals →
// RunBacktest → AnalyzePerformance.
//
// Cada etapa es una transformación pura de la anterior. Solo una configuración
// inválida o un contrato de datos roto devuelven error; "pocos datos" es un
// resultado válido con Outcome = OutcomeInsufficientData.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
)

// Outcome distingue un resultado válido con datos de uno válido pero vacío.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeInsufficientData Outcome = "insufficient_data"
)

// Request describe un backtest sobre una moneda y un rango de fechas.
type Request struct {
	Coin   string
	From   time.Time
	To     time.Time
	Params domain.Params
}

// Result contiene la salida de todas las etapas.
type Result struct {
	Outcome    Outcome
	Reason     string // por qué no se pudo simular, si Outcome != OutcomeOK
	Rows       int    // filas cargadas (antes del warm-up)
	Benchmark  float64
	Indicators []domain.IndicatorRow
	Signals    []domain.SignalRow
	Trades     []domain.Trade
	Capital    []domain.DailyCapital
	Metrics    domain.Metrics
}

// Empty reports whether the run produced no simulation.
func (r *Result) Empty() bool {
	return r.Outcome != OutcomeOK
}

// LoadData pide las filas al proveedor y valida el contrato una sola vez.
// ErrNoData del proveedor se devuelve como slice vacío sin error.
func LoadData(ctx context.Context, provider ports.PriceProvider, coin string, exchanges []domain.Exchange, from, to time.Time) ([]domain.PriceRow, error) {
	rows, err := provider.LoadPrices(ctx, coin, exchanges, from, to)
	if errors.Is(err, ports.ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backtest.LoadData: %w", err)
	}
	if err := ValidateRows(rows, exchanges); err != nil {
		return nil, fmt.Errorf("backtest.LoadData: %w", err)
	}
	return rows, nil
}

// ValidateRows comprueba el contrato del proveedor: fechas estrictamente
// ascendentes y sin duplicados. Los precios faltantes no son error: se registran
// y el motor los trata como "mantener / sin señal".
func ValidateRows(rows []domain.PriceRow, exchanges []domain.Exchange) error {
	missing := 0
	for i, row := range rows {
		if i > 0 && !row.Date.After(rows[i-1].Date) {
			return fmt.Errorf("row %d: date %s not after %s",
				i, row.Date.Format("2006-01-02"), rows[i-1].Date.Format("2006-01-02"))
		}
		for _, ex := range exchanges {
			if math.IsNaN(row.Price(ex.Name)) {
				missing++
			}
		}
	}
	if missing > 0 {
		slog.Warn("price rows with missing closes", "missing", missing, "rows", len(rows))
	}
	return nil
}

// Run ejecuta el pipeline completo contra un proveedor de precios.
func Run(ctx context.Context, provider ports.PriceProvider, req Request) (*Result, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.Run: %w", err)
	}
	rows, err := LoadData(ctx, provider, req.Coin, req.Params.Exchanges, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("backtest.Run: %w", err)
	}
	return RunRows(rows, req.Params)
}

// RunRows ejecuta las etapas sobre filas ya cargadas. No modifica rows, así
// que varias ejecuciones pueden compartir el mismo slice en paralelo.
func RunRows(rows []domain.PriceRow, params domain.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.RunRows: %w", err)
	}

	res := &Result{Rows: len(rows)}

	indicators := CalculateIndicators(rows, params)
	res.Benchmark = CalculateBenchmark(rows, params.Benchmark())

	if len(indicators) == 0 {
		res.Outcome = OutcomeInsufficientData
		res.Reason = fmt.Sprintf("%d rows loaded, rolling window needs %d", len(rows), params.RollingWindow)
		res.Metrics = AnalyzePerformance(nil, nil, res.Benchmark, params.InitialCapital)
		return res, nil
	}

	res.Outcome = OutcomeOK
	res.Indicators = indicators
	res.Signals = GenerateSignals(indicators, params)
	res.Trades, res.Capital = RunBacktest(res.Signals, params)
	res.Metrics = AnalyzePerformance(res.Trades, res.Capital, res.Benchmark, params.InitialCapital)
	return res, nil
}
