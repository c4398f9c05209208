package export

// csv.go: exporta ledger, curva de capital y métricas a CSV.
//
// Los importes se escriben con shopspring/decimal a precisión fija para que
// el fichero sea estable entre ejecuciones (nada de 1.0385999999e+08).

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

const (
	dateLayout    = "2006-01-02"
	moneyDecimals = 2
	ratioDecimals = 6
)

// Files son las rutas escritas por Write.
type Files struct {
	Trades  string
	Capital string
	Metrics string
}

// Write crea dir si hace falta y escribe <prefix>trades.csv, <prefix>capital.csv
// y <prefix>metrics.csv.
func Write(dir, prefix string, m domain.Metrics, trades []domain.Trade, capital []domain.DailyCapital) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("export.Write: ensure dir: %w", err)
	}

	files := Files{
		Trades:  filepath.Join(dir, prefix+"trades.csv"),
		Capital: filepath.Join(dir, prefix+"capital.csv"),
		Metrics: filepath.Join(dir, prefix+"metrics.csv"),
	}

	if err := writeCSV(files.Trades, TradeRows(trades)); err != nil {
		return Files{}, fmt.Errorf("export.Write: %w", err)
	}
	if err := writeCSV(files.Capital, CapitalRows(capital)); err != nil {
		return Files{}, fmt.Errorf("export.Write: %w", err)
	}
	if err := writeCSV(files.Metrics, MetricRows(m)); err != nil {
		return Files{}, fmt.Errorf("export.Write: %w", err)
	}
	return files, nil
}

// TradeRows devuelve el ledger con cabecera.
func TradeRows(trades []domain.Trade) [][]string {
	rows := [][]string{{
		"pair", "direction", "entry_date", "exit_date", "holding_days",
		"entry_spread", "exit_spread", "capital_allocated", "return", "profit", "exit_reason",
	}}
	for _, t := range trades {
		rows = append(rows, []string{
			t.Pair,
			string(t.Direction),
			t.EntryDate.Format(dateLayout),
			t.ExitDate.Format(dateLayout),
			strconv.Itoa(t.HoldingDays),
			ratio(t.EntrySpread),
			ratio(t.ExitSpread),
			money(t.CapitalAllocated),
			ratio(t.Return),
			money(t.Profit),
			string(t.ExitReason),
		})
	}
	return rows
}

// CapitalRows devuelve la curva de capital diaria con cabecera.
func CapitalRows(capital []domain.DailyCapital) [][]string {
	rows := [][]string{{"date", "capital", "unrealized", "open_positions"}}
	for _, c := range capital {
		rows = append(rows, []string{
			c.Date.Format(dateLayout),
			money(c.Capital),
			money(c.Unrealized),
			strconv.Itoa(c.OpenPositions),
		})
	}
	return rows
}

// MetricRows devuelve las métricas como pares metric,value.
func MetricRows(m domain.Metrics) [][]string {
	rows := [][]string{
		{"metric", "value"},
		{"start_date", dateOrEmpty(m.StartDate)},
		{"end_date", dateOrEmpty(m.EndDate)},
		{"trading_days", strconv.Itoa(m.TradingDays)},
		{"total_trades", strconv.Itoa(m.TotalTrades)},
		{"win_rate", ratio(m.WinRate)},
		{"initial_capital", money(m.InitialCapital)},
		{"final_capital", money(m.FinalCapital)},
		{"final_return", ratio(m.FinalReturn)},
		{"annualized_return", ratio(m.AnnualReturn)},
		{"mdd", ratio(m.MDD)},
		{"sharpe_ratio", ratio(m.SharpeRatio)},
		{"benchmark_return", ratio(m.BenchmarkReturn)},
		{"excess_return", ratio(m.ExcessReturn)},
		{"avg_holding_days", ratio(m.AvgHoldingDays)},
		{"max_holding_days", strconv.Itoa(m.MaxHoldingDays)},
		{"total_profit", money(m.TotalProfit)},
		{"avg_return", ratio(m.AvgReturn)},
		{"best_return", ratio(m.BestReturn)},
		{"worst_return", ratio(m.WorstReturn)},
	}

	reasons := make([]string, 0, len(m.ExitReasons))
	for r := range m.ExitReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		rows = append(rows, []string{"exits_" + r, strconv.Itoa(m.ExitReasons[domain.ExitReason(r)])})
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return file.Close()
}

func money(v float64) string {
	return fixed(v, moneyDecimals)
}

func ratio(v float64) string {
	return fixed(v, ratioDecimals)
}

// fixed deja vacío lo que no es finito: decimal.NewFromFloat no acepta NaN ni Inf.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
