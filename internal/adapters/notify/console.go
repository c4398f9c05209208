package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/backtest"
	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var _ ports.Reporter = (*Console)(nil)

// Console implementa ports.Reporter escribiendo tablas en texto.
type Console struct {
	out       io.Writer
	maxTrades int // 0 = todos
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(maxTrades int) *Console {
	return &Console{out: os.Stdout, maxTrades: maxTrades}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Report imprime métricas, desglose de salidas y el ledger de trades.
func (c *Console) Report(_ context.Context, coin string, m domain.Metrics, trades []domain.Trade) error {
	fmt.Fprintf(c.out, "\n=== BACKTEST %s  %s → %s (%d days) ===\n",
		strings.ToUpper(coin), fmtDate(m.StartDate), fmtDate(m.EndDate), m.TradingDays)

	c.printMetrics(m)

	if len(trades) == 0 {
		fmt.Fprintln(c.out, "\n  No trades: no z-score crossed the entry threshold.")
		return nil
	}

	c.printExitReasons(m)
	c.printTrades(trades)
	return nil
}

// PrintInsufficient explica por qué no hubo simulación.
func (c *Console) PrintInsufficient(coin, reason string) {
	fmt.Fprintf(c.out, "\n  %s: insufficient data (%s)\n\n", strings.ToUpper(coin), reason)
}

func (c *Console) printMetrics(m domain.Metrics) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")

	rows := [][]string{
		{"Trades", fmt.Sprintf("%d", m.TotalTrades)},
		{"Win rate", pct(m.WinRate)},
		{"Initial capital", money(m.InitialCapital)},
		{"Final capital", money(m.FinalCapital)},
		{"Total return", pct(m.FinalReturn)},
		{"Annualized return", pct(m.AnnualReturn)},
		{"Max drawdown", pct(m.MDD)},
		{"Sharpe (√365)", fmt.Sprintf("%.2f", m.SharpeRatio)},
		{"Benchmark (buy & hold)", pct(m.BenchmarkReturn)},
		{"Excess return", pct(m.ExcessReturn)},
		{"Avg holding days", fmt.Sprintf("%.1f", m.AvgHoldingDays)},
		{"Max holding days", fmt.Sprintf("%d", m.MaxHoldingDays)},
	}
	if m.TotalTrades > 0 {
		rows = append(rows,
			[]string{"Avg trade return", pct(m.AvgReturn)},
			[]string{"Best / worst trade", pct(m.BestReturn) + " / " + pct(m.WorstReturn)},
			[]string{"Total profit", money(m.TotalProfit)},
		)
	}
	for _, r := range rows {
		table.Append(r[0], r[1])
	}
	table.Render()
}

func (c *Console) printExitReasons(m domain.Metrics) {
	reasons := make([]string, 0, len(m.ExitReasons))
	for r := range m.ExitReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", r, m.ExitReasons[domain.ExitReason(r)]))
	}
	fmt.Fprintf(c.out, "  Exits: %s\n\n", strings.Join(parts, "  "))
}

func (c *Console) printTrades(trades []domain.Trade) {
	shown := trades
	if c.maxTrades > 0 && len(shown) > c.maxTrades {
		shown = shown[len(shown)-c.maxTrades:]
		fmt.Fprintf(c.out, "  Last %d of %d trades\n", len(shown), len(trades))
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Pair", "Dir", "Entry", "Exit", "Days", "Spread in", "Spread out", "Return", "Profit", "Reason")
	offset := len(trades) - len(shown)
	for i, t := range shown {
		table.Append(
			fmt.Sprintf("%d", offset+i+1),
			t.Pair,
			shortDirection(t.Direction),
			fmtDate(t.EntryDate),
			fmtDate(t.ExitDate),
			fmt.Sprintf("%d", t.HoldingDays),
			pct(t.EntrySpread),
			pct(t.ExitSpread),
			pct(t.Return),
			money(t.Profit),
			string(t.ExitReason),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// PrintSweep imprime el leaderboard del barrido ordenado por Sharpe.
func (c *Console) PrintSweep(results []backtest.SweepResult, top int) {
	var ok []backtest.SweepResult
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if r.Outcome == backtest.OutcomeOK {
			ok = append(ok, r)
		}
	}

	fmt.Fprintf(c.out, "\n=== SWEEP: %d points, %d rejected ===\n", len(results), failed)
	if len(ok) == 0 {
		fmt.Fprintln(c.out, "  No valid sweep points.")
		return
	}

	sort.SliceStable(ok, func(i, j int) bool {
		if ok[i].Metrics.SharpeRatio != ok[j].Metrics.SharpeRatio {
			return ok[i].Metrics.SharpeRatio > ok[j].Metrics.SharpeRatio
		}
		return ok[i].Metrics.FinalReturn > ok[j].Metrics.FinalReturn
	})
	if top > 0 && len(ok) > top {
		ok = ok[:top]
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Entry z", "Exit z", "Stop", "Trades", "Win", "Return", "MDD", "Sharpe", "Excess")
	for i, r := range ok {
		m := r.Metrics
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", r.Params.EntryZ),
			fmt.Sprintf("%.2f", r.Params.ExitZ),
			pct(r.Params.StopLoss),
			fmt.Sprintf("%d", m.TotalTrades),
			pct(m.WinRate),
			pct(m.FinalReturn),
			pct(m.MDD),
			fmt.Sprintf("%.2f", m.SharpeRatio),
			pct(m.ExcessReturn),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// PrintRuns lista los backtests persistidos.
func (c *Console) PrintRuns(runs []ports.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "\n  No backtest runs stored.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Created", "Coin", "Range", "Entry/Exit/Stop", "Trades", "Return", "Sharpe")
	for _, r := range runs {
		table.Append(
			shortID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Coin,
			fmtDate(r.Metrics.StartDate)+" → "+fmtDate(r.Metrics.EndDate),
			fmt.Sprintf("%.2f / %.2f / %s", r.Params.EntryZ, r.Params.ExitZ, pct(r.Params.StopLoss)),
			fmt.Sprintf("%d", r.Metrics.TotalTrades),
			pct(r.Metrics.FinalReturn),
			fmt.Sprintf("%.2f", r.Metrics.SharpeRatio),
		)
	}
	table.Render()
}

// --- helpers ---

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// money formatea con separador de miles y sin decimales (KRW) salvo importes
// pequeños. Redondea con decimal igual que el export CSV.
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	d := decimal.NewFromFloat(v)
	if v > -1000 && v < 1000 {
		return d.StringFixed(2)
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	digits := d.Abs().StringFixed(0)
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	groups := []string{digits[:head]}
	for i := head; i < len(digits); i += 3 {
		groups = append(groups, digits[i:i+3])
	}
	return sign + strings.Join(groups, ",")
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func shortDirection(d domain.Direction) string {
	if d == domain.LongSpread {
		return "LONG"
	}
	return "SHORT"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
