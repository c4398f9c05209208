package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
)

// createdLayout tiene ancho fijo para que ORDER BY created_at sea cronológico.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound se devuelve cuando GetRun no encuentra el ID.
var ErrRunNotFound = errors.New("backtest run not found")

const runsSchema = `
-- Un backtest por fila. params y metrics completos como YAML; las métricas
-- principales también como columnas para poder ordenar y filtrar.
CREATE TABLE IF NOT EXISTS backtest_runs (
    id               TEXT PRIMARY KEY,
    coin             TEXT NOT NULL,
    created_at       TEXT NOT NULL,
    start_date       TEXT,
    end_date         TEXT,
    params           TEXT NOT NULL,
    metrics          TEXT NOT NULL,
    total_trades     INTEGER NOT NULL DEFAULT 0,
    final_return     REAL NOT NULL DEFAULT 0,
    sharpe           REAL NOT NULL DEFAULT 0,
    mdd              REAL NOT NULL DEFAULT 0,
    benchmark_return REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS backtest_trades (
    run_id        TEXT NOT NULL,
    seq           INTEGER NOT NULL,
    pair          TEXT NOT NULL,
    direction     TEXT NOT NULL,
    entry_date    TEXT NOT NULL,
    exit_date     TEXT NOT NULL,
    holding_days  INTEGER NOT NULL,
    entry_spread  REAL NOT NULL,
    exit_spread   REAL NOT NULL,
    capital       REAL NOT NULL,
    trade_return  REAL NOT NULL,
    profit        REAL NOT NULL,
    exit_reason   TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS backtest_capital (
    run_id         TEXT NOT NULL,
    date           TEXT NOT NULL,
    capital        REAL NOT NULL,
    unrealized     REAL NOT NULL DEFAULT 0,
    open_positions INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, date)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON backtest_runs(created_at DESC);
`

// SaveRun persiste params, métricas, ledger y curva de capital en una transacción.
// Si run.ID está vacío se genera un UUID.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run ports.RunRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	params, err := yaml.Marshal(run.Params)
	if err != nil {
		return "", fmt.Errorf("storage.SaveRun: marshal params: %w", err)
	}
	metrics, err := yaml.Marshal(run.Metrics)
	if err != nil {
		return "", fmt.Errorf("storage.SaveRun: marshal metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	m := run.Metrics
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, coin, created_at, start_date, end_date, params, metrics,
			 total_trades, final_return, sharpe, mdd, benchmark_return)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, strings.ToUpper(run.Coin), run.CreatedAt.UTC().Format(createdLayout),
		formatDate(m.StartDate), formatDate(m.EndDate),
		string(params), string(metrics),
		m.TotalTrades, m.FinalReturn, m.SharpeRatio, m.MDD, m.BenchmarkReturn,
	); err != nil {
		return "", fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	if err := insertTrades(ctx, tx, run.ID, run.Trades); err != nil {
		return "", fmt.Errorf("storage.SaveRun: %w", err)
	}
	if err := insertCapital(ctx, tx, run.ID, run.Capital); err != nil {
		return "", fmt.Errorf("storage.SaveRun: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns devuelve los últimos runs, más recientes primero, sin ledger ni curva.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, coin, created_at, params, metrics
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []ports.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun devuelve un run completo. ErrRunNotFound si el ID no existe.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (ports.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, coin, created_at, params, metrics FROM backtest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.RunRecord{}, fmt.Errorf("storage.GetRun: %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return ports.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	if run.Trades, err = s.loadTrades(ctx, id); err != nil {
		return ports.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}
	if run.Capital, err = s.loadCapital(ctx, id); err != nil {
		return ports.RunRecord{}, fmt.Errorf("storage.GetRun: %w", err)
	}
	return run, nil
}

// --- helpers internos ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ports.RunRecord, error) {
	var run ports.RunRecord
	var created, params, metrics string
	if err := row.Scan(&run.ID, &run.Coin, &created, &params, &metrics); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.CreatedAt, _ = time.Parse(createdLayout, created)
	if err := yaml.Unmarshal([]byte(params), &run.Params); err != nil {
		return run, fmt.Errorf("run %s: decode params: %w", run.ID, err)
	}
	if err := yaml.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
		return run, fmt.Errorf("run %s: decode metrics: %w", run.ID, err)
	}
	return run, nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, runID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, seq, pair, direction, entry_date, exit_date, holding_days,
			 entry_spread, exit_spread, capital, trade_return, profit, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer stmt.Close()

	for i, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			runID, i, t.Pair, string(t.Direction),
			formatDate(t.EntryDate), formatDate(t.ExitDate), t.HoldingDays,
			t.EntrySpread, t.ExitSpread, t.CapitalAllocated, t.Return, t.Profit,
			string(t.ExitReason),
		); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}
	return nil
}

func insertCapital(ctx context.Context, tx *sql.Tx, runID string, capital []domain.DailyCapital) error {
	if len(capital) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_capital (run_id, date, capital, unrealized, open_positions)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare capital: %w", err)
	}
	defer stmt.Close()

	for _, c := range capital {
		if _, err := stmt.ExecContext(ctx,
			runID, formatDate(c.Date), c.Capital, c.Unrealized, c.OpenPositions,
		); err != nil {
			return fmt.Errorf("insert capital %s: %w", formatDate(c.Date), err)
		}
	}
	return nil
}

func (s *SQLiteStorage) loadTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair, direction, entry_date, exit_date, holding_days,
		       entry_spread, exit_spread, capital, trade_return, profit, exit_reason
		FROM backtest_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction, entry, exit, reason string
		if err := rows.Scan(
			&t.Pair, &direction, &entry, &exit, &t.HoldingDays,
			&t.EntrySpread, &t.ExitSpread, &t.CapitalAllocated, &t.Return, &t.Profit,
			&reason,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Direction = domain.Direction(direction)
		t.ExitReason = domain.ExitReason(reason)
		t.EntryDate, _ = time.Parse(dateLayout, entry)
		t.ExitDate, _ = time.Parse(dateLayout, exit)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStorage) loadCapital(ctx context.Context, runID string) ([]domain.DailyCapital, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, capital, unrealized, open_positions
		FROM backtest_capital WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, fmt.Errorf("query capital: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyCapital
	for rows.Next() {
		var c domain.DailyCapital
		var date string
		if err := rows.Scan(&date, &c.Capital, &c.Unrealized, &c.OpenPositions); err != nil {
			return nil, fmt.Errorf("scan capital: %w", err)
		}
		c.Date, _ = time.Parse(dateLayout, date)
		out = append(out, c)
	}
	return out, rows.Err()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
