package storage

// sqlite.go: velas diarias, tipos de cambio y el loader alineado.
//
// Estrategia:
//   - `daily_candles`: UNA fila por (exchange, coin, date). UPSERT: volver a
//     descargar un rango reescribe las velas sin duplicar.
//   - `fx_rates`: UNA fila por fecha, moneda local por USD.
//   - Fechas como TEXT YYYY-MM-DD en UTC: el orden lexicográfico es el
//     cronológico y no hay ambigüedad de zona horaria.
//   - LoadPrices construye una fila por día del calendario con forward-fill;
//     el motor nunca ve huecos.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

const schema = `
-- Velas diarias por exchange, en la moneda de cotización del venue
CREATE TABLE IF NOT EXISTS daily_candles (
    exchange   TEXT NOT NULL,
    coin       TEXT NOT NULL,
    date       TEXT NOT NULL,
    open       REAL NOT NULL DEFAULT 0,
    high       REAL NOT NULL DEFAULT 0,
    low        REAL NOT NULL DEFAULT 0,
    close      REAL NOT NULL,
    volume     REAL NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (exchange, coin, date)
);

-- Moneda local por USD
CREATE TABLE IF NOT EXISTS fx_rates (
    date TEXT PRIMARY KEY,
    rate REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candles_coin_date ON daily_candles(coin, date);
`

// SQLiteStorage implementa ports.PriceProvider, ports.CandleStorage y
// ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	for _, ddl := range []string{schema, runsSchema} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
		}
	}

	return &SQLiteStorage{db: db}, nil
}

// SaveCandles hace upsert de las velas en una sola transacción.
func (s *SQLiteStorage) SaveCandles(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCandles: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_candles
			(exchange, coin, date, open, high, low, close, volume, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(exchange, coin, date) DO UPDATE SET
			open       = excluded.open,
			high       = excluded.high,
			low        = excluded.low,
			close      = excluded.close,
			volume     = excluded.volume,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveCandles: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.Exchange,
			strings.ToUpper(c.Coin),
			domain.Day(c.Date).Format(dateLayout),
			c.Open, c.High, c.Low, c.Close, c.Volume,
			now,
		); err != nil {
			return fmt.Errorf("storage.SaveCandles: upsert %s %s %s: %w",
				c.Exchange, c.Coin, c.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCandles: commit: %w", err)
	}
	return nil
}

// SaveFXRates hace upsert de los tipos de cambio.
func (s *SQLiteStorage) SaveFXRates(ctx context.Context, rates []domain.FXRate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveFXRates: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fx_rates (date, rate) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET rate = excluded.rate
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveFXRates: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rates {
		if _, err := stmt.ExecContext(ctx, domain.Day(r.Date).Format(dateLayout), r.Rate); err != nil {
			return fmt.Errorf("storage.SaveFXRates: upsert %s: %w", r.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveFXRates: commit: %w", err)
	}
	return nil
}

// LoadPrices devuelve una fila por día de calendario en [from, to].
//
// Cada exchange y el FX se rellenan hacia delante (se usan observaciones
// anteriores a from si existen). Los días previos a la primera observación
// de algún exchange, o del FX cuando hay exchanges LOCAL, se descartan.
// Devuelve ports.ErrNoData si no queda ninguna fila.
func (s *SQLiteStorage) LoadPrices(ctx context.Context, coin string, exchanges []domain.Exchange, from, to time.Time) ([]domain.PriceRow, error) {
	from, to = domain.Day(from), domain.Day(to)
	if from.After(to) {
		return nil, fmt.Errorf("storage.LoadPrices: from %s after to %s",
			from.Format(dateLayout), to.Format(dateLayout))
	}
	coin = strings.ToUpper(coin)

	closes := make(map[string]map[string]float64, len(exchanges))
	needFX := false
	for _, ex := range exchanges {
		series, err := s.loadCloses(ctx, ex.Name, coin, to)
		if err != nil {
			return nil, fmt.Errorf("storage.LoadPrices: %w", err)
		}
		closes[ex.Name] = series
		if ex.Quote == domain.QuoteLocal {
			needFX = true
		}
	}

	var fx map[string]float64
	if needFX {
		var err error
		if fx, err = s.loadFX(ctx, to); err != nil {
			return nil, fmt.Errorf("storage.LoadPrices: %w", err)
		}
	}

	// Último valor conocido por exchange, arrancando desde la observación más
	// reciente anterior a from.
	last := make(map[string]float64, len(exchanges))
	for name, series := range closes {
		if v, ok := latestBefore(series, from); ok {
			last[name] = v
		}
	}
	lastFX := 1.0
	haveFX := !needFX
	if needFX {
		lastFX, haveFX = latestBefore(fx, from)
	}

	var rows []domain.PriceRow
	filled := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		for name, series := range closes {
			if v, ok := series[key]; ok {
				last[name] = v
			} else if _, seen := last[name]; seen {
				filled++
			}
		}
		if needFX {
			if v, ok := fx[key]; ok {
				lastFX, haveFX = v, true
			}
		}

		if len(last) < len(exchanges) || !haveFX {
			continue
		}

		row := domain.PriceRow{
			Date:   day,
			Close:  make(map[string]float64, len(exchanges)),
			FXRate: lastFX,
		}
		for name, v := range last {
			row.Close[name] = v
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ports.ErrNoData
	}

	slog.Debug("prices loaded",
		"coin", coin,
		"rows", len(rows),
		"forward_filled", filled,
		"first", rows[0].Date.Format(dateLayout),
		"last", rows[len(rows)-1].Date.Format(dateLayout),
	)
	return rows, nil
}

// CandleCount devuelve cuántas velas hay guardadas por exchange para una moneda.
func (s *SQLiteStorage) CandleCount(ctx context.Context, coin string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exchange, COUNT(*) FROM daily_candles WHERE coin = ? GROUP BY exchange`,
		strings.ToUpper(coin),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.CandleCount: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var ex string
		var n int
		if err := rows.Scan(&ex, &n); err != nil {
			return nil, fmt.Errorf("storage.CandleCount: scan row: %w", err)
		}
		out[ex] = n
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStorage) loadCloses(ctx context.Context, exchange, coin string, to time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, close FROM daily_candles
		 WHERE exchange = ? AND coin = ? AND date <= ? AND close > 0`,
		exchange, coin, to.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query candles %s: %w", exchange, err)
	}
	return scanSeries(rows)
}

func (s *SQLiteStorage) loadFX(ctx context.Context, to time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, rate FROM fx_rates WHERE date <= ? AND rate > 0`,
		to.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query fx: %w", err)
	}
	return scanSeries(rows)
}

func scanSeries(rows *sql.Rows) (map[string]float64, error) {
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var date string
		var v float64
		if err := rows.Scan(&date, &v); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[date] = v
	}
	return out, rows.Err()
}

// latestBefore devuelve el valor de la fecha más reciente estrictamente anterior a day.
func latestBefore(series map[string]float64, day time.Time) (float64, bool) {
	cutoff := day.Format(dateLayout)
	best := ""
	for date := range series {
		if date < cutoff && date > best {
			best = date
		}
	}
	if best == "" {
		return 0, false
	}
	return series[best], true
}
