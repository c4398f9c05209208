package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// RunRecord es un backtest persistido.
type RunRecord struct {
	ID        string
	Coin      string
	CreatedAt time.Time
	Params    domain.Params
	Metrics   domain.Metrics
	Trades    []domain.Trade
	Capital   []domain.DailyCapital
}

// RunStorage persiste los resultados de cada backtest.
type RunStorage interface {
	// SaveRun guarda params, métricas, ledger y curva de capital. Devuelve el ID.
	SaveRun(ctx context.Context, run RunRecord) (string, error)

	// ListRuns devuelve los últimos `limit` runs (sin ledger ni curva), más recientes primero.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetRun devuelve un run completo, con ledger y curva de capital.
	GetRun(ctx context.Context, id string) (RunRecord, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
