package ports

import (
	"context"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// Reporter presenta el resultado de un backtest al usuario.
type Reporter interface {
	// Report muestra métricas y ledger. En consola imprime tablas.
	Report(ctx context.Context, coin string, metrics domain.Metrics, trades []domain.Trade) error

	// PrintInsufficient avisa de que no hubo simulación y por qué.
	PrintInsufficient(coin, reason string)

	// PrintRuns lista backtests persistidos (sin ledger).
	PrintRuns(runs []RunRecord)
}
