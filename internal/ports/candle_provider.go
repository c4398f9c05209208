package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// CandleProvider descarga velas diarias históricas de un exchange.
type CandleProvider interface {
	Name() string
	Quote() domain.Currency
	FetchDailyCandles(ctx context.Context, coin string, from, to time.Time) ([]domain.Candle, error)
}

// CandleStorage persiste velas y tipos de cambio descargados o importados.
type CandleStorage interface {
	SaveCandles(ctx context.Context, candles []domain.Candle) error
	SaveFXRates(ctx context.Context, rates []domain.FXRate) error
}
