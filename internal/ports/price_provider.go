package ports

import (
	"context"
	"errors"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// ErrNoData indica que el proveedor no tiene filas para el rango pedido.
var ErrNoData = errors.New("no price data for requested range")

// PriceProvider es el Aligned Price Series Provider: una fila por día en
// [from, to], sin huecos, con el cierre de cada exchange y el FX diario.
type PriceProvider interface {
	// LoadPrices devuelve las filas ordenadas por fecha ascendente.
	// Los huecos internos vienen ya rellenados (forward-fill); las fechas
	// anteriores a la primera observación de algún exchange se excluyen.
	LoadPrices(ctx context.Context, coin string, exchanges []domain.Exchange, from, to time.Time) ([]domain.PriceRow, error)
}
