package backtest

import (
	"math"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// CalculateBenchmark devuelve el retorno buy-and-hold del exchange de referencia
// sobre todo el rango cargado (incluido el warm-up). No comparte estado con la
// estrategia. Devuelve 0 si no hay dos precios válidos.
func CalculateBenchmark(rows []domain.PriceRow, exchange string) float64 {
	first, last := math.NaN(), math.NaN()
	for _, row := range rows {
		p := row.Price(exchange)
		if math.IsNaN(p) {
			continue
		}
		if math.IsNaN(first) {
			first = p
		}
		last = p
	}
	if math.IsNaN(first) || math.IsNaN(last) {
		return 0
	}
	return (last - first) / first
}
