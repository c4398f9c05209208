package backtest

// indicators.go: premium por par y z-score rolling sin look-ahead.
//
// Cada ventana se calcula de forma independiente sobre rows[i-window+1 : i+1],
// así el z-score de la fecha d es idéntico (bit a bit) calculado sobre el
// histórico completo o sobre el histórico truncado en d.

import (
	"math"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// flatStdEpsilon: por debajo de esto la ventana se considera plana y z = 0.
// Una serie constante no da std exactamente 0 en float64.
const flatStdEpsilon = 1e-12

// CalculateIndicators computes the premium and rolling z-score of every
// configured pair. The first RollingWindow-1 rows are dropped; fewer rows than
// the window yields an empty (nil) result, which callers must check.
func CalculateIndicators(rows []domain.PriceRow, params domain.Params) []domain.IndicatorRow {
	window := params.RollingWindow
	if window < 1 || len(rows) < window {
		return nil
	}

	pairs := params.AllPairs()
	premiums := make(map[string][]float64, len(pairs))
	for _, pair := range pairs {
		premiums[pair.Name()] = premiumSeries(rows, pair, params)
	}

	out := make([]domain.IndicatorRow, 0, len(rows)-window+1)
	for i := window - 1; i < len(rows); i++ {
		spreads := make(map[string]domain.PairSpread, len(pairs))
		for _, pair := range pairs {
			series := premiums[pair.Name()]
			spreads[pair.Name()] = spreadAt(series[i-window+1:i+1], series[i])
		}
		out = append(out, domain.IndicatorRow{Date: rows[i].Date, Spreads: spreads})
	}
	return out
}

// premiumSeries calcula el premium diario de un par. NaN donde falte un precio.
func premiumSeries(rows []domain.PriceRow, pair domain.Pair, params domain.Params) []float64 {
	exA, okA := params.Exchange(pair.A)
	exB, okB := params.Exchange(pair.B)

	out := make([]float64, len(rows))
	for i, row := range rows {
		if !okA || !okB {
			out[i] = math.NaN()
			continue
		}
		out[i] = Premium(row.USDPrice(exA), row.USDPrice(exB), params.PremiumMode)
	}
	return out
}

// Premium mide el diferencial de A sobre B, ambos ya en USD.
func Premium(a, b float64, mode domain.PremiumMode) float64 {
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return math.NaN()
	}
	if mode == domain.PremiumLog {
		return math.Log(a / b)
	}
	return (a - b) / b
}

// spreadAt calcula mean/std de la ventana trailing (incluye la fila actual).
func spreadAt(window []float64, current float64) domain.PairSpread {
	s := domain.PairSpread{Premium: current}

	mean, std, ok := meanStd(window)
	if !ok || math.IsNaN(current) {
		s.Mean, s.Std, s.ZScore = math.NaN(), math.NaN(), math.NaN()
		return s
	}

	s.Mean = mean
	s.Std = std
	if std <= flatStdEpsilon*math.Max(1, math.Abs(mean)) {
		s.Std = 0
		s.ZScore = 0
		return s
	}
	s.ZScore = (current - mean) / std
	return s
}

// meanStd devuelve media y desviación estándar muestral (n-1).
// ok = false si algún valor no es finito o hay menos de 2 valores.
func meanStd(values []float64) (mean, std float64, ok bool) {
	if len(values) < 2 {
		return 0, 0, false
	}
	sum := 0.0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, false
		}
		sum += v
	}
	mean = sum / float64(len(values))

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(len(values)-1))
	return mean, std, true
}
