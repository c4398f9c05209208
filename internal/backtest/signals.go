package backtest

import (
	"math"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

// GenerateSignals maps every indicator row to one signal per active pair.
// Pairs listed in ExcludePairs are left out of the output entirely.
func GenerateSignals(ind []domain.IndicatorRow, params domain.Params) []domain.SignalRow {
	pairs := params.ActivePairs()

	out := make([]domain.SignalRow, 0, len(ind))
	for _, row := range ind {
		sr := domain.SignalRow{
			Date:    row.Date,
			Signals: make(map[string]domain.SignalKind, len(pairs)),
			Spreads: make(map[string]domain.PairSpread, len(pairs)),
		}
		for _, pair := range pairs {
			spread, ok := row.Spreads[pair.Name()]
			if !ok {
				sr.Signals[pair.Name()] = domain.SignalNone
				sr.Spreads[pair.Name()] = domain.PairSpread{
					Premium: math.NaN(), Mean: math.NaN(), Std: math.NaN(), ZScore: math.NaN(),
				}
				continue
			}
			sr.Signals[pair.Name()] = Classify(spread.ZScore, params.EntryZ, params.ExitZ)
			sr.Spreads[pair.Name()] = spread
		}
		out = append(out, sr)
	}
	return out
}

// Classify convierte un z-score en señal. La salida gana en caso de empate:
// cerrar exposición tiene prioridad sobre abrir.
func Classify(z, entryZ, exitZ float64) domain.SignalKind {
	switch {
	case math.IsNaN(z) || math.IsInf(z, 0):
		return domain.SignalNone
	case math.Abs(z) <= exitZ:
		return domain.SignalExit
	case z >= entryZ:
		return domain.SignalEnterShortSpread
	case z <= -entryZ:
		return domain.SignalEnterLongSpread
	default:
		return domain.SignalNone
	}
}
