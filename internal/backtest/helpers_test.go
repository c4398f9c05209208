package backtest

import (
	"math"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

const testFX = 1300.0

var (
	exUpbit   = domain.Exchange{Name: "upbit", Quote: domain.QuoteLocal}
	exBinance = domain.Exchange{Name: "binance", Quote: domain.QuoteUSD}
	day0      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func testParams() domain.Params {
	p := domain.DefaultParams(exUpbit, exBinance)
	p.EntryZ = 2.5
	p.ExitZ = 0.5
	p.StopLoss = -0.03
	p.MaxHoldingDays = 30
	return p
}

func dayN(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

// basePremium oscila ±0.2% alrededor de 2% con periodo de 10 días.
// Su z-score rolling (ventana 30) nunca supera ~1.4.
func basePremium(i int) float64 {
	return 0.02 + 0.002*math.Sin(2*math.Pi*float64(i)/10)
}

// makeRows construye filas donde upbit (KRW) cotiza con el premium dado
// sobre binance (USD), que sube 10 USD al día.
func makeRows(premiums []float64) []domain.PriceRow {
	rows := make([]domain.PriceRow, len(premiums))
	for i, p := range premiums {
		b := 40000.0 + float64(i)*10
		rows[i] = domain.PriceRow{
			Date:   dayN(i),
			FXRate: testFX,
			Close: map[string]float64{
				"binance": b,
				"upbit":   b * (1 + p) * testFX,
			},
		}
	}
	return rows
}

// premiumSeriesWith devuelve 90 días de premium base más los extras por día.
func premiumSeriesWith(extra map[int]float64) []float64 {
	out := make([]float64, 90)
	for i := range out {
		out[i] = basePremium(i) + extra[i]
	}
	return out
}

// spikeReverting: +5% el día 45 que revierte linealmente a 0 el día 50.
func spikeReverting(sign float64) map[int]float64 {
	return map[int]float64{
		45: sign * 0.05, 46: sign * 0.04, 47: sign * 0.03,
		48: sign * 0.02, 49: sign * 0.01,
	}
}

// spikeWidening: el premium sigue abriéndose tras la entrada antes de revertir.
func spikeWidening() map[int]float64 {
	return map[int]float64{
		45: 0.05, 46: 0.06, 47: 0.09, 48: 0.08,
		49: 0.06, 50: 0.04, 51: 0.02,
	}
}
