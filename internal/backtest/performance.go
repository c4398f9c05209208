package backtest

import (
	"math"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

const daysPerYear = 365

// AnalyzePerformance reduce el ledger y la curva de capital a métricas.
// Con cero trades o curva vacía todos los ratios quedan en 0, nunca NaN.
func AnalyzePerformance(
	trades []domain.Trade,
	capital []domain.DailyCapital,
	benchmarkReturn, initialCapital float64,
) domain.Metrics {
	m := domain.Metrics{
		TotalTrades:     len(trades),
		InitialCapital:  initialCapital,
		FinalCapital:    initialCapital,
		BenchmarkReturn: benchmarkReturn,
		ExitReasons:     make(map[domain.ExitReason]int),
	}

	if len(capital) > 0 {
		first, last := capital[0], capital[len(capital)-1]
		m.StartDate = first.Date
		m.EndDate = last.Date
		m.TradingDays = len(capital)
		m.FinalCapital = last.Capital
		if initialCapital > 0 {
			m.FinalReturn = (last.Capital - initialCapital) / initialCapital
		}
		m.AnnualReturn = annualize(m.FinalReturn, domain.DaysBetween(first.Date, last.Date))
		m.MDD = maxDrawdown(capital)
		m.SharpeRatio = sharpe(capital)
	}
	m.ExcessReturn = m.FinalReturn - benchmarkReturn

	if len(trades) == 0 {
		return m
	}

	wins, holding := 0, 0
	m.BestReturn = math.Inf(-1)
	m.WorstReturn = math.Inf(1)
	for _, t := range trades {
		if t.Return > 0 {
			wins++
		}
		holding += t.HoldingDays
		if t.HoldingDays > m.MaxHoldingDays {
			m.MaxHoldingDays = t.HoldingDays
		}
		m.TotalProfit += t.Profit
		m.AvgReturn += t.Return
		m.BestReturn = math.Max(m.BestReturn, t.Return)
		m.WorstReturn = math.Min(m.WorstReturn, t.Return)
		m.ExitReasons[t.ExitReason]++
	}
	n := float64(len(trades))
	m.WinRate = float64(wins) / n
	m.AvgHoldingDays = float64(holding) / n
	m.AvgReturn /= n
	return m
}

// annualize compone el retorno total a un año de 365 días.
func annualize(total float64, elapsedDays int) float64 {
	if elapsedDays <= 0 {
		return 0
	}
	if total <= -1 {
		return -1
	}
	return math.Pow(1+total, daysPerYear/float64(elapsedDays)) - 1
}

// maxDrawdown devuelve la peor caída desde el máximo previo, como fracción ≤ 0.
func maxDrawdown(capital []domain.DailyCapital) float64 {
	peak := math.Inf(-1)
	mdd := 0.0
	for _, c := range capital {
		if c.Capital > peak {
			peak = c.Capital
		}
		if peak <= 0 {
			continue
		}
		if dd := (c.Capital - peak) / peak; dd < mdd {
			mdd = dd
		}
	}
	return mdd
}

// sharpe: media/std de los retornos diarios de la curva, anualizado con √365.
func sharpe(capital []domain.DailyCapital) float64 {
	if len(capital) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(capital)-1)
	for i := 1; i < len(capital); i++ {
		prev := capital[i-1].Capital
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, capital[i].Capital/prev-1)
	}

	mean, std, ok := meanStd(returns)
	if !ok || std <= flatStdEpsilon {
		return 0
	}
	return mean / std * math.Sqrt(daysPerYear)
}
