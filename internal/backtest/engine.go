package backtest

// engine.go: máquina de estados de posiciones (flat → open → flat) por par.
//
// Orden fijo de transiciones en cada barra y para cada par:
//  1. open y holding_days ≥ max_holding_days → cierre max_holding_days
//  2. open y retorno no realizado ≤ stop_loss  → cierre stop_loss
//  3. open y señal exit                         → cierre signal_exit
//  4. flat y señal de entrada                   → abrir posición
//  5. en otro caso se mantiene el estado
//
// Como mucho una transición por par y barra: una posición cerrada hoy no
// se reabre hasta la barra siguiente. En la última barra no se abre nada:
// lo que siga abierto se cierra con end_of_data.

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

type positionEngine struct {
	params    domain.Params
	pairs     []domain.Pair
	open      map[string]*domain.Position
	lastLevel map[string]float64 // último nivel válido del spread por par
	realized  float64
	trades    []domain.Trade
}

// RunBacktest simula el ciclo de vida de las posiciones sobre las señales y
// devuelve el ledger de trades y la curva de capital diaria (una fila por fecha).
func RunBacktest(signals []domain.SignalRow, params domain.Params) ([]domain.Trade, []domain.DailyCapital) {
	e := &positionEngine{
		params:    params,
		pairs:     params.ActivePairs(),
		open:      make(map[string]*domain.Position),
		lastLevel: make(map[string]float64),
	}

	capital := make([]domain.DailyCapital, 0, len(signals))
	for i, row := range signals {
		last := i == len(signals)-1
		e.step(row, !last)
		if last {
			e.closeAll(row)
		}
		capital = append(capital, e.snapshot(row))
	}

	return e.trades, capital
}

// step aplica las transiciones de una barra a todos los pares en orden.
// Con allowEntry=false solo se evalúan salidas.
func (e *positionEngine) step(row domain.SignalRow, allowEntry bool) {
	for _, pair := range e.pairs {
		name := pair.Name()
		spread := row.Spreads[name]
		signal := row.Signals[name]

		level, levelOK := spreadLevel(spread.Premium, e.params.PremiumMode)
		if levelOK {
			e.lastLevel[name] = level
		}

		pos := e.open[name]
		if pos != nil {
			pos.HoldingDays = domain.DaysBetween(pos.EntryDate, row.Date)
			if !levelOK {
				// dato faltante: mantener, nunca cerrar por falta de datos
				continue
			}
			ret := positionReturn(pos.Direction, pos.EntryLevel, level, e.params.CostRate())

			switch {
			case pos.HoldingDays >= e.params.MaxHoldingDays:
				e.close(pos, row, spread.Premium, ret, domain.ExitMaxHoldingDays)
			case ret <= e.params.StopLoss:
				e.close(pos, row, spread.Premium, ret, domain.ExitStopLoss)
			case signal == domain.SignalExit:
				e.close(pos, row, spread.Premium, ret, domain.ExitSignal)
			}
			continue
		}

		if !allowEntry || !signal.IsEntry() || !spread.Valid() || !levelOK {
			continue
		}
		e.openPosition(pair, signal, row, spread.Premium, level)
	}
}

func (e *positionEngine) openPosition(pair domain.Pair, signal domain.SignalKind, row domain.SignalRow, premium, level float64) {
	total := e.params.InitialCapital + e.realized
	alloc := math.Min(e.params.AllocationFraction*total, e.available())
	if alloc <= 0 {
		slog.Debug("backtest: entry skipped, no capital available",
			"pair", pair.Name(),
			"date", row.Date.Format("2006-01-02"),
		)
		return
	}

	pos := &domain.Position{
		Pair:             pair,
		Direction:        domain.DirectionFor(signal),
		EntryDate:        row.Date,
		EntrySpread:      premium,
		EntryLevel:       level,
		CapitalAllocated: alloc,
	}
	e.open[pair.Name()] = pos

	slog.Debug("backtest: position opened",
		"pair", pair.Name(),
		"direction", pos.Direction,
		"date", row.Date.Format("2006-01-02"),
		"premium", fmt.Sprintf("%.4f%%", premium*100),
		"z", fmt.Sprintf("%.2f", row.Spreads[pair.Name()].ZScore),
		"capital", fmt.Sprintf("%.0f", alloc),
	)
}

func (e *positionEngine) close(pos *domain.Position, row domain.SignalRow, premium, ret float64, reason domain.ExitReason) {
	t := domain.Trade{
		Pair:             pos.Pair.Name(),
		Direction:        pos.Direction,
		EntryDate:        pos.EntryDate,
		ExitDate:         row.Date,
		HoldingDays:      domain.DaysBetween(pos.EntryDate, row.Date),
		EntrySpread:      pos.EntrySpread,
		ExitSpread:       premium,
		CapitalAllocated: pos.CapitalAllocated,
		Return:           ret,
		Profit:           pos.CapitalAllocated * ret,
		ExitReason:       reason,
	}
	e.trades = append(e.trades, t)
	e.realized += t.Profit
	delete(e.open, pos.Pair.Name())

	slog.Debug("backtest: position closed",
		"pair", t.Pair,
		"reason", reason,
		"date", row.Date.Format("2006-01-02"),
		"holding_days", t.HoldingDays,
		"return", fmt.Sprintf("%.4f%%", ret*100),
		"profit", fmt.Sprintf("%.0f", t.Profit),
	)
}

// closeAll cierra lo que siga abierto en la última barra, al último spread conocido.
func (e *positionEngine) closeAll(row domain.SignalRow) {
	for _, pair := range e.pairs {
		pos := e.open[pair.Name()]
		if pos == nil {
			continue
		}
		level, ok := e.lastLevel[pair.Name()]
		if !ok {
			level = pos.EntryLevel
		}
		premium := premiumFromLevel(level, e.params.PremiumMode)
		ret := positionReturn(pos.Direction, pos.EntryLevel, level, e.params.CostRate())
		e.close(pos, row, premium, ret, domain.ExitEndOfData)
	}
}

// available es el capital no comprometido en posiciones abiertas. Nunca negativo.
func (e *positionEngine) available() float64 {
	allocated := 0.0
	for _, pos := range e.open {
		allocated += pos.CapitalAllocated
	}
	return math.Max(0, e.params.InitialCapital+e.realized-allocated)
}

func (e *positionEngine) snapshot(row domain.SignalRow) domain.DailyCapital {
	unrealized := 0.0
	for _, pair := range e.pairs {
		pos := e.open[pair.Name()]
		if pos == nil {
			continue
		}
		if level, ok := e.lastLevel[pair.Name()]; ok {
			unrealized += pos.CapitalAllocated * positionReturn(pos.Direction, pos.EntryLevel, level, e.params.CostRate())
		}
	}
	return domain.DailyCapital{
		Date:          row.Date,
		Capital:       e.params.InitialCapital + e.realized,
		Unrealized:    unrealized,
		OpenPositions: len(e.open),
	}
}

// spreadLevel convierte el premium en el ratio A/B que se opera.
func spreadLevel(premium float64, mode domain.PremiumMode) (float64, bool) {
	if math.IsNaN(premium) || math.IsInf(premium, 0) {
		return 0, false
	}
	level := 1 + premium
	if mode == domain.PremiumLog {
		level = math.Exp(premium)
	}
	if !(level > 0) || math.IsInf(level, 0) {
		return 0, false
	}
	return level, true
}

func premiumFromLevel(level float64, mode domain.PremiumMode) float64 {
	if mode == domain.PremiumLog {
		return math.Log(level)
	}
	return level - 1
}

// positionReturn es el retorno neto si la posición se cerrase a exitLevel.
// El coste c (fee + slippage) se aplica en ambas patas.
func positionReturn(dir domain.Direction, entryLevel, exitLevel, c float64) float64 {
	if dir == domain.ShortSpread {
		return entryLevel*(1-c)/(exitLevel*(1+c)) - 1
	}
	return exitLevel*(1-c)/(entryLevel*(1+c)) - 1
}
