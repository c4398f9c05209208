package domain

import "time"

// Direction es el lado de la apuesta sobre el spread.
type Direction string

const (
	LongSpread  Direction = "long_spread"  // apuesta a que el premium sube
	ShortSpread Direction = "short_spread" // apuesta a que el premium revierte a la baja
)

// DirectionFor maps an entry signal to the position direction.
func DirectionFor(k SignalKind) Direction {
	if k == SignalEnterShortSpread {
		return ShortSpread
	}
	return LongSpread
}

// ExitReason explica por qué se cerró una posición.
type ExitReason string

const (
	ExitSignal         ExitReason = "signal_exit"
	ExitStopLoss       ExitReason = "stop_loss"
	ExitMaxHoldingDays ExitReason = "max_holding_days"
	ExitEndOfData      ExitReason = "end_of_data" // cierre forzado en la última barra
)

// Position es una operación de arbitraje abierta. Solo el motor de posiciones la muta.
type Position struct {
	Pair             Pair
	Direction        Direction
	EntryDate        time.Time
	EntrySpread      float64 // premium en la entrada
	EntryLevel       float64 // nivel del spread (1+premium o e^premium)
	CapitalAllocated float64
	HoldingDays      int
}

// Trade es una fila del ledger: una posición cerrada. Inmutable una vez creada.
type Trade struct {
	Pair             string
	Direction        Direction
	EntryDate        time.Time
	ExitDate         time.Time
	HoldingDays      int
	EntrySpread      float64
	ExitSpread       float64
	CapitalAllocated float64
	Return           float64 // neto de fee y slippage en ambas patas
	Profit           float64 // CapitalAllocated × Return
	ExitReason       ExitReason
}

// DailyCapital es una fila de la curva de capital.
// Capital solo cambia en fechas de cierre; Unrealized es informativo.
type DailyCapital struct {
	Date          time.Time
	Capital       float64
	Unrealized    float64
	OpenPositions int
}
