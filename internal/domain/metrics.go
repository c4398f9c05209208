package domain

import "time"

// Metrics es el resumen de rendimiento de un backtest.
// Todos los campos son cero (nunca NaN) cuando no hubo trades.
type Metrics struct {
	StartDate   time.Time
	EndDate     time.Time
	TradingDays int

	TotalTrades    int
	WinRate        float64 // fracción 0..1 de trades con Return > 0
	InitialCapital float64
	FinalCapital   float64
	FinalReturn    float64
	AnnualReturn   float64
	MDD            float64 // siempre ≤ 0
	SharpeRatio    float64

	BenchmarkReturn float64
	ExcessReturn    float64

	AvgHoldingDays float64
	MaxHoldingDays int // observado, no el límite configurado

	TotalProfit float64
	AvgReturn   float64
	BestReturn  float64
	WorstReturn float64
	ExitReasons map[ExitReason]int
}
