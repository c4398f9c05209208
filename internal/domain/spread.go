package domain

import (
	"math"
	"time"
)

// PairSpread es el premium de un par en una fecha y su z-score rolling.
type PairSpread struct {
	Premium float64
	Mean    float64
	Std     float64
	ZScore  float64 // NaN si la ventana contiene datos faltantes
}

// Valid reports whether the spread can drive a transition on this bar.
func (s PairSpread) Valid() bool {
	return !math.IsNaN(s.Premium) && !math.IsNaN(s.ZScore) &&
		!math.IsInf(s.Premium, 0) && !math.IsInf(s.ZScore, 0)
}

// IndicatorRow is one post-warm-up date with the spread of every configured pair,
// keyed by Pair.Name().
type IndicatorRow struct {
	Date    time.Time
	Spreads map[string]PairSpread
}

// SignalKind is the discrete per-pair action emitted for a bar.
type SignalKind string

const (
	SignalNone             SignalKind = "none"
	SignalEnterLongSpread  SignalKind = "enter_long_spread"
	SignalEnterShortSpread SignalKind = "enter_short_spread"
	SignalExit             SignalKind = "exit"
)

// IsEntry reports whether the signal opens exposure.
func (k SignalKind) IsEntry() bool {
	return k == SignalEnterLongSpread || k == SignalEnterShortSpread
}

// SignalRow carries the signals of one date together with the spreads that
// produced them, so the position engine can mark positions to market.
type SignalRow struct {
	Date    time.Time
	Signals map[string]SignalKind
	Spreads map[string]PairSpread
}
