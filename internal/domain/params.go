package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams marca una configuración que no permite un backtest con sentido.
var ErrInvalidParams = errors.New("invalid backtest parameters")

// PremiumMode selecciona cómo se mide el diferencial entre exchanges.
type PremiumMode string

const (
	PremiumPct PremiumMode = "pct" // (A − B) / B
	PremiumLog PremiumMode = "log" // ln(A / B)
)

const (
	DefaultInitialCapital     = 100_000_000
	DefaultFeeRate            = 0.0005
	DefaultSlippage           = 0.0002
	DefaultEntryZ             = 2.0
	DefaultExitZ              = 0.5
	DefaultStopLoss           = -0.03
	DefaultMaxHoldingDays     = 30
	DefaultRollingWindow      = 30
	DefaultAllocationFraction = 1.0
)

// Params are the construction parameters of one backtest run.
type Params struct {
	InitialCapital     float64     `yaml:"initial_capital"`
	FeeRate            float64     `yaml:"fee_rate"`
	Slippage           float64     `yaml:"slippage"`
	EntryZ             float64     `yaml:"entry_z"`
	ExitZ              float64     `yaml:"exit_z"`
	StopLoss           float64     `yaml:"stop_loss"`
	MaxHoldingDays     int         `yaml:"max_holding_days"`
	RollingWindow      int         `yaml:"rolling_window"`
	AllocationFraction float64     `yaml:"allocation_fraction"` // fracción del capital total por entrada
	PremiumMode        PremiumMode `yaml:"premium_mode"`
	Exchanges          []Exchange  `yaml:"exchanges"`
	Pairs              []Pair      `yaml:"pairs"`         // vacío = todas las combinaciones
	ExcludePairs       []string    `yaml:"exclude_pairs"` // nombres "A/B"
	BenchmarkExchange  string      `yaml:"benchmark_exchange"`
}

// DefaultParams devuelve los parámetros por defecto para los exchanges dados.
func DefaultParams(exchanges ...Exchange) Params {
	return Params{
		InitialCapital:     DefaultInitialCapital,
		FeeRate:            DefaultFeeRate,
		Slippage:           DefaultSlippage,
		EntryZ:             DefaultEntryZ,
		ExitZ:              DefaultExitZ,
		StopLoss:           DefaultStopLoss,
		MaxHoldingDays:     DefaultMaxHoldingDays,
		RollingWindow:      DefaultRollingWindow,
		AllocationFraction: DefaultAllocationFraction,
		PremiumMode:        PremiumPct,
		Exchanges:          exchanges,
	}
}

// AllPairs returns the configured pairs, or every combination when none is set.
func (p Params) AllPairs() []Pair {
	if len(p.Pairs) > 0 {
		return p.Pairs
	}
	return DefaultPairs(p.Exchanges)
}

// ActivePairs devuelve los pares que generan señales (AllPairs menos ExcludePairs).
func (p Params) ActivePairs() []Pair {
	var out []Pair
	for _, pair := range p.AllPairs() {
		if !p.IsExcluded(pair) {
			out = append(out, pair)
		}
	}
	return out
}

func (p Params) IsExcluded(pair Pair) bool {
	for _, name := range p.ExcludePairs {
		if name == pair.Name() {
			return true
		}
	}
	return false
}

// Exchange busca un exchange configurado por nombre.
func (p Params) Exchange(name string) (Exchange, bool) {
	for _, ex := range p.Exchanges {
		if ex.Name == name {
			return ex, true
		}
	}
	return Exchange{}, false
}

// Benchmark devuelve el exchange de referencia para el buy-and-hold.
func (p Params) Benchmark() string {
	if p.BenchmarkExchange != "" {
		return p.BenchmarkExchange
	}
	if len(p.Exchanges) > 0 {
		return p.Exchanges[0].Name
	}
	return ""
}

// CostRate es el coste combinado aplicado a cada pata (entrada y salida).
func (p Params) CostRate() float64 {
	return p.FeeRate + p.Slippage
}

// Validate comprueba la configuración antes de ejecutar nada.
// Cualquier error envuelve ErrInvalidParams.
func (p Params) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("domain.Params: %s: %w", fmt.Sprintf(format, args...), ErrInvalidParams)
	}

	switch {
	case !(p.InitialCapital > 0) || math.IsInf(p.InitialCapital, 0):
		return fail("initial_capital must be positive, got %v", p.InitialCapital)
	case !(p.EntryZ > 0):
		return fail("entry_z must be positive, got %v", p.EntryZ)
	case !(p.ExitZ >= 0):
		return fail("exit_z must be >= 0, got %v", p.ExitZ)
	case p.ExitZ > p.EntryZ:
		return fail("exit_z %.2f > entry_z %.2f", p.ExitZ, p.EntryZ)
	case !(p.StopLoss < 0):
		return fail("stop_loss must be negative, got %v", p.StopLoss)
	case p.MaxHoldingDays < 1:
		return fail("max_holding_days must be >= 1, got %d", p.MaxHoldingDays)
	case p.RollingWindow < 2:
		return fail("rolling_window must be >= 2, got %d", p.RollingWindow)
	case !(p.FeeRate >= 0) || !(p.Slippage >= 0):
		return fail("fee_rate and slippage must be >= 0, got %v / %v", p.FeeRate, p.Slippage)
	case !(p.AllocationFraction > 0) || p.AllocationFraction > 1:
		return fail("allocation_fraction must be in (0, 1], got %v", p.AllocationFraction)
	case p.PremiumMode != PremiumPct && p.PremiumMode != PremiumLog:
		return fail("unknown premium_mode %q", p.PremiumMode)
	case len(p.Exchanges) < 2:
		return fail("need at least 2 exchanges, got %d", len(p.Exchanges))
	}

	seen := make(map[string]bool, len(p.Exchanges))
	for _, ex := range p.Exchanges {
		if ex.Name == "" {
			return fail("exchange with empty name")
		}
		if seen[ex.Name] {
			return fail("duplicate exchange %q", ex.Name)
		}
		if ex.Quote != QuoteLocal && ex.Quote != QuoteUSD {
			return fail("exchange %q: unknown quote %q", ex.Name, ex.Quote)
		}
		seen[ex.Name] = true
	}

	for _, pair := range p.AllPairs() {
		if !seen[pair.A] || !seen[pair.B] {
			return fail("pair %s references an unknown exchange", pair.Name())
		}
		if pair.A == pair.B {
			return fail("pair %s compares an exchange with itself", pair.Name())
		}
	}

	if !seen[p.Benchmark()] {
		return fail("benchmark exchange %q is not configured", p.Benchmark())
	}
	return nil
}
