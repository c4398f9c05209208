package domain

import (
	"math"
	"time"
)

// Currency indica en qué moneda cotiza un exchange.
type Currency string

const (
	QuoteLocal Currency = "LOCAL" // KRW u otra moneda local, se convierte con FXRate
	QuoteUSD   Currency = "USD"   // USD o stablecoin, sin conversión
)

// Exchange describe un venue que cotiza la moneda analizada.
type Exchange struct {
	Name  string   `yaml:"name"`
	Quote Currency `yaml:"quote"`
}

// PriceRow es el snapshot diario cross-exchange de una moneda.
// Close está indexado por Exchange.Name y está en la moneda de cotización del venue.
type PriceRow struct {
	Date   time.Time
	Close  map[string]float64
	FXRate float64 // moneda local por USD
}

// Price devuelve el cierre del exchange o NaN si falta o no es positivo.
func (r PriceRow) Price(exchange string) float64 {
	p, ok := r.Close[exchange]
	if !ok || !(p > 0) || math.IsInf(p, 0) {
		return math.NaN()
	}
	return p
}

// USDPrice devuelve el cierre normalizado a USD.
func (r PriceRow) USDPrice(ex Exchange) float64 {
	p := r.Price(ex.Name)
	if ex.Quote != QuoteLocal {
		return p
	}
	if !(r.FXRate > 0) {
		return math.NaN()
	}
	return p / r.FXRate
}

// Pair is an ordered exchange pair. The premium is measured as A over B.
type Pair struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

func (p Pair) Name() string {
	return p.A + "/" + p.B
}

// DefaultPairs devuelve todas las combinaciones (i<j) de los exchanges en orden.
func DefaultPairs(exchanges []Exchange) []Pair {
	var pairs []Pair
	for i := 0; i < len(exchanges); i++ {
		for j := i + 1; j < len(exchanges); j++ {
			pairs = append(pairs, Pair{A: exchanges[i].Name, B: exchanges[j].Name})
		}
	}
	return pairs
}

// Day trunca t a medianoche UTC. Todas las fechas del pipeline pasan por aquí.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween devuelve los días de calendario entre dos fechas.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}
