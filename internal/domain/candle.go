package domain

import "time"

// Candle es una vela diaria histórica de un exchange.
type Candle struct {
	Exchange string
	Coin     string
	Date     time.Time // día UTC
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// FXRate es el tipo de cambio diario (moneda local por USD).
type FXRate struct {
	Date time.Time
	Rate float64
}
