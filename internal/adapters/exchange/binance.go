package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

const (
	defaultBinanceBase = "https://api.binance.com"
	binancePageSize    = 1000 // máximo de /api/v3/klines
)

// Binance descarga klines diarias de <COIN>USDT. USDT se trata como USD.
type Binance struct {
	client *Client
	base   string
}

// NewBinance crea el proveedor. base vacío = producción.
func NewBinance(base string, opts Options) *Binance {
	if base == "" {
		base = defaultBinanceBase
	}
	return &Binance{client: NewClient("binance", opts), base: strings.TrimRight(base, "/")}
}

func (b *Binance) Name() string           { return "binance" }
func (b *Binance) Quote() domain.Currency { return domain.QuoteUSD }

// FetchDailyCandles pagina hacia delante desde from usando startTime.
func (b *Binance) FetchDailyCandles(ctx context.Context, coin string, from, to time.Time) ([]domain.Candle, error) {
	from, to = domain.Day(from), domain.Day(to)
	symbol := strings.ToUpper(coin) + "USDT"
	end := to.AddDate(0, 0, 1).Add(-time.Millisecond)

	var out []domain.Candle
	cursor := from
	for page := 0; !cursor.After(to); page++ {
		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("interval", "1d")
		q.Set("startTime", strconv.FormatInt(cursor.UnixMilli(), 10))
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
		q.Set("limit", strconv.Itoa(binancePageSize))

		var raw [][]json.RawMessage
		if err := b.client.get(ctx, b.base+"/api/v3/klines?"+q.Encode(), &raw); err != nil {
			return nil, fmt.Errorf("binance.FetchDailyCandles: %s page %d: %w", symbol, page, err)
		}
		if len(raw) == 0 {
			break
		}

		last := cursor
		for _, k := range raw {
			c, err := parseKline(k)
			if err != nil {
				return nil, fmt.Errorf("binance.FetchDailyCandles: %s: %w", symbol, err)
			}
			c.Exchange = b.Name()
			c.Coin = strings.ToUpper(coin)
			if c.Date.After(last) {
				last = c.Date
			}
			if c.Date.Before(from) || c.Date.After(to) {
				continue
			}
			out = append(out, c)
		}

		if len(raw) < binancePageSize {
			break
		}
		cursor = last.AddDate(0, 0, 1)
	}

	slog.Debug("binance candles fetched", "symbol", symbol, "candles", len(out))
	return out, nil
}

// parseKline decodifica [openTime, open, high, low, close, volume, closeTime, ...].
// Los precios vienen como strings.
func parseKline(k []json.RawMessage) (domain.Candle, error) {
	if len(k) < 6 {
		return domain.Candle{}, fmt.Errorf("kline with %d fields", len(k))
	}

	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}

	values := make([]float64, 5)
	for i := range values {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return domain.Candle{
		Date:   domain.Day(time.UnixMilli(openTime)),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
