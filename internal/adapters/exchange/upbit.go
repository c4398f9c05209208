package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

const (
	defaultUpbitBase = "https://api.upbit.com"
	upbitPageSize    = 200 // máximo de /v1/candles/days
	upbitTimeLayout  = "2006-01-02T15:04:05"
)

// upbitCandle es una vela diaria de /v1/candles/days.
type upbitCandle struct {
	Market      string  `json:"market"`
	DateUTC     string  `json:"candle_date_time_utc"`
	Open        float64 `json:"opening_price"`
	High        float64 `json:"high_price"`
	Low         float64 `json:"low_price"`
	Close       float64 `json:"trade_price"`
	Volume      float64 `json:"candle_acc_trade_volume"`
	QuoteVolume float64 `json:"candle_acc_trade_price"`
}

// Upbit descarga velas diarias del mercado KRW-<COIN>. Cotiza en moneda local.
type Upbit struct {
	client *Client
	base   string
}

// NewUpbit crea el proveedor. base vacío = producción.
func NewUpbit(base string, opts Options) *Upbit {
	if base == "" {
		base = defaultUpbitBase
	}
	return &Upbit{client: NewClient("upbit", opts), base: strings.TrimRight(base, "/")}
}

func (u *Upbit) Name() string           { return "upbit" }
func (u *Upbit) Quote() domain.Currency { return domain.QuoteLocal }

// FetchDailyCandles pagina hacia atrás desde to hasta cubrir from.
// Upbit devuelve las velas más recientes primero y `to` es exclusivo.
func (u *Upbit) FetchDailyCandles(ctx context.Context, coin string, from, to time.Time) ([]domain.Candle, error) {
	from, to = domain.Day(from), domain.Day(to)
	market := "KRW-" + strings.ToUpper(coin)
	cursor := to.AddDate(0, 0, 1)

	var out []domain.Candle
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("market", market)
		q.Set("to", cursor.Format(upbitTimeLayout)+"Z")
		q.Set("count", strconv.Itoa(upbitPageSize))

		var raw []upbitCandle
		if err := u.client.get(ctx, u.base+"/v1/candles/days?"+q.Encode(), &raw); err != nil {
			return nil, fmt.Errorf("upbit.FetchDailyCandles: %s page %d: %w", market, page, err)
		}
		if len(raw) == 0 {
			break
		}

		oldest := cursor
		for _, r := range raw {
			d, err := time.Parse(upbitTimeLayout, r.DateUTC)
			if err != nil {
				return nil, fmt.Errorf("upbit.FetchDailyCandles: parse date %q: %w", r.DateUTC, err)
			}
			d = domain.Day(d)
			if d.Before(oldest) {
				oldest = d
			}
			if d.Before(from) || d.After(to) {
				continue
			}
			out = append(out, domain.Candle{
				Exchange: u.Name(),
				Coin:     strings.ToUpper(coin),
				Date:     d,
				Open:     r.Open,
				High:     r.High,
				Low:      r.Low,
				Close:    r.Close,
				Volume:   r.Volume,
			})
		}

		if !oldest.After(from) || len(raw) < upbitPageSize || !oldest.Before(cursor) {
			break
		}
		cursor = oldest
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	slog.Debug("upbit candles fetched", "market", market, "candles", len(out))
	return out, nil
}
