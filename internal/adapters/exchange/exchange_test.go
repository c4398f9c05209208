package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
)

var (
	testDay0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	fastOpts = Options{RequestsPerSecond: 1000, Timeout: 2 * time.Second, MaxRetries: 2}
)

func tday(n int) time.Time { return testDay0.AddDate(0, 0, n) }

func fast(c *Client) *Client {
	c.retryWait = time.Millisecond
	return c
}

// upbitServer sirve velas diarias de los días [first, last], más recientes primero.
func upbitServer(t *testing.T, first, last int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/v1/candles/days", r.URL.Path)
		assert.Equal(t, "KRW-BTC", r.URL.Query().Get("market"))

		to, err := time.Parse(upbitTimeLayout+"Z", r.URL.Query().Get("to"))
		require.NoError(t, err)
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))

		var out []upbitCandle
		for d := last; d >= first && len(out) < count; d-- {
			if !tday(d).Before(to) {
				continue
			}
			price := 50_000_000 + float64(d)
			out = append(out, upbitCandle{
				Market:  "KRW-BTC",
				DateUTC: tday(d).Format(upbitTimeLayout),
				Open:    price, High: price, Low: price, Close: price, Volume: 1,
			})
		}
		json.NewEncoder(w).Encode(out)
	}))
}

// binanceServer sirve klines diarias de los días [first, last] en orden ascendente.
func binanceServer(t *testing.T, first, last int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))

		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		out := [][]any{}
		for d := first; d <= last && len(out) < limit; d++ {
			open := tday(d).UnixMilli()
			if open < start || open > end {
				continue
			}
			p := strconv.FormatFloat(40_000+float64(d), 'f', 2, 64)
			out = append(out, []any{open, p, p, p, p, "12.5", open + 86_399_999, "0", 100, "0", "0", "0"})
		}
		json.NewEncoder(w).Encode(out)
	}))
}

func TestUpbit_FetchDailyCandlesPagesBackwards(t *testing.T) {
	var hits int32
	srv := upbitServer(t, -50, 449, &hits)
	defer srv.Close()

	u := NewUpbit(srv.URL, fastOpts)
	candles, err := u.FetchDailyCandles(context.Background(), "btc", tday(0), tday(399))
	require.NoError(t, err)

	require.Len(t, candles, 400)
	assert.Equal(t, int32(2), hits)
	assert.Equal(t, tday(0), candles[0].Date)
	assert.Equal(t, tday(399), candles[399].Date)
	assert.Equal(t, "upbit", candles[0].Exchange)
	assert.Equal(t, "BTC", candles[0].Coin)
	assert.Equal(t, 50_000_000.0, candles[0].Close)
	assert.Equal(t, domain.QuoteLocal, u.Quote())
}

func TestUpbit_StopsWhenHistoryEnds(t *testing.T) {
	var hits int32
	srv := upbitServer(t, 10, 20, &hits)
	defer srv.Close()

	candles, err := NewUpbit(srv.URL, fastOpts).FetchDailyCandles(context.Background(), "BTC", tday(0), tday(30))
	require.NoError(t, err)
	assert.Len(t, candles, 11)
	assert.Equal(t, int32(1), hits)
}

func TestBinance_FetchDailyCandlesPagesForward(t *testing.T) {
	var hits int32
	srv := binanceServer(t, -10, 1499, &hits)
	defer srv.Close()

	b := NewBinance(srv.URL, fastOpts)
	candles, err := b.FetchDailyCandles(context.Background(), "btc", tday(0), tday(1199))
	require.NoError(t, err)

	require.Len(t, candles, 1200)
	assert.Equal(t, int32(2), hits)
	assert.Equal(t, tday(0), candles[0].Date)
	assert.Equal(t, tday(1199), candles[1199].Date)
	assert.Equal(t, 40_000.0, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
	assert.Equal(t, domain.QuoteUSD, b.Quote())
}

func TestParseKline_Errors(t *testing.T) {
	_, err := parseKline([]json.RawMessage{json.RawMessage(`1`)})
	assert.Error(t, err)

	bad := []json.RawMessage{
		json.RawMessage(`1700000000000`), json.RawMessage(`"x"`), json.RawMessage(`"1"`),
		json.RawMessage(`"1"`), json.RawMessage(`"1"`), json.RawMessage(`"1"`),
	}
	_, err = parseKline(bad)
	assert.Error(t, err)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := fast(NewClient("test", fastOpts))
	var out struct{ OK bool }
	require.NoError(t, c.get(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), hits)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"market not found"}`))
	}))
	defer srv.Close()

	c := fast(NewClient("test", fastOpts))
	for i := 0; i < 5; i++ {
		err := c.get(context.Background(), srv.URL, &struct{}{})
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.Code)
		assert.Contains(t, se.Body, "market not found")
	}
	assert.Equal(t, int32(5), hits)
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State(), "4xx does not trip the breaker")
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := fastOpts
	opts.MaxRetries = 1
	c := fast(NewClient("test", opts))

	for i := 0; i < 3; i++ {
		assert.Error(t, c.get(context.Background(), srv.URL, &struct{}{}))
	}
	assert.Equal(t, int32(6), hits)

	err := c.get(context.Background(), srv.URL, &struct{}{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(6), hits, "open breaker short-circuits the request")
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClient("test", fastOpts).get(ctx, srv.URL, &struct{}{})
	assert.ErrorIs(t, err, context.Canceled)
}

// --- collector ---

type fakeCandles struct {
	name    string
	candles []domain.Candle
	err     error
}

func (f *fakeCandles) Name() string           { return f.name }
func (f *fakeCandles) Quote() domain.Currency { return domain.QuoteUSD }
func (f *fakeCandles) FetchDailyCandles(_ context.Context, _ string, _, _ time.Time) ([]domain.Candle, error) {
	return f.candles, f.err
}

type memStore struct {
	mu      sync.Mutex
	candles []domain.Candle
}

func (m *memStore) SaveCandles(_ context.Context, c []domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = append(m.candles, c...)
	return nil
}

func (m *memStore) SaveFXRates(context.Context, []domain.FXRate) error { return nil }

func TestCollect(t *testing.T) {
	ok := &fakeCandles{name: "binance", candles: []domain.Candle{
		{Exchange: "binance", Date: tday(0), Close: 1},
		{Exchange: "binance", Date: tday(1), Close: 2},
	}}
	broken := &fakeCandles{name: "upbit", err: errors.New("connection reset")}
	store := &memStore{}

	results, err := Collect(context.Background(), []ports.CandleProvider{broken, ok}, store, "BTC", tday(0), tday(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upbit")
	assert.Contains(t, err.Error(), "connection reset")

	require.Len(t, results, 2)
	assert.Equal(t, "upbit", results[0].Exchange)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "binance", results[1].Exchange)
	assert.Equal(t, 2, results[1].Candles)
	assert.Equal(t, tday(0), results[1].First)
	assert.Equal(t, tday(1), results[1].Last)
	assert.Len(t, store.candles, 2)
}
