package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/spreadbot/internal/adapters/storage"
	"github.com/alejandrodnm/spreadbot/internal/domain"
	"github.com/alejandrodnm/spreadbot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	upbit   = domain.Exchange{Name: "upbit", Quote: domain.QuoteLocal}
	binance = domain.Exchange{Name: "binance", Quote: domain.QuoteUSD}
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func candle(ex string, d int, close float64) domain.Candle {
	return domain.Candle{Exchange: ex, Coin: "btc", Date: day(d), Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func newStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_LoadPricesForwardFills(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{
		candle("upbit", 2, 52_000_000), candle("upbit", 3, 53_000_000),
		// día 4 sin vela upbit
		candle("upbit", 5, 55_000_000),
		candle("binance", 1, 39_000), candle("binance", 2, 40_000),
		candle("binance", 3, 41_000), candle("binance", 4, 42_000), candle("binance", 5, 43_000),
	}))
	require.NoError(t, db.SaveFXRates(ctx, []domain.FXRate{
		{Date: day(1), Rate: 1300}, {Date: day(4), Rate: 1310},
	}))

	rows, err := db.LoadPrices(ctx, "BTC", []domain.Exchange{upbit, binance}, day(1), day(5))
	require.NoError(t, err)

	// día 1 no tiene upbit todavía: se descarta
	require.Len(t, rows, 4)
	assert.Equal(t, day(2), rows[0].Date)
	assert.Equal(t, 1300.0, rows[0].FXRate)

	assert.Equal(t, day(4), rows[2].Date)
	assert.Equal(t, 53_000_000.0, rows[2].Close["upbit"], "forward-filled from day 3")
	assert.Equal(t, 42_000.0, rows[2].Close["binance"])
	assert.Equal(t, 1310.0, rows[2].FXRate)

	assert.Equal(t, 55_000_000.0, rows[3].Close["upbit"])
	assert.Equal(t, 1310.0, rows[3].FXRate, "FX forward-filled")
}

func TestSQLiteStorage_LoadPricesUsesObservationsBeforeFrom(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{
		candle("upbit", 1, 50_000_000), candle("binance", 1, 38_000), candle("binance", 3, 39_000),
	}))
	require.NoError(t, db.SaveFXRates(ctx, []domain.FXRate{{Date: day(1), Rate: 1300}}))

	rows, err := db.LoadPrices(ctx, "btc", []domain.Exchange{upbit, binance}, day(3), day(4))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 50_000_000.0, rows[0].Close["upbit"])
	assert.Equal(t, 39_000.0, rows[1].Close["binance"])
}

func TestSQLiteStorage_LoadPricesNoData(t *testing.T) {
	db := newStorage(t)

	_, err := db.LoadPrices(context.Background(), "BTC", []domain.Exchange{upbit, binance}, day(1), day(10))
	assert.True(t, errors.Is(err, ports.ErrNoData))
}

func TestSQLiteStorage_LoadPricesNeedsFXForLocalQuote(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{
		candle("upbit", 1, 50_000_000), candle("binance", 1, 38_000),
	}))

	_, err := db.LoadPrices(ctx, "BTC", []domain.Exchange{upbit, binance}, day(1), day(2))
	assert.ErrorIs(t, err, ports.ErrNoData)

	// sin exchanges LOCAL no hace falta FX
	okx := domain.Exchange{Name: "okx", Quote: domain.QuoteUSD}
	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{candle("okx", 1, 38_010)}))
	rows, err := db.LoadPrices(ctx, "BTC", []domain.Exchange{binance, okx}, day(1), day(2))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1.0, rows[0].FXRate)
}

func TestSQLiteStorage_SaveCandlesUpserts(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{candle("binance", 1, 38_000)}))
	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{candle("binance", 1, 38_500), candle("binance", 2, 39_000)}))

	counts, err := db.CandleCount(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"binance": 2}, counts)

	mirror := domain.Exchange{Name: "binance2", Quote: domain.QuoteUSD}
	require.NoError(t, db.SaveCandles(ctx, []domain.Candle{candle("binance2", 1, 1)}))
	rows, err := db.LoadPrices(ctx, "BTC", []domain.Exchange{binance, mirror}, day(1), day(1))
	require.NoError(t, err)
	assert.Equal(t, 38_500.0, rows[0].Close["binance"])
}

func TestSQLiteStorage_SaveEmptySlices(t *testing.T) {
	db := newStorage(t)
	assert.NoError(t, db.SaveCandles(context.Background(), nil))
	assert.NoError(t, db.SaveFXRates(context.Background(), nil))
}

func TestSQLiteStorage_RunRoundTrip(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	params := domain.DefaultParams(upbit, binance)
	params.ExcludePairs = []string{"x/y"}
	trades := []domain.Trade{{
		Pair: "upbit/binance", Direction: domain.ShortSpread,
		EntryDate: day(3), ExitDate: day(7), HoldingDays: 4,
		EntrySpread: 0.07, ExitSpread: 0.021, CapitalAllocated: 1e8,
		Return: 0.0386, Profit: 3.86e6, ExitReason: domain.ExitSignal,
	}}
	capital := []domain.DailyCapital{
		{Date: day(6), Capital: 1e8, OpenPositions: 1, Unrealized: 1e6},
		{Date: day(7), Capital: 1.0386e8},
	}
	metrics := domain.Metrics{
		StartDate: day(6), EndDate: day(7), TotalTrades: 1, WinRate: 1,
		FinalReturn: 0.0386, SharpeRatio: 1.5,
		ExitReasons: map[domain.ExitReason]int{domain.ExitSignal: 1},
	}

	id, err := db.SaveRun(ctx, ports.RunRecord{
		Coin: "btc", Params: params, Metrics: metrics, Trades: trades, Capital: capital,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := db.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BTC", run.Coin)
	assert.Equal(t, params.EntryZ, run.Params.EntryZ)
	assert.Equal(t, params.Exchanges, run.Params.Exchanges)
	assert.Equal(t, []string{"x/y"}, run.Params.ExcludePairs)
	assert.Equal(t, 0.0386, run.Metrics.FinalReturn)
	assert.True(t, run.Metrics.StartDate.Equal(day(6)))
	assert.Equal(t, 1, run.Metrics.ExitReasons[domain.ExitSignal])
	assert.Equal(t, trades, run.Trades)
	assert.Equal(t, capital, run.Capital)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestSQLiteStorage_ListRunsNewestFirst(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, coin := range []string{"BTC", "ETH", "XRP"} {
		_, err := db.SaveRun(ctx, ports.RunRecord{
			Coin:      coin,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Params:    domain.DefaultParams(upbit, binance),
		})
		require.NoError(t, err)
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "XRP", runs[0].Coin)
	assert.Equal(t, "ETH", runs[1].Coin)
	assert.Empty(t, runs[0].Trades, "list does not load the ledger")
}

func TestSQLiteStorage_GetRunNotFound(t *testing.T) {
	db := newStorage(t)
	_, err := db.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}
