package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, "BTC", cfg.Backtest.Coin)
	assert.Equal(t, float64(domain.DefaultInitialCapital), p.InitialCapital)
	assert.Equal(t, domain.DefaultEntryZ, p.EntryZ)
	assert.Equal(t, domain.DefaultExitZ, p.ExitZ)
	assert.Equal(t, domain.DefaultStopLoss, p.StopLoss)
	assert.Equal(t, domain.PremiumPct, p.PremiumMode)
	require.Len(t, p.Exchanges, 2)
	assert.Equal(t, domain.QuoteLocal, p.Exchanges[0].Quote)
	assert.NoError(t, p.Validate())

	assert.Equal(t, "spreadbot.db", cfg.Storage.DSN)
	assert.Equal(t, 15*time.Second, cfg.CollectorTimeout())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_InlineParams(t *testing.T) {
	yml := `
backtest:
  coin: eth
  from: "2024-01-01"
  to: "2024-06-30"
  entry_z: 2.5
  exit_z: 0
  stop_loss: -0.05
  rolling_window: 20
  premium_mode: log
  exchanges:
    - {name: upbit, quote: LOCAL}
    - {name: bithumb, quote: LOCAL}
    - {name: binance, quote: USD}
  exclude_pairs: ["upbit/bithumb"]
  benchmark_exchange: binance
sweep:
  entry_z: [1.5, 2, 2.5]
  workers: 4
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, "ETH", cfg.Backtest.Coin)
	assert.Equal(t, 2.5, p.EntryZ)
	assert.Equal(t, 0.0, p.ExitZ, "explicit zero survives defaults")
	assert.Equal(t, -0.05, p.StopLoss)
	assert.Equal(t, 20, p.RollingWindow)
	assert.Equal(t, domain.DefaultMaxHoldingDays, p.MaxHoldingDays)
	assert.Equal(t, domain.PremiumLog, p.PremiumMode)
	assert.Len(t, p.Exchanges, 3)
	assert.Equal(t, []string{"upbit/bithumb"}, p.ExcludePairs)
	assert.Equal(t, "binance", p.Benchmark())
	assert.NoError(t, p.Validate())

	assert.Equal(t, []float64{1.5, 2, 2.5}, cfg.Sweep.EntryZ)
	assert.Equal(t, 4, cfg.Sweep.Workers)

	from, to, err := cfg.Range(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), to)
}

func TestParams_ReturnsCopy(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	p := cfg.Params()
	p.Exchanges[0].Name = "mutated"
	assert.Equal(t, "upbit", cfg.Backtest.Exchanges[0].Name)
}

func TestRange(t *testing.T) {
	now := time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC)

	cfg := &Config{}
	from, to, err := cfg.Range(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, to.AddDate(0, 0, -365), from)

	cfg.Backtest.From = "2024-06-01"
	cfg.Backtest.To = "2024-05-01"
	_, _, err = cfg.Range(now)
	assert.Error(t, err)

	cfg.Backtest.From = "01/06/2024"
	_, _, err = cfg.Range(now)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SPREADBOT_DSN", ":memory:")
	t.Setenv("SPREADBOT_COIN", "xrp")

	cfg, err := Parse([]byte("log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "XRP", cfg.Backtest.Coin)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backtest:\n  coin: sol\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SOL", cfg.Backtest.Coin)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("backtest: [unclosed"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
