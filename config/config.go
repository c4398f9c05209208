package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/spreadbot/internal/domain"
)

const dateLayout = "2006-01-02"

// Config es la configuración completa del backtester.
type Config struct {
	Backtest  BacktestConfig  `yaml:"backtest"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Collector CollectorConfig `yaml:"collector"`
	Storage   StorageConfig   `yaml:"storage"`
	Export    ExportConfig    `yaml:"export"`
	Log       LogConfig       `yaml:"log"`
}

// BacktestConfig define qué se simula y con qué parámetros.
// Los parámetros del motor van inline: backtest.entry_z, backtest.exchanges, etc.
type BacktestConfig struct {
	Coin          string `yaml:"coin"`
	From          string `yaml:"from"` // YYYY-MM-DD, vacío = To − 365 días
	To            string `yaml:"to"`   // YYYY-MM-DD, vacío = hoy (UTC)
	domain.Params `yaml:",inline"`
}

// SweepConfig es el grid del barrido. Un eje vacío usa el valor de backtest.
type SweepConfig struct {
	EntryZ   []float64 `yaml:"entry_z"`
	ExitZ    []float64 `yaml:"exit_z"`
	StopLoss []float64 `yaml:"stop_loss"`
	Workers  int       `yaml:"workers"` // 0 = runtime.NumCPU()
	Top      int       `yaml:"top"`     // filas del leaderboard
}

// CollectorConfig controla la descarga de velas históricas.
type CollectorConfig struct {
	UpbitBase         string  `yaml:"upbit_base"`
	BinanceBase       string  `yaml:"binance_base"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// ExportConfig controla la exportación de resultados a CSV.
type ExportConfig struct {
	Dir string `yaml:"dir"` // vacío = no exportar
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica YAML sobre los parámetros por defecto, aplica el entorno
// y completa lo que falte. Así exit_z: 0 en el YAML se respeta.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Backtest: BacktestConfig{Params: domain.DefaultParams()}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Params devuelve los parámetros del motor. No valida: eso lo hace el pipeline.
func (c *Config) Params() domain.Params {
	p := c.Backtest.Params
	p.Exchanges = append([]domain.Exchange(nil), p.Exchanges...)
	p.Pairs = append([]domain.Pair(nil), p.Pairs...)
	p.ExcludePairs = append([]string(nil), p.ExcludePairs...)
	return p
}

// Range devuelve el rango [from, to] del backtest truncado a días UTC.
func (c *Config) Range(now time.Time) (time.Time, time.Time, error) {
	to := domain.Day(now)
	if c.Backtest.To != "" {
		t, err := time.Parse(dateLayout, c.Backtest.To)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config.Range: to: %w", err)
		}
		to = t
	}

	from := to.AddDate(0, 0, -365)
	if c.Backtest.From != "" {
		t, err := time.Parse(dateLayout, c.Backtest.From)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config.Range: from: %w", err)
		}
		from = t
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("config.Range: from %s is after to %s",
			from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}

// CollectorTimeout devuelve el timeout HTTP del collector como time.Duration.
func (c *Config) CollectorTimeout() time.Duration {
	return time.Duration(c.Collector.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SPREADBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SPREADBOT_COIN"); v != "" {
		cfg.Backtest.Coin = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	cfg.Backtest.Coin = strings.ToUpper(cfg.Backtest.Coin)
	if cfg.Backtest.Coin == "" {
		cfg.Backtest.Coin = "BTC"
	}
	if len(cfg.Backtest.Exchanges) == 0 {
		cfg.Backtest.Exchanges = []domain.Exchange{
			{Name: "upbit", Quote: domain.QuoteLocal},
			{Name: "binance", Quote: domain.QuoteUSD},
		}
	}
	if cfg.Backtest.PremiumMode == "" {
		cfg.Backtest.PremiumMode = domain.PremiumPct
	}
	if cfg.Sweep.Top <= 0 {
		cfg.Sweep.Top = 10
	}
	if cfg.Collector.UpbitBase == "" {
		cfg.Collector.UpbitBase = "https://api.upbit.com"
	}
	if cfg.Collector.BinanceBase == "" {
		cfg.Collector.BinanceBase = "https://api.binance.com"
	}
	if cfg.Collector.RequestsPerSecond <= 0 {
		cfg.Collector.RequestsPerSecond = 5
	}
	if cfg.Collector.TimeoutSeconds <= 0 {
		cfg.Collector.TimeoutSeconds = 15
	}
	if cfg.Collector.MaxRetries <= 0 {
		cfg.Collector.MaxRetries = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "spreadbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
