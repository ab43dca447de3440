package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Reference ReferenceConfig `yaml:"reference"`
	Sim       SimConfig       `yaml:"sim"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// MarketConfig identifica el mercado y las APIs de Kalshi.
type MarketConfig struct {
	TickerPrefix string `yaml:"ticker_prefix"` // e.g. "INXD", el strike se añade por sesión
	APIBase      string `yaml:"api_base"`
	WSBase       string `yaml:"ws_base"`

	// Credenciales desde el entorno, nunca del YAML.
	Email    string `yaml:"-"`
	Password string `yaml:"-"`
}

// StrategyConfig controla el quoter.
type StrategyConfig struct {
	PositionLimit int     `yaml:"position_limit"`
	QuoteSize     int     `yaml:"quote_size"`
	Gamma         float64 `yaml:"gamma"`
	X0            float64 `yaml:"x0"`
	EODHour       int     `yaml:"eod_hour"` // hora local de liquidación
	EODMinute     int     `yaml:"eod_minute"`
	MaxFailures   int     `yaml:"max_failures"`
}

// ReferenceConfig controla el poller del precio del índice.
type ReferenceConfig struct {
	BaseURL         string `yaml:"base_url"`
	Symbol          string `yaml:"symbol"`
	IntervalSeconds int    `yaml:"interval_seconds"`

	RefreshToken string `yaml:"-"`
	ConsumerKey  string `yaml:"-"`
}

// SimConfig controla el modo replay.
type SimConfig struct {
	EventLogPath string `yaml:"event_log_path"`
}

// StorageConfig controla dónde se persisten los runs.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las credenciales vienen siempre del entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval devuelve el intervalo del poller como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Reference.IntervalSeconds) * time.Second
}

// Expiry resolves the session's end-of-day instant in loc for the given
// trading date.
func (c *Config) Expiry(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		c.Strategy.EODHour, c.Strategy.EODMinute, 0, 0, loc)
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	cfg.Market.Email = os.Getenv("KALSHI_EMAIL")
	cfg.Market.Password = os.Getenv("KALSHI_PASSWORD")
	cfg.Reference.RefreshToken = os.Getenv("TD_REFRESH_TOKEN")
	cfg.Reference.ConsumerKey = os.Getenv("TD_CONSUMER_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Market.TickerPrefix == "" {
		cfg.Market.TickerPrefix = "INXD"
	}
	if cfg.Strategy.PositionLimit <= 0 {
		cfg.Strategy.PositionLimit = 40
	}
	if cfg.Strategy.QuoteSize <= 0 {
		cfg.Strategy.QuoteSize = 10
	}
	if cfg.Strategy.Gamma == 0 {
		cfg.Strategy.Gamma = 0.000005
	}
	if cfg.Strategy.EODHour == 0 {
		cfg.Strategy.EODHour = 16
	}
	if cfg.Strategy.MaxFailures <= 0 {
		cfg.Strategy.MaxFailures = 5
	}
	if cfg.Reference.Symbol == "" {
		cfg.Reference.Symbol = "$SPX.X"
	}
	if cfg.Reference.IntervalSeconds <= 0 {
		cfg.Reference.IntervalSeconds = 10
	}
	if cfg.Sim.EventLogPath == "" {
		cfg.Sim.EventLogPath = "event_log.csv"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "marketmaker.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
