package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"tradedesk/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradedesk service.
type Config struct {
	Server   Server        `yaml:"server"`
	Upstream Upstream      `yaml:"upstream"`
	Cache    CacheConfig   `yaml:"cache"`
	Refresh  RefreshConfig `yaml:"refresh"`
	Alpaca   Alpaca        `yaml:"alpaca"`
	Storage  Storage       `yaml:"storage"`
	Logging  Logging       `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Upstream holds the analytics proxy endpoint configuration.
type Upstream struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CacheConfig controls which series are served and how they are warmed.
type CacheConfig struct {
	Symbols        []domain.Symbol    `yaml:"symbols"`
	Timeframes     []domain.Timeframe `yaml:"timeframes"`
	DefaultPeriods int                `yaml:"default_periods"`
	WarmupOnStart  bool               `yaml:"warmup_on_start"`
	MaxConcurrent  int                `yaml:"max_concurrent"`
	RateLimitPerMin int               `yaml:"rate_limit_per_min"`
}

// RefreshConfig controls the auto-refresh schedule.
type RefreshConfig struct {
	CronSpec string `yaml:"cron_spec"`
	Enabled  bool   `yaml:"enabled"`
}

// Alpaca holds credentials for the Alpaca broker API (watchlist only).
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ExportDir  string `yaml:"export_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a usable configuration without reading any file, for tools
// that only need the upstream client.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = 30
	}
	if len(cfg.Cache.Symbols) == 0 {
		cfg.Cache.Symbols = domain.Symbols
	}
	if len(cfg.Cache.Timeframes) == 0 {
		cfg.Cache.Timeframes = []domain.Timeframe{domain.TF1Day}
	}
	if cfg.Cache.DefaultPeriods == 0 {
		cfg.Cache.DefaultPeriods = 300
	}
	if cfg.Cache.MaxConcurrent == 0 {
		cfg.Cache.MaxConcurrent = 8
	}
	if cfg.Cache.RateLimitPerMin == 0 {
		cfg.Cache.RateLimitPerMin = 120
	}
	if cfg.Refresh.CronSpec == "" {
		cfg.Refresh.CronSpec = "0 */1 * * * *" // every minute, with seconds field
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	for _, s := range cfg.Cache.Symbols {
		if !domain.ValidSymbol(s) {
			return fmt.Errorf("config: unknown symbol %q", s)
		}
	}
	for _, tf := range cfg.Cache.Timeframes {
		if !domain.ValidTimeframe(tf) {
			return fmt.Errorf("config: unknown timeframe %q", tf)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADEDESK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TRADEDESK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("TRADEDESK_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("EXPORT_DIR"); v != "" {
		cfg.Storage.ExportDir = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca env vars used by the SDK take highest priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
