package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-aging/internal/ledger"
)

// Config holds runtime configuration for the server, worker and CLI.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"120s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"90s"`
	MaxUploadBytes    int64         `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// PGDSN is optional; without it the Postgres ledger source is disabled.
	PGDSN          string `envconfig:"PG_DSN"`
	PGMaxConns     int32  `envconfig:"PG_MAX_CONNS" default:"4"`
	LedgerRelation string `envconfig:"LEDGER_RELATION" default:"ap_ledger_lines"`

	RedisAddr string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	CacheTTL  time.Duration `envconfig:"AGING_CACHE_TTL" default:"15m"`

	GotenbergURL     string        `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`
	GotenbergTimeout time.Duration `envconfig:"GOTENBERG_TIMEOUT" default:"30s"`

	ReportRateLimit  int           `envconfig:"REPORT_RATE_LIMIT" default:"10"`
	ReportRateWindow time.Duration `envconfig:"REPORT_RATE_WINDOW" default:"1m"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
	OutputDir         string `envconfig:"AGING_OUTPUT_DIR"`
	// LedgerRefreshCron schedules a refresh of the ledger materialized view.
	LedgerRefreshCron string `envconfig:"LEDGER_REFRESH_CRON"`
}

// LoadConfig reads configuration from environment variables, after loading a
// .env file from the working directory when one exists.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("app: load %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.CacheTTL < 0 {
		return errors.New("app: cache ttl must not be negative")
	}
	if c.WorkerConcurrency <= 0 {
		return errors.New("app: worker concurrency must be positive")
	}
	if c.ReportRateLimit <= 0 || c.ReportRateWindow <= 0 {
		return errors.New("app: report rate limit must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// PostgresEnabled reports whether a Postgres ledger source is configured.
func (c *Config) PostgresEnabled() bool {
	return c != nil && c.PGDSN != ""
}

// Relation returns the ledger relation, falling back to the default view.
func (c *Config) Relation() string {
	if c == nil || c.LedgerRelation == "" {
		return ledger.DefaultRelation
	}
	return c.LedgerRelation
}
