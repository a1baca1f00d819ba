// Package config reads runtime settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Rates  RatesConfig
	Slip   SlipConfig
	Jobs   JobsConfig
	Notion NotionConfig
	BQ     BigQueryConfig

	LogLevel string
	// LogFormat is "json" (default) or "console".
	LogFormat string
}

type ServerConfig struct {
	Port string
	// AllowedOrigin is the CORS origin of the web client; empty allows any.
	AllowedOrigin string
}

type StoreConfig struct {
	Backend     string
	Dir         string
	GCSBucket   string
	GCSPrefix   string
	PostgresDSN string
}

type RatesConfig struct {
	URL      string
	TTL      time.Duration
	Fallback float64
}

type SlipConfig struct {
	Model   string
	Timeout time.Duration
}

type JobsConfig struct {
	QueueSize int
	Workers   int
	// Retention is how long finished slip jobs stay readable.
	Retention time.Duration
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

type BigQueryConfig struct {
	ProjectID string
	Dataset   string
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	ttl, err := getDurationEnv("EXCHANGE_RATE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	fallback, err := getFloatEnv("EXCHANGE_RATE_FALLBACK", 35.0)
	if err != nil {
		return nil, err
	}
	slipTimeout, err := getDurationEnv("SLIP_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	queueSize, err := getIntEnv("JOB_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	workers, err := getIntEnv("JOB_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	retention, err := getDurationEnv("JOB_RETENTION", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			AllowedOrigin: getEnv("CORS_ORIGIN", "*"),
		},
		Store: StoreConfig{
			Backend:     getEnv("STORE_BACKEND", BackendFile),
			Dir:         getEnv("STORE_DIR", "./data"),
			GCSBucket:   getEnv("GCS_BUCKET", ""),
			GCSPrefix:   getEnv("GCS_PREFIX", "ledger-ai"),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		Rates: RatesConfig{
			URL:      getEnv("EXCHANGE_RATE_URL", "https://open.er-api.com/v6/latest/USD"),
			TTL:      ttl,
			Fallback: fallback,
		},
		Slip: SlipConfig{
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: slipTimeout,
		},
		Jobs: JobsConfig{
			QueueSize: queueSize,
			Workers:   workers,
			Retention: retention,
		},
		Notion: NotionConfig{
			Token:      getEnv("NOTION_TOKEN", ""),
			DatabaseID: getEnv("NOTION_DB_ID", ""),
		},
		BQ: BigQueryConfig{
			ProjectID: getEnv("BQ_PROJECT", ""),
			Dataset:   getEnv("BQ_DATASET", "finance"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs and that the
// numeric settings are usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Dir == "" {
			return errors.New("STORE_DIR is required for the file backend")
		}
	case BackendGCS:
		if c.Store.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required for the gcs backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return errors.Newf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Rates.TTL <= 0 {
		return errors.New("EXCHANGE_RATE_TTL must be positive")
	}
	if c.Rates.Fallback <= 0 {
		return errors.New("EXCHANGE_RATE_FALLBACK must be positive")
	}
	if c.Jobs.Workers <= 0 || c.Jobs.QueueSize <= 0 {
		return errors.New("JOB_WORKERS and JOB_QUEUE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return f, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
