package config

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "STORE_DIR", "EXCHANGE_RATE_TTL", "EXCHANGE_RATE_FALLBACK", "SLIP_TIMEOUT", "JOB_WORKERS", "JOB_QUEUE_SIZE", "JOB_RETENTION", "CORS_ORIGIN", "BQ_DATASET", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendFile || cfg.Store.Dir != "./data" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Rates.TTL != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", cfg.Rates.TTL)
	}
	if cfg.Rates.Fallback != 35.0 {
		t.Errorf("Fallback = %v, want 35", cfg.Rates.Fallback)
	}
	if cfg.Slip.Timeout != 2*time.Minute {
		t.Errorf("Slip.Timeout = %v", cfg.Slip.Timeout)
	}
	if cfg.Jobs.Workers != 2 || cfg.Jobs.QueueSize != 100 || cfg.Jobs.Retention != time.Hour {
		t.Errorf("Jobs = %+v", cfg.Jobs)
	}
	if cfg.Server.AllowedOrigin != "*" {
		t.Errorf("Server.AllowedOrigin = %q, want *", cfg.Server.AllowedOrigin)
	}
	if cfg.BQ.Dataset != "finance" {
		t.Errorf("BQ.Dataset = %q", cfg.BQ.Dataset)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("POSTGRES_DSN", "postgres://ledger@localhost/ledger")
	t.Setenv("EXCHANGE_RATE_TTL", "90s")
	t.Setenv("EXCHANGE_RATE_FALLBACK", "36.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rates.TTL != 90*time.Second || cfg.Rates.Fallback != 36.25 {
		t.Errorf("Rates = %+v", cfg.Rates)
	}
	if cfg.Store.PostgresDSN == "" {
		t.Error("PostgresDSN not read")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad ttl", map[string]string{"EXCHANGE_RATE_TTL": "soon"}},
		{"zero ttl", map[string]string{"EXCHANGE_RATE_TTL": "0s"}},
		{"bad fallback", map[string]string{"EXCHANGE_RATE_FALLBACK": "abc"}},
		{"negative fallback", map[string]string{"EXCHANGE_RATE_FALLBACK": "-1"}},
		{"gcs without bucket", map[string]string{"STORE_BACKEND": BackendGCS, "GCS_BUCKET": ""}},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": BackendPostgres, "POSTGRES_DSN": ""}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "s3"}},
		{"zero workers", map[string]string{"JOB_WORKERS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestLoad_InvalidNumberKeepsCause(t *testing.T) {
	t.Setenv("JOB_WORKERS", "many")

	_, err := Load()
	if !errors.Is(err, strconv.ErrSyntax) {
		t.Fatalf("Load() error = %v, want strconv.ErrSyntax in chain", err)
	}
	if !strings.HasPrefix(err.Error(), "invalid JOB_WORKERS: ") {
		t.Errorf("unexpected message: %v", err)
	}
}
