// Package app wires configuration into the ledger, the rate provider and the
// slip extractor. Every binary builds its dependencies through here.
package app

import (
	"context"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"github.com/imroc/req/v3"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/ledger-ai/internal/config"
	"github.com/dvloznov/ledger-ai/internal/ledger"
	"github.com/dvloznov/ledger-ai/internal/rates"
	"github.com/dvloznov/ledger-ai/internal/slip"
	"github.com/dvloznov/ledger-ai/internal/store"
	"github.com/dvloznov/ledger-ai/internal/store/gcs"
	"github.com/dvloznov/ledger-ai/internal/store/postgres"
)

// rateTimeout bounds a single upstream exchange-rate request.
const rateTimeout = 10 * time.Second

// App holds the long-lived dependencies of a process.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Ledger *ledger.Ledger
	Rates  *rates.Provider

	// Extractor is nil when no model client could be created.
	Extractor *slip.Extractor

	closers []func() error
}

// New opens the configured backend, loads the ledger and builds the rate
// provider and slip extractor.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	backend, closeBackend, err := OpenBackend(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}

	a.Ledger = ledger.New(backend, log)
	if err := a.Ledger.Load(ctx); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "app: load ledger")
	}

	a.Rates = NewRateProvider(cfg.Rates, log)

	extractor, err := NewExtractor(ctx, cfg.Slip, log)
	if err != nil {
		log.Warn().Err(err).Msg("Slip extraction disabled")
	}
	a.Extractor = extractor

	return a, nil
}

// OpenBackend builds the store.Backend selected by cfg.Backend. The returned
// close function may be nil.
func OpenBackend(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (store.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		return store.NewMemory(), nil, nil

	case config.BackendFile:
		b, err := store.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "app: open file store")
		}
		log.Info().Str("dir", cfg.Dir).Msg("Using file store")
		return b, nil, nil

	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, errors.Wrap(err, "app: create storage client")
		}
		log.Info().Str("bucket", cfg.GCSBucket).Str("prefix", cfg.GCSPrefix).Msg("Using GCS store")
		return gcs.New(client, cfg.GCSBucket, cfg.GCSPrefix), client.Close, nil

	case config.BackendPostgres:
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, errors.Wrap(err, "app: postgres handle")
		}
		if err := postgres.Migrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		log.Info().Msg("Using postgres store")
		return postgres.New(db), sqlDB.Close, nil
	}

	return nil, nil, errors.Newf("app: unknown store backend %q", cfg.Backend)
}

// NewRateProvider builds a provider backed by the upstream HTTP API.
func NewRateProvider(cfg config.RatesConfig, log zerolog.Logger) *rates.Provider {
	cl := req.C().SetTimeout(rateTimeout)
	return rates.NewProvider(
		rates.NewHTTPFetcher(cl, cfg.URL),
		log,
		rates.WithTTL(cfg.TTL),
		rates.WithFallback(cfg.Fallback),
	)
}

// NewExtractor creates the Gemini client. Credentials are read from the
// environment (GOOGLE_API_KEY or GEMINI_API_KEY).
func NewExtractor(ctx context.Context, cfg config.SlipConfig, log zerolog.Logger) (*slip.Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "app: create genai client")
	}
	return slip.NewExtractor(client.Models, cfg.Model, cfg.Timeout, log), nil
}

// Close flushes unsaved ledger changes and releases backend resources.
func (a *App) Close() error {
	var errs error
	if a.Ledger != nil && !a.Ledger.Status().Saved() {
		if err := a.Ledger.Flush(context.Background()); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.closers = nil
	return errs
}
