// Package rates serves the USD to THB exchange rate with a fixed-TTL cache.
//
// The provider is either Fresh (cached value younger than the TTL) or Stale
// (no value yet, or too old). A stale read triggers a fetch. When the fetch
// fails the last known rate is served, or the fallback constant if no fetch
// ever succeeded. There is no backoff: the next stale read simply tries again.
package rates

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTTL is how long a fetched rate is served without refetching.
	DefaultTTL = 10 * time.Minute

	// DefaultFallback is served when no rate was ever fetched successfully.
	DefaultFallback = 35.0
)

// Quote is a rate together with whether it came from the cache.
type Quote struct {
	Rate   float64 `json:"rate"`
	Cached bool    `json:"cached"`
}

// Fetcher retrieves the current THB per USD rate from an upstream source.
type Fetcher interface {
	FetchRate(ctx context.Context) (float64, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (float64, error)

// FetchRate calls f.
func (f FetcherFunc) FetchRate(ctx context.Context) (float64, error) {
	return f(ctx)
}

// Clock returns the current time.
type Clock func() time.Time

// Provider caches the rate returned by a Fetcher.
//
// The mutex only guards the cached state; it is never held across a fetch,
// so concurrent stale readers may each fetch. They converge on the same
// upstream value.
type Provider struct {
	fetcher  Fetcher
	now      Clock
	ttl      time.Duration
	fallback float64
	log      zerolog.Logger

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

// WithFallback overrides DefaultFallback.
func WithFallback(rate float64) Option {
	return func(p *Provider) { p.fallback = rate }
}

// WithClock replaces time.Now.
func WithClock(c Clock) Option {
	return func(p *Provider) { p.now = c }
}

// NewProvider creates a provider with an empty cache.
func NewProvider(fetcher Fetcher, log zerolog.Logger, opts ...Option) *Provider {
	p := &Provider{
		fetcher:  fetcher,
		now:      time.Now,
		ttl:      DefaultTTL,
		fallback: DefaultFallback,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the rate as of the provider's clock.
func (p *Provider) Current(ctx context.Context) Quote {
	return p.Rate(ctx, p.now())
}

// Rate returns the rate as of now.
func (p *Provider) Rate(ctx context.Context, now time.Time) Quote {
	p.mu.Lock()
	rate, fetchedAt := p.rate, p.fetchedAt
	p.mu.Unlock()

	if rate > 0 && now.Sub(fetchedAt) < p.ttl {
		return Quote{Rate: rate, Cached: true}
	}

	fetched, err := p.fetcher.FetchRate(ctx)
	if err == nil && fetched > 0 {
		p.mu.Lock()
		p.rate, p.fetchedAt = fetched, now
		p.mu.Unlock()

		p.log.Debug().Float64("rate", fetched).Msg("Exchange rate refreshed")
		return Quote{Rate: fetched, Cached: false}
	}

	if err == nil {
		p.log.Warn().Float64("rate", fetched).Msg("Ignoring non-positive exchange rate")
	} else {
		p.log.Warn().Err(err).Msg("Failed to fetch exchange rate")
	}

	if rate > 0 {
		return Quote{Rate: rate, Cached: true}
	}
	return Quote{Rate: p.fallback, Cached: false}
}
