package rates_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/imroc/req/v3"
	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/rates"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	calls int
	rate  float64
	err   error
}

func (f *scriptedFetcher) FetchRate(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rate, f.err
}

func TestProvider_FreshAndStale(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{rate: 36.2}

	p := rates.NewProvider(fetcher, zerolog.Nop())

	q := p.Rate(ctx, start)
	assert.Equal(t, rates.Quote{Rate: 36.2, Cached: false}, q)

	fetcher.rate = 99
	q = p.Rate(ctx, start.Add(9*time.Minute))
	assert.Equal(t, rates.Quote{Rate: 36.2, Cached: true}, q)
	assert.Equal(t, 1, fetcher.calls)

	q = p.Rate(ctx, start.Add(10*time.Minute))
	assert.Equal(t, rates.Quote{Rate: 99, Cached: false}, q, "age equal to the TTL is stale")
	assert.Equal(t, 2, fetcher.calls)
}

func TestProvider_FailureFallsBackToLastKnown(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{rate: 36.2}

	p := rates.NewProvider(fetcher, zerolog.Nop(), rates.WithTTL(time.Minute))
	p.Rate(ctx, start)

	fetcher.err = errors.New("upstream down")
	q := p.Rate(ctx, start.Add(time.Hour))
	assert.Equal(t, rates.Quote{Rate: 36.2, Cached: true}, q)

	// Still stale, so every read retries.
	p.Rate(ctx, start.Add(time.Hour+time.Second))
	assert.Equal(t, 3, fetcher.calls)
}

func TestProvider_FailureWithoutHistoryUsesFallback(t *testing.T) {
	fetcher := &scriptedFetcher{err: errors.New("no network")}

	p := rates.NewProvider(fetcher, zerolog.Nop(), rates.WithFallback(34.5))
	assert.Equal(t, rates.Quote{Rate: 34.5, Cached: false}, p.Rate(context.Background(), time.Now()))

	fetcher.err = nil
	fetcher.rate = -1
	assert.Equal(t, rates.Quote{Rate: 34.5, Cached: false}, p.Rate(context.Background(), time.Now()))
}

func TestProvider_CurrentUsesClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{rate: 35.5}

	p := rates.NewProvider(fetcher, zerolog.Nop(), rates.WithClock(func() time.Time { return now }))
	p.Current(context.Background())

	now = now.Add(5 * time.Minute)
	assert.True(t, p.Current(context.Background()).Cached)

	now = now.Add(6 * time.Minute)
	assert.False(t, p.Current(context.Background()).Cached)
	assert.Equal(t, 2, fetcher.calls)
}

func TestHTTPFetcher(t *testing.T) {
	const url = "https://rates.example.com/latest/USD"

	cl := req.C()
	httpmock.ActivateNonDefault(cl.GetClient())
	defer httpmock.DeactivateAndReset()

	fetcher := rates.NewHTTPFetcher(cl, url)

	t.Run("rates map", func(t *testing.T) {
		httpmock.RegisterResponder("GET", url,
			httpmock.NewStringResponder(200, `{"result":"success","rates":{"USD":1,"THB":36.41}}`))

		rate, err := fetcher.FetchRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 36.41, rate)
	})

	t.Run("single rate", func(t *testing.T) {
		httpmock.RegisterResponder("GET", url,
			httpmock.NewStringResponder(200, `{"rate":35.9}`))

		rate, err := fetcher.FetchRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 35.9, rate)
	})

	t.Run("error status", func(t *testing.T) {
		httpmock.RegisterResponder("GET", url,
			func(*http.Request) (*http.Response, error) {
				return httpmock.NewStringResponse(503, "unavailable"), nil
			})

		_, err := fetcher.FetchRate(context.Background())
		assert.True(t, errors.Is(err, domain.ErrExternalService), "got %v", err)
	})

	t.Run("missing THB", func(t *testing.T) {
		httpmock.RegisterResponder("GET", url,
			httpmock.NewStringResponder(200, `{"rates":{"EUR":0.9}}`))

		_, err := fetcher.FetchRate(context.Background())
		assert.True(t, errors.Is(err, domain.ErrExternalService))
	})
}
