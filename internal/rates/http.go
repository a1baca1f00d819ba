package rates

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/imroc/req/v3"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// DefaultURL returns rates against USD.
const DefaultURL = "https://open.er-api.com/v6/latest/USD"

// HTTPFetcher reads the rate from a JSON endpoint shaped like
// {"rates":{"THB":36.1}} or {"rate":36.1}.
type HTTPFetcher struct {
	cl  *req.Client
	url string
}

// NewHTTPFetcher builds a fetcher for url using cl.
func NewHTTPFetcher(cl *req.Client, url string) *HTTPFetcher {
	if url == "" {
		url = DefaultURL
	}
	return &HTTPFetcher{cl: cl, url: url}
}

type rateResponse struct {
	Rate  float64            `json:"rate"`
	Rates map[string]float64 `json:"rates"`
}

// FetchRate implements Fetcher. Any failure is an ErrExternalService.
func (f *HTTPFetcher) FetchRate(ctx context.Context) (float64, error) {
	resp := f.cl.NewRequest().
		SetURL(f.url).
		Do(ctx)
	if resp.Err != nil {
		return 0, domain.External(resp.Err, "fetch exchange rate")
	}

	if resp.IsErrorState() {
		return 0, domain.External(errors.Newf("status %d: %s", resp.StatusCode, resp.String()), "fetch exchange rate")
	}

	var body rateResponse
	if err := resp.UnmarshalJson(&body); err != nil {
		return 0, domain.External(err, "decode exchange rate")
	}

	rate := body.Rates[string(domain.THB)]
	if rate == 0 {
		rate = body.Rate
	}
	if rate <= 0 {
		return 0, domain.External(errors.Newf("rate %v", rate), "exchange rate missing from response")
	}
	return rate, nil
}
