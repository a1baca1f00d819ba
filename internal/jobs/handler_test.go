package jobs

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/slip"
)

type processorFunc func(ctx context.Context, dataURI string) (slip.Result, error)

func (f processorFunc) Process(ctx context.Context, dataURI string) (slip.Result, error) {
	return f(ctx, dataURI)
}

type staticTaxonomy struct {
	accounts []domain.Account
	purposes []string
}

func (s staticTaxonomy) Accounts() []domain.Account { return s.accounts }
func (s staticTaxonomy) Purposes() []string         { return s.purposes }

func TestSlipHandler(t *testing.T) {
	tax := staticTaxonomy{
		accounts: []domain.Account{{ID: "A", Name: "Bangkok Bank 123-4-56789", Currency: domain.THB}},
		purposes: []string{"Food", domain.FallbackPurpose},
	}

	handler := NewSlipHandler(processorFunc(func(_ context.Context, uri string) (slip.Result, error) {
		assert.Equal(t, "data:image/jpeg;base64,AAAA", uri)
		return slip.Result{
			Details:    slip.Details{AccountNumber: "xxx-x-x6789-x", Purpose: "Food", Amount: 99, Date: "2024-03-01"},
			Validation: slip.ValidationResult{ValidationResult: "ok"},
		}, nil
	}), tax, zerolog.Nop())

	job := &SlipJob{JobID: "j1", DataURI: "data:image/jpeg;base64,AAAA"}
	require.NoError(t, handler(context.Background(), job))

	require.NotNil(t, job.Result)
	require.NotNil(t, job.Draft)
	assert.Equal(t, "A", job.Draft.AccountID)
	assert.Equal(t, "Food", job.Draft.Purpose)
	assert.Equal(t, "ok", job.Result.Validation.ValidationResult)
}

func TestSlipHandler_Failure(t *testing.T) {
	handler := NewSlipHandler(processorFunc(func(context.Context, string) (slip.Result, error) {
		return slip.Result{}, errors.Mark(errors.New("model down"), slip.ErrExtractionFailed)
	}), staticTaxonomy{}, zerolog.Nop())

	job := &SlipJob{JobID: "j2"}
	err := handler(context.Background(), job)
	assert.True(t, errors.Is(err, slip.ErrExtractionFailed))
	assert.Nil(t, job.Draft)
}

func TestJobStatus_Finished(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusRunning:   false,
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	} {
		assert.Equal(t, want, status.Finished(), status)
	}
}
