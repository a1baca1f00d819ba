package jobs

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/slip"
)

// SlipProcessor runs the slip extraction flow.
type SlipProcessor interface {
	Process(ctx context.Context, dataURI string) (slip.Result, error)
}

// Taxonomy supplies the accounts and purposes a draft is matched against.
type Taxonomy interface {
	Accounts() []domain.Account
	Purposes() []string
}

// NewSlipHandler returns a JobHandler that extracts the slip and attaches the
// result and a prefilled transaction draft to the job.
func NewSlipHandler(p SlipProcessor, tax Taxonomy, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job Job) error {
		sj, ok := job.(*SlipJob)
		if !ok {
			return errors.Newf("slip handler: unexpected job type %s", job.GetType())
		}

		res, err := p.Process(ctx, sj.DataURI)
		if err != nil {
			return err
		}

		draft := slip.Draft(res.Details, tax.Accounts(), tax.Purposes())
		sj.Result = &res
		sj.Draft = &draft

		log.Info().
			Str("job_id", sj.JobID).
			Str("account_id", draft.AccountID).
			Msg("Slip job completed")
		return nil
	}
}
