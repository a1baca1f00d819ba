package ledger

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// SaveCommand is one of CreateCommand, CreateTransferCommand or
// CreateBatchCommand. The set is closed.
type SaveCommand interface {
	isSaveCommand()
}

// CreateCommand adds a single transaction.
type CreateCommand struct {
	Input domain.TransactionInput
}

// CreateTransferCommand records a transfer. Rate is THB per USD and is only
// used when the two accounts hold different currencies.
type CreateTransferCommand struct {
	Transfer domain.TransferInput
	Rate     float64
}

// CreateBatchCommand adds several transactions atomically.
type CreateBatchCommand struct {
	Inputs []domain.TransactionInput
}

func (CreateCommand) isSaveCommand()         {}
func (CreateTransferCommand) isSaveCommand() {}
func (CreateBatchCommand) isSaveCommand()    {}

// Save dispatches cmd and returns the transactions it created.
func (l *Ledger) Save(ctx context.Context, cmd SaveCommand) ([]domain.Transaction, error) {
	switch c := cmd.(type) {
	case CreateCommand:
		tx, err := l.AddTransaction(ctx, c.Input)
		if err != nil && !errors.Is(err, domain.ErrPersist) {
			return nil, err
		}
		return []domain.Transaction{tx}, err
	case CreateTransferCommand:
		return l.RecordTransfer(ctx, c.Transfer, c.Rate)
	case CreateBatchCommand:
		return l.AddBatch(ctx, c.Inputs)
	case nil:
		return nil, domain.Validationf("save command is required")
	default:
		return nil, domain.Validationf("unsupported save command %T", cmd)
	}
}

// wrapIndex prefixes err with the position of the failing batch item.
func wrapIndex(err error, i int) error {
	return errors.Wrapf(err, "item %d", i)
}
