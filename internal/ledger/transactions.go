package ledger

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/store"
)

// TransactionFilter narrows Transactions. Zero fields match everything.
type TransactionFilter struct {
	Month     string // YYYY-MM
	AccountID string
	Purpose   string
	Type      domain.TxType
}

func (f TransactionFilter) match(t domain.Transaction) bool {
	if f.Month != "" && t.Month() != f.Month {
		return false
	}
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.Purpose != "" && t.Purpose != f.Purpose {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// Transactions returns the matching transactions, newest first.
func (l *Ledger) Transactions(filter TransactionFilter) []domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	return lo.Filter(l.transactions, func(t domain.Transaction, _ int) bool { return filter.match(t) })
}

// Transaction looks up one transaction by id.
func (l *Ledger) Transaction(id string) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := lo.Find(l.transactions, func(t domain.Transaction) bool { return t.ID == id })
	if !ok {
		return domain.Transaction{}, domain.NotFoundf("transaction %q", id)
	}
	return tx, nil
}

// AddTransaction validates the input, assigns a fresh id and inserts it.
func (l *Ledger) AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.buildLocked(in)
	if err != nil {
		return domain.Transaction{}, err
	}

	l.insertLocked(tx)
	return tx, l.persist(ctx, store.KeyTransactions)
}

// AddBatch inserts every input or none of them.
func (l *Ledger) AddBatch(ctx context.Context, inputs []domain.TransactionInput) ([]domain.Transaction, error) {
	if len(inputs) == 0 {
		return nil, domain.Validationf("batch is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txs := make([]domain.Transaction, 0, len(inputs))
	for i, in := range inputs {
		tx, err := l.buildLocked(in)
		if err != nil {
			return nil, wrapIndex(err, i)
		}
		txs = append(txs, tx)
	}

	l.insertLocked(txs...)
	return txs, l.persist(ctx, store.KeyTransactions)
}

// EditTransaction replaces the transaction with the same id.
func (l *Ledger) EditTransaction(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(l.transactions, func(t domain.Transaction) bool { return t.ID == id })
	if !ok {
		return domain.Transaction{}, domain.NotFoundf("transaction %q", id)
	}

	if err := in.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if _, err := l.requireAccount(in.AccountID); err != nil {
		return domain.Transaction{}, err
	}

	tx := in.Build(id)
	l.transactions[idx] = tx
	sortByDateDesc(l.transactions)

	return tx, l.persist(ctx, store.KeyTransactions)
}

// DeleteTransaction removes a transaction. Deleting an unknown id is a no-op.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.transactions)
	l.transactions = lo.Reject(l.transactions, func(t domain.Transaction, _ int) bool { return t.ID == id })
	if len(l.transactions) == before {
		return nil
	}
	return l.persist(ctx, store.KeyTransactions)
}

// RecordTransfer books money moved between two accounts as an expense on the
// source and an income on the destination. When the currencies differ the
// destination amount is converted with rate (USD->THB). Both records are
// inserted together or not at all.
func (l *Ledger) RecordTransfer(ctx context.Context, in domain.TransferInput, rate float64) ([]domain.Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	from, err := l.requireAccount(in.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := l.requireAccount(in.ToAccountID)
	if err != nil {
		return nil, err
	}

	converted, err := ConvertTransferAmount(in.Amount, from.Currency, to.Currency, rate)
	if err != nil {
		return nil, err
	}

	out := domain.Transaction{
		ID:        l.newID(),
		AccountID: from.ID,
		Purpose:   domain.TransferOutPurpose,
		Amount:    in.Amount,
		Type:      domain.Expense,
		Date:      in.Date,
		Recipient: to.Name,
		Details:   in.Details,
	}
	incoming := domain.Transaction{
		ID:        l.newID(),
		AccountID: to.ID,
		Purpose:   domain.TransferInPurpose,
		Amount:    converted,
		Type:      domain.Income,
		Date:      in.Date,
		Sender:    from.Name,
		Details:   in.Details,
	}

	l.insertLocked(out, incoming)
	return []domain.Transaction{out, incoming}, l.persist(ctx, store.KeyTransactions)
}

// ConvertTransferAmount converts amount from one account currency to another.
// rate is the number of THB per USD. Converted amounts are rounded to 2 decimals.
func ConvertTransferAmount(amount float64, from, to domain.Currency, rate float64) (float64, error) {
	if from == to {
		return amount, nil
	}
	if rate <= 0 {
		return 0, domain.Validationf("exchange rate unavailable for %s to %s", from, to)
	}

	a := decimal.NewFromFloat(amount)
	r := decimal.NewFromFloat(rate)

	switch {
	case from == domain.THB && to == domain.USD:
		return a.Div(r).Round(2).InexactFloat64(), nil
	case from == domain.USD && to == domain.THB:
		return a.Mul(r).Round(2).InexactFloat64(), nil
	}
	return 0, domain.Validationf("unsupported conversion %s to %s", from, to)
}

func (l *Ledger) buildLocked(in domain.TransactionInput) (domain.Transaction, error) {
	if err := in.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if _, err := l.requireAccount(in.AccountID); err != nil {
		return domain.Transaction{}, err
	}
	return in.Build(l.newID()), nil
}

func (l *Ledger) insertLocked(txs ...domain.Transaction) {
	l.transactions = append(l.transactions, txs...)
	sortByDateDesc(l.transactions)
}
