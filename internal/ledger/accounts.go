package ledger

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/store"
)

// Accounts returns a copy of the account registry.
func (l *Ledger) Accounts() []domain.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	return copyAccounts(l.accounts)
}

// Account looks up one account by id.
func (l *Ledger) Account(id string) (domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.findAccount(id)
	if !ok {
		return domain.Account{}, domain.NotFoundf("account %q", id)
	}
	return copyAccount(acc), nil
}

// AddAccount registers a new account.
func (l *Ledger) AddAccount(ctx context.Context, in domain.AccountInput) (domain.Account, error) {
	if err := in.Validate(); err != nil {
		return domain.Account{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc := in.Build(l.newID())
	l.accounts = append(l.accounts, acc)

	return copyAccount(acc), l.persist(ctx, store.KeyAccounts)
}

// EditAccount replaces the editable fields of an account. The id never changes.
func (l *Ledger) EditAccount(ctx context.Context, id string, in domain.AccountInput) (domain.Account, error) {
	if err := in.Validate(); err != nil {
		return domain.Account{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(l.accounts, func(a domain.Account) bool { return a.ID == id })
	if !ok {
		return domain.Account{}, domain.NotFoundf("account %q", id)
	}

	acc := in.Build(id)
	l.accounts[idx] = acc

	return copyAccount(acc), l.persist(ctx, store.KeyAccounts)
}

// DeleteAccount removes an account that nothing references. An account used
// by a transaction, template or income record is rejected with
// domain.ErrAccountInUse and the registry is left untouched.
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.findAccount(id); !ok {
		return domain.NotFoundf("account %q", id)
	}

	refs := lo.CountBy(l.transactions, func(t domain.Transaction) bool { return t.AccountID == id }) +
		lo.CountBy(l.templates, func(t domain.Template) bool { return t.AccountID == id }) +
		lo.CountBy(l.incomes, func(i domain.IncomeRecord) bool { return i.AccountID == id })
	if refs > 0 {
		return errors.Wrapf(domain.ErrAccountInUse, "account %q has %d references", id, refs)
	}

	l.accounts = lo.Reject(l.accounts, func(a domain.Account, _ int) bool { return a.ID == id })
	return l.persist(ctx, store.KeyAccounts)
}

func (l *Ledger) findAccount(id string) (domain.Account, bool) {
	return lo.Find(l.accounts, func(a domain.Account) bool { return a.ID == id })
}

// requireAccount resolves an account id or fails with ErrInvalidReference.
func (l *Ledger) requireAccount(id string) (domain.Account, error) {
	acc, ok := l.findAccount(id)
	if !ok {
		return domain.Account{}, domain.InvalidReferencef("account %q does not exist", id)
	}
	return acc, nil
}

func copyAccount(a domain.Account) domain.Account {
	a.CategoryTags = append([]string(nil), a.CategoryTags...)
	return a
}

func copyAccounts(accs []domain.Account) []domain.Account {
	return lo.Map(accs, func(a domain.Account, _ int) domain.Account { return copyAccount(a) })
}
