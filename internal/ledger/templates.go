package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/store"
)

// Templates returns the saved templates.
func (l *Ledger) Templates() []domain.Template {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]domain.Template(nil), l.templates...)
}

// AddTemplate stores a new template. Any id on t is replaced.
func (l *Ledger) AddTemplate(ctx context.Context, t domain.Template) (domain.Template, error) {
	if err := t.Validate(); err != nil {
		return domain.Template{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.requireAccount(t.AccountID); err != nil {
		return domain.Template{}, err
	}

	t = normalizeTemplate(t)
	t.ID = l.newID()
	l.templates = append(l.templates, t)

	return t, l.persist(ctx, store.KeyTemplates)
}

// EditTemplate replaces the template with the given id.
func (l *Ledger) EditTemplate(ctx context.Context, id string, t domain.Template) (domain.Template, error) {
	if err := t.Validate(); err != nil {
		return domain.Template{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(l.templates, func(x domain.Template) bool { return x.ID == id })
	if !ok {
		return domain.Template{}, domain.NotFoundf("template %q", id)
	}
	if _, err := l.requireAccount(t.AccountID); err != nil {
		return domain.Template{}, err
	}

	t = normalizeTemplate(t)
	t.ID = id
	l.templates[idx] = t

	return t, l.persist(ctx, store.KeyTemplates)
}

// DeleteTemplate removes a template.
func (l *Ledger) DeleteTemplate(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := lo.Find(l.templates, func(x domain.Template) bool { return x.ID == id }); !ok {
		return domain.NotFoundf("template %q", id)
	}

	l.templates = lo.Reject(l.templates, func(x domain.Template, _ int) bool { return x.ID == id })
	return l.persist(ctx, store.KeyTemplates)
}

// InstantiateTemplate creates a transaction from a template with the given amount and date.
func (l *Ledger) InstantiateTemplate(ctx context.Context, id string, amount float64, date time.Time) (domain.Transaction, error) {
	l.mu.Lock()
	tmpl, ok := lo.Find(l.templates, func(x domain.Template) bool { return x.ID == id })
	l.mu.Unlock()

	if !ok {
		return domain.Transaction{}, domain.NotFoundf("template %q", id)
	}
	return l.AddTransaction(ctx, tmpl.Input(amount, date))
}

func normalizeTemplate(t domain.Template) domain.Template {
	t.Name = strings.TrimSpace(t.Name)
	t.Purpose = strings.TrimSpace(t.Purpose)
	t.Sender = strings.TrimSpace(t.Sender)
	t.Recipient = strings.TrimSpace(t.Recipient)
	t.Details = strings.TrimSpace(t.Details)
	return t
}

// Incomes returns the income-tracking records, newest first.
func (l *Ledger) Incomes() []domain.IncomeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]domain.IncomeRecord(nil), l.incomes...)
}

// AddIncome records an entry in the income-tracking view.
func (l *Ledger) AddIncome(ctx context.Context, in domain.IncomeInput) (domain.IncomeRecord, error) {
	if err := in.Validate(); err != nil {
		return domain.IncomeRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.requireAccount(in.AccountID); err != nil {
		return domain.IncomeRecord{}, err
	}

	inc := domain.IncomeRecord{
		ID:        l.newID(),
		Date:      in.Date,
		AccountID: in.AccountID,
		Amount:    in.Amount,
	}
	l.incomes = append(l.incomes, inc)
	sortIncomes(l.incomes)

	return inc, l.persist(ctx, store.KeyIncomes)
}

// DeleteIncome removes an income record. Unknown ids are ignored.
func (l *Ledger) DeleteIncome(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.incomes)
	l.incomes = lo.Reject(l.incomes, func(i domain.IncomeRecord, _ int) bool { return i.ID == id })
	if len(l.incomes) == before {
		return nil
	}
	return l.persist(ctx, store.KeyIncomes)
}

// Notes returns the free-text notes.
func (l *Ledger) Notes() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.notes
}

// SetNotes overwrites the free-text notes.
func (l *Ledger) SetNotes(ctx context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.notes = text
	return l.persist(ctx, store.KeyNotes)
}
