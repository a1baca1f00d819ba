// Package ledger holds the in-memory ledger state (accounts, transactions,
// purposes, templates, incomes and notes) and writes every mutation through
// to a store.Backend.
//
// A mutation is applied in memory first and then persisted synchronously.
// When the write fails the in-memory state is kept, the collection is marked
// dirty and the returned error is marked domain.ErrPersist; Flush retries the
// dirty collections.
package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/store"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	backend store.Backend
	log     zerolog.Logger
	newID   func() string

	accounts     []domain.Account
	transactions []domain.Transaction
	purposes     []string
	templates    []domain.Template
	incomes      []domain.IncomeRecord
	notes        string

	dirty map[string]bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator replaces the uuid generator, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		l.newID = fn
	}
}

// New creates an empty ledger backed by backend. Call Load to read persisted state.
func New(backend store.Backend, log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		backend:  backend,
		log:      log,
		newID:    uuid.NewString,
		purposes: append([]string(nil), domain.DefaultPurposes...),
		dirty:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory state with the persisted collections.
// Missing collections fall back to their defaults.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loadLocked(ctx)
}

// Reload re-reads every collection from the backend. Writes made by another
// instance since the last load win over the local copy; pending dirty
// collections are discarded.
func (l *Ledger) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadLocked(ctx); err != nil {
		return err
	}
	l.dirty = make(map[string]bool)
	return nil
}

func (l *Ledger) loadLocked(ctx context.Context) error {
	var (
		accounts     []domain.Account
		transactions []domain.Transaction
		purposes     []string
		templates    []domain.Template
		incomes      []domain.IncomeRecord
		notes        string
	)

	targets := map[string]interface{}{
		store.KeyAccounts:     &accounts,
		store.KeyTransactions: &transactions,
		store.KeyPurposes:     &purposes,
		store.KeyTemplates:    &templates,
		store.KeyIncomes:      &incomes,
		store.KeyNotes:        &notes,
	}

	loaded := make(map[string]bool, len(targets))
	for _, key := range store.Keys {
		data, err := l.backend.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "Ledger.Load: get %q", key)
		}
		if err := json.Unmarshal(data, targets[key]); err != nil {
			return errors.Wrapf(err, "Ledger.Load: decode %q", key)
		}
		loaded[key] = true
	}

	if !loaded[store.KeyPurposes] {
		purposes = append([]string(nil), domain.DefaultPurposes...)
	}

	sortByDateDesc(transactions)
	sortIncomes(incomes)

	l.accounts = accounts
	l.transactions = transactions
	l.purposes = purposes
	l.templates = templates
	l.incomes = incomes
	l.notes = notes

	l.log.Info().
		Int("accounts", len(accounts)).
		Int("transactions", len(transactions)).
		Int("purposes", len(purposes)).
		Msg("Ledger loaded")

	return nil
}

// Status reports which collections failed to persist and are waiting for Flush.
type Status struct {
	Dirty []string `json:"dirty"`
}

// Saved reports whether memory and the backend agree.
func (s Status) Saved() bool {
	return len(s.Dirty) == 0
}

// Status returns the current persistence status.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	dirty := make([]string, 0, len(l.dirty))
	for k := range l.dirty {
		dirty = append(dirty, k)
	}
	sort.Strings(dirty)
	return Status{Dirty: dirty}
}

// Flush retries writing every dirty collection.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.dirty))
	for k := range l.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return l.persist(ctx, keys...)
}

// persist writes the given collections. Must be called with l.mu held.
func (l *Ledger) persist(ctx context.Context, keys ...string) error {
	var failed []string
	var firstErr error

	for _, key := range keys {
		data, err := json.Marshal(l.collection(key))
		if err == nil {
			err = l.backend.Put(ctx, key, data)
		}
		if err != nil {
			l.dirty[key] = true
			failed = append(failed, key)
			if firstErr == nil {
				firstErr = err
			}
			l.log.Error().Err(err).Str("collection", key).Msg("Failed to persist collection")
			continue
		}
		delete(l.dirty, key)
	}

	if firstErr != nil {
		return errors.Mark(errors.Wrapf(firstErr, "persist %v", failed), domain.ErrPersist)
	}
	return nil
}

func (l *Ledger) collection(key string) interface{} {
	switch key {
	case store.KeyAccounts:
		return nonNil(l.accounts)
	case store.KeyTransactions:
		return nonNil(l.transactions)
	case store.KeyPurposes:
		return nonNil(l.purposes)
	case store.KeyTemplates:
		return nonNil(l.templates)
	case store.KeyIncomes:
		return nonNil(l.incomes)
	case store.KeyNotes:
		return l.notes
	}
	return nil
}

// nonNil keeps empty collections serialized as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func sortByDateDesc(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}

func sortIncomes(incomes []domain.IncomeRecord) {
	sort.SliceStable(incomes, func(i, j int) bool {
		return incomes[i].Date.After(incomes[j].Date)
	})
}
