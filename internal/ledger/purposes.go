package ledger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/store"
)

// Purposes returns the taxonomy in insertion order.
func (l *Ledger) Purposes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.purposes...)
}

// PurposeUsage counts the transactions tagged with each purpose of the taxonomy.
// Purposes that nothing uses are reported with zero.
func (l *Ledger) PurposeUsage() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	usage := make(map[string]int, len(l.purposes))
	for _, p := range l.purposes {
		usage[p] = 0
	}
	for _, t := range l.transactions {
		usage[t.Purpose]++
	}
	return usage
}

// validatePurposeName rejects names that cannot be addressed as a single
// /api/purposes/{name} path segment.
func validatePurposeName(name string) error {
	if name == "" {
		return domain.Validationf("purpose name is required")
	}
	if strings.Contains(name, "/") {
		return domain.Validationf("purpose name %q must not contain '/'", name)
	}
	return nil
}

// AddPurpose appends a label. Names are compared exactly.
func (l *Ledger) AddPurpose(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := validatePurposeName(name); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lo.Contains(l.purposes, name) {
		return domain.Duplicatef("purpose %q already exists", name)
	}

	l.purposes = append(l.purposes, name)
	return l.persist(ctx, store.KeyPurposes)
}

// RenamePurpose renames a label and rewrites every transaction and template
// that uses it. The taxonomy and the cascaded collections are persisted together.
func (l *Ledger) RenamePurpose(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return domain.Validationf("new purpose name is required")
	}
	if err := validatePurposeName(newName); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := lo.IndexOf(l.purposes, oldName)
	if idx < 0 {
		return domain.NotFoundf("purpose %q", oldName)
	}
	if oldName == newName {
		return nil
	}
	if lo.Contains(l.purposes, newName) {
		return domain.Duplicatef("purpose %q already exists", newName)
	}

	l.purposes[idx] = newName
	l.transactions = ReclassifyTransactions(l.transactions, oldName, newName, false)
	for i := range l.templates {
		if l.templates[i].Purpose == oldName {
			l.templates[i].Purpose = newName
		}
	}

	return l.persist(ctx, store.KeyPurposes, store.KeyTransactions, store.KeyTemplates)
}

// DeletePurpose removes a label. When transactions still use it a policy is
// mandatory: PolicyReclassify moves them to domain.FallbackPurpose and
// PolicyDeleteAll removes them. Templates on the label are removed under
// PolicyDeleteAll and otherwise retagged domain.FallbackPurpose.
func (l *Ledger) DeletePurpose(ctx context.Context, name string, policy domain.DeletePolicy) error {
	if !policy.Valid() {
		return domain.Validationf("unknown delete policy %q", policy)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !lo.Contains(l.purposes, name) {
		return domain.NotFoundf("purpose %q", name)
	}

	used := lo.CountBy(l.transactions, func(t domain.Transaction) bool { return t.Purpose == name })
	templates := lo.CountBy(l.templates, func(t domain.Template) bool { return t.Purpose == name })
	if templates > 0 && name == domain.FallbackPurpose && policy != domain.PolicyDeleteAll {
		return domain.Validationf("purpose %q is used by %d templates, delete them with policy %q",
			name, templates, domain.PolicyDeleteAll)
	}
	keys := []string{store.KeyPurposes}

	if used > 0 {
		switch policy {
		case domain.PolicyNone:
			return errors.Wrapf(domain.ErrPolicyRequired, "purpose %q is used by %d transactions", name, used)
		case domain.PolicyReclassify:
			if name == domain.FallbackPurpose {
				return domain.Validationf("cannot reclassify %q into itself", name)
			}
			l.transactions = ReclassifyTransactions(l.transactions, name, domain.FallbackPurpose, false)
		case domain.PolicyDeleteAll:
			l.transactions = ReclassifyTransactions(l.transactions, name, "", true)
		}
		keys = append(keys, store.KeyTransactions)
	}

	retagged := policy == domain.PolicyReclassify && used > 0
	if templates > 0 {
		if policy == domain.PolicyDeleteAll {
			l.templates = lo.Reject(l.templates, func(t domain.Template, _ int) bool { return t.Purpose == name })
		} else {
			for i := range l.templates {
				if l.templates[i].Purpose == name {
					l.templates[i].Purpose = domain.FallbackPurpose
				}
			}
			retagged = true
		}
		keys = append(keys, store.KeyTemplates)
	}

	l.purposes = lo.Without(l.purposes, name)
	if retagged && !lo.Contains(l.purposes, domain.FallbackPurpose) {
		l.purposes = append(l.purposes, domain.FallbackPurpose)
	}

	l.log.Info().
		Str("purpose", name).
		Str("policy", string(policy)).
		Int("transactions", used).
		Int("templates", templates).
		Msg("Purpose deleted")

	return l.persist(ctx, keys...)
}

// ReclassifyTransactions returns a new slice where transactions tagged
// oldPurpose are either dropped (remove) or retagged newPurpose. An empty
// newPurpose means domain.FallbackPurpose. The input is not modified.
func ReclassifyTransactions(txs []domain.Transaction, oldPurpose, newPurpose string, remove bool) []domain.Transaction {
	if newPurpose == "" {
		newPurpose = domain.FallbackPurpose
	}

	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Purpose != oldPurpose {
			out = append(out, t)
			continue
		}
		if remove {
			continue
		}
		t.Purpose = newPurpose
		out = append(out, t)
	}
	return out
}

// TransactionRecord is a client-side transaction as sent over the wire.
// Only its "purpose" field is interpreted; every other field passes through
// byte for byte.
type TransactionRecord map[string]json.RawMessage

// ReclassifyRecords is ReclassifyTransactions for records that were never
// decoded into domain.Transaction. A record without a string purpose never
// matches oldPurpose.
func ReclassifyRecords(records []TransactionRecord, oldPurpose, newPurpose string, remove bool) ([]TransactionRecord, error) {
	if newPurpose == "" {
		newPurpose = domain.FallbackPurpose
	}
	retagged, err := json.Marshal(newPurpose)
	if err != nil {
		return nil, errors.Wrap(err, "ReclassifyRecords: encode purpose")
	}

	out := make([]TransactionRecord, 0, len(records))
	for _, rec := range records {
		var purpose string
		if raw, ok := rec["purpose"]; !ok || json.Unmarshal(raw, &purpose) != nil || purpose != oldPurpose {
			out = append(out, rec)
			continue
		}
		if remove {
			continue
		}
		moved := make(TransactionRecord, len(rec))
		for k, v := range rec {
			moved[k] = v
		}
		moved["purpose"] = retagged
		out = append(out, moved)
	}
	return out, nil
}
