package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Account is a named financial account in a single currency.
type Account struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Currency     Currency `json:"currency"`
	CategoryTags []string `json:"categoryTags"`
}

// HasTag reports whether the account carries the category tag.
func (a Account) HasTag(tag string) bool {
	return lo.Contains(a.CategoryTags, tag)
}

// AccountInput carries the editable fields of an account.
type AccountInput struct {
	Name         string   `json:"name"`
	Currency     Currency `json:"currency"`
	CategoryTags []string `json:"categoryTags"`
}

// Validate requires a name and a supported currency.
func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Validationf("account name is required")
	}
	if !in.Currency.Valid() {
		return Validationf("currency must be %s or %s, got %q", THB, USD, in.Currency)
	}
	return nil
}

// Build materialises the input as an account with the given id.
// Tags are trimmed and deduplicated; order is kept.
func (in AccountInput) Build(id string) Account {
	tags := make([]string, 0, len(in.CategoryTags))
	seen := make(map[string]bool, len(in.CategoryTags))
	for _, t := range in.CategoryTags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return Account{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Currency:     in.Currency,
		CategoryTags: tags,
	}
}

// Template is a saved transaction skeleton. Amount and date are supplied
// when the template is instantiated.
type Template struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      TxType `json:"type"`
	AccountID string `json:"accountId"`
	Purpose   string `json:"purpose"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Details   string `json:"details,omitempty"`
}

// Validate requires a name, a valid type and an account.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return Validationf("template name is required")
	}
	if !t.Type.Valid() {
		return Validationf("type must be %q or %q, got %q", Income, Expense, t.Type)
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return Validationf("account is required")
	}
	return nil
}

// Input fills a transaction input from the template.
func (t Template) Input(amount float64, date time.Time) TransactionInput {
	return TransactionInput{
		AccountID: t.AccountID,
		Purpose:   t.Purpose,
		Amount:    amount,
		Type:      t.Type,
		Date:      date,
		Sender:    t.Sender,
		Recipient: t.Recipient,
		Details:   t.Details,
	}
}

// IncomeRecord is an entry of the separate income-tracking view. Its type is always income.
type IncomeRecord struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	AccountID string    `json:"accountId"`
	Amount    float64   `json:"amount"`
}

// IncomeInput carries the fields of a new income record.
type IncomeInput struct {
	Date      time.Time `json:"date"`
	AccountID string    `json:"accountId"`
	Amount    float64   `json:"amount"`
}

// Validate requires an account, a date and a positive amount.
func (in IncomeInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return Validationf("account is required")
	}
	if in.Date.IsZero() {
		return Validationf("date is required")
	}
	return ValidateAmount(in.Amount)
}

// DeletePolicy decides what happens to transactions of a deleted purpose.
type DeletePolicy string

const (
	PolicyNone       DeletePolicy = ""
	PolicyReclassify DeletePolicy = "reclassify"
	PolicyDeleteAll  DeletePolicy = "deleteAll"
)

// Valid reports whether p is a known policy. The empty policy is valid.
func (p DeletePolicy) Valid() bool {
	return p == PolicyNone || p == PolicyReclassify || p == PolicyDeleteAll
}
