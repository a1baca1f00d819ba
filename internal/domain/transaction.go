package domain

import (
	"math"
	"strings"
	"time"
)

// Currency is the currency an account is held in.
type Currency string

const (
	THB Currency = "THB"
	USD Currency = "USD"
)

// Valid reports whether c is one of the supported account currencies.
func (c Currency) Valid() bool {
	return c == THB || c == USD
}

// TxType is the direction of a transaction. The amount itself is never negative.
type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// Valid reports whether t is income or expense.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Sign returns +1 for income and -1 for expense.
func (t TxType) Sign() float64 {
	if t == Income {
		return 1
	}
	return -1
}

// Purpose labels with fixed meaning inside the ledger.
const (
	// FallbackPurpose receives transactions whose purpose is reclassified away.
	FallbackPurpose = "Other"

	TransferOutPurpose = "Transfer out"
	TransferInPurpose  = "Transfer in"
)

// DefaultPurposes seeds the taxonomy of an empty ledger.
var DefaultPurposes = []string{
	"Food",
	"Transport",
	"Shopping",
	"Bills",
	"Health",
	"Entertainment",
	"Salary",
	FallbackPurpose,
}

// Transaction is one signed monetary event on an account.
// Amount is stored non-negative; Type carries the sign.
type Transaction struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Purpose   string    `json:"purpose"`
	Amount    float64   `json:"amount"`
	Type      TxType    `json:"type"`
	Date      time.Time `json:"date"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() float64 {
	return t.Type.Sign() * t.Amount
}

// Month returns the YYYY-MM bucket of the transaction date.
func (t Transaction) Month() string {
	return t.Date.Format(MonthLayout)
}

// MonthLayout is the layout of month filters such as "2024-03".
const MonthLayout = "2006-01"

// TransactionInput carries the user-supplied fields of a new or edited transaction.
type TransactionInput struct {
	AccountID string    `json:"accountId"`
	Purpose   string    `json:"purpose"`
	Amount    float64   `json:"amount"`
	Type      TxType    `json:"type"`
	Date      time.Time `json:"date"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Validate checks the fields that do not need the account registry.
func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return Validationf("account is required")
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return Validationf("date is required")
	}
	if !in.Type.Valid() {
		return Validationf("type must be %q or %q, got %q", Income, Expense, in.Type)
	}
	return nil
}

// Build materialises the input as a transaction with the given id.
func (in TransactionInput) Build(id string) Transaction {
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		purpose = FallbackPurpose
	}
	return Transaction{
		ID:        id,
		AccountID: in.AccountID,
		Purpose:   purpose,
		Amount:    in.Amount,
		Type:      in.Type,
		Date:      in.Date,
		Sender:    strings.TrimSpace(in.Sender),
		Recipient: strings.TrimSpace(in.Recipient),
		Details:   strings.TrimSpace(in.Details),
	}
}

// ValidateAmount requires a positive, finite amount.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Validationf("amount must be a finite number")
	}
	if amount <= 0 {
		return Validationf("amount must be positive, got %v", amount)
	}
	return nil
}

// TransferInput describes money moved between two accounts of the ledger.
type TransferInput struct {
	FromAccountID string    `json:"fromAccountId"`
	ToAccountID   string    `json:"toAccountId"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	Details       string    `json:"details,omitempty"`
}

// Validate checks the transfer fields that do not need the account registry.
func (in TransferInput) Validate() error {
	if in.FromAccountID == "" || in.ToAccountID == "" {
		return Validationf("both source and destination accounts are required")
	}
	if in.FromAccountID == in.ToAccountID {
		return Validationf("cannot transfer to the same account")
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return Validationf("date is required")
	}
	return nil
}
