// Package bigquery mirrors the ledger into BigQuery for ad-hoc analysis.
// Each mirror run writes a full snapshot; queries read the latest one.
package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

const transactionsTable = "ledger_transactions"

type TransactionRow struct {
	SnapshotID    string `bigquery:"snapshot_id"`    // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	AccountID   string `bigquery:"account_id"`   // REQUIRED
	AccountName string `bigquery:"account_name"` // REQUIRED
	Currency    string `bigquery:"currency"`     // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Type            string     `bigquery:"type"`             // REQUIRED: income | expense
	Purpose         string     `bigquery:"purpose"`          // REQUIRED

	Amount       *big.Rat `bigquery:"amount"`        // REQUIRED NUMERIC, non-negative
	SignedAmount *big.Rat `bigquery:"signed_amount"` // REQUIRED NUMERIC

	Sender    bigquery.NullString `bigquery:"sender"`
	Recipient bigquery.NullString `bigquery:"recipient"`
	Details   bigquery.NullString `bigquery:"details"`

	MirroredTS time.Time `bigquery:"mirrored_ts"` // REQUIRED
}

// NewTransactionRow converts a ledger transaction. account must be the
// account the transaction references.
func NewTransactionRow(snapshotID string, t domain.Transaction, account domain.Account, now time.Time) *TransactionRow {
	amount := decimal.NewFromFloat(t.Amount).Round(2)

	return &TransactionRow{
		SnapshotID:      snapshotID,
		TransactionID:   t.ID,
		AccountID:       account.ID,
		AccountName:     account.Name,
		Currency:        string(account.Currency),
		TransactionDate: civil.DateOf(t.Date),
		Type:            string(t.Type),
		Purpose:         t.Purpose,
		Amount:          amount.Rat(),
		SignedAmount:    amount.Mul(decimal.NewFromFloat(t.Type.Sign())).Rat(),
		Sender:          nullString(t.Sender),
		Recipient:       nullString(t.Recipient),
		Details:         nullString(t.Details),
		MirroredTS:      now.UTC(),
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// MonthlyTotalRow is one month and currency of the monthly report.
type MonthlyTotalRow struct {
	Month    string   `bigquery:"month"`
	Currency string   `bigquery:"currency"`
	Income   *big.Rat `bigquery:"income"`
	Expense  *big.Rat `bigquery:"expense"`
}

// Net returns income minus expense.
func (r MonthlyTotalRow) Net() *big.Rat {
	net := new(big.Rat)
	if r.Income != nil {
		net.Add(net, r.Income)
	}
	if r.Expense != nil {
		net.Sub(net, r.Expense)
	}
	return net
}
