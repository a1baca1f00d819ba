// Package views derives balances, totals and chart datasets from the ledger.
// Everything here is a pure function of its arguments; nothing is cached.
package views

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// AccountBalance is the running balance of one account in its own currency.
type AccountBalance struct {
	AccountID string          `json:"accountId"`
	Name      string          `json:"name"`
	Currency  domain.Currency `json:"currency"`
	Balance   float64         `json:"balance"`
}

// BalancesByAccount sums +amount for income and -amount for expense per
// account, in registry order. Balances may go negative. A transaction that
// references an unknown account is a data-integrity error.
func BalancesByAccount(accounts []domain.Account, txs []domain.Transaction) ([]AccountBalance, error) {
	sums := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		sums[a.ID] = decimal.Zero
	}

	for _, t := range txs {
		sum, ok := sums[t.AccountID]
		if !ok {
			return nil, domain.InvalidReferencef("transaction %q references unknown account %q", t.ID, t.AccountID)
		}
		sums[t.AccountID] = sum.Add(decimal.NewFromFloat(t.Amount).Mul(decimal.NewFromFloat(t.Type.Sign())))
	}

	return lo.Map(accounts, func(a domain.Account, _ int) AccountBalance {
		return AccountBalance{
			AccountID: a.ID,
			Name:      a.Name,
			Currency:  a.Currency,
			Balance:   sums[a.ID].InexactFloat64(),
		}
	}), nil
}

// BalancesByCategoryTag is BalancesByAccount restricted to accounts carrying tag.
// Transactions of other accounts are ignored.
func BalancesByCategoryTag(accounts []domain.Account, txs []domain.Transaction, tag string) ([]AccountBalance, error) {
	tagged := lo.Filter(accounts, func(a domain.Account, _ int) bool { return a.HasTag(tag) })

	known := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		known[a.ID] = true
	}

	ids := make(map[string]bool, len(tagged))
	for _, a := range tagged {
		ids[a.ID] = true
	}

	scoped := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if !known[t.AccountID] {
			return nil, domain.InvalidReferencef("transaction %q references unknown account %q", t.ID, t.AccountID)
		}
		if ids[t.AccountID] {
			scoped = append(scoped, t)
		}
	}

	return BalancesByAccount(tagged, scoped)
}

// CategoryTags lists every tag used by the accounts, sorted.
func CategoryTags(accounts []domain.Account) []string {
	tags := lo.Uniq(lo.FlatMap(accounts, func(a domain.Account, _ int) []string { return a.CategoryTags }))
	sort.Strings(tags)
	return tags
}

// ConvertToTHB is the identity for THB and amount*rate for USD.
func ConvertToTHB(amount float64, currency domain.Currency, rate float64) float64 {
	if currency == domain.USD {
		return amount * rate
	}
	return amount
}

// TotalTHB rolls balances up into THB. ok is false when the rate is not
// available yet; the caller must show a loading state instead of a zero.
func TotalTHB(balances []AccountBalance, rate float64) (total float64, ok bool) {
	if rate <= 0 {
		return 0, false
	}

	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(decimal.NewFromFloat(ConvertToTHB(b.Balance, b.Currency, rate)))
	}
	return sum.Round(2).InexactFloat64(), true
}

// Totals splits transactions into income and expense sums.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// TotalsByTypeForPeriod totals the transactions of month (YYYY-MM). An empty
// month covers every transaction. Amounts are summed as-is regardless of
// account currency.
func TotalsByTypeForPeriod(txs []domain.Transaction, month string) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		if month != "" && t.Month() != month {
			continue
		}
		amount := decimal.NewFromFloat(t.Amount)
		if t.Type == domain.Income {
			income = income.Add(amount)
		} else {
			expense = expense.Add(amount)
		}
	}

	return Totals{
		Income:  income.InexactFloat64(),
		Expense: expense.InexactFloat64(),
		Net:     income.Sub(expense).InexactFloat64(),
	}
}

// Months lists the distinct months that have transactions, newest first.
func Months(txs []domain.Transaction) []string {
	months := lo.Uniq(lo.Map(txs, func(t domain.Transaction, _ int) string { return t.Month() }))
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}

// Slice is one segment of a pie chart.
type Slice struct {
	Purpose string  `json:"purpose"`
	Amount  float64 `json:"amount"`
}

// PurposeBreakdown sums amounts of the given type per purpose for month
// (empty month = all time). Slices are ordered by amount, largest first.
func PurposeBreakdown(txs []domain.Transaction, typ domain.TxType, month string) []Slice {
	sums := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if t.Type != typ || (month != "" && t.Month() != month) {
			continue
		}
		sums[t.Purpose] = sums[t.Purpose].Add(decimal.NewFromFloat(t.Amount))
	}

	slices := make([]Slice, 0, len(sums))
	for purpose, sum := range sums {
		slices = append(slices, Slice{Purpose: purpose, Amount: sum.InexactFloat64()})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Amount != slices[j].Amount {
			return slices[i].Amount > slices[j].Amount
		}
		return slices[i].Purpose < slices[j].Purpose
	})
	return slices
}

// MonthTotals is one bar of the monthly chart.
type MonthTotals struct {
	Month string `json:"month"`
	Totals
}

// MonthlyTotals returns income and expense totals for the n months ending
// with the month of now, oldest first. Months without activity are zero.
func MonthlyTotals(txs []domain.Transaction, n int, now time.Time) []MonthTotals {
	if n <= 0 {
		return nil
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(n - 1), 0)
	out := make([]MonthTotals, 0, n)
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i, 0).Format(domain.MonthLayout)
		out = append(out, MonthTotals{Month: month, Totals: TotalsByTypeForPeriod(txs, month)})
	}
	return out
}

// IncomeMonth is the income-tracking total of one month.
type IncomeMonth struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// IncomeTotalsByMonth sums income records per month, newest first.
func IncomeTotalsByMonth(incomes []domain.IncomeRecord) []IncomeMonth {
	grouped := lo.GroupBy(incomes, func(i domain.IncomeRecord) string { return i.Date.Format(domain.MonthLayout) })

	out := make([]IncomeMonth, 0, len(grouped))
	for month, items := range grouped {
		sum := decimal.Zero
		for _, i := range items {
			sum = sum.Add(decimal.NewFromFloat(i.Amount))
		}
		out = append(out, IncomeMonth{Month: month, Amount: sum.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}
