package views

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

var accounts = []domain.Account{
	{ID: "A", Name: "Kasikorn", Currency: domain.THB, CategoryTags: []string{"bank"}},
	{ID: "B", Name: "Wise", Currency: domain.USD, CategoryTags: []string{"bank", "travel"}},
	{ID: "C", Name: "Wallet", Currency: domain.THB, CategoryTags: []string{"cash"}},
}

func at(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 9, 30, 0, 0, time.UTC)
}

func sampleTxs() []domain.Transaction {
	return []domain.Transaction{
		{ID: "1", AccountID: "A", Purpose: "Salary", Amount: 50000, Type: domain.Income, Date: at(3, 1)},
		{ID: "2", AccountID: "A", Purpose: "Food", Amount: 120.5, Type: domain.Expense, Date: at(3, 2)},
		{ID: "3", AccountID: "B", Purpose: "Transport", Amount: 12.25, Type: domain.Expense, Date: at(3, 3)},
		{ID: "4", AccountID: "C", Purpose: "Food", Amount: 300, Type: domain.Expense, Date: at(2, 10)},
		{ID: "5", AccountID: "A", Purpose: "Food", Amount: 79.5, Type: domain.Expense, Date: at(3, 4)},
	}
}

func TestBalancesByAccount(t *testing.T) {
	balances, err := BalancesByAccount(accounts, sampleTxs())
	require.NoError(t, err)
	require.Len(t, balances, 3)

	assert.Equal(t, AccountBalance{AccountID: "A", Name: "Kasikorn", Currency: domain.THB, Balance: 49800}, balances[0])
	assert.Equal(t, -12.25, balances[1].Balance)
	assert.Equal(t, -300.0, balances[2].Balance, "balances have no floor")
}

func TestBalancesByAccount_SingleTransactionReflectsAmount(t *testing.T) {
	for _, amount := range []float64{0.01, 0.1, 19.99, 1234567.89} {
		for _, typ := range []domain.TxType{domain.Income, domain.Expense} {
			txs := []domain.Transaction{{ID: "x", AccountID: "A", Amount: amount, Type: typ, Date: at(1, 1)}}

			balances, err := BalancesByAccount(accounts, txs)
			require.NoError(t, err)
			assert.Equal(t, typ.Sign()*amount, balances[0].Balance)
			assert.Zero(t, balances[1].Balance)
		}
	}
}

func TestBalancesByAccount_UnknownAccount(t *testing.T) {
	txs := append(sampleTxs(), domain.Transaction{ID: "bad", AccountID: "ghost", Amount: 1, Type: domain.Income})

	_, err := BalancesByAccount(accounts, txs)
	assert.True(t, errors.Is(err, domain.ErrInvalidReference))

	_, err = BalancesByCategoryTag(accounts, txs, "cash")
	assert.True(t, errors.Is(err, domain.ErrInvalidReference))
}

func TestBalancesByCategoryTag(t *testing.T) {
	balances, err := BalancesByCategoryTag(accounts, sampleTxs(), "bank")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "A", balances[0].AccountID)
	assert.Equal(t, "B", balances[1].AccountID)

	balances, err = BalancesByCategoryTag(accounts, sampleTxs(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestCategoryTags(t *testing.T) {
	assert.Equal(t, []string{"bank", "cash", "travel"}, CategoryTags(accounts))
}

func TestConvertToTHB(t *testing.T) {
	for _, rate := range []float64{0, 1, 35, 36.712} {
		assert.Equal(t, 42.5, ConvertToTHB(42.5, domain.THB, rate))
		assert.Equal(t, 42.5*rate, ConvertToTHB(42.5, domain.USD, rate))
	}
}

func TestTotalTHB(t *testing.T) {
	balances := []AccountBalance{
		{AccountID: "A", Currency: domain.THB, Balance: 1000},
		{AccountID: "B", Currency: domain.USD, Balance: 10},
	}

	total, ok := TotalTHB(balances, 35)
	require.True(t, ok)
	assert.Equal(t, 1350.0, total)

	total, ok = TotalTHB(balances, 0)
	assert.False(t, ok, "missing rate must read as unavailable")
	assert.Zero(t, total)
}

func TestTotalsByTypeForPeriod(t *testing.T) {
	march := TotalsByTypeForPeriod(sampleTxs(), "2024-03")
	assert.Equal(t, Totals{Income: 50000, Expense: 212.25, Net: 49787.75}, march)

	all := TotalsByTypeForPeriod(sampleTxs(), "")
	assert.Equal(t, 512.25, all.Expense)

	assert.Equal(t, Totals{}, TotalsByTypeForPeriod(sampleTxs(), "1999-01"))
}

func TestMonths(t *testing.T) {
	assert.Equal(t, []string{"2024-03", "2024-02"}, Months(sampleTxs()))
	assert.Empty(t, Months(nil))
}

func TestPurposeBreakdown(t *testing.T) {
	slices := PurposeBreakdown(sampleTxs(), domain.Expense, "2024-03")
	assert.Equal(t, []Slice{
		{Purpose: "Food", Amount: 200},
		{Purpose: "Transport", Amount: 12.25},
	}, slices)

	all := PurposeBreakdown(sampleTxs(), domain.Expense, "")
	assert.Equal(t, 500.0, all[0].Amount)
}

func TestMonthlyTotals(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	bars := MonthlyTotals(sampleTxs(), 3, now)
	require.Len(t, bars, 3)
	assert.Equal(t, "2024-01", bars[0].Month)
	assert.Equal(t, Totals{}, bars[0].Totals)
	assert.Equal(t, "2024-02", bars[1].Month)
	assert.Equal(t, 300.0, bars[1].Expense)
	assert.Equal(t, "2024-03", bars[2].Month)
	assert.Equal(t, 50000.0, bars[2].Income)

	assert.Nil(t, MonthlyTotals(sampleTxs(), 0, now))
}

func TestIncomeTotalsByMonth(t *testing.T) {
	incomes := []domain.IncomeRecord{
		{ID: "1", AccountID: "A", Amount: 1000, Date: at(2, 1)},
		{ID: "2", AccountID: "A", Amount: 250.5, Date: at(3, 1)},
		{ID: "3", AccountID: "B", Amount: 49.5, Date: at(3, 20)},
	}

	assert.Equal(t, []IncomeMonth{
		{Month: "2024-03", Amount: 300},
		{Month: "2024-02", Amount: 1000},
	}, IncomeTotalsByMonth(incomes))
}
