package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

var testAccounts = []domain.Account{
	{ID: "A", Name: "Kasikorn", Currency: domain.THB},
	{ID: "B", Name: `Wise "USD"`, Currency: domain.USD},
}

func testTxs() []domain.Transaction {
	return []domain.Transaction{
		{
			ID: "1", AccountID: "A", Purpose: "Food", Amount: 120.5, Type: domain.Expense,
			Date:      time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC),
			Recipient: `Som "Tam" Shop`,
			Details:   "dinner, with friends\nsecond line",
		},
		{
			ID: "2", AccountID: "B", Purpose: "Salary", Amount: 1000, Type: domain.Income,
			Date:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Sender: "ACME",
		},
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "ledger-ai-export-2024-03-09.csv", Filename(now, "csv"))
	assert.Equal(t, "ledger-ai-export-2024-03-09.xlsx", Filename(now, "xlsx"))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testTxs(), testAccounts))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, bom), "export must start with a BOM")
	assert.Contains(t, out, `"Som ""Tam"" Shop"`, "embedded quotes are doubled")

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, bom))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"2024-03-02", "expense", "Kasikorn", "Food", "", `Som "Tam" Shop`, "dinner, with friends\nsecond line", "120.5"}, records[1])
	assert.Equal(t, []string{"2024-03-01", "income", `Wise "USD"`, "Salary", "ACME", "", "", "1000"}, records[2])
}

func TestWriteCSV_UnknownAccount(t *testing.T) {
	var buf bytes.Buffer
	txs := append(testTxs(), domain.Transaction{ID: "3", AccountID: "ghost", Type: domain.Income, Amount: 1})

	err := WriteCSV(&buf, txs, testAccounts)
	assert.True(t, errors.Is(err, domain.ErrInvalidReference))
	assert.Zero(t, buf.Len())
}

func TestWriteCSV_KeepsStoredPrecision(t *testing.T) {
	var buf bytes.Buffer
	txs := []domain.Transaction{{
		ID: "1", AccountID: "A", Purpose: "Food", Amount: 12.345, Type: domain.Expense,
		Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, WriteCSV(&buf, txs, testAccounts))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), bom))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "12.345", records[1][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testTxs(), testAccounts))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	rows := file.Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0].Cells[0].String())
	assert.Equal(t, "Amount", rows[0].Cells[7].String())
	assert.Equal(t, `Som "Tam" Shop`, rows[1].Cells[5].String())

	amount, err := rows[1].Cells[7].Float()
	require.NoError(t, err)
	assert.Equal(t, 120.5, amount)
}
