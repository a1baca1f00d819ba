// Package export writes the ledger as CSV or XLSX, one row per transaction.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// Header is the column order of every export.
var Header = []string{"Date", "Type", "Account", "Purpose", "Sender", "Recipient", "Details", "Amount"}

// bom makes spreadsheet apps open the CSV as UTF-8.
const bom = "\ufeff"

// Filename returns ledger-ai-export-<YYYY-MM-DD>.<ext>.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("ledger-ai-export-%s.%s", now.Format(time.DateOnly), ext)
}

// row renders one transaction in Header order, amount excluded.
func row(t domain.Transaction, names map[string]string) ([]string, error) {
	name, ok := names[t.AccountID]
	if !ok {
		return nil, domain.InvalidReferencef("transaction %q references unknown account %q", t.ID, t.AccountID)
	}
	return []string{
		t.Date.Format(time.DateOnly),
		string(t.Type),
		name,
		t.Purpose,
		t.Sender,
		t.Recipient,
		t.Details,
	}, nil
}

func accountNames(accounts []domain.Account) map[string]string {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names
}

// WriteCSV writes a UTF-8 CSV with a byte-order mark. Fields are quoted as
// needed with embedded quotes doubled. Nothing is written when a
// transaction references an unknown account.
func WriteCSV(w io.Writer, txs []domain.Transaction, accounts []domain.Account) error {
	names := accountNames(accounts)

	records := make([][]string, 0, len(txs)+1)
	records = append(records, Header)
	for _, t := range txs {
		rec, err := row(t, names)
		if err != nil {
			return err
		}
		records = append(records, append(rec, decimal.NewFromFloat(t.Amount).String()))
	}

	if _, err := io.WriteString(w, bom); err != nil {
		return errors.Wrap(err, "WriteCSV: write BOM")
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return errors.Wrap(err, "WriteCSV")
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with the same columns as WriteCSV.
// Amounts are numeric cells holding the stored value.
func WriteXLSX(w io.Writer, txs []domain.Transaction, accounts []domain.Account) error {
	names := accountNames(accounts)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Transactions")
	if err != nil {
		return errors.Wrap(err, "WriteXLSX: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for _, t := range txs {
		rec, err := row(t, names)
		if err != nil {
			return err
		}
		r := sheet.AddRow()
		for _, v := range rec {
			r.AddCell().SetString(v)
		}
		r.AddCell().SetFloat(t.Amount)
	}

	if err := file.Write(w); err != nil {
		return errors.Wrap(err, "WriteXLSX: write")
	}
	return nil
}
