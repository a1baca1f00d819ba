package slip

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// minAccountDigits is how many trailing digits must agree before an account
// is matched to the slip.
const minAccountDigits = 4

// Draft prefills a transaction input from extracted details. The result is
// a suggestion for the entry form and is not validated.
//
// The account is the one whose name ends with the same trailing digits as the
// slip's account number; masked characters are ignored. A purpose outside the
// taxonomy becomes domain.FallbackPurpose.
func Draft(d Details, accounts []domain.Account, purposes []string) domain.TransactionInput {
	in := domain.TransactionInput{
		Purpose:   domain.FallbackPurpose,
		Amount:    d.Amount,
		Type:      domain.Expense,
		Sender:    d.Sender,
		Recipient: d.Recipient,
	}

	if t, err := d.Time(); err == nil {
		in.Date = t
	}
	if lo.Contains(purposes, d.Purpose) {
		in.Purpose = d.Purpose
	}
	if acc, ok := matchAccount(d.AccountNumber, accounts); ok {
		in.AccountID = acc.ID
	}
	return in
}

func matchAccount(number string, accounts []domain.Account) (domain.Account, bool) {
	want := trailingDigits(number)
	if len(want) < minAccountDigits {
		return domain.Account{}, false
	}
	want = want[len(want)-minAccountDigits:]

	return lo.Find(accounts, func(a domain.Account) bool {
		return strings.HasSuffix(digits(a.Name), want)
	})
}

// trailingDigits returns the last group of digits in s. Dashes and spaces
// do not split a group; any other character, such as a mask "x", does.
func trailingDigits(s string) string {
	groups := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-' && r != ' '
	})
	for i := len(groups) - 1; i >= 0; i-- {
		if d := digits(groups[i]); d != "" {
			return d
		}
	}
	return ""
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
