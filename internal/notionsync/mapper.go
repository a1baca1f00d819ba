package notionsync

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// Property names of the Notion ledger database.
const (
	propDescription   = "Description"
	propTransactionID = "Transaction ID"
	propFingerprint   = "Fingerprint"
	propDate          = "Date"
	propAmount        = "Amount"
	propSignedAmount  = "Signed Amount"
	propType          = "Type"
	propPurpose       = "Purpose"
	propCurrency      = "Currency"
	propAccount       = "Account"
	propSender        = "Sender"
	propRecipient     = "Recipient"
	propDetails       = "Details"
)

// TransactionToNotionProperties converts a ledger transaction to Notion
// properties. acc must be the account the transaction references.
func TransactionToNotionProperties(tx domain.Transaction, acc domain.Account) notionapi.Properties {
	amount := decimal.NewFromFloat(tx.Amount).Round(2)
	signed := amount.Mul(decimal.NewFromFloat(tx.Type.Sign()))
	date := notionapi.Date(time.Date(tx.Date.Year(), tx.Date.Month(), tx.Date.Day(), 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		propDescription:   titleProperty(description(tx)),
		propTransactionID: richTextProperty(tx.ID),
		propFingerprint:   richTextProperty(Fingerprint(tx, acc)),
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		propAmount:       notionapi.NumberProperty{Number: amount.InexactFloat64()},
		propSignedAmount: notionapi.NumberProperty{Number: signed.InexactFloat64()},
		propType:         notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Type)}},
		propPurpose:      notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Purpose}},
		propCurrency:     notionapi.SelectProperty{Select: notionapi.Option{Name: string(acc.Currency)}},
		propAccount:      richTextProperty(acc.Name),
	}

	if tx.Sender != "" {
		props[propSender] = richTextProperty(tx.Sender)
	}
	if tx.Recipient != "" {
		props[propRecipient] = richTextProperty(tx.Recipient)
	}
	if tx.Details != "" {
		props[propDetails] = richTextProperty(tx.Details)
	}

	return props
}

// Fingerprint hashes every synced field of a transaction. A page whose stored
// fingerprint differs from the ledger's is rewritten.
func Fingerprint(tx domain.Transaction, acc domain.Account) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		tx.ID,
		tx.Date.Format(time.DateOnly),
		decimal.NewFromFloat(tx.Amount).StringFixed(2),
		tx.Type,
		tx.Purpose,
		acc.Name,
		acc.Currency,
		tx.Sender,
		tx.Recipient,
		tx.Details,
	)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// description picks the page title: the counterparty when known, else the purpose.
func description(tx domain.Transaction) string {
	switch {
	case tx.Type == domain.Expense && tx.Recipient != "":
		return tx.Recipient
	case tx.Type == domain.Income && tx.Sender != "":
		return tx.Sender
	default:
		return tx.Purpose
	}
}

func titleProperty(content string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: content},
			},
		},
	}
}

func richTextProperty(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: content},
			},
		},
	}
}

// extractTransactionID returns the ledger id stored on a page, or "".
func extractTransactionID(page notionapi.Page) string {
	return richTextValue(page, propTransactionID)
}

// extractFingerprint returns the fingerprint stored on a page, or "".
func extractFingerprint(page notionapi.Page) string {
	return richTextValue(page, propFingerprint)
}

// richTextValue reads the first text run of a rich text property. Pages
// decoded from the API hold pointer properties; pages built locally hold values.
func richTextValue(page notionapi.Page, name string) string {
	var runs []notionapi.RichText
	switch prop := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		runs = prop.RichText
	case notionapi.RichTextProperty:
		runs = prop.RichText
	}
	if len(runs) == 0 {
		return ""
	}
	if runs[0].PlainText != "" {
		return runs[0].PlainText
	}
	if runs[0].Text != nil {
		return runs[0].Text.Content
	}
	return ""
}
