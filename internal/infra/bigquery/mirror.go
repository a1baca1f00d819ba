package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// insertBatchSize caps the rows sent in one streaming insert request.
const insertBatchSize = 500

// Mirror writes ledger snapshots into <project>.<dataset>.ledger_transactions.
type Mirror struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewMirror creates a mirror with its own BigQuery client. Call Close when done.
func NewMirror(ctx context.Context, projectID, datasetID string, log zerolog.Logger) (*Mirror, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "NewMirror: creating client")
	}
	return NewMirrorWithClient(client, projectID, datasetID, log), nil
}

// NewMirrorWithClient wraps an existing client.
func NewMirrorWithClient(client *bigquery.Client, projectID, datasetID string, log zerolog.Logger) *Mirror {
	return &Mirror{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Close closes the BigQuery client connection.
func (m *Mirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func (m *Mirror) table() string {
	return fmt.Sprintf("`%s.%s.%s`", m.projectID, m.datasetID, transactionsTable)
}

// BuildSnapshot converts the ledger into rows sharing one snapshot id. A
// transaction that references an unknown account fails the whole snapshot.
func BuildSnapshot(snapshotID string, txs []domain.Transaction, accounts []domain.Account, now time.Time) ([]*TransactionRow, error) {
	byID := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	rows := make([]*TransactionRow, 0, len(txs))
	for _, t := range txs {
		acc, ok := byID[t.AccountID]
		if !ok {
			return nil, domain.InvalidReferencef("transaction %q references unknown account %q", t.ID, t.AccountID)
		}
		rows = append(rows, NewTransactionRow(snapshotID, t, acc, now))
	}
	return rows, nil
}

// MirrorTransactions inserts the ledger as a new snapshot and returns its id.
// Rows carry an insert id so a retried request is deduplicated.
func (m *Mirror) MirrorTransactions(ctx context.Context, txs []domain.Transaction, accounts []domain.Account) (string, error) {
	snapshotID := m.newID()
	rows, err := BuildSnapshot(snapshotID, txs, accounts, m.now())
	if err != nil {
		return "", err
	}

	inserter := m.client.DatasetInProject(m.projectID, m.datasetID).Table(transactionsTable).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		savers := make([]*bigquery.StructSaver, 0, end-start)
		for _, r := range rows[start:end] {
			savers = append(savers, &bigquery.StructSaver{Struct: r, InsertID: snapshotID + ":" + r.TransactionID})
		}
		if err := inserter.Put(ctx, savers); err != nil {
			return "", domain.External(err, "MirrorTransactions: inserting rows")
		}
	}

	m.log.Info().
		Str("snapshot_id", snapshotID).
		Int("rows", len(rows)).
		Msg("Ledger mirrored to BigQuery")

	return snapshotID, nil
}

// QueryMonthlyTotals sums income and expense per month and currency for the
// latest snapshot, between start and end inclusive.
func (m *Mirror) QueryMonthlyTotals(ctx context.Context, start, end time.Time) ([]MonthlyTotalRow, error) {
	q := m.client.Query(fmt.Sprintf(`
		WITH latest AS (
			SELECT snapshot_id
			FROM %[1]s
			ORDER BY mirrored_ts DESC
			LIMIT 1
		)
		SELECT
			FORMAT_DATE('%%Y-%%m', t.transaction_date) AS month,
			t.currency,
			SUM(IF(t.type = 'income', t.amount, 0)) AS income,
			SUM(IF(t.type = 'expense', t.amount, 0)) AS expense
		FROM %[1]s t
		JOIN latest USING (snapshot_id)
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		GROUP BY month, t.currency
		ORDER BY month, t.currency
	`, m.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: civil.DateOf(start)},
		{Name: "end_date", Value: civil.DateOf(end)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, domain.External(err, "QueryMonthlyTotals: query read")
	}

	var rows []MonthlyTotalRow
	for {
		var r MonthlyTotalRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, domain.External(err, "QueryMonthlyTotals: iter next")
		}
		rows = append(rows, r)
	}

	return rows, nil
}
