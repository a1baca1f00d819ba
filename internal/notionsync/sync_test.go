package notionsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// fakeNotion is an in-memory database that pages its query results.
type fakeNotion struct {
	mu       sync.Mutex
	pages    map[string]notionapi.Properties
	archived []string
	nextID   int
	failOn   map[string]bool // transaction ids whose writes fail
	queries  int
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{pages: map[string]notionapi.Properties{}, failOn: map[string]bool{}}
}

func (f *fakeNotion) seed(props notionapi.Properties) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("page-%03d", f.nextID)
	f.pages[id] = props
	return id
}

func (f *fakeNotion) CreatePage(_ context.Context, _ string, props notionapi.Properties) (*notionapi.Page, error) {
	if f.failOn[txIDOf(props)] {
		return nil, domain.External(errors.New("rate limited"), "CreatePage")
	}
	id := f.seed(props)
	return &notionapi.Page{ID: notionapi.ObjectID(id)}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	if f.failOn[txIDOf(props)] {
		return nil, domain.External(errors.New("rate limited"), "UpdatePage")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range props {
		f.pages[pageID][k] = v
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (f *fakeNotion) ArchivePage(_ context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pages, pageID)
	f.archived = append(f.archived, pageID)
	return nil
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	ids := make([]string, 0, len(f.pages))
	for id := range f.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if req.StartCursor != "" {
		start = sort.SearchStrings(ids, string(req.StartCursor))
	}
	end := start + req.PageSize
	if end > len(ids) {
		end = len(ids)
	}

	resp := &notionapi.DatabaseQueryResponse{}
	for _, id := range ids[start:end] {
		resp.Results = append(resp.Results, notionapi.Page{ID: notionapi.ObjectID(id), Properties: f.pages[id]})
	}
	if end < len(ids) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(ids[end])
	}
	return resp, nil
}

func (f *fakeNotion) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pages)
}

func txIDOf(props notionapi.Properties) string {
	return richTextValue(notionapi.Page{Properties: props}, propTransactionID)
}

var (
	kbank = domain.Account{ID: "acc-1", Name: "KBank", Currency: domain.THB}
	wise  = domain.Account{ID: "acc-2", Name: "Wise", Currency: domain.USD}
)

func expenseTx(id string, amount float64) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		AccountID: kbank.ID,
		Purpose:   "Food",
		Amount:    amount,
		Type:      domain.Expense,
		Date:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Recipient: "Noodle Shop",
	}
}

func TestTransactionToNotionProperties(t *testing.T) {
	in := domain.Transaction{
		ID:        "t1",
		AccountID: wise.ID,
		Purpose:   "Salary",
		Amount:    1234.567,
		Type:      domain.Income,
		Date:      time.Date(2024, 2, 29, 18, 30, 0, 0, time.UTC),
		Sender:    "ACME",
	}

	props := TransactionToNotionProperties(in, wise)

	title, ok := props[propDescription].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "ACME", title.Title[0].Text.Content)

	assert.Equal(t, "t1", txIDOf(props))
	assert.Equal(t, 1234.57, props[propAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, 1234.57, props[propSignedAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, "USD", props[propCurrency].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "income", props[propType].(notionapi.SelectProperty).Select.Name)

	date := props[propDate].(notionapi.DateProperty).Date.Start
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), time.Time(*date))

	assert.Contains(t, props, propSender)
	assert.NotContains(t, props, propRecipient)
	assert.NotContains(t, props, propDetails)

	expense := expenseTx("t2", 10)
	props = TransactionToNotionProperties(expense, kbank)
	assert.Equal(t, -10.0, props[propSignedAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, "Noodle Shop", props[propDescription].(notionapi.TitleProperty).Title[0].Text.Content)
}

func TestFingerprint(t *testing.T) {
	a := expenseTx("t1", 10)
	b := a
	assert.Equal(t, Fingerprint(a, kbank), Fingerprint(b, kbank))

	b.Purpose = "Transport"
	assert.NotEqual(t, Fingerprint(a, kbank), Fingerprint(b, kbank))

	renamed := kbank
	renamed.Name = "Kasikorn"
	assert.NotEqual(t, Fingerprint(a, kbank), Fingerprint(a, renamed))
}

func TestRichTextValue_PointerProperties(t *testing.T) {
	page := notionapi.Page{Properties: notionapi.Properties{
		propTransactionID: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "t9"}}},
	}}
	assert.Equal(t, "t9", extractTransactionID(page))
	assert.Empty(t, extractFingerprint(page))
}

func TestSyncTransactions(t *testing.T) {
	ctx := context.Background()
	fake := newFakeNotion()

	unchanged := expenseTx("keep", 10)
	changed := expenseTx("edit", 20)
	fake.seed(TransactionToNotionProperties(unchanged, kbank))
	edited := fake.seed(TransactionToNotionProperties(changed, kbank))
	fake.seed(TransactionToNotionProperties(expenseTx("gone", 30), kbank))
	fake.seed(notionapi.Properties{propDescription: titleProperty("hand-made row")})

	changed.Amount = 25
	ledger := []domain.Transaction{unchanged, changed, expenseTx("new", 40)}

	res, err := SyncTransactions(ctx, ledger, []domain.Account{kbank}, fake, "db", false)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Updated: 1, Archived: 2, Skipped: 1}, res)
	assert.Equal(t, 3, fake.count())
	assert.Equal(t, Fingerprint(changed, kbank), extractFingerprint(notionapi.Page{Properties: fake.pages[edited]}))

	// A second run has nothing left to do.
	res, err = SyncTransactions(ctx, ledger, []domain.Account{kbank}, fake, "db", false)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 3}, res)
}

func TestSyncTransactions_Paginates(t *testing.T) {
	fake := newFakeNotion()
	var ledger []domain.Transaction
	for i := 0; i < 250; i++ {
		ledger = append(ledger, expenseTx(fmt.Sprintf("t%03d", i), float64(i+1)))
		fake.seed(TransactionToNotionProperties(ledger[i], kbank))
	}

	res, err := SyncTransactions(context.Background(), ledger, []domain.Account{kbank}, fake, "db", false)
	require.NoError(t, err)
	assert.Equal(t, 250, res.Skipped)
	assert.Equal(t, 3, fake.queries)
}

func TestSyncTransactions_DryRun(t *testing.T) {
	fake := newFakeNotion()
	fake.seed(TransactionToNotionProperties(expenseTx("gone", 1), kbank))

	res, err := SyncTransactions(context.Background(), []domain.Transaction{expenseTx("new", 2)}, []domain.Account{kbank}, fake, "db", true)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Archived: 1}, res)
	assert.Equal(t, 1, fake.count())
	assert.Empty(t, fake.archived)
}

func TestSyncTransactions_Failures(t *testing.T) {
	fake := newFakeNotion()
	fake.failOn["bad"] = true

	res, err := SyncTransactions(context.Background(), []domain.Transaction{expenseTx("ok", 1), expenseTx("bad", 2)}, []domain.Account{kbank}, fake, "db", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExternalService))
	assert.Equal(t, Result{Created: 1, Failed: 1}, res)
}

func TestSyncTransactions_UnknownAccount(t *testing.T) {
	fake := newFakeNotion()
	orphan := expenseTx("t1", 1)
	orphan.AccountID = "missing"

	_, err := SyncTransactions(context.Background(), []domain.Transaction{orphan}, []domain.Account{kbank}, fake, "db", false)
	assert.True(t, errors.Is(err, domain.ErrInvalidReference))
	assert.Zero(t, fake.queries)
}
