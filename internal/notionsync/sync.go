// Package notionsync publishes the ledger's transactions to a Notion database.
// The ledger is the source of truth: pages for deleted transactions are
// archived, missing ones are created and changed ones are rewritten.
package notionsync

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gammazero/workerpool"
	"github.com/jomei/notionapi"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/logger"
)

const (
	// defaultPoolSize bounds concurrent Notion writes; the API allows roughly
	// three requests per second per integration.
	defaultPoolSize = 3

	queryPageSize = 100
)

// Result counts what a sync did, or in dry-run mode what it would do.
type Result struct {
	Created  int
	Updated  int
	Archived int
	Skipped  int
	Failed   int
}

// SyncTransactions makes the Notion database mirror txs. Individual write
// failures do not stop the sync; they are counted and returned combined.
func SyncTransactions(ctx context.Context, txs []domain.Transaction, accounts []domain.Account, notionClient NotionService, notionDBID string, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)

	accountsByID := make(map[string]domain.Account, len(accounts))
	for _, acc := range accounts {
		accountsByID[acc.ID] = acc
	}
	for _, tx := range txs {
		if _, ok := accountsByID[tx.AccountID]; !ok {
			return Result{}, domain.InvalidReferencef("transaction %q references unknown account %q", tx.ID, tx.AccountID)
		}
	}

	log.Info().
		Int("transaction_count", len(txs)).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to query Notion pages")
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(txs))
	for _, tx := range txs {
		wanted[tx.ID] = true
	}

	// Pages keyed by transaction id. A second page for the same id is stale.
	existing := make(map[string]notionapi.Page, len(pages))
	var stale []notionapi.Page
	for _, page := range pages {
		txID := extractTransactionID(page)
		if txID == "" || !wanted[txID] {
			stale = append(stale, page)
			continue
		}
		if _, dup := existing[txID]; dup {
			stale = append(stale, page)
			continue
		}
		existing[txID] = page
	}

	var (
		res  Result
		mu   sync.Mutex
		errs error
	)
	record := func(count *int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failed++
			errs = errors.CombineErrors(errs, err)
			return
		}
		*count++
	}

	pool := workerpool.New(defaultPoolSize)

	for _, page := range stale {
		pageID := string(page.ID)
		if dryRun {
			log.Info().Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		pool.Submit(func() {
			err := notionClient.ArchivePage(ctx, pageID)
			if err != nil {
				log.Warn().Err(err).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			}
			record(&res.Archived, err)
		})
	}

	for _, tx := range txs {
		acc := accountsByID[tx.AccountID]
		page, found := existing[tx.ID]

		if found && extractFingerprint(page) == Fingerprint(tx, acc) {
			res.Skipped++
			continue
		}

		if dryRun {
			if found {
				log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := TransactionToNotionProperties(tx, acc)
		if found {
			pageID := string(page.ID)
			pool.Submit(func() {
				_, err := notionClient.UpdatePage(ctx, pageID, props)
				if err != nil {
					log.Warn().Err(err).Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				}
				record(&res.Updated, err)
			})
			continue
		}

		pool.Submit(func() {
			_, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			}
			record(&res.Created, err)
		})
	}

	pool.StopWait()

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Transaction sync completed")

	return res, errs
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
