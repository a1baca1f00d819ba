package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/ledger-ai/internal/app"
	"github.com/dvloznov/ledger-ai/internal/config"
	"github.com/dvloznov/ledger-ai/internal/ledger"
	"github.com/dvloznov/ledger-ai/internal/logger"
	"github.com/dvloznov/ledger-ai/internal/notionsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	notionToken := flag.String("notion-token", cfg.Notion.Token, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID (or set NOTION_DB_ID env)")
	month := flag.String("month", "", "Only sync transactions of this month (YYYY-MM)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if *month != "" {
		if _, err := time.Parse("2006-01", *month); err != nil {
			log.Fatal().Str("month", *month).Msg("Error: invalid month format, expected YYYY-MM")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	txs := a.Ledger.Transactions(ledger.TransactionFilter{Month: *month})

	log.Info().
		Str("month", *month).
		Int("transactions", len(txs)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	notionClient := notionsync.NewNotionClient(*notionToken)

	res, err := notionsync.SyncTransactions(ctx, txs, a.Ledger.Accounts(), notionClient, *notionDBID, *dryRun)
	if err != nil {
		log.Error().Err(err).Msg("Sync finished with errors")
	}

	fmt.Printf("Created %d, updated %d, archived %d, unchanged %d, failed %d.\n",
		res.Created, res.Updated, res.Archived, res.Skipped, res.Failed)

	if err != nil {
		a.Close()
		os.Exit(1)
	}
}
