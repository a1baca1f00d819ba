package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/app"
	"github.com/dvloznov/ledger-ai/internal/config"
	"github.com/dvloznov/ledger-ai/internal/export"
	infraBQ "github.com/dvloznov/ledger-ai/internal/infra/bigquery"
	"github.com/dvloznov/ledger-ai/internal/ledger"
	"github.com/dvloznov/ledger-ai/internal/logger"
	"github.com/dvloznov/ledger-ai/internal/slip"
	"github.com/dvloznov/ledger-ai/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithFormat(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	switch os.Args[1] {
	case "export-csv":
		runExport(cfg, log, "csv")
	case "export-xlsx":
		runExport(cfg, log, "xlsx")
	case "extract-slip":
		runExtractSlip(cfg, log)
	case "rate":
		runRate(cfg, log)
	case "mirror-bigquery":
		runMirrorBigQuery(cfg, log)
	case "report-bigquery":
		runReportBigQuery(cfg, log)
	case "copy-store":
		runCopyStore(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  export-csv       Write all transactions to a CSV file")
	fmt.Println("  export-xlsx      Write all transactions to an XLSX workbook")
	fmt.Println("  extract-slip     Read a transfer slip image and print a draft transaction")
	fmt.Println("  rate             Print the current THB per USD rate")
	fmt.Println("  mirror-bigquery  Copy the ledger into BigQuery as a new snapshot")
	fmt.Println("  report-bigquery  Print monthly totals from the latest BigQuery snapshot")
	fmt.Println("  copy-store       Copy every collection to another storage backend")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openApp loads the ledger; the caller closes it.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app.App {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	return a
}

func runExport(cfg *config.Config, log zerolog.Logger, format string) {
	fs := flag.NewFlagSet("export-"+format, flag.ExitOnError)
	out := fs.String("out", "", "Output path (defaults to a dated file name in the current directory)")
	month := fs.String("month", "", "Only export this month (YYYY-MM)")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	path := *out
	if path == "" {
		path = export.Filename(time.Now(), format)
	}

	f, err := os.Create(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to create output file")
	}
	defer f.Close()

	txs := a.Ledger.Transactions(ledger.TransactionFilter{Month: *month})
	write := export.WriteCSV
	if format == "xlsx" {
		write = export.WriteXLSX
	}
	if err := write(f, txs, a.Ledger.Accounts()); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d transactions to %s\n", len(txs), path)
}

func runExtractSlip(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("extract-slip", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the slip image")
	save := fs.Bool("save", false, "Record the draft as a transaction")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read slip image")
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Slip.Timeout+time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	if a.Extractor == nil {
		log.Fatal().Msg("Slip extraction is not configured; set GEMINI_API_KEY")
	}

	res, err := a.Extractor.Process(ctx, dataURI)
	if err != nil {
		log.Fatal().Err(err).Str("file", filepath.Base(*filePath)).Msg("Slip extraction failed")
	}

	draft := slip.Draft(res.Details, a.Ledger.Accounts(), a.Ledger.Purposes())
	printJSON(map[string]interface{}{
		"details":    res.Details,
		"validation": res.Validation,
		"draft":      draft,
	})

	if !*save {
		return
	}
	tx, err := a.Ledger.AddTransaction(ctx, draft)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to record drafted transaction")
	}
	fmt.Printf("Recorded transaction %s\n", tx.ID)
}

func runRate(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q := app.NewRateProvider(cfg.Rates, log).Current(ctx)
	printJSON(q)
}

func runMirrorBigQuery(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("mirror-bigquery", flag.ExitOnError)
	projectID := fs.String("project", cfg.BQ.ProjectID, "GCP project ID (or set BQ_PROJECT env)")
	datasetID := fs.String("dataset", cfg.BQ.Dataset, "BigQuery dataset ID")
	fs.Parse(os.Args[2:])

	if *projectID == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	mirror, err := infraBQ.NewMirror(ctx, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer mirror.Close()

	snapshotID, err := mirror.MirrorTransactions(ctx, a.Ledger.Transactions(ledger.TransactionFilter{}), a.Ledger.Accounts())
	if err != nil {
		log.Fatal().Err(err).Msg("Mirror failed")
	}

	fmt.Printf("Mirrored ledger as snapshot %s\n", snapshotID)
}

func runReportBigQuery(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report-bigquery", flag.ExitOnError)
	projectID := fs.String("project", cfg.BQ.ProjectID, "GCP project ID (or set BQ_PROJECT env)")
	datasetID := fs.String("dataset", cfg.BQ.Dataset, "BigQuery dataset ID")
	startStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (defaults to one year ago)")
	endStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (defaults to today)")
	fs.Parse(os.Args[2:])

	if *projectID == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	end := time.Now()
	if *endStr != "" {
		var err error
		if end, err = time.Parse(time.DateOnly, *endStr); err != nil {
			log.Fatal().Err(err).Str("end_date", *endStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
		}
	}
	start := end.AddDate(-1, 0, 0)
	if *startStr != "" {
		var err error
		if start, err = time.Parse(time.DateOnly, *startStr); err != nil {
			log.Fatal().Err(err).Str("start_date", *startStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
		}
	}
	if end.Before(start) {
		log.Fatal().Time("start_date", start).Time("end_date", end).Msg("Error: end-date must be after start-date")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mirror, err := infraBQ.NewMirror(ctx, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer mirror.Close()

	rows, err := mirror.QueryMonthlyTotals(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Report query failed")
	}

	fmt.Printf("%-8s %-4s %14s %14s %14s\n", "Month", "Cur", "Income", "Expense", "Net")
	for _, r := range rows {
		fmt.Printf("%-8s %-4s %14s %14s %14s\n", r.Month, r.Currency,
			ratString(r.Income), ratString(r.Expense), r.Net().FloatString(2))
	}
}

func runCopyStore(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("copy-store", flag.ExitOnError)
	to := fs.String("to", "", "Target backend: file, gcs or postgres")
	dir := fs.String("dir", "", "Target directory for the file backend")
	bucket := fs.String("bucket", "", "Target bucket for the gcs backend")
	prefix := fs.String("prefix", "", "Object prefix for the gcs backend")
	dsn := fs.String("dsn", "", "Target DSN for the postgres backend")
	fs.Parse(os.Args[2:])

	target := config.StoreConfig{
		Backend:     *to,
		Dir:         *dir,
		GCSBucket:   *bucket,
		GCSPrefix:   *prefix,
		PostgresDSN: *dsn,
	}
	if target.Backend == "" || target.Backend == config.BackendMemory {
		log.Fatal().Msg("Error: --to must be file, gcs or postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	src, closeSrc, err := app.OpenBackend(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open source store")
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	dst, closeDst, err := app.OpenBackend(ctx, target, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", target.Backend).Msg("Failed to open target store")
	}
	if closeDst != nil {
		defer closeDst()
	}

	n, err := store.Copy(ctx, dst, src)
	if err != nil {
		log.Fatal().Err(err).Int("copied", n).Msg("Copy failed")
	}

	fmt.Printf("Copied %d collections from %s to %s\n", n, cfg.Store.Backend, target.Backend)
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	return r.FloatString(2)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
	}
}
