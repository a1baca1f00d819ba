package main

import (
	"context"
	"flag"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/ledger-ai/internal/infra/bigquery"
	"github.com/dvloznov/ledger-ai/internal/logger"
	"github.com/dvloznov/ledger-ai/internal/store/postgres"
)

const (
	targetPostgres = "postgres"
	targetBigQuery = "bigquery"
)

var (
	target        = flag.String("target", targetPostgres, "Migration target: postgres or bigquery")
	dsn           = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN (or set POSTGRES_DSN env)")
	projectID     = flag.String("project", os.Getenv("BQ_PROJECT"), "GCP project ID (or set BQ_PROJECT env)")
	datasetID     = flag.String("dataset", "finance", "BigQuery dataset ID")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to BigQuery migrations directory")
)

func main() {
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	switch *target {
	case targetPostgres:
		migratePostgres(log)
	case targetBigQuery:
		migrateBigQuery(ctx, log)
	default:
		log.Fatal().Str("target", *target).Msg("Unknown migration target")
	}
}

func migratePostgres(log zerolog.Logger) {
	if *dsn == "" {
		log.Fatal().Msg("-dsn flag is required for the postgres target")
	}

	db, err := postgres.Open(*dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	defer sqlDB.Close()

	log.Info().Int("migrations", len(postgres.Migrations())).Msg("Applying postgres migrations")
	if err := postgres.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate postgres")
	}
	log.Info().Msg("Postgres schema is up to date")
}

func migrateBigQuery(ctx context.Context, log zerolog.Logger) {
	if *projectID == "" {
		log.Fatal().Msg("-project flag is required for the bigquery target")
	}

	dir := *migrationsDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from the repository root in case we're in cmd/migrate
		dir = "../../" + *migrationsDir
	}

	migrations, err := infraBQ.ReadMigrations(dir, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	applied, err := infraBQ.NewMigrator(client, *projectID, *datasetID, *appliedBy, log).Run(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}
