// Package postgres stores ledger collections as rows of a single table.
package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dvloznov/ledger-ai/internal/store"
)

// Collection is one persisted blob.
type Collection struct {
	Key       string `gorm:"primaryKey;size:64"`
	Data      []byte `gorm:"type:bytea;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name independent of gorm's pluralisation.
func (Collection) TableName() string {
	return "collections"
}

// Backend implements store.Backend on top of gorm.
type Backend struct {
	db *gorm.DB
}

// Open connects to Postgres using the DSN.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Open")
	}
	return db, nil
}

// New wraps an open gorm handle. Run Migrate before first use.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// Migrations returns the schema history of the collections table.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "0001_create_collections",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Collection{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("collections")
			},
		},
	}
}

// Migrate applies pending migrations.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, &gormigrate.Options{
		TableName:                 "gorm_migrations",
		IDColumnName:              "id",
		IDColumnSize:              255,
		UseTransaction:            true,
		ValidateUnknownMigrations: false,
	}, Migrations())

	if err := m.Migrate(); err != nil {
		return errors.Wrap(err, "postgres.Migrate")
	}
	return nil
}

// Get loads the blob for key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var row Collection
	err := b.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "postgres.Get: %q", key)
	}
	return row.Data, nil
}

// Put upserts the blob for key.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	row := Collection{Key: key, Data: data, UpdatedAt: time.Now().UTC()}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "postgres.Put: %q", key)
	}
	return nil
}

var _ store.Backend = (*Backend)(nil)
