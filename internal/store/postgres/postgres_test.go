package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrations_AreOrderedAndUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Migrations() {
		assert.False(t, seen[m.ID], "duplicate migration id %s", m.ID)
		seen[m.ID] = true
		assert.NotNil(t, m.Migrate)
		assert.NotNil(t, m.Rollback)
	}
	assert.NotEmpty(t, seen)
}

func TestCollection_TableName(t *testing.T) {
	assert.Equal(t, "collections", Collection{}.TableName())
}
