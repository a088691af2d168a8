package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMigrationsSortsByNumber(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 10")},
		"m/002_second.sql": {Data: []byte("SELECT 2")},
		"m/001_first.sql":  {Data: []byte("SELECT 1")},
		"m/README.md":      {Data: []byte("ignored")},
	}

	migrations, err := ReadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].ID)
	assert.Equal(t, 2, migrations[1].ID)
	assert.Equal(t, 10, migrations[2].ID)
	assert.Equal(t, "SELECT 10", migrations[2].SQL)
}

func TestReadMigrationsRejectsBadName(t *testing.T) {
	fsys := fstest.MapFS{
		"m/init.sql": {Data: []byte("SELECT 1")},
	}

	_, err := ReadMigrations(fsys, "m")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := EmbeddedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].ID)
	assert.Contains(t, migrations[0].SQL, "inventory.sync_jobs")
	assert.Contains(t, migrations[0].SQL, "inventory.inventory_positions")
}
