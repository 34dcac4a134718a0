package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestChangeFeedTriggerCoversSynchronizedTables(t *testing.T) {
	data, err := fs.ReadFile(migrationFiles, "migrations/000002_change_notify.up.sql")
	require.NoError(t, err)
	sql := string(data)

	assert.Contains(t, sql, "pg_notify('table_changes'")
	for _, table := range []string{"titles", "ratings", "watchlist", "user_lists", "list_items"} {
		assert.Contains(t, sql, "ON "+table+"\n", table)
	}
}
