// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"statsdb/database"
)

// New returns a migrated database backed by a file in t's temp dir.
func New(t testing.TB) *database.Database {

	t.Helper()

	db, err := database.New("sqlite", filepath.Join(t.TempDir(), "statsdb.sqlite")+"?_busy_timeout=5000", zaptest.NewLogger(t))

	require.NoError(t, err)

	require.NoError(t, db.InitializeTables())

	t.Cleanup(func() { _ = db.Close() })

	return db
}
