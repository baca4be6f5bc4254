// Package testdb opens throwaway SQLite databases with the ledger schema for
// repository and service tests.
package testdb

import (
	"fmt"
	"testing"

	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated in-memory database that is closed when the test
// ends. Writes are serialized over a single connection so that concurrent
// test goroutines behave like separate clients of one database.
func New(t testing.TB, opts ...persistence.Option) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger-%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := persistence.Open(sqlite.Open(dsn), nil, opts...)
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}
