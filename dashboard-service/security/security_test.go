package security

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory database with the security ledger schema.
// The production schema relies on Postgres defaults, so the table is
// declared directly here.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE security_logs (
		id text PRIMARY KEY,
		user_id text,
		ip_address text NOT NULL,
		user_agent text,
		reason text NOT NULL,
		created_at datetime,
		resolved_at datetime
	)`).Error
	require.NoError(t, err)

	return db
}
