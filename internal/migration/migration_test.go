package migration

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyEmbeddedIsRepeatable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Apply(db))
	require.NoError(t, Apply(db))

	for _, table := range []string{"vessels", "applications", "application_documents", "passengers", "webhook_events", "payment_disputes", "countries"} {
		var count int64
		require.NoError(t, db.Raw(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count).Error)
		assert.EqualValues(t, 1, count, table)
	}

	var countries int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM countries`).Scan(&countries).Error)
	assert.Greater(t, countries, int64(50))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE INDEX b ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX b ON a (id)"}, stmts)
}
