package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/securenest/securenest/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestParent(t *testing.T, ps *ParentStore) string {
	t.Helper()
	p, err := ps.Create("clerk_abc123", "jane@example.com", "Jane", "Doe")
	require.NoError(t, err)
	return p.ID
}
