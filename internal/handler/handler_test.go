package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/securenest/securenest/internal/database"
	"github.com/securenest/securenest/internal/store"
)

type testEnv struct {
	db       *sql.DB
	parents  *store.ParentStore
	children *store.ChildStore
	fences   *store.GeoFenceStore
	history  *store.HistoryStore
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &testEnv{
		db:       db,
		parents:  store.NewParentStore(db),
		children: store.NewChildStore(db),
		fences:   store.NewGeoFenceStore(db),
		history:  store.NewHistoryStore(db),
	}
}

func (e *testEnv) createParent(t *testing.T) string {
	t.Helper()
	p, err := e.parents.Create("clerk_abc", "jane@example.com", "Jane", "Doe")
	require.NoError(t, err)
	return p.ID
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
