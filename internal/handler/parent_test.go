package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParentHandler(e *testEnv) *ParentHandler {
	return NewParentHandler(e.parents, slog.Default())
}

func TestCreateParent(t *testing.T) {
	e := setupEnv(t)
	h := newParentHandler(e)

	rec := doJSON(t, h.Create, "POST", "/parents", map[string]string{
		"clerkId":   "clerk_new",
		"email":     "new@example.com",
		"firstName": "New",
		"lastName":  "Parent",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	parent := decodeBody(t, rec)["parent"].(map[string]any)
	assert.Equal(t, "new@example.com", parent["email"])

	// Creating again with the same clerk id returns the existing record.
	rec = doJSON(t, h.Create, "POST", "/parents", map[string]string{
		"clerkId": "clerk_new",
		"email":   "new@example.com",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateParentValidation(t *testing.T) {
	e := setupEnv(t)
	h := newParentHandler(e)

	rec := doJSON(t, h.Create, "POST", "/parents", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetParentByClerkID(t *testing.T) {
	e := setupEnv(t)
	h := newParentHandler(e)
	e.createParent(t)

	req := httptest.NewRequest("GET", "/parents/clerk/clerk_abc", nil)
	req.SetPathValue("clerkId", "clerk_abc")
	rec := httptest.NewRecorder()
	h.GetByClerkID(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	parent := decodeBody(t, rec)["parent"].(map[string]any)
	assert.Equal(t, "jane@example.com", parent["email"])

	req = httptest.NewRequest("GET", "/parents/clerk/clerk_missing", nil)
	req.SetPathValue("clerkId", "clerk_missing")
	rec = httptest.NewRecorder()
	h.GetByClerkID(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
