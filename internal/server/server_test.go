package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenest/securenest/internal/config"
	"github.com/securenest/securenest/internal/database"
	"github.com/securenest/securenest/internal/relay"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, cfg, slog.Default())
}

func TestRouterRegistersWithoutConflict(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{JWTSecret: "secret"})

	// ServeMux panics at registration time on overlapping patterns, so a
	// bare Router call catches a bad route table before any request test.
	var router http.Handler
	require.NotPanics(t, func() { router = s.Router() })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChildRoutesDoNotOverlap(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	parent, err := s.parentStore.Create("clerk_abc", "jane@example.com", "Jane", "Doe")
	require.NoError(t, err)
	child, err := s.childStore.Create(parent.ID, "152269", "Timmy", 9, "", nil)
	require.NoError(t, err)

	router := s.Router()

	// The by-parent listing and the per-child history live on disjoint
	// prefixes; both must resolve.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/children/by-parent/"+parent.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/locations/children/"+child.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{JWTSecret: "secret"})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{JWTSecret: "secret"})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/geofencing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "clerk_abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req, err := http.NewRequest("GET", ts.URL+"/geofencing", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNoSecretDisablesAuth(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/geofencing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTapRecordsHistoryAndPresence(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	parent, err := s.parentStore.Create("clerk_abc", "jane@example.com", "Jane", "Doe")
	require.NoError(t, err)
	_, err = s.childStore.Create(parent.ID, "152269", "Timmy", 9, "", nil)
	require.NoError(t, err)

	ev, err := relay.NewEvent(relay.EventChildLocationUpdate, relay.LocationUpdate{
		Latitude:   19.076,
		Longitude:  72.8777,
		FamilyCode: "152269",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	s.tap(ev)

	points, err := s.historyStore.ListRecent("152269", 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 19.076, points[0].Latitude)

	child, err := s.childStore.GetByFamilyCode("152269")
	require.NoError(t, err)
	assert.True(t, child.IsOnline)
}

func TestTapIgnoresMalformedEvents(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	s.tap(relay.Event{Event: relay.EventChildLocationUpdate, Data: json.RawMessage(`"garbage"`)})
	s.tap(relay.Event{Event: relay.EventSOSAlert, Data: json.RawMessage(`[1]`)})
	s.tap(relay.Event{Event: "unknownEvent", Data: json.RawMessage(`{}`)})

	points, err := s.historyStore.ListRecent("152269", 10)
	require.NoError(t, err)
	assert.Empty(t, points)
}
