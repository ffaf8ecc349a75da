package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/securenest/securenest/internal/config"
	"github.com/securenest/securenest/internal/handler"
	"github.com/securenest/securenest/internal/middleware"
	"github.com/securenest/securenest/internal/push"
	"github.com/securenest/securenest/internal/relay"
	"github.com/securenest/securenest/internal/store"
)

type Server struct {
	db  *sql.DB
	hub *relay.Hub

	parentStore  *store.ParentStore
	childStore   *store.ChildStore
	fenceStore   *store.GeoFenceStore
	historyStore *store.HistoryStore
	pushStore    *store.PushStore

	parentH *handler.ParentHandler
	childH  *handler.ChildHandler
	fenceH  *handler.GeoFenceHandler
	pushH   *handler.PushHandler

	dispatcher  *push.Dispatcher
	rateLimiter *middleware.RateLimiter
	jwtSecret   []byte
	logger      *slog.Logger
}

func New(db *sql.DB, cfg config.ServerConfig, logger *slog.Logger) *Server {
	hub := relay.NewHub(logger.With("component", "relay"))

	parentStore := store.NewParentStore(db)
	childStore := store.NewChildStore(db)
	fenceStore := store.NewGeoFenceStore(db)
	historyStore := store.NewHistoryStore(db)
	pushStore := store.NewPushStore(db)

	pushLogger := logger.With("component", "push")

	var pushH *handler.PushHandler
	var dispatcher *push.Dispatcher
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
		dispatcher = push.NewDispatcher(pushSvc, pushStore, parentStore, childStore, pushLogger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushLogger)
	} else {
		logger.Warn("VAPID keys not configured, SOS push fan-out disabled")
	}

	s := &Server{
		db:           db,
		hub:          hub,
		parentStore:  parentStore,
		childStore:   childStore,
		fenceStore:   fenceStore,
		historyStore: historyStore,
		pushStore:    pushStore,
		parentH:      handler.NewParentHandler(parentStore, logger.With("component", "parent")),
		childH:       handler.NewChildHandler(childStore, historyStore, logger.With("component", "child")),
		fenceH:       handler.NewGeoFenceHandler(fenceStore, logger.With("component", "geofence")),
		pushH:        pushH,
		dispatcher:   dispatcher,
		rateLimiter:  middleware.NewRateLimiter(),
		jwtSecret:    []byte(cfg.JWTSecret),
		logger:       logger,
	}

	hub.SetTap(s.tap)
	return s
}

// Hub returns the relay hub.
func (s *Server) Hub() *relay.Hub {
	return s.hub
}

// ChildStore returns the child store for presence maintenance.
func (s *Server) ChildStore() *store.ChildStore {
	return s.childStore
}

// HistoryStore returns the history store for retention pruning.
func (s *Server) HistoryStore() *store.HistoryStore {
	return s.historyStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// tap observes every relay event before broadcast. It never blocks the
// broadcast path on anything slow; store writes are quick sqlite statements.
func (s *Server) tap(ev relay.Event) {
	switch ev.Event {
	case relay.EventChildLocationUpdate:
		var update relay.LocationUpdate
		if err := json.Unmarshal(ev.Data, &update); err != nil || update.FamilyCode == "" {
			return
		}
		child, err := s.childStore.GetByFamilyCode(update.FamilyCode)
		if err != nil {
			s.logger.Error("resolve family code", "error", err)
			return
		}
		if child == nil {
			// Unknown code: still broadcast, never persist
			return
		}
		now := time.Now().UTC()
		ts := now
		if parsed, err := time.Parse(time.RFC3339, update.Timestamp); err == nil {
			ts = parsed
		}
		if err := s.historyStore.Append(update.FamilyCode, update.Latitude, update.Longitude, ts); err != nil {
			s.logger.Error("append location history", "error", err)
		}
		if err := s.childStore.Touch(update.FamilyCode, now); err != nil {
			s.logger.Error("touch child presence", "error", err)
		}
	case relay.EventSOSAlert:
		var alert relay.SOSAlert
		if err := json.Unmarshal(ev.Data, &alert); err != nil {
			return
		}
		if s.dispatcher != nil {
			s.dispatcher.HandleSOS(alert)
		}
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", relay.Handler(s.hub))
	outerMux.HandleFunc("POST /children/auth", s.rateLimitedHandler(s.childH.Auth))

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	if len(s.jwtSecret) > 0 {
		authMiddleware := middleware.RequireAuth(s.jwtSecret)
		outerMux.Handle("/", authMiddleware(protectedMux))
	} else {
		s.logger.Warn("JWT secret not configured, API authentication disabled")
		outerMux.Handle("/", protectedMux)
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Parent API
	mux.HandleFunc("POST /parents", s.parentH.Create)
	mux.HandleFunc("GET /parents/clerk/{clerkId}", s.parentH.GetByClerkID)

	// Child API
	mux.HandleFunc("POST /children", s.childH.Create)
	mux.HandleFunc("GET /children/by-parent/{parentId}", s.childH.ListByParent)
	// Registered outside /children/ so it cannot conflict with the
	// by-parent wildcard above.
	mux.HandleFunc("GET /locations/children/{id}", s.childH.Locations)

	// Geofencing API
	mux.HandleFunc("POST /geofencing", s.fenceH.Create)
	mux.HandleFunc("GET /geofencing", s.fenceH.List)
	mux.HandleFunc("GET /geofencing/parent/{parentId}", s.fenceH.ListByParent)
	mux.HandleFunc("DELETE /geofencing/{id}", s.fenceH.Delete)

	// Push API
	if s.pushH != nil {
		mux.HandleFunc("POST /push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /push/vapid-key", s.pushH.GetVAPIDKey)
	}
}
