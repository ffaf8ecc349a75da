package watcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/securenest/securenest/internal/localstate"
	"github.com/securenest/securenest/internal/relay"
)

// Notifier surfaces an incoming SOS to the parent. Implementations decide
// how loud to be; the subscriber only decides whether the alert is theirs.
type Notifier interface {
	SOSReceived(alert relay.SOSAlert)
}

// Listener registers event handlers. *relay.Conn satisfies it.
type Listener interface {
	On(event string, fn relay.HandlerFunc)
}

// Subscriber consumes relay traffic for a parent. Every event is decoded
// defensively and checked against the watched code set before it touches
// local state; frames from other families or with missing codes are dropped
// without logging at error level, they are normal relay noise.
type Subscriber struct {
	mu       sync.RWMutex
	codes    CodeSet
	cache    *Cache
	notifier Notifier
	state    *localstate.Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewSubscriber(codes CodeSet, cache *Cache, notifier Notifier, state *localstate.Store, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		codes:    codes,
		cache:    cache,
		notifier: notifier,
		state:    state,
		logger:   logger,
		now:      time.Now,
	}
}

// SetCodes replaces the watched code set, e.g. after registering a new child.
func (s *Subscriber) SetCodes(codes CodeSet) {
	s.mu.Lock()
	s.codes = codes
	s.mu.Unlock()
}

// Attach registers the subscriber's handlers on a relay connection.
func (s *Subscriber) Attach(conn Listener) {
	conn.On(relay.EventChildLocationUpdate, s.HandleLocationUpdate)
	conn.On(relay.EventSOSAlert, s.HandleSOS)
}

// HandleLocationUpdate filters and caches one location frame.
func (s *Subscriber) HandleLocationUpdate(data json.RawMessage) {
	var update relay.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		s.logger.Debug("discarding malformed location update", "error", err)
		return
	}
	if !s.allows(update.FamilyCode) {
		return
	}
	if update.Latitude < -90 || update.Latitude > 90 || update.Longitude < -180 || update.Longitude > 180 {
		s.logger.Debug("discarding out-of-range coordinates", "family_code", update.FamilyCode)
		return
	}

	entry := Entry{
		FamilyCode: update.FamilyCode,
		Latitude:   update.Latitude,
		Longitude:  update.Longitude,
		Timestamp:  update.Timestamp,
		ReceivedAt: s.now(),
	}
	if err := s.cache.Upsert(entry); err != nil {
		s.logger.Error("cache location update", "error", err)
	}
}

// HandleSOS filters one SOS frame, raises it through the Notifier, and
// appends a durable audit record.
func (s *Subscriber) HandleSOS(data json.RawMessage) {
	var alert relay.SOSAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		s.logger.Debug("discarding malformed sos alert", "error", err)
		return
	}
	if !s.allows(alert.FamilyCode) {
		return
	}

	s.logger.Warn("sos alert received", "family_code", alert.FamilyCode, "message", alert.Message)
	s.notifier.SOSReceived(alert)
	s.writeAudit(alert)
}

func (s *Subscriber) allows(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codes.Allows(code)
}

// writeAudit stores the alert under "sos-<familyCode>". The record is write
// only: nothing in the app reads it back, it exists for after-the-fact
// inspection of the state file.
func (s *Subscriber) writeAudit(alert relay.SOSAlert) {
	record := struct {
		Message    string            `json:"message"`
		Location   relay.Coordinates `json:"location"`
		ReceivedAt time.Time         `json:"receivedAt"`
	}{
		Message:    alert.Message,
		Location:   alert.Location,
		ReceivedAt: s.now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("marshal sos audit", "error", err)
		return
	}
	key := fmt.Sprintf("sos-%s", alert.FamilyCode)
	if err := s.state.Set(key, string(data)); err != nil {
		s.logger.Error("write sos audit", "error", err)
	}
}
