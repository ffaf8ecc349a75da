package watcher

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/securenest/securenest/internal/localstate"
)

// Entry is the last known position of one child, keyed by family code.
type Entry struct {
	FamilyCode string    `json:"familyCode"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  string    `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Cache holds the newest Entry per family code and mirrors the whole map to
// durable state after every change, so a restarted watcher starts from the
// last known positions instead of a blank map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	state   *localstate.Store
}

func NewCache(state *localstate.Store) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		state:   state,
	}
}

// Load restores the snapshot written by a previous run. A missing or
// unreadable snapshot yields an empty cache, not an error a caller must
// handle: cached positions are a convenience, never a correctness input.
func (c *Cache) Load() error {
	raw, err := c.state.Get(localstate.KeyLocationCache)
	if err != nil {
		return fmt.Errorf("load location cache: %w", err)
	}
	if raw == "" {
		return nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Upsert records e as the newest position for its family code and persists
// the snapshot. Last write wins.
func (c *Cache) Upsert(e Entry) error {
	c.mu.Lock()
	c.entries[e.FamilyCode] = e
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal location cache: %w", err)
	}
	return c.state.Set(localstate.KeyLocationCache, string(data))
}

// Get returns the cached entry for a family code.
func (c *Cache) Get(code string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[code]
	return e, ok
}

// All returns every cached entry, ordered by family code.
func (c *Cache) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FamilyCode < out[j].FamilyCode })
	return out
}
