package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/securenest/securenest/internal/api"
	"github.com/securenest/securenest/internal/config"
	"github.com/securenest/securenest/internal/localstate"
	"github.com/securenest/securenest/internal/logging"
	"github.com/securenest/securenest/internal/relay"
	"github.com/securenest/securenest/internal/watcher"
)

// terminalNotifier is the CLI stand-in for a phone's notification channel:
// it prints the alert and rings the terminal bell.
type terminalNotifier struct {
	logger *slog.Logger
}

func (n *terminalNotifier) SOSReceived(alert relay.SOSAlert) {
	fmt.Printf("\a\n*** SOS ALERT from %s: %s (%.5f, %.5f) ***\n\n",
		alert.FamilyCode, alert.Message, alert.Location.Latitude, alert.Location.Longitude)
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	codesRefresh := flag.Duration("codes-refresh", time.Minute, "how often to re-fetch watched family codes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Watcher.LogLevel, "text")

	state, err := localstate.Open(cfg.Watcher.StatePath)
	if err != nil {
		log.Fatalf("open state: %v", err)
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.Watcher.ServerURL, cfg.Watcher.APIToken)

	cache := watcher.NewCache(state)
	if err := cache.Load(); err != nil {
		logger.Warn("load cached locations", "error", err)
	}
	for _, e := range cache.All() {
		logger.Info("restored cached position", "family_code", e.FamilyCode, "lat", e.Latitude, "lon", e.Longitude)
	}

	notifier := &terminalNotifier{logger: logger}
	sub := watcher.NewSubscriber(fetchCodes(ctx, cfg.Watcher, client, state, logger), cache, notifier, state, logger.With("component", "subscriber"))

	conn, err := relay.Dial(ctx, cfg.Watcher.RelayURL, logger.With("component", "relay"))
	if err != nil {
		log.Fatalf("connect to relay: %v", err)
	}
	defer conn.Close()
	sub.Attach(conn)

	// New children registered while the watcher runs show up on the next
	// refresh without a restart.
	go func() {
		ticker := time.NewTicker(*codesRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sub.SetCodes(fetchCodes(ctx, cfg.Watcher, client, state, logger))
			}
		}
	}()

	fmt.Println("Watcher running. Ctrl-C to stop.")
	<-ctx.Done()
	fmt.Println("\nShutting down...")
}

// fetchCodes resolves the parent's family codes, falling back to the locally
// cached parent record when the hub is unreachable.
func fetchCodes(ctx context.Context, cfg config.WatcherConfig, client *api.Client, state *localstate.Store, logger *slog.Logger) watcher.CodeSet {
	if cfg.ClerkID == "" {
		logger.Warn("no clerk id configured, watching nothing")
		return watcher.NewCodeSet()
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	parent, err := client.ParentByClerkID(reqCtx, cfg.ClerkID)
	if err != nil || parent == nil {
		logger.Warn("fetch parent failed, using cached details", "error", err)
		return cachedCodes(state)
	}

	if data, err := json.Marshal(parent); err == nil {
		state.Set(localstate.KeyParentDetails, string(data))
	}
	state.Set(localstate.KeyIsParent, "true")
	if len(parent.FamilyCodes) > 0 {
		state.Set(localstate.KeyHasChild, "true")
	}

	return watcher.NewCodeSet(parent.FamilyCodes...)
}

func cachedCodes(state *localstate.Store) watcher.CodeSet {
	raw, err := state.Get(localstate.KeyParentDetails)
	if err != nil || raw == "" {
		return watcher.NewCodeSet()
	}
	var parent struct {
		FamilyCodes []string `json:"familyCodes"`
	}
	if err := json.Unmarshal([]byte(raw), &parent); err != nil {
		return watcher.NewCodeSet()
	}
	return watcher.NewCodeSet(parent.FamilyCodes...)
}
