package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/securenest/securenest/internal/api"
	"github.com/securenest/securenest/internal/config"
	"github.com/securenest/securenest/internal/geofence"
	"github.com/securenest/securenest/internal/localstate"
	"github.com/securenest/securenest/internal/logging"
	"github.com/securenest/securenest/internal/model"
	"github.com/securenest/securenest/internal/relay"
	"github.com/securenest/securenest/internal/tracker"
)

// logAlerter surfaces zone transitions on the child device.
type logAlerter struct {
	logger *slog.Logger
}

func (a *logAlerter) ZoneEntered() {
	a.logger.Info("entered a safe zone")
}

func (a *logAlerter) ZoneExited() {
	a.logger.Warn("left the safe zone")
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	script := flag.String("script", "", "JSON-lines location script (default: simulated walk)")
	lat := flag.Float64("lat", 19.076, "simulated walk start latitude")
	lon := flag.Float64("lon", 72.8777, "simulated walk start longitude")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Tracker.LogLevel, "text")

	state, err := localstate.Open(cfg.Tracker.StatePath)
	if err != nil {
		log.Fatalf("open state: %v", err)
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.Tracker.ServerURL, cfg.Tracker.APIToken)
	child := register(ctx, cfg.Tracker, client, state, logger)

	conn, err := relay.Dial(ctx, cfg.Tracker.RelayURL, logger.With("component", "relay"))
	if err != nil {
		log.Fatalf("connect to relay: %v", err)
	}
	defer conn.Close()

	var source tracker.Source
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			log.Fatalf("open script: %v", err)
		}
		defer f.Close()
		source = &tracker.ScriptSource{R: f}
	} else {
		source = &tracker.SimSource{Start: tracker.Point{Latitude: *lat, Longitude: *lon}}
	}

	eval := geofence.NewEvaluator(&logAlerter{logger: logger.With("component", "zones")}, 0)
	producer := tracker.NewProducer(tracker.Config{
		Source:    source,
		Emitter:   conn,
		State:     state,
		Evaluator: eval,
		FetchFences: func(ctx context.Context) ([]model.GeoFence, error) {
			if child == nil {
				return nil, nil
			}
			return client.GeoFencesByParent(ctx, child.ParentID)
		},
		Logger: logger.With("component", "producer"),
	})

	if err := producer.Start(ctx); err != nil {
		log.Fatalf("start producer: %v", err)
	}
	defer producer.Stop()

	// SIGUSR1 raises an SOS, the CLI stand-in for the panic button.
	sos := make(chan os.Signal, 1)
	signal.Notify(sos, syscall.SIGUSR1)
	go func() {
		for range sos {
			if err := producer.SOS(ctx, ""); err != nil {
				logger.Error("send sos", "error", err)
				continue
			}
			logger.Warn("sos alert sent")
		}
	}()

	fmt.Println("Tracker running. Send SIGUSR1 to raise an SOS, Ctrl-C to stop.")
	<-ctx.Done()
	fmt.Println("\nShutting down...")
}

// register exchanges the family code for the child record and persists both.
// A tracker with no code yet still runs; it just publishes nothing.
func register(ctx context.Context, cfg config.TrackerConfig, client *api.Client, state *localstate.Store, logger *slog.Logger) *model.Child {
	code := cfg.FamilyCode
	if code == "" {
		saved, err := state.Get(localstate.KeySavedFamilyCode)
		if err != nil {
			log.Fatalf("read saved family code: %v", err)
		}
		code = saved
	}
	if code == "" {
		logger.Warn("no family code configured, location publishing disabled until one is saved")
		return nil
	}

	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	child, err := client.AuthChild(authCtx, code)
	if err != nil || child == nil {
		logger.Warn("family code authentication failed, continuing offline", "error", err)
		return nil
	}

	if err := state.Set(localstate.KeySavedFamilyCode, code); err != nil {
		log.Fatalf("save family code: %v", err)
	}
	if data, err := json.Marshal(child); err == nil {
		state.Set(localstate.KeyChildData, string(data))
	}
	state.Set(localstate.KeyIsChild, "true")

	logger.Info("registered", "name", child.Name, "family_code", code)
	return child
}
