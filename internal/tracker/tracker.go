// Package tracker is the child-side agent: it samples device location,
// tags each sample with the saved family code, publishes it through the
// relay, and raises SOS alerts on demand.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/securenest/securenest/internal/geofence"
	"github.com/securenest/securenest/internal/localstate"
	"github.com/securenest/securenest/internal/model"
	"github.com/securenest/securenest/internal/relay"
)

// ErrPermissionDenied is returned by a Source when the platform refuses
// location access for the requested cadence.
var ErrPermissionDenied = errors.New("tracker: location permission denied")

// DefaultSOSMessage is sent when an SOS is raised without a custom message.
const DefaultSOSMessage = "Emergency! I need help!"

// Sampling cadences. Foreground is tight for live maps; background trades
// resolution for battery.
const (
	foregroundInterval    = 2 * time.Second
	foregroundMinDistance = 1.0
	backgroundInterval    = 5 * time.Second
	backgroundMinDistance = 10.0

	// DefaultFenceRefreshInterval is how often saved zones are re-fetched.
	DefaultFenceRefreshInterval = time.Minute
)

// Point is one location sample.
type Point struct {
	Latitude  float64
	Longitude float64
}

// WatchOptions sets the cadence of a location watch.
type WatchOptions struct {
	Interval    time.Duration
	MinDistance float64 // meters
}

// Source produces location samples. The returned channel is closed when ctx
// is cancelled or the watch ends.
type Source interface {
	Watch(ctx context.Context, opts WatchOptions) (<-chan Point, error)
}

// Emitter publishes events to the relay. *relay.Conn satisfies it.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
}

// FenceFetcher loads the currently saved zones, typically from the hub's
// REST API.
type FenceFetcher func(ctx context.Context) ([]model.GeoFence, error)

// Config wires a Producer.
type Config struct {
	Source      Source
	Emitter     Emitter
	State       *localstate.Store
	Evaluator   *geofence.Evaluator
	FetchFences FenceFetcher
	// FenceRefreshInterval defaults to DefaultFenceRefreshInterval.
	FenceRefreshInterval time.Duration
	Logger               *slog.Logger
}

// Producer runs the location pipeline: two watches (foreground and
// background) feed the relay, the foreground watch additionally drives zone
// evaluation. The family code is read from durable state at emit time, so a
// code saved after startup takes effect on the next sample.
type Producer struct {
	source      Source
	emitter     Emitter
	state       *localstate.Store
	eval        *geofence.Evaluator
	fetchFences FenceFetcher
	refreshEach time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	last *Point

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProducer(cfg Config) *Producer {
	refresh := cfg.FenceRefreshInterval
	if refresh <= 0 {
		refresh = DefaultFenceRefreshInterval
	}
	return &Producer{
		source:      cfg.Source,
		emitter:     cfg.Emitter,
		state:       cfg.State,
		eval:        cfg.Evaluator,
		fetchFences: cfg.FetchFences,
		refreshEach: refresh,
		logger:      cfg.Logger,
	}
}

// Start begins sampling. A cadence whose watch is refused is disabled with a
// warning; Start fails only when no cadence could be started.
func (p *Producer) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	fg, fgErr := p.source.Watch(ctx, WatchOptions{Interval: foregroundInterval, MinDistance: foregroundMinDistance})
	bg, bgErr := p.source.Watch(ctx, WatchOptions{Interval: backgroundInterval, MinDistance: backgroundMinDistance})

	if fgErr != nil && bgErr != nil {
		p.cancel()
		return fgErr
	}
	if fgErr != nil {
		p.logger.Warn("foreground watch unavailable", "error", fgErr)
	}
	if bgErr != nil {
		p.logger.Warn("background watch unavailable", "error", bgErr)
	}

	if fg != nil {
		p.wg.Add(1)
		go p.pump(ctx, fg, true)
	}
	if bg != nil {
		p.wg.Add(1)
		go p.pump(ctx, bg, false)
	}
	if p.fetchFences != nil && p.eval != nil {
		p.wg.Add(1)
		go p.refreshLoop(ctx)
	}
	return nil
}

// Stop ends sampling and waits for in-flight work.
func (p *Producer) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// SOS raises an alert carrying the last known location and the saved family
// code. An empty message falls back to DefaultSOSMessage.
func (p *Producer) SOS(ctx context.Context, message string) error {
	if message == "" {
		message = DefaultSOSMessage
	}
	code, err := p.state.Get(localstate.KeySavedFamilyCode)
	if err != nil {
		return err
	}

	alert := relay.SOSAlert{Message: message, FamilyCode: code}
	p.mu.Lock()
	if p.last != nil {
		alert.Location = relay.Coordinates{Latitude: p.last.Latitude, Longitude: p.last.Longitude}
	}
	p.mu.Unlock()

	return p.emitter.Emit(ctx, relay.EventSOSAlert, alert)
}

func (p *Producer) pump(ctx context.Context, points <-chan Point, foreground bool) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pt, ok := <-points:
			if !ok {
				return
			}
			p.publish(ctx, pt, foreground)
		}
	}
}

func (p *Producer) publish(ctx context.Context, pt Point, foreground bool) {
	p.mu.Lock()
	p.last = &pt
	p.mu.Unlock()

	if foreground && p.eval != nil {
		p.eval.Evaluate(pt.Latitude, pt.Longitude)
	}

	code, err := p.state.Get(localstate.KeySavedFamilyCode)
	if err != nil {
		p.logger.Error("read family code", "error", err)
		return
	}
	if code == "" {
		p.logger.Debug("no family code saved, sample not published")
		return
	}

	update := relay.LocationUpdate{
		Latitude:   pt.Latitude,
		Longitude:  pt.Longitude,
		FamilyCode: code,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if err := p.emitter.Emit(ctx, relay.EventChildLocationUpdate, update); err != nil {
		if errors.Is(err, relay.ErrNotConnected) {
			p.logger.Debug("relay down, sample dropped")
			return
		}
		p.logger.Error("publish location", "error", err)
	}
}

func (p *Producer) refreshLoop(ctx context.Context) {
	defer p.wg.Done()

	p.refreshFences(ctx)
	ticker := time.NewTicker(p.refreshEach)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshFences(ctx)
		}
	}
}

func (p *Producer) refreshFences(ctx context.Context) {
	fences, err := p.fetchFences(ctx)
	if err != nil {
		p.logger.Warn("refresh zones", "error", err)
		return
	}
	p.eval.SetFences(fences)
}
