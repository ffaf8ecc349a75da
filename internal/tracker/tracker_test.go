package tracker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenest/securenest/internal/geofence"
	"github.com/securenest/securenest/internal/localstate"
	"github.com/securenest/securenest/internal/model"
	"github.com/securenest/securenest/internal/relay"
)

type fakeSource struct {
	fg    chan Point
	bg    chan Point
	fgErr error
	bgErr error
}

func (f *fakeSource) Watch(_ context.Context, opts WatchOptions) (<-chan Point, error) {
	if opts.Interval == foregroundInterval {
		if f.fgErr != nil {
			return nil, f.fgErr
		}
		return f.fg, nil
	}
	if f.bgErr != nil {
		return nil, f.bgErr
	}
	return f.bg, nil
}

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(_ context.Context, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) snapshot() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.events...)
}

type fixture struct {
	source  *fakeSource
	emitter *fakeEmitter
	state   *localstate.Store
	prod    *Producer
}

func setupProducer(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		source:  &fakeSource{fg: make(chan Point), bg: make(chan Point)},
		emitter: &fakeEmitter{},
	}
	state, err := localstate.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	f.state = state

	cfg.Source = f.source
	cfg.Emitter = f.emitter
	cfg.State = state
	cfg.Logger = slog.Default()
	f.prod = NewProducer(cfg)
	return f
}

func (f *fixture) startAndStop(t *testing.T) {
	t.Helper()
	require.NoError(t, f.prod.Start(context.Background()))
	t.Cleanup(f.prod.Stop)
}

func waitForEvents(t *testing.T, f *fakeEmitter, n int) []emitted {
	t.Helper()
	var events []emitted
	require.Eventually(t, func() bool {
		events = f.snapshot()
		return len(events) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return events
}

func TestSampleTaggedWithCodeAtEmitTime(t *testing.T) {
	f := setupProducer(t, Config{})
	require.NoError(t, f.state.Set(localstate.KeySavedFamilyCode, "AAA111"))
	f.startAndStop(t)

	f.source.fg <- Point{Latitude: 1, Longitude: 2}
	events := waitForEvents(t, f.emitter, 1)

	require.NoError(t, f.state.Set(localstate.KeySavedFamilyCode, "BBB222"))
	f.source.fg <- Point{Latitude: 3, Longitude: 4}
	events = waitForEvents(t, f.emitter, 2)

	first := events[0].payload.(relay.LocationUpdate)
	second := events[1].payload.(relay.LocationUpdate)
	assert.Equal(t, relay.EventChildLocationUpdate, events[0].event)
	assert.Equal(t, "AAA111", first.FamilyCode)
	assert.Equal(t, "BBB222", second.FamilyCode)
	assert.Equal(t, 3.0, second.Latitude)
	assert.NotEmpty(t, first.Timestamp)
}

func TestNoSavedCodeSuppressesPublishing(t *testing.T) {
	f := setupProducer(t, Config{})
	f.startAndStop(t)

	f.source.fg <- Point{Latitude: 1, Longitude: 2}
	f.source.bg <- Point{Latitude: 3, Longitude: 4}
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, f.emitter.snapshot())
}

func TestBackgroundDeniedForegroundStillPublishes(t *testing.T) {
	f := setupProducer(t, Config{})
	f.source.bgErr = ErrPermissionDenied
	require.NoError(t, f.state.Set(localstate.KeySavedFamilyCode, "AAA111"))
	f.startAndStop(t)

	f.source.fg <- Point{Latitude: 1, Longitude: 2}
	events := waitForEvents(t, f.emitter, 1)
	assert.Equal(t, relay.EventChildLocationUpdate, events[0].event)
}

func TestAllCadencesDeniedFailsStart(t *testing.T) {
	f := setupProducer(t, Config{})
	f.source.fgErr = ErrPermissionDenied
	f.source.bgErr = ErrPermissionDenied

	err := f.prod.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSOSCarriesLastLocationAndCode(t *testing.T) {
	f := setupProducer(t, Config{})
	require.NoError(t, f.state.Set(localstate.KeySavedFamilyCode, "152269"))
	f.startAndStop(t)

	f.source.fg <- Point{Latitude: 19.076, Longitude: 72.8777}
	waitForEvents(t, f.emitter, 1)

	require.NoError(t, f.prod.SOS(context.Background(), ""))
	events := waitForEvents(t, f.emitter, 2)

	alert := events[1].payload.(relay.SOSAlert)
	assert.Equal(t, relay.EventSOSAlert, events[1].event)
	assert.Equal(t, DefaultSOSMessage, alert.Message)
	assert.Equal(t, "152269", alert.FamilyCode)
	assert.Equal(t, 19.076, alert.Location.Latitude)
}

type countingAlerter struct {
	mu      sync.Mutex
	entered int
	exited  int
}

func (a *countingAlerter) ZoneEntered() {
	a.mu.Lock()
	a.entered++
	a.mu.Unlock()
}

func (a *countingAlerter) ZoneExited() {
	a.mu.Lock()
	a.exited++
	a.mu.Unlock()
}

func TestForegroundDrivesZoneEvaluation(t *testing.T) {
	alerter := &countingAlerter{}
	eval := geofence.NewEvaluator(alerter, time.Second)
	fence := model.GeoFence{ID: "f1", Name: "Home Zone", Latitude: 0, Longitude: 0, Radius: 100, IsActive: true}

	fetched := make(chan struct{}, 1)
	f := setupProducer(t, Config{
		Evaluator: eval,
		FetchFences: func(ctx context.Context) ([]model.GeoFence, error) {
			select {
			case fetched <- struct{}{}:
			default:
			}
			return []model.GeoFence{fence}, nil
		},
		FenceRefreshInterval: time.Hour,
	})
	require.NoError(t, f.state.Set(localstate.KeySavedFamilyCode, "AAA111"))
	f.startAndStop(t)

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("zones never fetched")
	}

	f.source.fg <- Point{Latitude: 0, Longitude: 0}
	waitForEvents(t, f.emitter, 1)

	require.Eventually(t, func() bool {
		alerter.mu.Lock()
		defer alerter.mu.Unlock()
		return alerter.entered == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Background samples must not touch zone state.
	f.source.bg <- Point{Latitude: 10, Longitude: 10}
	waitForEvents(t, f.emitter, 2)
	alerter.mu.Lock()
	exited := alerter.exited
	alerter.mu.Unlock()
	assert.Zero(t, exited)
}

func TestScriptSourceReplaysPoints(t *testing.T) {
	script := strings.Join([]string{
		`{"latitude": 1, "longitude": 2}`,
		`not json`,
		`{"latitude": 3, "longitude": 4}`,
	}, "\n")

	src := &ScriptSource{R: strings.NewReader(script)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	points, err := src.Watch(ctx, WatchOptions{Interval: time.Millisecond})
	require.NoError(t, err)

	first := <-points
	assert.Equal(t, Point{Latitude: 1, Longitude: 2}, first)
	second := <-points
	assert.Equal(t, Point{Latitude: 3, Longitude: 4}, second)

	_, open := <-points
	assert.False(t, open)
}
