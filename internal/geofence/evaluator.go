package geofence

import (
	"sync"
	"time"

	"github.com/securenest/securenest/internal/model"
)

// DefaultResetDelay is how long the evaluator stays in StatusOutside before
// settling back to StatusNone.
const DefaultResetDelay = 2 * time.Second

// Status is the aggregate zone membership of the tracked point.
type Status int

const (
	StatusNone Status = iota
	StatusInside
	StatusOutside
)

func (s Status) String() string {
	switch s {
	case StatusInside:
		return "inside"
	case StatusOutside:
		return "outside"
	default:
		return "none"
	}
}

// Alerter receives zone transition edges. ZoneEntered corresponds to a
// persistent entry alarm; ZoneExited cancels it and shows a transient notice.
type Alerter interface {
	ZoneEntered()
	ZoneExited()
}

// Evaluator tracks inside/outside membership of a point against a set of
// circular fences with union semantics: the point is "inside" when it is
// within any active fence. Transition edges fire the Alerter exactly once;
// re-evaluating an unchanged state is a no-op.
type Evaluator struct {
	mu         sync.Mutex
	fences     []model.GeoFence
	status     Status
	alerter    Alerter
	resetDelay time.Duration
	resetTimer *time.Timer
	last       *point
}

type point struct {
	lat, lon float64
}

// NewEvaluator creates an Evaluator with no fences and status none.
// A resetDelay <= 0 selects DefaultResetDelay.
func NewEvaluator(alerter Alerter, resetDelay time.Duration) *Evaluator {
	if resetDelay <= 0 {
		resetDelay = DefaultResetDelay
	}
	return &Evaluator{
		alerter:    alerter,
		resetDelay: resetDelay,
	}
}

// SetFences replaces the fence set. If a point has been evaluated before,
// membership is re-evaluated immediately against the new set.
func (e *Evaluator) SetFences(fences []model.GeoFence) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fences = fences
	if e.last != nil {
		e.evaluateLocked(e.last.lat, e.last.lon)
	}
}

// Evaluate updates membership for a new point and returns the resulting
// status.
func (e *Evaluator) Evaluate(lat, lon float64) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.last = &point{lat: lat, lon: lon}
	e.evaluateLocked(lat, lon)
	return e.status
}

// Status returns the current zone status.
func (e *Evaluator) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Evaluator) evaluateLocked(lat, lon float64) {
	inside := false
	for _, f := range e.fences {
		if !f.IsActive {
			continue
		}
		if Distance(lat, lon, f.Latitude, f.Longitude) <= f.Radius {
			inside = true
			break
		}
	}

	switch {
	case inside && e.status != StatusInside:
		// none -> inside, or back inside before the exit reset elapsed
		e.stopResetLocked()
		e.status = StatusInside
		if e.alerter != nil {
			e.alerter.ZoneEntered()
		}
	case !inside && e.status == StatusInside:
		e.status = StatusOutside
		if e.alerter != nil {
			e.alerter.ZoneExited()
		}
		e.scheduleResetLocked()
	}
	// inside->inside, outside->outside, none->none: no-ops
}

// scheduleResetLocked arms the outside -> none auto-transition. No alert
// fires on the reset itself.
func (e *Evaluator) scheduleResetLocked() {
	e.stopResetLocked()
	e.resetTimer = time.AfterFunc(e.resetDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.status == StatusOutside {
			e.status = StatusNone
		}
	})
}

func (e *Evaluator) stopResetLocked() {
	if e.resetTimer != nil {
		e.resetTimer.Stop()
		e.resetTimer = nil
	}
}
