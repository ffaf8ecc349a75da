package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"time"

	"github.com/securenest/securenest/internal/geofence"
)

// SimSource is a simulated location source: a random walk starting at Start,
// stepping up to Step degrees per sample. Useful for demos and soak testing
// without a real positioning device.
type SimSource struct {
	Start Point
	Step  float64
}

func (s *SimSource) Watch(ctx context.Context, opts WatchOptions) (<-chan Point, error) {
	step := s.Step
	if step == 0 {
		step = 0.0001
	}
	out := make(chan Point)

	go func() {
		defer close(out)
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		cur := s.Start
		lastSent := cur
		sent := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur.Latitude += (rand.Float64()*2 - 1) * step
				cur.Longitude += (rand.Float64()*2 - 1) * step
				if sent && geofence.Distance(cur.Latitude, cur.Longitude, lastSent.Latitude, lastSent.Longitude) < opts.MinDistance {
					continue
				}
				select {
				case out <- cur:
					lastSent = cur
					sent = true
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ScriptSource replays JSON-lines points from r, one per tick. Each line is
// {"latitude": ..., "longitude": ...}. The channel closes when the script
// runs out.
type ScriptSource struct {
	R io.Reader
}

func (s *ScriptSource) Watch(ctx context.Context, opts WatchOptions) (<-chan Point, error) {
	out := make(chan Point)

	go func() {
		defer close(out)
		scanner := bufio.NewScanner(s.R)
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var pt struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.Unmarshal(line, &pt); err != nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case out <- Point{Latitude: pt.Latitude, Longitude: pt.Longitude}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
