package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	assert.Zero(t, Distance(0, 0, 0, 0))
	assert.Zero(t, Distance(48.8566, 2.3522, 48.8566, 2.3522))
}

func TestDistanceKnownValues(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km.
	d := Distance(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 50)

	// The scenario point used throughout the zone tests: (0, 0.01) is ~1112 m
	// from the origin, well outside a 300 m fence.
	d = Distance(0, 0, 0, 0.01)
	assert.InDelta(t, 1112, d, 5)
}

func TestDistanceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lat1 := rapid.Float64Range(-90, 90).Draw(t, "lat1")
		lon1 := rapid.Float64Range(-180, 180).Draw(t, "lon1")
		lat2 := rapid.Float64Range(-90, 90).Draw(t, "lat2")
		lon2 := rapid.Float64Range(-180, 180).Draw(t, "lon2")

		d12 := Distance(lat1, lon1, lat2, lon2)
		d21 := Distance(lat2, lon2, lat1, lon1)

		if d12 < 0 {
			t.Fatalf("negative distance %f", d12)
		}
		if math.Abs(d12-d21) > 1e-6 {
			t.Fatalf("asymmetric: %f vs %f", d12, d21)
		}
		if d12 > math.Pi*earthRadiusMeters+1 {
			t.Fatalf("distance %f exceeds half circumference", d12)
		}
	})
}
