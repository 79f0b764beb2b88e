package geo_test

import (
	"math"
	"testing"

	"grocery-backend/pkg/geo"

	"github.com/stretchr/testify/assert"
)

var (
	hanoi  = geo.Point{Lat: 21.0285, Lng: 105.8542}
	saigon = geo.Point{Lat: 10.8231, Lng: 106.6297}
)

func TestDistanceKm(t *testing.T) {
	t.Run("identical points are zero", func(t *testing.T) {
		assert.Equal(t, 0.0, geo.DistanceKm(hanoi, hanoi))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, geo.DistanceKm(hanoi, saigon), geo.DistanceKm(saigon, hanoi))
	})

	t.Run("known city pair", func(t *testing.T) {
		// Hanoi to Ho Chi Minh City is roughly 1,137 km great-circle
		assert.InDelta(t, 1137, geo.DistanceKm(hanoi, saigon), 5)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		a := geo.Point{Lat: 0, Lng: 0}
		b := geo.Point{Lat: 1, Lng: 0}
		assert.InDelta(t, 111.19, geo.DistanceKm(a, b), 0.01)
	})

	t.Run("antipodal points stay finite", func(t *testing.T) {
		a := geo.Point{Lat: 0, Lng: 0}
		b := geo.Point{Lat: 0, Lng: 180}
		d := geo.DistanceKm(a, b)
		assert.False(t, math.IsNaN(d))
		assert.InDelta(t, math.Pi*geo.EarthRadiusKm, d, 0.001)
	})

	t.Run("meters helper", func(t *testing.T) {
		assert.InDelta(t, geo.DistanceKm(hanoi, saigon)*1000, geo.DistanceMeters(hanoi, saigon), 1e-6)
	})
}

func TestBearingDegrees(t *testing.T) {
	origin := geo.Point{Lat: 0, Lng: 0}

	tests := []struct {
		name string
		to   geo.Point
		want float64
	}{
		{"north", geo.Point{Lat: 1, Lng: 0}, 0},
		{"east", geo.Point{Lat: 0, Lng: 1}, 90},
		{"south", geo.Point{Lat: -1, Lng: 0}, 180},
		{"west", geo.Point{Lat: 0, Lng: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.BearingDegrees(origin, tt.to)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestLerp(t *testing.T) {
	assert.Equal(t, 10.0, geo.Lerp(10, 20, 0))
	assert.Equal(t, 15.0, geo.Lerp(10, 20, 0.5))
	assert.Equal(t, 20.0, geo.Lerp(10, 20, 1))
	assert.Equal(t, 20.0, geo.Lerp(10, 20, 3), "t is clamped")
	assert.Equal(t, 10.0, geo.Lerp(10, 20, -1), "t is clamped")
}

func TestLerpAngle(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		t          float64
		want       float64
	}{
		{"wraps forward through zero", 350, 10, 0.5, 0},
		{"wraps backward through zero", 10, 350, 0.5, 0},
		{"quarter of wrap", 350, 10, 0.25, 355},
		{"plain interpolation", 90, 180, 0.5, 135},
		{"end of wrap", 350, 10, 1, 10},
		{"start", 350, 10, 0, 350},
		{"opposite headings take the positive half turn", 0, 180, 0.5, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.LerpAngle(tt.start, tt.end, tt.t)
			// 359.999... and 0 are the same heading
			diff := math.Abs(geo.ShortestAngleDelta(tt.want, got))
			assert.Less(t, diff, 1e-9, "got %v want %v", got, tt.want)
		})
	}
}

func TestLerpAngleNeverTakesTheLongWay(t *testing.T) {
	for start := 0.0; start < 360; start += 15 {
		for end := 0.0; end < 360; end += 15 {
			prev := start
			for i := 1; i <= 10; i++ {
				cur := geo.LerpAngle(start, end, float64(i)/10)
				step := math.Abs(geo.ShortestAngleDelta(prev, cur))
				assert.LessOrEqual(t, step, 18.0+1e-9, "start=%v end=%v step=%d", start, end, i)
				prev = cur
			}
		}
	}
}

func TestNormalizeDegrees(t *testing.T) {
	assert.Equal(t, 0.0, geo.NormalizeDegrees(360))
	assert.Equal(t, 350.0, geo.NormalizeDegrees(-10))
	assert.Equal(t, 10.0, geo.NormalizeDegrees(730))
}
