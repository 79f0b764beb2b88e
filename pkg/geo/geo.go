package geo

import "math"

// EarthRadiusKm is the mean earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DistanceKm returns the great-circle distance between a and b in kilometers
func DistanceKm(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// DistanceMeters is DistanceKm scaled to meters
func DistanceMeters(a, b Point) float64 {
	return DistanceKm(a, b) * 1000
}

// BearingDegrees returns the initial forward azimuth from a to b in [0, 360)
func BearingDegrees(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	return NormalizeDegrees(toDegrees(math.Atan2(y, x)))
}

// NormalizeDegrees maps any angle onto [0, 360)
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// math.Mod(-1e-15, 360) + 360 rounds to exactly 360
	if d >= 360 {
		d = 0
	}
	return d
}

func clampUnit(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Lerp interpolates linearly between start and end, t is clamped to [0, 1]
func Lerp(start, end, t float64) float64 {
	t = clampUnit(t)
	return start + (end-start)*t
}

// ShortestAngleDelta returns the signed difference end-start along the
// shorter arc, in (-180, 180]
func ShortestAngleDelta(start, end float64) float64 {
	diff := math.Mod(end-start, 360)
	if diff <= -180 {
		diff += 360
	} else if diff > 180 {
		diff -= 360
	}
	return diff
}

// LerpAngle interpolates headings along the shorter arc so that 350 -> 10
// passes through 0 instead of 180. The result is normalized to [0, 360).
func LerpAngle(start, end, t float64) float64 {
	t = clampUnit(t)
	return NormalizeDegrees(start + ShortestAngleDelta(start, end)*t)
}
