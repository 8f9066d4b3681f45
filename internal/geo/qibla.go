package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// BearingToMecca returns the initial great-circle bearing from `from` to the
// Kaaba in degrees, normalized to [0,360).
//
// Any device-frame correction is the caller's concern; this function stays
// comparable against published reference bearings.
func BearingToMecca(from GeoPoint) (float64, error) {
	return Bearing(from, Kaaba)
}

// DistanceToMecca returns the Haversine distance from `from` to the Kaaba in km.
func DistanceToMecca(from GeoPoint) (float64, error) {
	return Distance(from, Kaaba)
}

// Bearing computes the forward azimuth
//
//	θ = atan2(sin Δλ, cos φ1·tan φ2 − sin φ1·cos Δλ)
//
// from a to b.
func Bearing(a, b GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	phi1 := toRad(a.Latitude)
	phi2 := toRad(b.Latitude)
	dLambda := toRad(b.Longitude - a.Longitude)

	theta := math.Atan2(
		math.Sin(dLambda),
		math.Cos(phi1)*math.Tan(phi2)-math.Sin(phi1)*math.Cos(dLambda),
	)

	deg := NormalizeDegrees(toDeg(theta))
	if !finite(deg) {
		return 0, fmt.Errorf("%w: bearing from %s", ErrInternal, a)
	}
	return deg, nil
}

// Distance computes the Haversine great-circle distance in kilometers.
func Distance(a, b GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	d := EarthRadiusKm * c
	if !finite(d) {
		return 0, fmt.Errorf("%w: distance from %s", ErrInternal, a)
	}
	return d, nil
}

// NormalizeDegrees maps any finite angle into [0,360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// math.Mod(-1e-15, 360)+360 rounds to exactly 360.
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
