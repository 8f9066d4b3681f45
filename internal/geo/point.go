// Package geo provides geographic primitives: validated points, great-circle
// math toward the Kaaba, and IP-based location detection.
package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidCoordinates is returned for out-of-range or non-finite lat/lon.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInternal marks a computation that produced a non-finite result from
	// valid input. Callers never see the NaN itself.
	ErrInternal = errors.New("internal geometry error")
)

// GeoPoint is an immutable latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Kaaba is the fixed reference point for Qibla computations.
var Kaaba = GeoPoint{Latitude: 21.4225, Longitude: 39.8262}

// NewPoint builds a GeoPoint and validates it.
func NewPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{Latitude: lat, Longitude: lon}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate rejects non-finite values and coordinates outside
// [-90,90] x [-180,180]. Values are never clamped.
func (p GeoPoint) Validate() error {
	if !finite(p.Latitude) || !finite(p.Longitude) {
		return fmt.Errorf("%w: non-finite value (%v, %v)", ErrInvalidCoordinates, p.Latitude, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinates, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinates, p.Longitude)
	}
	return nil
}

// String formats the point as "lat, lon" with four decimals.
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Latitude, p.Longitude)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
