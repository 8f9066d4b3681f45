package geo

import (
	"errors"
	"math"
	"testing"
)

func TestBearingToMecca_KnownCities(t *testing.T) {
	tests := []struct {
		name   string
		point  GeoPoint
		minDeg float64
		maxDeg float64
		minKm  float64
		maxKm  float64
	}{
		{"New York", GeoPoint{40.7128, -74.0060}, 58, 59, 10000, 10500},
		{"Lagos", GeoPoint{6.5244, 3.3792}, 60, 70, 4000, 4500},
		{"London", GeoPoint{51.5074, -0.1278}, 118, 120, 4700, 4900},
		{"Sydney", GeoPoint{-33.8688, 151.2093}, 277, 278, 13000, 13500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := BearingToMecca(tt.point)
			if err != nil {
				t.Fatalf("BearingToMecca error: %v", err)
			}
			if b < tt.minDeg || b > tt.maxDeg {
				t.Errorf("bearing = %.3f, want in [%v, %v]", b, tt.minDeg, tt.maxDeg)
			}

			d, err := DistanceToMecca(tt.point)
			if err != nil {
				t.Fatalf("DistanceToMecca error: %v", err)
			}
			if d < tt.minKm || d > tt.maxKm {
				t.Errorf("distance = %.1f km, want in [%v, %v]", d, tt.minKm, tt.maxKm)
			}
		})
	}
}

func TestDistanceToMecca_FromMecca(t *testing.T) {
	d, err := DistanceToMecca(GeoPoint{21.3891, 39.8579})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fixture sits a few km from the Kaaba itself.
	if d > 10 {
		t.Errorf("distance = %.3f km, want < 10", d)
	}

	d, err = DistanceToMecca(Kaaba)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d > 1e-9 {
		t.Errorf("distance from Kaaba = %v, want ~0", d)
	}
}

func TestBearingAndDistance_RangeProperty(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lon := -180.0; lon <= 180; lon += 11.25 {
			p := GeoPoint{lat, lon}
			b, err := BearingToMecca(p)
			if err != nil {
				t.Fatalf("BearingToMecca(%v) error: %v", p, err)
			}
			if b < 0 || b >= 360 {
				t.Fatalf("BearingToMecca(%v) = %v, out of [0,360)", p, b)
			}
			d, err := DistanceToMecca(p)
			if err != nil {
				t.Fatalf("DistanceToMecca(%v) error: %v", p, err)
			}
			if d < 0 || math.IsNaN(d) {
				t.Fatalf("DistanceToMecca(%v) = %v", p, d)
			}
		}
	}
}

func TestInvalidCoordinates(t *testing.T) {
	tests := []struct {
		name  string
		point GeoPoint
	}{
		{"lat too high", GeoPoint{90.1, 0}},
		{"lat too low", GeoPoint{-91, 0}},
		{"lon too high", GeoPoint{0, 180.5}},
		{"lon too low", GeoPoint{0, -181}},
		{"NaN lat", GeoPoint{math.NaN(), 0}},
		{"Inf lon", GeoPoint{0, math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BearingToMecca(tt.point); !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("BearingToMecca error = %v, want ErrInvalidCoordinates", err)
			}
			if _, err := DistanceToMecca(tt.point); !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("DistanceToMecca error = %v, want ErrInvalidCoordinates", err)
			}
			if _, err := NewPoint(tt.point.Latitude, tt.point.Longitude); !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("NewPoint error = %v, want ErrInvalidCoordinates", err)
			}
		})
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{725, 5},
		{-1e-15, 0},
	}
	for _, tt := range tests {
		if got := NormalizeDegrees(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
