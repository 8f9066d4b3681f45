package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DetectTimeout bounds IP geolocation so callers can fall back quickly.
const DetectTimeout = 3 * time.Second

// Location holds geographic coordinates plus display metadata.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Timezone  string  `json:"timezone"`
}

// Point returns the location's coordinates as a validated GeoPoint.
func (l Location) Point() (GeoPoint, error) {
	return NewPoint(l.Latitude, l.Longitude)
}

// ipAPIResponse maps the response from ip-api.com.
type ipAPIResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Timezone string  `json:"timezone"`
}

// geoAPIURL is the geolocation API endpoint. It is a variable (not a constant)
// so that tests can override it with an httptest server URL.
var geoAPIURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city,country,timezone"

// DetectLocation uses ip-api.com to determine the user's location from their
// public IP address. The lookup never takes longer than DetectTimeout.
func DetectLocation(ctx context.Context) (*Location, error) {
	ctx, cancel := context.WithTimeout(ctx, DetectTimeout)
	defer cancel()

	resp, err := resty.New().
		SetTimeout(DetectTimeout).
		R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(geoAPIURL)
	if err != nil {
		return nil, fmt.Errorf("geolocation request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("geolocation API returned status %d", resp.StatusCode())
	}

	var result ipAPIResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("geolocation failed: %s", result.Message)
	}

	loc := &Location{
		Latitude:  result.Lat,
		Longitude: result.Lon,
		City:      result.City,
		Country:   result.Country,
		Timezone:  result.Timezone,
	}
	if _, err := loc.Point(); err != nil {
		return nil, fmt.Errorf("geolocation returned unusable coordinates: %w", err)
	}
	return loc, nil
}
