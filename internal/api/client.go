package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

const defaultBaseURL = "https://api.aladhan.com/v1"

// DefaultTimeout bounds a single API round trip.
const DefaultTimeout = 10 * time.Second

// methodIDs maps calculation methods to Al Adhan method identifiers.
var methodIDs = map[prayer.Method]int{
	prayer.Karachi:               1,
	prayer.ISNA:                  2,
	prayer.MuslimWorldLeague:     3,
	prayer.UmmAlQura:             4,
	prayer.Egyptian:              5,
	prayer.Tehran:                7,
	prayer.Kuwait:                9,
	prayer.Qatar:                 10,
	prayer.Singapore:             11,
	prayer.Turkey:                13,
	prayer.MoonsightingCommittee: 15,
	prayer.Dubai:                 16,
}

// latitudeAdjustment maps high-latitude rules to Al Adhan's latitudeAdjustmentMethod.
var latitudeAdjustment = map[prayer.HighLatitudeRule]int{
	prayer.MiddleOfTheNight:  1,
	prayer.SeventhOfTheNight: 2,
	prayer.TwilightAngle:     3,
}

// Client communicates with the Al Adhan prayer times API.
type Client struct {
	http *resty.Client
	// BaseURL is the API base URL. Defaults to the Al Adhan API.
	// Exported for testing with httptest.
	BaseURL string
}

// NewClient creates a new API client with sensible defaults.
func NewClient() *Client {
	return &Client{
		http:    resty.New().SetTimeout(DefaultTimeout),
		BaseURL: defaultBaseURL,
	}
}

// Query is the set of optional parameters sent with a timings request.
// Negative values leave the parameter unset so the API applies its default.
type Query struct {
	Method    int
	School    int
	LatAdjust int
}

// QueryFor builds the request parameters that correspond to settings.
func QueryFor(s prayer.Settings) Query {
	q := Query{Method: -1, School: int(s.Madhab), LatAdjust: -1}
	if id, ok := methodIDs[s.Method]; ok {
		q.Method = id
	}
	if adj, ok := latitudeAdjustment[s.HighLatitudeRule]; ok {
		q.LatAdjust = adj
	}
	return q
}

func (q Query) params() map[string]string {
	p := map[string]string{}
	if q.Method >= 0 {
		p["method"] = strconv.Itoa(q.Method)
	}
	if q.School >= 0 {
		p["school"] = strconv.Itoa(q.School)
	}
	if q.LatAdjust >= 0 {
		p["latitudeAdjustmentMethod"] = strconv.Itoa(q.LatAdjust)
	}
	return p
}

// FetchByCoordinates fetches prayer times for the given date and coordinates.
func (c *Client) FetchByCoordinates(ctx context.Context, date time.Time, lat, lon float64, q Query) (*Response, error) {
	endpoint := fmt.Sprintf("%s/timings/%s", c.BaseURL, date.Format("02-01-2006"))

	params := q.params()
	params["latitude"] = fmt.Sprintf("%f", lat)
	params["longitude"] = fmt.Sprintf("%f", lon)

	return c.doRequest(ctx, endpoint, params)
}

// FetchByCity fetches prayer times for the given date, city, and country.
// The response metadata carries the city's coordinates and timezone.
func (c *Client) FetchByCity(ctx context.Context, date time.Time, city, country string, q Query) (*Response, error) {
	endpoint := fmt.Sprintf("%s/timingsByCity/%s", c.BaseURL, date.Format("02-01-2006"))

	params := q.params()
	params["city"] = city
	params["country"] = country

	return c.doRequest(ctx, endpoint, params)
}

// Geocode resolves a city to coordinates and a timezone using the
// metadata of today's timings request.
func (c *Client) Geocode(ctx context.Context, city, country string) (*geo.Location, error) {
	resp, err := c.FetchByCity(ctx, time.Now(), city, country, Query{Method: -1, School: -1, LatAdjust: -1})
	if err != nil {
		return nil, err
	}
	m := resp.Data.Meta
	return &geo.Location{
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		City:      city,
		Country:   country,
		Timezone:  m.Timezone,
	}, nil
}

// Solve implements prayer.Solver against the remote API.
func (c *Client) Solve(ctx context.Context, point geo.GeoPoint, date time.Time, settings prayer.Settings) (prayer.Times, error) {
	resp, err := c.FetchByCoordinates(ctx, date, point.Latitude, point.Longitude, QueryFor(settings))
	if err != nil {
		return prayer.Times{}, err
	}

	loc := time.UTC
	if tz := resp.Data.Meta.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return prayer.Times{}, fmt.Errorf("API returned unknown timezone %q: %w", tz, err)
		}
		loc = l
	}
	return resp.Data.Timings.Instants(date, loc)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	log.Debug().Str("endpoint", endpoint).Msg("[api] request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var apiResp Response
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}

	if apiResp.Code != 200 {
		return nil, fmt.Errorf("API error: code=%d status=%s", apiResp.Code, apiResp.Status)
	}

	return &apiResp, nil
}
