package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// Response represents the top-level Al Adhan API response.
type Response struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   Data   `json:"data"`
}

// Data holds the prayer timings and metadata.
type Data struct {
	Timings Timings `json:"timings"`
	Meta    Meta    `json:"meta"`
}

// Timings contains the prayer times we consume as HH:MM strings.
// The API may include a timezone suffix like " (BST)" which we strip during parsing.
type Timings struct {
	Fajr    string `json:"Fajr"`
	Sunrise string `json:"Sunrise"`
	Dhuhr   string `json:"Dhuhr"`
	Asr     string `json:"Asr"`
	Maghrib string `json:"Maghrib"`
	Isha    string `json:"Isha"`
}

// Meta contains request metadata returned by the API.
type Meta struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timezone  string     `json:"timezone"`
	Method    MethodInfo `json:"method"`
	School    string     `json:"school"`
}

// MethodInfo identifies the calculation method used.
type MethodInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Instants converts the wall-clock timings into UTC instants on the civil
// date of `date`, interpreting them in loc.
func (t Timings) Instants(date time.Time, loc *time.Location) (prayer.Times, error) {
	var out prayer.Times
	fields := []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{prayer.Fajr, t.Fajr, &out.Fajr},
		{prayer.Sunrise, t.Sunrise, &out.Sunrise},
		{prayer.Dhuhr, t.Dhuhr, &out.Dhuhr},
		{prayer.Asr, t.Asr, &out.Asr},
		{prayer.Maghrib, t.Maghrib, &out.Maghrib},
		{prayer.Isha, t.Isha, &out.Isha},
	}

	for _, f := range fields {
		v, err := parseTimeStr(f.raw, date, loc)
		if err != nil {
			return prayer.Times{}, fmt.Errorf("failed to parse time for %s (%q): %w", f.name, f.raw, err)
		}
		*f.dst = v.UTC()
	}

	// Isha can fall after local midnight at high latitudes.
	if out.Isha.Before(out.Maghrib) {
		out.Isha = out.Isha.Add(24 * time.Hour)
	}
	return out, nil
}

// parseTimeStr parses a time string like "15:02" or "15:02 (BST)" into a time.Time
// on the given date in the given location.
func parseTimeStr(raw string, date time.Time, loc *time.Location) (time.Time, error) {
	// Strip timezone suffix like " (BST)" that the API sometimes appends.
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, " "); idx != -1 {
		s = s[:idx]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %q", raw)
	}

	var hour, min int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return time.Time{}, fmt.Errorf("invalid hour in %q: %w", raw, err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &min); err != nil {
		return time.Time{}, fmt.Errorf("invalid minute in %q: %w", raw, err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, min, 0, 0, loc), nil
}
