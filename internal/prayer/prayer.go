// Package prayer derives daily prayer windows from an astronomical solver
// and answers "what is current / what is next" questions about them.
package prayer

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Prayer and reference instant names, in chronological order.
const (
	Fajr    = "Fajr"
	Sunrise = "Sunrise"
	Dhuhr   = "Dhuhr"
	Asr     = "Asr"
	Maghrib = "Maghrib"
	Isha    = "Isha"
)

// AllPrayerNames lists the six instants of a window, in chronological order.
var AllPrayerNames = []string{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// DefaultPrayerNames are the five prayers reminders are enabled for by default.
var DefaultPrayerNames = []string{Fajr, Dhuhr, Asr, Maghrib, Isha}

// ShortNames maps full prayer names to single-character abbreviations.
var ShortNames = map[string]string{
	Fajr:    "F",
	Sunrise: "S",
	Dhuhr:   "D",
	Asr:     "A",
	Maghrib: "M",
	Isha:    "I",
}

// Prayer is a named instant.
type Prayer struct {
	Name string
	Time time.Time
}

// CanonicalName matches name case-insensitively against the six instants.
func CanonicalName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, n := range AllPrayerNames {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// IsValidName reports whether name is exactly one of the six instants.
func IsValidName(name string) bool {
	n, ok := CanonicalName(name)
	return ok && n == name
}

// Filter keeps only the named prayers, preserving chronological order.
func Filter(prayers []Prayer, names []string) []Prayer {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Prayer
	for _, p := range prayers {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

// NextPrayer finds the first prayer strictly after now in a chronologically
// ordered slice. It returns nil when every prayer has passed; callers then
// need tomorrow's window rather than today's Fajr plus 24h.
func NextPrayer(prayers []Prayer, now time.Time) *Prayer {
	i := sort.Search(len(prayers), func(i int) bool {
		return prayers[i].Time.After(now)
	})
	if i == len(prayers) {
		return nil
	}
	return &prayers[i]
}

// TimeRemaining returns the duration from now until p.
func TimeRemaining(p Prayer, now time.Time) time.Duration {
	return p.Time.Sub(now)
}

// FormatRemaining renders d as "Xh Ym", or "Ym" under an hour. Negative
// durations render as "0m".
func FormatRemaining(d time.Duration) string {
	d = max(d, 0).Truncate(time.Minute)
	h, m := int(d/time.Hour), int(d%time.Hour/time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
