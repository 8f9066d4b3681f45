package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxIterations caps every horizon walk.
const maxIterations = 3660

// HorizonScheduler expands a recurring reminder into one-shot instants
// strictly after from. Backends with native recurrence can satisfy the
// same contract directly.
type HorizonScheduler interface {
	Occurrences(from time.Time, horizon int) []time.Time
}

// DailyAt fires once a day at a wall-clock time. Its horizon counts
// calendar days starting with from's own day; instants already past are
// skipped, not replaced.
type DailyAt struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Occurrences implements HorizonScheduler.
func (d DailyAt) Occurrences(from time.Time, horizon int) []time.Time {
	loc := locationOr(d.Location, from)
	y, m, day := from.In(loc).Date()

	var out []time.Time
	for i := 0; i < horizon && i < maxIterations; i++ {
		t := time.Date(y, m, day+i, d.Hour, d.Minute, 0, 0, loc)
		if t.After(from) {
			out = append(out, t)
		}
	}
	return out
}

// WeeklyAt fires on one weekday at a wall-clock time. Its horizon counts
// occurrences.
type WeeklyAt struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// Occurrences implements HorizonScheduler.
func (w WeeklyAt) Occurrences(from time.Time, horizon int) []time.Time {
	loc := locationOr(w.Location, from)
	y, m, day := from.In(loc).Date()

	var out []time.Time
	for i := 0; len(out) < horizon && i < maxIterations; i++ {
		t := time.Date(y, m, day+i, w.Hour, w.Minute, 0, 0, loc)
		if t.Weekday() == w.Weekday && t.After(from) {
			out = append(out, t)
		}
	}
	return out
}

func locationOr(loc *time.Location, t time.Time) *time.Location {
	if loc != nil {
		return loc
	}
	return t.Location()
}

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
