package prayer

import (
	"time"
)

// Times are the six instants returned by a solver, all in UTC.
type Times struct {
	Fajr    time.Time `json:"fajr"`
	Sunrise time.Time `json:"sunrise"`
	Dhuhr   time.Time `json:"dhuhr"`
	Asr     time.Time `json:"asr"`
	Maghrib time.Time `json:"maghrib"`
	Isha    time.Time `json:"isha"`
}

// Window is one day's prayer instants for a location and settings.
// Date is local midnight of the civil day the window belongs to.
type Window struct {
	Date time.Time `json:"date"`
	Times
	QiblaBearing float64 `json:"qibla_bearing"`
}

// Prayers returns the window's six instants in chronological order.
func (w Window) Prayers() []Prayer {
	return []Prayer{
		{Fajr, w.Fajr},
		{Sunrise, w.Sunrise},
		{Dhuhr, w.Dhuhr},
		{Asr, w.Asr},
		{Maghrib, w.Maghrib},
		{Isha, w.Isha},
	}
}

// Time returns the instant for a prayer name.
func (w Window) Time(name string) (time.Time, bool) {
	for _, p := range w.Prayers() {
		if p.Name == name {
			return p.Time, true
		}
	}
	return time.Time{}, false
}

// In returns a copy of the window with every instant converted to loc.
func (w Window) In(loc *time.Location) Window {
	out := w
	out.Fajr = w.Fajr.In(loc)
	out.Sunrise = w.Sunrise.In(loc)
	out.Dhuhr = w.Dhuhr.In(loc)
	out.Asr = w.Asr.In(loc)
	out.Maghrib = w.Maghrib.In(loc)
	out.Isha = w.Isha.In(loc)
	return out
}

// ForbiddenWindow is an interval in which voluntary prayer is discouraged.
type ForbiddenWindow struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls in [Start, End).
func (f ForbiddenWindow) Contains(t time.Time) bool {
	return !t.Before(f.Start) && t.Before(f.End)
}

const (
	afterSunriseSpan = 15 * time.Minute
	zenithHalfSpan   = 8 * time.Minute
	beforeSunsetSpan = 15 * time.Minute
)

// ForbiddenWindows derives the three discouraged intervals of a window.
// They are recomputed on every call and never stored.
func ForbiddenWindows(w Window) [3]ForbiddenWindow {
	return [3]ForbiddenWindow{
		{Label: "After sunrise", Start: w.Sunrise, End: w.Sunrise.Add(afterSunriseSpan)},
		{Label: "Solar noon", Start: w.Dhuhr.Add(-zenithHalfSpan), End: w.Dhuhr.Add(zenithHalfSpan)},
		{Label: "Before sunset", Start: w.Maghrib.Add(-beforeSunsetSpan), End: w.Maghrib},
	}
}
