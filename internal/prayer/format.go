package prayer

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Named display modes for status-line output.
const (
	FormatTimeRemaining      = "time-remaining"
	FormatNextPrayerTime     = "next-prayer-time"
	FormatNameAndTime        = "name-and-time"
	FormatNameAndRemaining   = "name-and-remaining"
	FormatShortNameAndTime   = "short-name-and-time"
	FormatShortNameAndRemain = "short-name-and-remaining"
	FormatFull               = "full"
)

// FormatData is the data passed to custom Go templates.
type FormatData struct {
	Name      string // Full prayer name, e.g. "Asr"
	ShortName string // Abbreviated name, e.g. "A"
	Time      string // Formatted prayer time, e.g. "15:02" or "3:02 PM"
	Remaining string // Time remaining, e.g. "2h 15m"
	Hours     int    // Whole hours remaining
	Minutes   int    // Remaining minutes after hours
	Forbidden bool   // now falls inside a forbidden window
}

var modes = map[string]func(FormatData) string{
	FormatTimeRemaining:      func(d FormatData) string { return d.Remaining },
	FormatNextPrayerTime:     func(d FormatData) string { return d.Time },
	FormatNameAndTime:        func(d FormatData) string { return d.Name + " " + d.Time },
	FormatNameAndRemaining:   func(d FormatData) string { return d.Name + " " + d.Remaining },
	FormatShortNameAndTime:   func(d FormatData) string { return d.ShortName + " " + d.Time },
	FormatShortNameAndRemain: func(d FormatData) string { return d.ShortName + " " + d.Remaining },
	FormatFull: func(d FormatData) string {
		s := fmt.Sprintf("%s %s (%s)", d.Name, d.Time, d.Remaining)
		if d.Forbidden {
			s += " !"
		}
		return s
	},
}

// FormatOutput formats a prayer for display according to the chosen format mode.
// timeFormat should be "15:04" for 24h or "3:04 PM" for 12h.
//
// A mode containing "{{" is executed as a Go template over FormatData,
// e.g. "{{.Name}} in {{.Remaining}}" -> "Asr in 2h 15m". Unknown modes
// fall back to name-and-time.
func FormatOutput(p Prayer, now time.Time, mode string, timeFormat string) string {
	return FormatOutputIn(p, nil, now, mode, timeFormat)
}

// FormatOutputIn is FormatOutput with the day's window available, so the
// forbidden marker can be rendered. w may be nil.
func FormatOutputIn(p Prayer, w *Window, now time.Time, mode string, timeFormat string) string {
	data := newFormatData(p, w, now, timeFormat)
	if strings.Contains(mode, "{{") {
		return formatCustom(mode, data)
	}
	if f, ok := modes[mode]; ok {
		return f(data)
	}
	return modes[FormatNameAndTime](data)
}

func newFormatData(p Prayer, w *Window, now time.Time, timeFormat string) FormatData {
	d := TimeRemaining(p, now)
	return FormatData{
		Name:      p.Name,
		ShortName: ShortNames[p.Name],
		Time:      p.Time.Format(timeFormat),
		Remaining: FormatRemaining(d),
		Hours:     int(d.Hours()),
		Minutes:   int(d.Minutes()) % 60,
		Forbidden: w != nil && InForbiddenWindow(*w, now),
	}
}

// formatCustom executes a user template. Errors are rendered inline so a
// status bar shows what went wrong.
func formatCustom(tmpl string, data FormatData) string {
	t, err := template.New("custom").Parse(tmpl)
	if err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}
	return sb.String()
}

// InForbiddenWindow reports whether now falls in any forbidden window of w.
func InForbiddenWindow(w Window, now time.Time) bool {
	for _, f := range ForbiddenWindows(w) {
		if f.Contains(now) {
			return true
		}
	}
	return false
}
