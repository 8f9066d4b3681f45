// Package hijri converts Gregorian dates to the tabular (civil) Islamic
// calendar.
//
// The civil calendar follows a fixed 30-year leap cycle and can differ from
// the observational calendar by a day or so. That is fine for display and
// reminders, not for religious rulings.
package hijri

import (
	"fmt"
	"time"
)

// islamicEpochOffset shifts a Julian Day Number onto the 30-year cycle
// arithmetic below (JDN 1948440 is 1 Muharram 1 AH, plus one cycle).
const islamicEpochOffset = 1948440 - 10632

// daysPerCycle is the length of one 30-year tabular cycle.
const daysPerCycle = 10631

// MonthNames lists the Hijri months, index 0 = Muharram.
var MonthNames = [12]string{
	"Muharram", "Safar", "Rabi al-Awwal", "Rabi al-Thani",
	"Jumada al-Awwal", "Jumada al-Thani", "Rajab", "Shaban",
	"Ramadan", "Shawwal", "Dhu al-Qadah", "Dhu al-Hijjah",
}

// Date is a Hijri calendar date.
type Date struct {
	Day       int    `json:"day"`
	Month     int    `json:"month"` // 1-12
	MonthName string `json:"month_name"`
	Year      int    `json:"year"`
}

// Format returns the date as "DD MonthName YYYY AH".
func (d Date) Format() string {
	return fmt.Sprintf("%d %s %d AH", d.Day, d.MonthName, d.Year)
}

// String implements fmt.Stringer.
func (d Date) String() string {
	return d.Format()
}

// JulianDay returns the Julian Day Number of the civil date of t,
// using the Fliegel–Van Flandern integer formula. Go's truncating
// division is what the formula expects.
func JulianDay(t time.Time) int {
	y, m, d := t.Date()
	month := int(m)

	a := (month - 14) / 12
	return (1461*(y+4800+a))/4 +
		(367*(month-2-12*a))/12 -
		(3*((y+4900+a)/100))/4 +
		d - 32075
}

// ToHijri converts the civil date of t (in t's own location) to the
// tabular Islamic calendar.
//
// Day and month are clamped to 1-30 and 1-12. The integer arithmetic can
// overshoot at a few cycle edges; clamping keeps the output well-formed but
// may be off by a day there. Treat it as an approximation.
func ToHijri(t time.Time) Date {
	l := JulianDay(t) - islamicEpochOffset
	n := (l - 1) / daysPerCycle
	l = l - daysPerCycle*n + 354

	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29

	month := (24 * l) / 709
	day := l - (709*month)/24
	year := 30*n + j - 30

	month = clamp(month, 1, 12)
	day = clamp(day, 1, 30)

	return Date{
		Day:       day,
		Month:     month,
		MonthName: MonthNames[month-1],
		Year:      year,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
