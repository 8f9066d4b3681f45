// Package solar is a local astronomical solver for prayer times.
//
// It follows the widely published PrayTimes approach: approximate solar
// declination and equation of time per Julian date, then solve the hour
// angle at which the sun reaches each method's depression angle. Accuracy is
// around a minute, which is what reminder scheduling needs.
package solar

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// riseSetAngle accounts for refraction and the solar disc radius.
const riseSetAngle = 0.833

// Solver computes prayer times locally. The zero value is ready to use.
type Solver struct{}

// New returns a local solver.
func New() *Solver {
	return &Solver{}
}

var _ prayer.Solver = (*Solver)(nil)

// Solve returns the six instants for the civil date of `date` at point.
func (s *Solver) Solve(ctx context.Context, point geo.GeoPoint, date time.Time, settings prayer.Settings) (prayer.Times, error) {
	if err := ctx.Err(); err != nil {
		return prayer.Times{}, err
	}
	if err := point.Validate(); err != nil {
		return prayer.Times{}, err
	}

	y, m, d := date.Date()
	day := dayCalc{
		lat: point.Latitude,
		lng: point.Longitude,
		jd:  julianDate(y, int(m), d) - point.Longitude/(15*24),
	}
	params := ParamsFor(settings.Method)

	// Solar hours before the zone shift.
	fajr := day.sunAngleTime(params.FajrAngle, 5.0/24, true)
	sunrise := day.sunAngleTime(riseSetAngle, 6.0/24, true)
	dhuhr := day.midDay(12.0 / 24)
	asr := day.asrTime(settings.Madhab.ShadowFactor(), 13.0/24)
	sunset := day.sunAngleTime(riseSetAngle, 18.0/24, false)
	isha := day.sunAngleTime(params.IshaAngle, 18.0/24, false)

	maghrib := sunset + params.MaghribMinutes/60
	if params.MaghribAngle > 0 {
		maghrib = day.sunAngleTime(params.MaghribAngle, 18.0/24, false)
	}

	if anyNaN(sunrise, sunset, dhuhr, asr, maghrib) {
		return prayer.Times{}, fmt.Errorf("%w: the sun does not rise or set at %s on %s",
			prayer.ErrSolverFailure, point, date.Format("2006-01-02"))
	}

	if params.IshaMinutes > 0 {
		isha = maghrib + params.IshaMinutes/60
	}

	// Shift to local clock hours in the zone of date, then move the whole
	// day so Dhuhr lands on the requested civil date.
	tz := zoneHours(y, m, d, date.Location())
	shift := tz - point.Longitude/15
	shift -= 24 * math.Floor((dhuhr+shift)/24)
	fajr += shift
	sunrise += shift
	dhuhr += shift
	asr += shift
	sunset += shift
	maghrib += shift
	isha += shift

	night := fixHour(sunrise - sunset)
	fajr = adjustHighLat(fajr, sunrise, params.FajrAngle, night, settings.HighLatitudeRule, true)
	if params.IshaMinutes == 0 {
		isha = adjustHighLat(isha, sunset, params.IshaAngle, night, settings.HighLatitudeRule, false)
	}

	if anyNaN(fajr, isha) {
		return prayer.Times{}, fmt.Errorf("%w: no twilight fallback for %s at %s",
			prayer.ErrSolverFailure, settings.HighLatitudeRule, point)
	}

	base := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	at := func(hours float64) time.Time {
		return base.Add(time.Duration(math.Round((hours-tz)*3600)) * time.Second)
	}

	return prayer.Times{
		Fajr:    at(fajr),
		Sunrise: at(sunrise),
		Dhuhr:   at(dhuhr),
		Asr:     at(asr),
		Maghrib: at(maghrib),
		Isha:    at(isha),
	}, nil
}

// zoneHours is loc's UTC offset at local noon of the civil date.
func zoneHours(y int, m time.Month, d int, loc *time.Location) float64 {
	_, offset := time.Date(y, m, d, 12, 0, 0, 0, loc).Zone()
	return float64(offset) / 3600
}

type dayCalc struct {
	lat, lng float64
	jd       float64
}

// midDay returns solar noon in local solar hours.
func (c dayCalc) midDay(t float64) float64 {
	_, eqt := sunPosition(c.jd + t)
	return fixHour(12 - eqt)
}

// sunAngleTime returns the time at which the sun is `angle` degrees below
// the horizon, before noon when ccw is true. NaN if never reached.
func (c dayCalc) sunAngleTime(angle, t float64, ccw bool) float64 {
	decl, _ := sunPosition(c.jd + t)
	noon := c.midDay(t)
	x := (-dsin(angle) - dsin(decl)*dsin(c.lat)) / (dcos(decl) * dcos(c.lat))
	if x < -1 || x > 1 {
		return math.NaN()
	}
	h := darccos(x) / 15
	if ccw {
		return noon - h
	}
	return noon + h
}

// asrTime solves the shadow-length condition for the given factor.
func (c dayCalc) asrTime(factor, t float64) float64 {
	decl, _ := sunPosition(c.jd + t)
	angle := -darccot(factor + dtan(math.Abs(c.lat-decl)))
	return c.sunAngleTime(angle, t, false)
}

// adjustHighLat caps the distance between a twilight time and its base
// (sunrise for Fajr, sunset for Isha) to the rule's portion of the night.
func adjustHighLat(t, base, angle, night float64, rule prayer.HighLatitudeRule, ccw bool) float64 {
	if math.IsNaN(night) {
		return t
	}
	portion := nightPortion(rule, angle) * night

	var diff float64
	if ccw {
		diff = fixHour(base - t)
	} else {
		diff = fixHour(t - base)
	}
	if math.IsNaN(t) || diff > portion {
		if ccw {
			return base - portion
		}
		return base + portion
	}
	return t
}

func nightPortion(rule prayer.HighLatitudeRule, angle float64) float64 {
	switch rule {
	case prayer.SeventhOfTheNight:
		return 1.0 / 7
	case prayer.TwilightAngle:
		return angle / 60
	default:
		return 1.0 / 2
	}
}

// sunPosition returns declination (degrees) and equation of time (hours).
func sunPosition(jd float64) (decl, eqt float64) {
	d := jd - 2451545.0
	g := fixAngle(357.529 + 0.98560028*d)
	q := fixAngle(280.459 + 0.98564736*d)
	l := fixAngle(q + 1.915*dsin(g) + 0.020*dsin(2*g))
	e := 23.439 - 0.00000036*d

	ra := darctan2(dcos(e)*dsin(l), dcos(l)) / 15
	eqt = q/15 - fixHour(ra)
	decl = darcsin(dsin(e) * dsin(l))
	return decl, eqt
}

// julianDate is the astronomical Julian date at 00:00 UTC.
func julianDate(year, month, day int) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := math.Floor(float64(year) / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*float64(year+4716)) + math.Floor(30.6001*float64(month+1)) + float64(day) + b - 1524.5
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func dsin(d float64) float64 {
	return math.Sin(d * math.Pi / 180)
}

func dcos(d float64) float64 {
	return math.Cos(d * math.Pi / 180)
}

func dtan(d float64) float64 {
	return math.Tan(d * math.Pi / 180)
}

func darcsin(x float64) float64 {
	return math.Asin(x) * 180 / math.Pi
}

func darccos(x float64) float64 {
	return math.Acos(x) * 180 / math.Pi
}

func darctan2(y, x float64) float64 {
	return math.Atan2(y, x) * 180 / math.Pi
}

func darccot(x float64) float64 {
	return math.Atan(1/x) * 180 / math.Pi
}

func fixAngle(a float64) float64 {
	return fix(a, 360)
}

func fixHour(h float64) float64 {
	return fix(h, 24)
}

func fix(a, b float64) float64 {
	a = a - b*math.Floor(a/b)
	if a < 0 {
		a += b
	}
	return a
}
