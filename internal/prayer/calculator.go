package prayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
)

// ErrSolverFailure means the astronomical solver could not resolve the
// requested day, e.g. a polar latitude with no usable twilight fallback.
var ErrSolverFailure = errors.New("unable to calculate prayer times here")

// Solver maps {point, civil date, settings} to six UTC instants.
type Solver interface {
	Solve(ctx context.Context, point geo.GeoPoint, date time.Time, settings Settings) (Times, error)
}

// SolverFunc adapts a plain function to the Solver interface.
type SolverFunc func(ctx context.Context, point geo.GeoPoint, date time.Time, settings Settings) (Times, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, point geo.GeoPoint, date time.Time, settings Settings) (Times, error) {
	return f(ctx, point, date, settings)
}

// Calculator turns solver output into Windows and answers current/next
// prayer questions. Compute is safe for concurrent use.
type Calculator struct {
	solver Solver

	mu    sync.RWMutex
	cache map[string]Window
	group singleflight.Group
}

// NewCalculator wraps a solver.
func NewCalculator(solver Solver) *Calculator {
	return &Calculator{
		solver: solver,
		cache:  make(map[string]Window),
	}
}

// CacheKey identifies a window: ISO date with the zone offset, coordinates
// and settings.
func CacheKey(point geo.GeoPoint, date time.Time, settings Settings) string {
	return fmt.Sprintf("%s|%.6f|%.6f|%s", date.Format("2006-01-02Z07:00"), point.Latitude, point.Longitude, settings)
}

// Compute returns the window for the civil date of `date` (in date's own
// location) at point. Results are cached per CacheKey.
func (c *Calculator) Compute(ctx context.Context, point geo.GeoPoint, date time.Time, settings Settings) (Window, error) {
	if err := point.Validate(); err != nil {
		return Window{}, err
	}

	day := civilDay(date)
	key := CacheKey(point, day, settings)

	c.mu.RLock()
	w, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return w, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.compute(ctx, point, day, settings)
	})
	if err != nil {
		return Window{}, err
	}
	w = v.(Window)

	c.mu.Lock()
	c.cache[key] = w
	c.mu.Unlock()

	return w, nil
}

func (c *Calculator) compute(ctx context.Context, point geo.GeoPoint, day time.Time, settings Settings) (Window, error) {
	times, err := c.solver.Solve(ctx, point, day, settings)
	if err != nil {
		if errors.Is(err, ErrSolverFailure) {
			return Window{}, err
		}
		return Window{}, fmt.Errorf("%w: %v", ErrSolverFailure, err)
	}
	if err := checkOrder(times); err != nil {
		return Window{}, err
	}

	bearing, err := geo.BearingToMecca(point)
	if err != nil {
		return Window{}, err
	}

	log.Debug().
		Str("date", day.Format("2006-01-02")).
		Str("point", point.String()).
		Str("settings", settings.String()).
		Msg("[prayer] computed window")

	return Window{
		Date: day,
		Times: Times{
			Fajr:    times.Fajr.UTC(),
			Sunrise: times.Sunrise.UTC(),
			Dhuhr:   times.Dhuhr.UTC(),
			Asr:     times.Asr.UTC(),
			Maghrib: times.Maghrib.UTC(),
			Isha:    times.Isha.UTC(),
		},
		QiblaBearing: bearing,
	}, nil
}

// Range computes `days` consecutive windows starting at from, in parallel.
func (c *Calculator) Range(ctx context.Context, point geo.GeoPoint, from time.Time, days int, settings Settings) ([]Window, error) {
	if days < 1 {
		return nil, fmt.Errorf("invalid number of days: %d", days)
	}

	start := civilDay(from)
	out := make([]Window, days)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := 0; i < days; i++ {
		g.Go(func() error {
			w, err := c.Compute(gctx, point, start.AddDate(0, 0, i), settings)
			if err != nil {
				return err
			}
			out[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentPrayer returns the latest instant at or before now. Before Fajr
// the previous night's Isha is still current.
func CurrentPrayer(w Window, now time.Time) string {
	prayers := w.Prayers()
	for i := len(prayers) - 1; i >= 0; i-- {
		if !prayers[i].Time.After(now) {
			return prayers[i].Name
		}
	}
	return Isha
}

// Next is the result of NextPrayer.
type Next struct {
	Prayer
	// Window is the window Prayer belongs to; it is tomorrow's once
	// today's Isha has passed.
	Window   Window
	Tomorrow bool
}

// NextPrayer returns the first instant strictly after now. Once today's
// instants are exhausted it computes tomorrow's window and returns its
// Fajr; it never extrapolates from today's times.
func (c *Calculator) NextPrayer(ctx context.Context, w Window, point geo.GeoPoint, settings Settings, now time.Time) (Next, error) {
	if p := NextPrayer(w.Prayers(), now); p != nil {
		return Next{Prayer: *p, Window: w}, nil
	}

	tomorrow, err := c.Compute(ctx, point, w.Date.AddDate(0, 0, 1), settings)
	if err != nil {
		return Next{}, fmt.Errorf("failed to compute tomorrow's times: %w", err)
	}
	return Next{
		Prayer:   Prayer{Name: Fajr, Time: tomorrow.Fajr},
		Window:   tomorrow,
		Tomorrow: true,
	}, nil
}

// Invalidate drops every cached window.
func (c *Calculator) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]Window)
	c.mu.Unlock()
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func checkOrder(t Times) error {
	seq := []time.Time{t.Fajr, t.Sunrise, t.Dhuhr, t.Asr, t.Maghrib, t.Isha}
	for i := 1; i < len(seq); i++ {
		if !seq[i].After(seq[i-1]) {
			return fmt.Errorf("%w: %s is not after %s", ErrSolverFailure, AllPrayerNames[i], AllPrayerNames[i-1])
		}
	}
	return nil
}
