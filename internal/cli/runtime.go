package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/api"
	"github.com/smokyabdulrahman/prayer-companion/internal/config"
	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/logging"
	"github.com/smokyabdulrahman/prayer-companion/internal/metrics"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
	"github.com/smokyabdulrahman/prayer-companion/internal/solar"
	"github.com/smokyabdulrahman/prayer-companion/internal/store"
)

// runtime is everything a command needs, built from the effective config.
type runtime struct {
	cfg      *config.Config
	settings prayer.Settings
	state    *store.State
	calc     *prayer.Calculator
	resolver *location.Resolver
	metrics  *metrics.Metrics
	closers  []func() error
}

func setupLogging(cmd *cobra.Command) error {
	level := ""
	if loadedConfig != nil {
		level = loadedConfig.LogLevel
	}
	if flagWasSet(cmd.Flags(), cmd.Root().PersistentFlags(), "log-level") {
		level = FlagLogLevel
	}
	if err := logging.Setup(logging.Options{Level: level}); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return nil
}

// newRuntime wires the store, solver, calculator and location resolver.
// A broken cache never prevents a computation.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.CalculationSettings()
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, settings: settings, metrics: metrics.New()}
	ctx := cmdContext(cmd)

	st, closeStore := openStore(ctx, cfg)
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}
	if st != nil {
		rt.state = store.NewState(st)
	}

	client := api.NewClient()
	var solver prayer.Solver = solar.New()
	solverName := config.SolverLocal
	if cfg.Solver == config.SolverAladhan {
		solver = client
		solverName = config.SolverAladhan
	}
	solver = observedSolver{Solver: solver, metrics: rt.metrics}
	if rt.state != nil {
		solver = store.CachingSolver{State: rt.state, Solver: solver, Name: solverName}
	}
	rt.calc = prayer.NewCalculator(solver)

	rt.resolver = &location.Resolver{
		State:   rt.state,
		Detect:  geo.DetectLocation,
		Geocode: client.Geocode,
	}
	return rt, nil
}

// openStore returns the configured key-value store, falling back from
// Redis to the file store and from the file store to no cache at all.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error) {
	if cfg.Store == config.StoreRedis && cfg.RedisAddr != "" {
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{Addr: cfg.RedisAddr})
		if err == nil {
			return rs, rs.Close
		}
		fmt.Fprintf(os.Stderr, "warning: redis unavailable, using file cache: %v\n", err)
	}

	dir := cfg.CacheDir
	if dir == "" {
		d, err := store.DefaultDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", err)
			return nil, nil
		}
		dir = d
	}
	fs, err := store.NewFileStore(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", err)
		return nil, nil
	}
	return fs, nil
}

// Close releases the store connection.
func (rt *runtime) Close() {
	for _, c := range rt.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("[cli] close failed")
		}
	}
}

func (rt *runtime) request() location.Request {
	return location.Request{
		Point:    rt.cfg.Point(),
		City:     rt.cfg.City,
		Country:  rt.cfg.Country,
		Timezone: rt.cfg.Timezone,
		NoDetect: !rt.cfg.AutoDetectEnabled(),
	}
}

// locate resolves the location and warns on stderr when it is a fallback.
func (rt *runtime) locate(ctx context.Context) location.Resolved {
	loc := rt.resolver.Resolve(ctx, rt.request())
	switch loc.Source {
	case location.SourceDefault:
		fmt.Fprintf(os.Stderr, "warning: no location available, showing times for %s\n", loc.City)
	case location.SourceLastKnown:
		fmt.Fprintf(os.Stderr, "warning: using last known location from %s\n", loc.SeenAt.Format("02 Jan 2006 15:04"))
	}
	return loc
}

// windowFor computes the window of the civil day of t at loc, with every
// instant converted to the location's timezone.
func (rt *runtime) windowFor(ctx context.Context, loc location.Resolved, t time.Time) (prayer.Window, error) {
	tz := loc.TimeZone()
	w, err := rt.calc.Compute(ctx, loc.Point(), t.In(tz), rt.settings)
	if err != nil {
		return prayer.Window{}, explain(err)
	}
	return w.In(tz), nil
}

// rangeFor computes `days` windows starting at t.
func (rt *runtime) rangeFor(ctx context.Context, loc location.Resolved, t time.Time, days int) ([]prayer.Window, error) {
	tz := loc.TimeZone()
	ws, err := rt.calc.Range(ctx, loc.Point(), t.In(tz), days, rt.settings)
	if err != nil {
		return nil, explain(err)
	}
	for i := range ws {
		ws[i] = ws[i].In(tz)
	}
	return ws, nil
}

// next returns the first instant after now, in the location's timezone.
func (rt *runtime) next(ctx context.Context, loc location.Resolved, w prayer.Window, now time.Time) (prayer.Next, error) {
	n, err := rt.calc.NextPrayer(ctx, w, loc.Point(), rt.settings, now)
	if err != nil {
		return prayer.Next{}, explain(err)
	}
	tz := loc.TimeZone()
	n.Time = n.Time.In(tz)
	n.Window = n.Window.In(tz)
	return n, nil
}

func (rt *runtime) timeLayout() string {
	if rt.cfg.TimeFormat == "12h" {
		return "3:04 PM"
	}
	return "15:04"
}

// prayerNames returns the configured display list or the default five.
func (rt *runtime) prayerNames() []string {
	if names := rt.cfg.PrayerNames(); len(names) > 0 {
		return names
	}
	return prayer.DefaultPrayerNames
}

func explain(err error) error {
	if errors.Is(err, prayer.ErrSolverFailure) {
		return fmt.Errorf("%w (try --high-latitude-rule TwilightAngle or --solver aladhan)", err)
	}
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// observedSolver counts computations.
type observedSolver struct {
	prayer.Solver
	metrics *metrics.Metrics
}

func (s observedSolver) Solve(ctx context.Context, point geo.GeoPoint, date time.Time, settings prayer.Settings) (prayer.Times, error) {
	t, err := s.Solver.Solve(ctx, point, date, settings)
	s.metrics.ObserveComputation(err)
	return t, err
}
