package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smokyabdulrahman/prayer-companion/internal/config"
	"github.com/smokyabdulrahman/prayer-companion/internal/notify"
	"github.com/smokyabdulrahman/prayer-companion/internal/schedule"
	"github.com/smokyabdulrahman/prayer-companion/internal/server"
	"github.com/smokyabdulrahman/prayer-companion/internal/store"
)

// soundNone disables notification sounds.
const soundNone = "none"

var (
	flagSyncInterval     time.Duration
	flagDispatchInterval time.Duration
	flagServe            bool
	flagListen           string
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile scheduled reminders with the current settings",
		Long: "Compute the reminders for the coming days (prayers, morning and evening adhkar,\n" +
			"Surah Al-Kahf on Fridays) and make the notification database match them.",
		Args: cobra.NoArgs,
		RunE: runSync,
	}
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Keep reminders in sync and deliver them when due",
		Long: "Run in the foreground: re-sync reminders periodically and whenever the config file\n" +
			"changes, and deliver due reminders to MQTT (when mqtt_broker is set) or the log.",
		Args: cobra.NoArgs,
		RunE: runDaemon,
	}
	cmd.Flags().DurationVar(&flagSyncInterval, "sync-interval", 6*time.Hour, "How often to re-sync reminders")
	cmd.Flags().DurationVar(&flagDispatchInterval, "dispatch-interval", 30*time.Second, "How often to check for due reminders")
	cmd.Flags().BoolVar(&flagServe, "serve", false, "Also serve the HTTP API")
	cmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (default: listen_addr from config)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve prayer times over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (default: listen_addr from config)")
	return cmd
}

// notifyDBPath is notify_db, or notifications.db in the cache directory.
func notifyDBPath(cfg *config.Config) (string, error) {
	if cfg.NotifyDB != "" {
		return cfg.NotifyDB, nil
	}
	dir := cfg.CacheDir
	if dir == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create cache directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "notifications.db"), nil
}

// reminders drives one notification database.
type reminders struct {
	scheduler *notify.SQLiteScheduler
	orch      *schedule.Orchestrator
}

func openReminders(ctx context.Context, rt *runtime) (*reminders, error) {
	path, err := notifyDBPath(rt.cfg)
	if err != nil {
		return nil, err
	}
	sched, err := notify.OpenSQLite(ctx, path, rt.cfg.NotificationsPermitted())
	if err != nil {
		return nil, err
	}

	opts := []schedule.Option{schedule.WithRecorder(rt.metrics)}
	if rt.state != nil {
		opts = append(opts, schedule.WithIDStore(rt.state))
	}
	return &reminders{scheduler: sched, orch: schedule.NewOrchestrator(sched, opts...)}, nil
}

func (r *reminders) Close() error {
	return r.scheduler.Close()
}

// sync reconciles the database against rt's config at now.
func (r *reminders) sync(ctx context.Context, rt *runtime, now time.Time) (schedule.Report, error) {
	loc := rt.locate(ctx)
	r.scheduler.SetPermitted(rt.cfg.NotificationsPermitted())

	provider := schedule.CalculatorProvider(rt.calc, loc.Point(), rt.settings)
	report, err := r.orch.Sync(ctx, provider, rt.cfg.NotificationSettings(loc.TimeZone()), now)
	if errors.Is(err, schedule.ErrPermissionDenied) {
		return report, fmt.Errorf("%w (enable with: prayer-times config set notify_permitted true)", err)
	}
	return report, explain(err)
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmdContext(cmd)
	rem, err := openReminders(ctx, rt)
	if err != nil {
		return err
	}
	defer rem.Close()

	report, err := rem.sync(ctx, rt, time.Now())
	var partial *schedule.PartialScheduleFailure
	if err != nil && !errors.As(err, &partial) {
		return err
	}

	if FlagJSON {
		if perr := printJSON(report); perr != nil {
			return perr
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Reminders synced: %d created, %d cancelled, %d unchanged\n",
			report.Created, report.Cancelled, report.Kept)
	}
	return err
}

func runDaemon(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := notify.DefaultPresentation
	p.PlaySound = rt.cfg.Sound != soundNone
	if err := notify.Init(p); err != nil && !errors.Is(err, notify.ErrAlreadyInitialized) {
		return err
	}

	rem, err := openReminders(ctx, rt)
	if err != nil {
		return err
	}
	defer rem.Close()

	sink, closeSink, err := newSink(rt.cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	var srv *server.Server
	if flagServe {
		if srv, err = newServer(rt); err != nil {
			return err
		}
	}

	dispatcher := &notify.Dispatcher{
		Source:   rem.scheduler,
		Sink:     sink,
		Interval: flagDispatchInterval,
		Recorder: rt.metrics,
	}

	g, gctx := errgroup.WithContext(ctx)
	changed := make(chan struct{}, 1)

	g.Go(func() error {
		return ignoreCancel(dispatcher.Run(gctx))
	})

	g.Go(func() error {
		return syncLoop(gctx, cmd, rt, rem, changed)
	})

	if path, err := config.Path(); err != nil {
		log.Warn().Err(err).Msg("[daemon] config changes will not trigger a sync")
	} else {
		g.Go(func() error {
			err := config.Watch(gctx, path, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			if err = ignoreCancel(err); err != nil {
				log.Warn().Err(err).Msg("[daemon] config changes will not trigger a sync")
			}
			return nil
		})
	}

	if srv != nil {
		g.Go(func() error {
			return srv.Run(gctx, listenAddr(cmd, rt.cfg))
		})
	}

	log.Info().Dur("sync_interval", flagSyncInterval).Msg("[daemon] started")
	fmt.Fprintln(cmd.ErrOrStderr(), "prayer-times daemon running; press Ctrl+C to stop")
	return g.Wait()
}

// syncLoop syncs now, every --sync-interval and after each config change.
// A config change rebuilds the settings; the solver and store stay as
// they were at startup.
func syncLoop(ctx context.Context, cmd *cobra.Command, rt *runtime, rem *reminders, changed <-chan struct{}) error {
	interval := flagSyncInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current := rt
	run := func() {
		if _, err := rem.sync(ctx, current, time.Now()); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("[daemon] sync failed")
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// The in-memory window cache only grows; start each period fresh.
			rt.calc.Invalidate()
			run()
		case <-changed:
			next, err := reloadRuntime(cmd, rt)
			if err != nil {
				log.Warn().Err(err).Msg("[daemon] ignoring invalid config")
				continue
			}
			log.Info().Msg("[daemon] config changed, re-syncing")
			current = next
			run()
		}
	}
}

// reloadRuntime returns a copy of rt with the config re-read from disk.
func reloadRuntime(cmd *cobra.Command, rt *runtime) (*runtime, error) {
	cfg, err := reloadConfig(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.CalculationSettings()
	if err != nil {
		return nil, err
	}
	next := *rt
	next.cfg = cfg
	next.settings = settings
	next.closers = nil
	return &next, nil
}

// newSink publishes to MQTT when a broker is configured and logs otherwise.
func newSink(cfg *config.Config) (notify.Sink, func(), error) {
	if cfg.MQTTBroker == "" {
		return notify.LogSink{}, func() {}, nil
	}
	s, err := notify.NewMQTTSink(notify.MQTTOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: "prayer-times-" + uuid.NewString()[:8],
		Prefix:   cfg.MQTTPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(rt)
	if err != nil {
		return err
	}
	addr := listenAddr(cmd, rt.cfg)
	fmt.Fprintf(cmd.ErrOrStderr(), "serving on http://%s\n", addr)
	return srv.Run(ctx, addr)
}

func newServer(rt *runtime) (*server.Server, error) {
	opts := server.Options{
		Calculator: rt.calc,
		Location:   rt.locate,
		Settings:   rt.settings,
		Metrics:    rt.metrics.Handler(),
		Recorder:   rt.metrics,
	}
	if rt.state != nil {
		opts.Reminders = rt.state
	}
	return server.New(opts)
}

func listenAddr(cmd *cobra.Command, cfg *config.Config) string {
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		return flagListen
	}
	return cfg.ListenAddr
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
