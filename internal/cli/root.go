package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/prayer-companion/internal/config"
)

// Global flags shared across all subcommands.
var (
	FlagCity       string
	FlagCountry    string
	FlagLatitude   float64
	FlagLongitude  float64
	FlagTimezone   string
	FlagMethod     string
	FlagMadhab     string
	FlagHighLat    string
	FlagSolver     string
	FlagJSON       bool
	FlagCacheDir   string
	FlagTimeFormat string
	FlagNoDetect   bool
	FlagLogLevel   string
)

// loadedConfig holds the config loaded during PersistentPreRunE.
// Available to all subcommand handlers.
var loadedConfig *config.Config

// NewRootCmd creates the root command for the prayer-times CLI.
// The version parameter is set by the calling binary via ldflags.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "prayer-times",
		Short:   "Islamic prayer times CLI",
		Long:    "Prayer times, Qibla direction, Hijri dates and reminders, computed locally or via the Al Adhan API.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ApplyEnv(cmdContext(cmd)); err != nil {
				return err
			}
			loadedConfig = cfg
			return setupLogging(cmd)
		},
		// Default action: show today's prayer schedule.
		RunE:          runToday,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Register global persistent flags.
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&FlagCity, "city", "", "Override city (takes precedence over config)")
	pf.StringVar(&FlagCountry, "country", "", "Override country")
	pf.Float64Var(&FlagLatitude, "latitude", 0, "Override latitude")
	pf.Float64Var(&FlagLongitude, "longitude", 0, "Override longitude")
	pf.StringVar(&FlagTimezone, "timezone", "", "Override timezone (IANA name)")
	pf.StringVar(&FlagMethod, "method", "", "Override calculation method (see 'methods')")
	pf.StringVar(&FlagMadhab, "madhab", "", "Override madhab for Asr: Shafi or Hanafi")
	pf.StringVar(&FlagHighLat, "high-latitude-rule", "", "Override high latitude rule")
	pf.StringVar(&FlagSolver, "solver", "", "Prayer time source: local or aladhan")
	pf.BoolVar(&FlagJSON, "json", false, "Output as JSON (where supported)")
	pf.StringVar(&FlagCacheDir, "cache-dir", "", "Cache directory (default: ~/.cache/prayer-times/)")
	pf.StringVar(&FlagTimeFormat, "time-format", "", "Time format: 12h or 24h (overrides config)")
	pf.BoolVar(&FlagNoDetect, "no-detect", false, "Never use IP-based location detection")
	pf.StringVar(&FlagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	// Register subcommands.
	rootCmd.AddCommand(newNextCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newWeekCmd())
	rootCmd.AddCommand(newMonthCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newQiblaCmd())
	rootCmd.AddCommand(newHijriCmd())
	rootCmd.AddCommand(newForbiddenCmd())
	rootCmd.AddCommand(newCompassCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMethodsCmd())

	return rootCmd
}

// PrintVersion prints the version string in the expected format.
func PrintVersion(version string) string {
	return fmt.Sprintf("prayer-times %s\n", version)
}

// effectiveConfig returns the merged configuration values,
// applying the priority: CLI flags > environment > config file > defaults.
// It uses cobra's Changed() to detect whether a flag was explicitly set.
func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	file := config.Config{}
	if loadedConfig != nil {
		file = *loadedConfig
	}
	return mergeConfig(cmd, file)
}

// reloadConfig re-reads the config file and environment, then applies the
// command line on top.
func reloadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := file.ApplyEnv(cmdContext(cmd)); err != nil {
		return nil, err
	}
	return mergeConfig(cmd, *file)
}

func mergeConfig(cmd *cobra.Command, file config.Config) (*config.Config, error) {
	cfg := file.Merge(config.Defaults())

	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()

	overrides := []struct {
		flag, key string
		value     func() string
	}{
		{"city", "city", func() string { return FlagCity }},
		{"country", "country", func() string { return FlagCountry }},
		{"latitude", "latitude", func() string { return fmt.Sprint(FlagLatitude) }},
		{"longitude", "longitude", func() string { return fmt.Sprint(FlagLongitude) }},
		{"timezone", "timezone", func() string { return FlagTimezone }},
		{"method", "method", func() string { return FlagMethod }},
		{"madhab", "madhab", func() string { return FlagMadhab }},
		{"high-latitude-rule", "high_latitude_rule", func() string { return FlagHighLat }},
		{"solver", "solver", func() string { return FlagSolver }},
		{"cache-dir", "cache_dir", func() string { return FlagCacheDir }},
		{"time-format", "time_format", func() string { return FlagTimeFormat }},
		{"log-level", "log_level", func() string { return FlagLogLevel }},
	}
	for _, o := range overrides {
		if !flagWasSet(flags, root, o.flag) {
			continue
		}
		if err := cfg.Set(o.key, o.value()); err != nil {
			return nil, fmt.Errorf("--%s: %w", o.flag, err)
		}
	}

	// A city given on the command line wins over configured coordinates.
	if flagWasSet(flags, root, "city") && !flagWasSet(flags, root, "latitude") {
		cfg.Latitude, cfg.Longitude = nil, nil
	}
	if flagWasSet(flags, root, "no-detect") && FlagNoDetect {
		off := false
		cfg.AutoDetect = &off
	}

	return &cfg, nil
}

// flagWasSet checks if a flag was explicitly set on either the local or persistent flag set.
func flagWasSet(local, persistent *pflag.FlagSet, name string) bool {
	if f := local.Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := persistent.Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}
