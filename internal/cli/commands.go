package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/config"
	"github.com/smokyabdulrahman/prayer-companion/internal/display"
	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/hijri"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or modify configuration",
		Long:  "Display current configuration, or use subcommands to modify it.\nWhen run without subcommands, shows the current configuration.",
		RunE:  runConfigShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: fmt.Sprintf("Set a configuration value. Valid keys: %s\n\nExamples:\n  prayer-times config set city Riyadh\n  prayer-times config set country \"Saudi Arabia\"\n  prayer-times config set method UmmAlQura\n  prayer-times config set time_format 12h\n  prayer-times config set adhkar_evening off",
			strings.Join(config.ValidKeys, ", ")),
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset config to defaults",
		Long:  "Delete the config file and restore all settings to defaults.",
		RunE:  runConfigReset,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print config file path",
		RunE:  runConfigPath,
	})

	return cmd
}

// runConfigShow displays the stored configuration, marking defaults.
func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}

	// File values with PRAYER_* overrides applied.
	cfg := loadedConfig
	if cfg == nil {
		if cfg, err = config.Load(); err != nil {
			return err
		}
	}
	defaults := config.Defaults()

	fmt.Printf("  Configuration (%s)\n\n", path)

	for _, key := range config.ValidKeys {
		val, _ := cfg.Get(key)
		shown := val
		if shown == "" {
			if d, _ := defaults.Get(key); d != "" {
				shown = display.Gray(d + " (default)")
			} else {
				shown = display.Gray("(not set)")
			}
		}
		if key == "method" && val != "" {
			shown = formatMethodValue(val)
		}
		fmt.Printf("  %-20s %s\n", key, shown)
	}
	return nil
}

// runConfigSet sets a config key to the given value.
func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	stored, _ := cfg.Get(key)
	fmt.Printf("Set %s = %s\n", key, stored)
	return nil
}

// runConfigReset deletes the config file.
func runConfigReset(cmd *cobra.Command, args []string) error {
	if err := config.Reset(); err != nil {
		return err
	}
	fmt.Println("Configuration reset to defaults.")
	return nil
}

// runConfigPath prints the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// formatMethodValue appends the method's description.
func formatMethodValue(val string) string {
	m, err := prayer.ParseMethod(val)
	if err != nil {
		return val
	}
	return fmt.Sprintf("%s (%s)", m, prayer.MethodDescriptions[m])
}

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List all calculation methods",
		Long:  "Print the table of supported calculation methods, madhabs and high latitude rules.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Supported calculation methods:")
			fmt.Println()
			tbl := display.NewTable([]string{"Name", "Description"})
			for _, m := range prayer.Methods {
				tbl.AddRow([]string{m.String(), prayer.MethodDescriptions[m]})
			}
			fmt.Print(tbl.Render())
			fmt.Println()
			fmt.Printf("Madhabs: %s, %s\n", prayer.Shafi, prayer.Hanafi)
			fmt.Printf("High latitude rules: %s, %s, %s\n", prayer.MiddleOfTheNight, prayer.SeventhOfTheNight, prayer.TwilightAngle)
			fmt.Println()
			fmt.Println("Use --method <Name> to select a calculation method.")
			fmt.Printf("If omitted, %s is used.\n", prayer.DefaultSettings().Method)
			return nil
		},
	}
}

func newQiblaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qibla",
		Short: "Show the Qibla direction and distance to the Kaaba",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			loc := rt.locate(cmdContext(cmd))
			bearing, err := geo.BearingToMecca(loc.Point())
			if err != nil {
				return err
			}
			dist, err := geo.DistanceToMecca(loc.Point())
			if err != nil {
				return err
			}

			if FlagJSON {
				return printJSON(map[string]any{
					"location":    jsonLocation(loc),
					"bearing":     bearing,
					"distance_km": dist,
					"cardinal":    cardinal(bearing),
				})
			}

			fmt.Println()
			fmt.Printf("  %s\n", display.Bold("Qibla"))
			fmt.Println()
			fmt.Printf("  %s\n", buildLocationStr(loc))
			fmt.Printf("  Bearing   %s\n", display.Accent(fmt.Sprintf("%.1f° %s", bearing, cardinal(bearing))))
			fmt.Printf("  Distance  %.0f km\n", dist)
			fmt.Println()
			return nil
		},
	}
}

// cardinal names the 16-point compass direction of a bearing.
func cardinal(deg float64) string {
	points := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	i := int(geo.NormalizeDegrees(deg)/22.5+0.5) % len(points)
	return points[i]
}

var flagHijriDate string

func newHijriCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hijri",
		Short: "Show the Hijri date",
		Long:  "Convert today's date (or --date YYYY-MM-DD) to the tabular Islamic calendar.\nThe result may differ by a day from sighting-based calendars.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if flagHijriDate != "" {
				d, err := time.ParseInLocation("2006-01-02", flagHijriDate, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", flagHijriDate)
				}
				day = d
			}
			h := hijri.ToHijri(day)

			if FlagJSON {
				return printJSON(map[string]any{
					"gregorian": day.Format("2006-01-02"),
					"hijri":     h,
				})
			}
			fmt.Println(h.Format())
			return nil
		},
	}
	cmd.Flags().StringVar(&flagHijriDate, "date", "", "Gregorian date to convert (YYYY-MM-DD)")
	return cmd
}

func newForbiddenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forbidden",
		Short: "Show today's forbidden prayer windows",
		Long:  "Show the intervals after sunrise, around solar noon and before sunset in which voluntary prayer is discouraged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmdContext(cmd)
			loc := rt.locate(ctx)
			now := time.Now().In(loc.TimeZone())
			w, err := rt.windowFor(ctx, loc, now)
			if err != nil {
				return err
			}
			windows := prayer.ForbiddenWindows(w)

			if FlagJSON {
				return printJSON(map[string]any{
					"date":    w.Date.Format("2006-01-02"),
					"windows": windows,
					"active":  prayer.InForbiddenWindow(w, now),
				})
			}

			goTimeFmt := rt.timeLayout()
			tbl := display.NewTable([]string{"Window", "From", "To"})
			for i, f := range windows {
				tbl.AddRow([]string{f.Label, f.Start.Format(goTimeFmt), f.End.Format(goTimeFmt)})
				if f.Contains(now) {
					tbl.SetHighlightRow(i)
				}
			}
			fmt.Println()
			fmt.Print(tbl.Render())
			fmt.Println()
			return nil
		},
	}
}
