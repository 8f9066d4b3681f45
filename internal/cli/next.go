package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

var (
	flagFormat  string
	flagPrayers string
)

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next prayer with countdown",
		Long:  "Display the next upcoming prayer time with a countdown.\nSuitable for status bars such as tmux.",
		RunE:  runNext,
	}

	cmd.Flags().StringVar(&flagFormat, "format", prayer.FormatFull, "Display format: time-remaining, next-prayer-time, name-and-time, name-and-remaining, short-name-and-time, short-name-and-remaining, full, or a custom Go template")
	cmd.Flags().StringVar(&flagPrayers, "prayers", "", "Comma-separated list of prayers to track (overrides config)")

	return cmd
}

func runNext(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Priority: --prayers flag > config > defaults.
	selected := rt.prayerNames()
	if cmd.Flags().Changed("prayers") && flagPrayers != "" {
		selected, err = parsePrayerList(flagPrayers)
		if err != nil {
			return err
		}
	}

	ctx := cmdContext(cmd)
	loc := rt.locate(ctx)
	now := time.Now().In(loc.TimeZone())

	w, err := rt.windowFor(ctx, loc, now)
	if err != nil {
		return err
	}

	next, nw, err := nextSelected(ctx, rt, loc, w, now, selected)
	if err != nil {
		return err
	}

	fmt.Print(prayer.FormatOutputIn(next, &nw, now, flagFormat, rt.timeLayout()))
	return nil
}

// nextSelected finds the first selected prayer after now, moving to
// tomorrow's window once today's selected prayers have all passed.
func nextSelected(ctx context.Context, rt *runtime, loc location.Resolved, w prayer.Window, now time.Time, selected []string) (prayer.Prayer, prayer.Window, error) {
	if p := prayer.NextPrayer(prayer.Filter(w.Prayers(), selected), now); p != nil {
		return *p, w, nil
	}

	tomorrow, err := rt.windowFor(ctx, loc, w.Date.AddDate(0, 0, 1))
	if err != nil {
		return prayer.Prayer{}, prayer.Window{}, fmt.Errorf("failed to compute tomorrow's times: %w", err)
	}
	ps := prayer.Filter(tomorrow.Prayers(), selected)
	if len(ps) == 0 {
		return prayer.Prayer{}, prayer.Window{}, fmt.Errorf("could not determine next prayer")
	}
	return ps[0], tomorrow, nil
}

// parsePrayerList splits and validates a comma-separated prayer list.
// Names are matched case-insensitively and returned canonicalised.
func parsePrayerList(raw string) ([]string, error) {
	var out []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		name, ok := prayer.CanonicalName(n)
		if !ok {
			return nil, fmt.Errorf("unknown prayer %q; valid names: %s", n, strings.Join(prayer.AllPrayerNames, ", "))
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty prayer list")
	}
	return out, nil
}
