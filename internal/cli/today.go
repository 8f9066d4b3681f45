package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/display"
	"github.com/smokyabdulrahman/prayer-companion/internal/hijri"
	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

func runToday(cmd *cobra.Command, args []string) error {
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
	next, err := rt.next(ctx, loc, w, now)
	if err != nil {
		return err
	}

	prayers := prayer.Filter(w.Prayers(), rt.prayerNames())
	current := prayer.CurrentPrayer(w, now)

	if FlagJSON {
		return printTodayJSON(prayers, current, next, now, loc, rt.timeLayout())
	}

	printTodayRich(prayers, current, next, now, w, loc, rt.timeLayout())
	return nil
}

// buildLocationStr builds a "City, Country" string from available data.
func buildLocationStr(loc location.Resolved) string {
	if loc.City != "" && loc.Country != "" {
		return loc.City + ", " + loc.Country
	}
	// Fall back to coordinates.
	return fmt.Sprintf("%.4f, %.4f", loc.Latitude, loc.Longitude)
}

// printTodayRich renders the colored terminal output for today's prayer schedule.
func printTodayRich(prayers []prayer.Prayer, current string, next prayer.Next, now time.Time, w prayer.Window, loc location.Resolved, goTimeFmt string) {
	fmt.Println()
	fmt.Printf("  %s\n", display.Bold("Prayer Times"))
	fmt.Println()

	// Location and date info.
	locLine := buildLocationStr(loc)
	if loc.Stale {
		locLine += display.Yellow(" (approximate)")
	}
	fmt.Printf("  %s\n", locLine)
	fmt.Printf("  %s\n", loc.TimeZone())
	fmt.Printf("  %s\n", now.Format("02 January 2006"))
	fmt.Printf("  %s\n", hijri.ToHijri(now).Format())
	fmt.Println()

	// Find the max prayer name length for alignment.
	maxNameLen := 0
	for _, p := range prayers {
		if len(p.Name) > maxNameLen {
			maxNameLen = len(p.Name)
		}
	}

	// Print each prayer.
	for _, p := range prayers {
		line := fmt.Sprintf("  %s  %s", padRight(p.Name, maxNameLen), p.Time.Format(goTimeFmt))

		switch {
		case p.Name == current:
			fmt.Println(display.Dim(line))
		case !next.Tomorrow && p.Name == next.Name:
			remaining := prayer.FormatRemaining(prayer.TimeRemaining(next.Prayer, now))
			fmt.Println(display.Accent(line) + display.Accent(fmt.Sprintf("  <- next in %s", remaining)))
		default:
			fmt.Println(line)
		}
	}
	if next.Tomorrow {
		remaining := prayer.FormatRemaining(prayer.TimeRemaining(next.Prayer, now))
		fmt.Println()
		fmt.Println(display.Accent(fmt.Sprintf("  Next: %s tomorrow at %s (in %s)", next.Name, next.Time.Format(goTimeFmt), remaining)))
	}

	if prayer.InForbiddenWindow(w, now) {
		fmt.Println()
		fmt.Println(display.Yellow("  Voluntary prayer is discouraged right now."))
	}

	fmt.Println()
}

// padRight pads a string to the given width with spaces.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// todayJSON is the JSON output structure for the root command.
type todayJSON struct {
	Location todayJSONLocation `json:"location"`
	Date     todayJSONDate     `json:"date"`
	Timings  map[string]string `json:"timings"`
	Current  string            `json:"current"`
	Next     *todayJSONNext    `json:"next"`
}

type todayJSONLocation struct {
	City      string          `json:"city,omitempty"`
	Country   string          `json:"country,omitempty"`
	Timezone  string          `json:"timezone"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Source    location.Source `json:"source"`
	Stale     bool            `json:"stale,omitempty"`
}

type todayJSONDate struct {
	Gregorian string `json:"gregorian"`
	Hijri     string `json:"hijri"`
}

type todayJSONNext struct {
	Prayer    string `json:"prayer"`
	Time      string `json:"time"`
	Remaining string `json:"remaining"`
	Tomorrow  bool   `json:"tomorrow,omitempty"`
}

func jsonLocation(loc location.Resolved) todayJSONLocation {
	return todayJSONLocation{
		City:      loc.City,
		Country:   loc.Country,
		Timezone:  loc.TimeZone().String(),
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Source:    loc.Source,
		Stale:     loc.Stale,
	}
}

// printTodayJSON renders structured JSON output.
func printTodayJSON(prayers []prayer.Prayer, current string, next prayer.Next, now time.Time, loc location.Resolved, goTimeFmt string) error {
	timings := make(map[string]string)
	for _, p := range prayers {
		timings[strings.ToLower(p.Name)] = p.Time.Format(goTimeFmt)
	}

	out := todayJSON{
		Location: jsonLocation(loc),
		Date: todayJSONDate{
			Gregorian: now.Format("02 January 2006"),
			Hijri:     hijri.ToHijri(now).Format(),
		},
		Timings: timings,
		Current: strings.ToLower(current),
		Next: &todayJSONNext{
			Prayer:    strings.ToLower(next.Name),
			Time:      next.Time.Format(goTimeFmt),
			Remaining: prayer.FormatRemaining(prayer.TimeRemaining(next.Prayer, now)),
			Tomorrow:  next.Tomorrow,
		},
	}

	return printJSON(out)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
