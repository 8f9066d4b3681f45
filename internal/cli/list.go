package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/display"
	"github.com/smokyabdulrahman/prayer-companion/internal/hijri"
	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// maxDays bounds list and query ranges.
const maxDays = 366

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [days]",
		Short: "Show prayer times for multiple days",
		Long:  "Display a grid of prayer times for N days (default: 7).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, 7)
		},
	}
}

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show prayer times for the next 7 days",
		Long:  "Alias for 'list 7'. Display a grid of prayer times for 7 days.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 7)
		},
	}
}

func newMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month",
		Short: "Show prayer times for the next 30 days",
		Long:  "Alias for 'list 30'. Display a grid of prayer times for 30 days.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 30)
		},
	}
}

// parseDays accepts a positive integer, "week" or "month".
func parseDays(raw string) (int, error) {
	switch raw {
	case "week":
		return 7, nil
	case "month":
		return 30, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxDays {
		return 0, fmt.Errorf("invalid number of days: %q (must be 1-%d, 'week', or 'month')", raw, maxDays)
	}
	return n, nil
}

// runList is the handler for the list subcommand.
func runList(cmd *cobra.Command, args []string, defaultDays int) error {
	days := defaultDays
	if len(args) > 0 {
		n, err := parseDays(args[0])
		if err != nil {
			return err
		}
		days = n
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmdContext(cmd)
	loc := rt.locate(ctx)
	now := time.Now().In(loc.TimeZone())

	windows, err := rt.rangeFor(ctx, loc, now, days)
	if err != nil {
		return err
	}
	selected := rt.prayerNames()
	goTimeFmt := rt.timeLayout()

	if FlagJSON {
		return printListJSON(windows, selected, loc, goTimeFmt)
	}

	fmt.Println()
	fmt.Printf("  %s\n", display.Bold(fmt.Sprintf("Prayer Times: %d Days", days)))
	fmt.Println()
	fmt.Printf("  %s\n", buildLocationStr(loc))
	fmt.Println()

	fmt.Print(buildListTable(windows, selected, now, goTimeFmt).Render())
	fmt.Println()
	return nil
}

// buildListTable lays out one row per day, highlighting today.
func buildListTable(windows []prayer.Window, selected []string, now time.Time, goTimeFmt string) *display.Table {
	headers := append([]string{"Date"}, selected...)
	tbl := display.NewTable(headers)

	today := now.Format("2006-01-02")
	for i, w := range windows {
		row := []string{w.Date.Format("Mon 02 Jan")}
		for _, p := range prayer.Filter(w.Prayers(), selected) {
			row = append(row, p.Time.Format(goTimeFmt))
		}
		tbl.AddRow(row)

		if w.Date.Format("2006-01-02") == today {
			tbl.SetHighlightRow(i)
		}
	}
	return tbl
}

// listJSONOutput is the JSON structure for the list command.
type listJSONOutput struct {
	Location todayJSONLocation `json:"location"`
	Days     []listJSONDay     `json:"days"`
}

type listJSONDay struct {
	Date    string            `json:"date"`
	Hijri   string            `json:"hijri"`
	Timings map[string]string `json:"timings"`
}

func printListJSON(windows []prayer.Window, selected []string, loc location.Resolved, goTimeFmt string) error {
	out := listJSONOutput{Location: jsonLocation(loc)}

	for _, w := range windows {
		timings := make(map[string]string)
		for _, p := range prayer.Filter(w.Prayers(), selected) {
			timings[strings.ToLower(p.Name)] = p.Time.Format(goTimeFmt)
		}

		out.Days = append(out.Days, listJSONDay{
			Date:    w.Date.Format("02 Jan 2006"),
			Hijri:   hijri.ToHijri(w.Date).Format(),
			Timings: timings,
		})
	}

	return printJSON(out)
}
