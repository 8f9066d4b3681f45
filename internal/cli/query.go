package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/display"
	"github.com/smokyabdulrahman/prayer-companion/internal/hijri"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

var flagQueryDays string

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <prayer>",
		Short: "Query a specific prayer time",
		Long:  "Query a specific prayer time for today, or across multiple days with --days.\n\nValid prayer names: " + strings.Join(prayer.AllPrayerNames, ", "),
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}

	cmd.Flags().StringVar(&flagQueryDays, "days", "", "Number of days to show (or 'week'/'month')")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	prayerName, ok := prayer.CanonicalName(args[0])
	if !ok {
		return fmt.Errorf("unknown prayer %q; valid names: %s", args[0], strings.Join(prayer.AllPrayerNames, ", "))
	}

	days := 1
	if flagQueryDays != "" {
		n, err := parseDays(flagQueryDays)
		if err != nil {
			return fmt.Errorf("invalid --days value: %w", err)
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
	goTimeFmt := rt.timeLayout()

	windows, err := rt.rangeFor(ctx, loc, now, days)
	if err != nil {
		return err
	}

	if days == 1 {
		at, _ := windows[0].Time(prayerName)
		if FlagJSON {
			return printJSON(queryJSONSingle{
				Prayer: strings.ToLower(prayerName),
				Time:   at.Format(goTimeFmt),
				Date:   now.Format("02 Jan 2006"),
				Hijri:  hijri.ToHijri(now).Format(),
			})
		}
		fmt.Printf("%s %s\n", prayerName, at.Format(goTimeFmt))
		return nil
	}

	if FlagJSON {
		out := queryJSONMulti{
			Location: jsonLocation(loc),
			Prayer:   strings.ToLower(prayerName),
		}
		for _, w := range windows {
			at, _ := w.Time(prayerName)
			out.Days = append(out.Days, queryJSONDay{
				Date:  w.Date.Format("02 Jan 2006"),
				Hijri: hijri.ToHijri(w.Date).Format(),
				Time:  at.Format(goTimeFmt),
			})
		}
		return printJSON(out)
	}

	fmt.Println()
	fmt.Printf("  %s\n", display.Bold(fmt.Sprintf("%s Times: %d Days", prayerName, days)))
	fmt.Println()
	fmt.Printf("  %s\n", buildLocationStr(loc))
	fmt.Println()

	fmt.Print(buildListTable(windows, []string{prayerName}, now, goTimeFmt).Render())
	fmt.Println()
	return nil
}

type queryJSONSingle struct {
	Prayer string `json:"prayer"`
	Time   string `json:"time"`
	Date   string `json:"date"`
	Hijri  string `json:"hijri"`
}

type queryJSONMulti struct {
	Location todayJSONLocation `json:"location"`
	Prayer   string            `json:"prayer"`
	Days     []queryJSONDay    `json:"days"`
}

type queryJSONDay struct {
	Date  string `json:"date"`
	Hijri string `json:"hijri"`
	Time  string `json:"time"`
}
