package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayer-companion/internal/api"
	"github.com/smokyabdulrahman/prayer-companion/internal/config"
	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/logging"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
	"github.com/smokyabdulrahman/prayer-companion/internal/solar"
	"github.com/smokyabdulrahman/prayer-companion/internal/store"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0"
var version = "dev"

// statusTimeout keeps a slow lookup from freezing the status bar.
const statusTimeout = 5 * time.Second

type options struct {
	lat, lon      float64
	city, country string
	timezone      string
	method        string
	madhab        string
	highLat       string
	format        string
	timeFormat    string
	prayers       string
	cacheDir      string
	noDetect      bool
}

func main() {
	var o options

	// Location flags
	flag.Float64Var(&o.lat, "latitude", 0, "Latitude for prayer time calculation")
	flag.Float64Var(&o.lon, "longitude", 0, "Longitude for prayer time calculation")
	flag.StringVar(&o.city, "city", "", "City name (alternative to coordinates)")
	flag.StringVar(&o.country, "country", "", "Country (used with --city)")
	flag.StringVar(&o.timezone, "timezone", "", "IANA timezone (default: detected)")
	flag.BoolVar(&o.noDetect, "no-detect", false, "Never use IP-based location detection")

	// Calculation flags
	flag.StringVar(&o.method, "method", prayer.DefaultSettings().Method.String(), "Calculation method name (see --list-methods)")
	flag.StringVar(&o.madhab, "madhab", prayer.DefaultSettings().Madhab.String(), "Madhab for Asr: Shafi or Hanafi")
	flag.StringVar(&o.highLat, "high-latitude-rule", prayer.DefaultSettings().HighLatitudeRule.String(), "MiddleOfTheNight, SeventhOfTheNight or TwilightAngle")

	// Display flags
	flag.StringVar(&o.format, "format", prayer.FormatNameAndTime, "Display format: time-remaining, next-prayer-time, name-and-time, name-and-remaining, short-name-and-time, short-name-and-remaining, full, or a custom Go template (e.g. '{{.Name}} in {{.Remaining}}'). Template fields: .Name, .ShortName, .Time, .Remaining, .Hours, .Minutes")
	flag.StringVar(&o.timeFormat, "time-format", "24h", "Time format: 12h or 24h")
	flag.StringVar(&o.prayers, "prayers", "", "Comma-separated list of prayers to track (default: Fajr,Dhuhr,Asr,Maghrib,Isha)")

	// Cache flags
	flag.StringVar(&o.cacheDir, "cache-dir", "", "Cache directory (default: ~/.cache/prayer-times/)")

	// Info flags
	showVersion := flag.Bool("version", false, "Print version and exit")
	listMethods := flag.Bool("list-methods", false, "Print supported calculation methods and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("tmux-prayer-times %s\n", version)
		return
	}

	if *listMethods {
		printMethods()
		return
	}

	// The status bar only shows stdout; keep diagnostics quiet.
	_ = logging.Setup(logging.Options{Level: "error"})

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	out, err := run(ctx, o, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}

// printMethods prints the table of supported calculation methods.
func printMethods() {
	fmt.Println("Supported calculation methods:")
	fmt.Println()
	fmt.Printf("  %-22s %s\n", "Name", "Description")
	fmt.Printf("  %-22s %s\n", "────", "───────────")
	for _, m := range prayer.Methods {
		fmt.Printf("  %-22s %s\n", m, prayer.MethodDescriptions[m])
	}
	fmt.Println()
	fmt.Println("Use --method <Name> to select a calculation method.")
	fmt.Printf("If omitted, %s is used.\n", prayer.DefaultSettings().Method)
}

func (o options) settings() (prayer.Settings, error) {
	m, err := prayer.ParseMethod(o.method)
	if err != nil {
		return prayer.Settings{}, err
	}
	md, err := prayer.ParseMadhab(o.madhab)
	if err != nil {
		return prayer.Settings{}, err
	}
	r, err := prayer.ParseHighLatitudeRule(o.highLat)
	if err != nil {
		return prayer.Settings{}, err
	}
	return prayer.Settings{Method: m, Madhab: md, HighLatitudeRule: r}, nil
}

func (o options) request() (location.Request, error) {
	req := location.Request{
		City:     o.city,
		Country:  o.country,
		Timezone: o.timezone,
		NoDetect: o.noDetect,
	}
	switch {
	case o.lat != 0 || o.lon != 0:
		p, err := geo.NewPoint(o.lat, o.lon)
		if err != nil {
			return location.Request{}, err
		}
		req.Point = &p
	case o.city != "" && o.country == "":
		return location.Request{}, fmt.Errorf("--country is required when using --city")
	}
	return req, nil
}

func (o options) selected() ([]string, error) {
	if o.prayers == "" {
		return prayer.DefaultPrayerNames, nil
	}
	var names []string
	for _, n := range strings.Split(o.prayers, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !prayer.IsValidName(n) {
			return nil, fmt.Errorf("unknown prayer %q; valid names: %s", n, strings.Join(prayer.AllPrayerNames, ", "))
		}
		names = append(names, n)
	}
	return names, nil
}

// run returns the status line for now.
func run(ctx context.Context, o options, now time.Time) (string, error) {
	settings, err := o.settings()
	if err != nil {
		return "", err
	}
	req, err := o.request()
	if err != nil {
		return "", err
	}
	selected, err := o.selected()
	if err != nil {
		return "", err
	}

	goTimeFmt := "15:04" // 24h
	if o.timeFormat == "12h" {
		goTimeFmt = "3:04 PM"
	}

	// Cache init failure is non-fatal; we just skip caching.
	var state *store.State
	var solver prayer.Solver = solar.New()
	if fs, err := store.NewFileStore(o.cacheDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", err)
	} else {
		state = store.NewState(fs)
		solver = store.CachingSolver{State: state, Solver: solver, Name: config.SolverLocal}
	}
	calc := prayer.NewCalculator(solver)

	resolver := &location.Resolver{
		State:   state,
		Detect:  geo.DetectLocation,
		Geocode: api.NewClient().Geocode,
	}
	loc := resolver.Resolve(ctx, req)
	tz := loc.TimeZone()
	now = now.In(tz)

	w, err := calc.Compute(ctx, loc.Point(), now, settings)
	if err != nil {
		return "", err
	}
	w = w.In(tz)

	if p := prayer.NextPrayer(prayer.Filter(w.Prayers(), selected), now); p != nil {
		return prayer.FormatOutputIn(*p, &w, now, o.format, goTimeFmt), nil
	}

	// All of today's prayers have passed.
	tomorrow, err := calc.Compute(ctx, loc.Point(), w.Date.AddDate(0, 0, 1), settings)
	if err != nil {
		ps := prayer.Filter(w.Prayers(), selected)
		if len(ps) > 0 {
			// Show the last prayer rather than breaking the status bar.
			return fmt.Sprintf("%s --:--", ps[len(ps)-1].Name), nil
		}
		return "", fmt.Errorf("failed to compute tomorrow's times: %w", err)
	}
	tomorrow = tomorrow.In(tz)
	ps := prayer.Filter(tomorrow.Prayers(), selected)
	if len(ps) == 0 {
		return "", fmt.Errorf("could not determine next prayer")
	}
	return prayer.FormatOutputIn(ps[0], &w, now, o.format, goTimeFmt), nil
}
