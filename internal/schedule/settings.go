package schedule

import (
	"fmt"
	"time"

	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// Default horizons.
const (
	DefaultDailyHorizonDays = 30
	DefaultWeeklyHorizon    = 4
)

// Reminder is a recurring reminder at a wall-clock time.
type Reminder struct {
	Enabled   bool   `json:"enabled"`
	TimeOfDay string `json:"time"` // "HH:MM"
}

// Settings control which notifications exist.
type Settings struct {
	// Prayers enables reminders per prayer name. Missing names are off.
	Prayers       map[string]bool `json:"prayers"`
	AdhkarMorning Reminder        `json:"adhkar_morning"`
	AdhkarEvening Reminder        `json:"adhkar_evening"`
	SurahKahf     Reminder        `json:"surah_kahf"`

	DailyHorizonDays int    `json:"daily_horizon_days"`
	WeeklyHorizon    int    `json:"weekly_horizon"`
	Sound            string `json:"sound"`

	// Location is the user's timezone; reminder times and prayer days are
	// interpreted in it. Nil means UTC.
	Location *time.Location `json:"-"`
}

// DefaultSettings enables every prayer and reminder.
func DefaultSettings() Settings {
	prayers := make(map[string]bool, len(prayer.DefaultPrayerNames))
	for _, name := range prayer.DefaultPrayerNames {
		prayers[name] = true
	}
	return Settings{
		Prayers:          prayers,
		AdhkarMorning:    Reminder{Enabled: true, TimeOfDay: "06:00"},
		AdhkarEvening:    Reminder{Enabled: true, TimeOfDay: "17:00"},
		SurahKahf:        Reminder{Enabled: true, TimeOfDay: "10:00"},
		DailyHorizonDays: DefaultDailyHorizonDays,
		WeeklyHorizon:    DefaultWeeklyHorizon,
		Sound:            "default",
		Location:         time.UTC,
	}
}

// Validate checks reminder times and horizons.
func (s Settings) Validate() error {
	for name := range s.Prayers {
		if !prayer.IsValidName(name) || name == prayer.Sunrise {
			return fmt.Errorf("invalid prayer in notification settings: %q", name)
		}
	}
	for _, r := range []struct {
		kind Kind
		rem  Reminder
	}{
		{KindAdhkarMorning, s.AdhkarMorning},
		{KindAdhkarEvening, s.AdhkarEvening},
		{KindSurahKahf, s.SurahKahf},
	} {
		if !r.rem.Enabled {
			continue
		}
		if _, _, err := ParseTimeOfDay(r.rem.TimeOfDay); err != nil {
			return fmt.Errorf("%s: %w", r.kind, err)
		}
	}
	if s.DailyHorizonDays < 0 || s.WeeklyHorizon < 0 {
		return fmt.Errorf("horizons must not be negative")
	}
	return nil
}

// Enabled reports whether any task of kind is wanted.
func (s Settings) Enabled(kind Kind) bool {
	switch kind {
	case KindPrayer:
		for _, on := range s.Prayers {
			if on {
				return true
			}
		}
		return false
	case KindAdhkarMorning:
		return s.AdhkarMorning.Enabled
	case KindAdhkarEvening:
		return s.AdhkarEvening.Enabled
	case KindSurahKahf:
		return s.SurahKahf.Enabled
	}
	return false
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Settings) dailyHorizon() int {
	if s.DailyHorizonDays == 0 {
		return DefaultDailyHorizonDays
	}
	return s.DailyHorizonDays
}

func (s Settings) weeklyHorizon() int {
	if s.WeeklyHorizon == 0 {
		return DefaultWeeklyHorizon
	}
	return s.WeeklyHorizon
}

// horizonFor returns the recurring scheduler for a reminder kind.
func (s Settings) horizonFor(kind Kind) (HorizonScheduler, int, error) {
	var rem Reminder
	switch kind {
	case KindAdhkarMorning:
		rem = s.AdhkarMorning
	case KindAdhkarEvening:
		rem = s.AdhkarEvening
	case KindSurahKahf:
		rem = s.SurahKahf
	default:
		return nil, 0, fmt.Errorf("no horizon for kind %q", kind)
	}

	h, m, err := ParseTimeOfDay(rem.TimeOfDay)
	if err != nil {
		return nil, 0, err
	}
	if kind == KindSurahKahf {
		return WeeklyAt{Weekday: time.Friday, Hour: h, Minute: m, Location: s.location()}, s.weeklyHorizon(), nil
	}
	return DailyAt{Hour: h, Minute: m, Location: s.location()}, s.dailyHorizon(), nil
}
