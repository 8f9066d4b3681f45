// Package schedule keeps the live notification set in line with the prayer
// windows and reminder settings. Every Sync recomputes the desired set and
// reconciles it against what the notification backend reports.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the category of a notification task.
type Kind string

const (
	KindPrayer        Kind = "prayer"
	KindAdhkarMorning Kind = "adhkar_morning"
	KindAdhkarEvening Kind = "adhkar_evening"
	KindSurahKahf     Kind = "surah_kahf"
)

// Kinds lists every kind in scheduling order.
var Kinds = []Kind{KindPrayer, KindAdhkarMorning, KindAdhkarEvening, KindSurahKahf}

// Notification channels.
const (
	ChannelPrayer    = "prayer-times"
	ChannelReminders = "reminders"
)

// Deep-link routes handed to the tap handler.
const (
	RoutePrayerTimes = "/prayer-times"
	RouteAdhkar      = "/adhkar"
	RouteSurahKahf   = "/quran/18"
)

// taskNamespace seeds deterministic task IDs.
var taskNamespace = uuid.MustParse("6f1c1f0e-5a0b-4c8e-9a51-8f2b1a6c7d30")

// Task is a single one-shot notification.
type Task struct {
	ID      string            `json:"id"`
	Kind    Kind              `json:"kind"`
	Prayer  string            `json:"prayer,omitempty"`
	FireAt  time.Time         `json:"fire_at"`
	Channel string            `json:"channel"`
	Sound   string            `json:"sound"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data"`
}

// Key identifies the (kind, prayer, local day) slot a task occupies. At
// most one live task may hold a key.
func (t Task) Key(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s|%s|%s", t.Kind, t.Prayer, t.FireAt.In(loc).Format("2006-01-02"))
}

// TaskID derives a stable ID from kind, prayer and fire instant, so the
// same desired task always maps to the same ID.
func TaskID(kind Kind, prayerName string, fireAt time.Time) string {
	name := fmt.Sprintf("%s|%s|%s", kind, prayerName, fireAt.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(taskNamespace, []byte(name)).String()
}

func newPrayerTask(name string, at time.Time, sound string) Task {
	return Task{
		ID:      TaskID(KindPrayer, name, at),
		Kind:    KindPrayer,
		Prayer:  name,
		FireAt:  at.UTC(),
		Channel: ChannelPrayer,
		Sound:   sound,
		Title:   name,
		Body:    fmt.Sprintf("It's time for %s prayer", name),
		Data: map[string]string{
			"kind":  string(KindPrayer),
			"name":  name,
			"route": RoutePrayerTimes,
		},
	}
}

func newReminderTask(kind Kind, at time.Time, sound string) Task {
	t := Task{
		ID:      TaskID(kind, "", at),
		Kind:    kind,
		FireAt:  at.UTC(),
		Channel: ChannelReminders,
		Sound:   sound,
	}

	switch kind {
	case KindAdhkarMorning:
		t.Title = "Morning Adhkar"
		t.Body = "Start your day with the morning remembrance"
		t.Data = adhkarData("morning")
	case KindAdhkarEvening:
		t.Title = "Evening Adhkar"
		t.Body = "Take a moment for the evening remembrance"
		t.Data = adhkarData("evening")
	case KindSurahKahf:
		t.Title = "Surah Al-Kahf"
		t.Body = "It's Friday. Remember to read Surah Al-Kahf"
		t.Data = map[string]string{
			"kind":  string(KindSurahKahf),
			"route": RouteSurahKahf,
		}
	}
	return t
}

func adhkarData(category string) map[string]string {
	return map[string]string{
		"kind":     "adhkar",
		"category": category,
		"route":    RouteAdhkar + "?category=" + category,
	}
}
