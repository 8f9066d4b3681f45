package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// memScheduler is an in-memory notification backend.
type memScheduler struct {
	mu         sync.Mutex
	permitted  bool
	tasks      map[string]Task
	creates    int
	cancels    int
	lists      int
	failCreate func(Task) error
}

func newMemScheduler() *memScheduler {
	return &memScheduler{permitted: true, tasks: make(map[string]Task)}
}

func (m *memScheduler) Permitted(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permitted, nil
}

func (m *memScheduler) List(ctx context.Context) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (m *memScheduler) Create(ctx context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		if err := m.failCreate(t); err != nil {
			return err
		}
	}
	if _, ok := m.tasks[t.ID]; ok {
		return errors.New("duplicate task")
	}
	m.creates++
	m.tasks[t.ID] = t
	return nil
}

func (m *memScheduler) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
	delete(m.tasks, id)
	return nil
}

func (m *memScheduler) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *memScheduler) byKind(kind Kind) []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Task
	for _, t := range m.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

type memIDStore struct {
	ids []string
}

func (s *memIDStore) SaveScheduledIDs(ctx context.Context, ids []string) error {
	s.ids = append([]string(nil), ids...)
	return nil
}

// fixedProvider returns synthetic windows that drift by one minute a day.
func fixedProvider(calls *int) WindowProvider {
	return WindowProviderFunc(func(ctx context.Context, date time.Time) (prayer.Window, error) {
		if calls != nil {
			*calls++
		}
		day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		drift := time.Duration(date.YearDay()) * time.Minute
		at := func(h, m int) time.Time {
			return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + drift)
		}
		return prayer.Window{
			Date: day,
			Times: prayer.Times{
				Fajr:    at(4, 0),
				Sunrise: at(5, 30),
				Dhuhr:   at(11, 0),
				Asr:     at(14, 30),
				Maghrib: at(17, 0),
				Isha:    at(18, 30),
			},
		}, nil
	})
}

// Wednesday 2026-03-04 13:00 UTC: Fajr and Dhuhr have passed.
var testNow = time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)

// 5 prayers + 29 mornings (06:00 passed) + 30 evenings + 4 Fridays.
const testDesiredCount = 5 + 29 + 30 + 4

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

func TestSync_PermissionDenied(t *testing.T) {
	sched := newMemScheduler()
	sched.permitted = false
	o := NewOrchestrator(sched)

	_, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)

	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, sched.lists)
	assert.Zero(t, sched.creates)
	assert.Zero(t, sched.cancels)
}

func TestSync_CreatesDesiredSet(t *testing.T) {
	sched := newMemScheduler()
	store := &memIDStore{}
	o := NewOrchestrator(sched, WithIDStore(store))

	report, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)
	require.NoError(t, err)

	assert.Equal(t, Report{Created: testDesiredCount}, report)
	assert.Len(t, sched.byKind(KindPrayer), 5)
	assert.Len(t, sched.byKind(KindAdhkarMorning), 29)
	assert.Len(t, sched.byKind(KindAdhkarEvening), 30)
	assert.Len(t, sched.byKind(KindSurahKahf), 4)

	if diff := cmp.Diff(sched.ids(), store.ids); diff != "" {
		t.Errorf("persisted ids mismatch (-scheduled +persisted):\n%s", diff)
	}
}

func TestSync_PrayersRollIndividually(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)

	_, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)
	require.NoError(t, err)

	got := map[string]int{}
	for _, task := range sched.byKind(KindPrayer) {
		got[task.Prayer] = task.FireAt.Day()
	}
	want := map[string]int{
		prayer.Fajr:    5,
		prayer.Dhuhr:   5,
		prayer.Asr:     4,
		prayer.Maghrib: 4,
		prayer.Isha:    4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("prayer days mismatch (-want +got):\n%s", diff)
	}

	// Tomorrow's times come from tomorrow's window, not today's + 24h.
	first := sched.byKind(KindPrayer)[0]
	assert.Equal(t, prayer.Asr, first.Prayer, "earliest task is today's Asr")
	for _, task := range sched.byKind(KindPrayer) {
		if task.Prayer == prayer.Fajr {
			want := time.Date(2026, 3, 5, 4, 0, 0, 0, time.UTC).Add(64 * time.Minute)
			assert.Equal(t, want, task.FireAt)
		}
	}
}

func TestSync_Idempotent(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)
	settings := DefaultSettings()

	_, err := o.Sync(context.Background(), fixedProvider(nil), settings, testNow)
	require.NoError(t, err)
	before := sched.ids()
	creates, cancels := sched.creates, sched.cancels

	report, err := o.Sync(context.Background(), fixedProvider(nil), settings, testNow)
	require.NoError(t, err)

	assert.Equal(t, Report{Kept: testDesiredCount}, report)
	assert.Equal(t, creates, sched.creates)
	assert.Equal(t, cancels, sched.cancels)
	if diff := cmp.Diff(before, sched.ids()); diff != "" {
		t.Errorf("task set changed (-before +after):\n%s", diff)
	}
}

func TestSync_DisablingOnePrayer(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)
	settings := DefaultSettings()

	_, err := o.Sync(context.Background(), fixedProvider(nil), settings, testNow)
	require.NoError(t, err)
	before := sched.ids()

	var asrID string
	for _, task := range sched.byKind(KindPrayer) {
		if task.Prayer == prayer.Asr {
			asrID = task.ID
		}
	}
	require.NotEmpty(t, asrID)

	settings.Prayers = map[string]bool{
		prayer.Fajr: true, prayer.Dhuhr: true, prayer.Asr: false, prayer.Maghrib: true, prayer.Isha: true,
	}
	report, err := o.Sync(context.Background(), fixedProvider(nil), settings, testNow)
	require.NoError(t, err)

	assert.Equal(t, Report{Cancelled: 1, Kept: testDesiredCount - 1}, report)

	want := make([]string, 0, len(before)-1)
	for _, id := range before {
		if id != asrID {
			want = append(want, id)
		}
	}
	if diff := cmp.Diff(want, sched.ids()); diff != "" {
		t.Errorf("remaining tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_DisabledKindIsCancelled(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)
	settings := DefaultSettings()

	_, err := o.Sync(context.Background(), fixedProvider(nil), settings, testNow)
	require.NoError(t, err)

	settings.AdhkarEvening.Enabled = false
	report, err := o.Sync(context.Background(), fixedProvider(nil), settings, testNow)
	require.NoError(t, err)

	assert.Equal(t, 30, report.Cancelled)
	assert.Zero(t, report.Created)
	assert.Empty(t, sched.byKind(KindAdhkarEvening))
}

func TestSync_TimeAdvances(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)

	_, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)
	require.NoError(t, err)

	// Past Asr: Asr moves to tomorrow, the 17:00 evening reminder stays.
	later := time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC)
	report, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), later)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 1, report.Created)

	seen := map[string]bool{}
	for _, task := range sched.byKind(KindPrayer) {
		key := task.Key(time.UTC)
		assert.False(t, seen[key], "duplicate live task for %s", key)
		seen[key] = true
	}
}

func TestSync_PartialFailure(t *testing.T) {
	sched := newMemScheduler()
	failing := true
	sched.failCreate = func(task Task) error {
		if failing && task.Kind == KindSurahKahf {
			return errors.New("backend full")
		}
		return nil
	}
	o := NewOrchestrator(sched)

	report, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)

	var partial *PartialScheduleFailure
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Failures, 4)
	assert.Equal(t, testDesiredCount-4, report.Created)
	assert.Empty(t, sched.byKind(KindSurahKahf))

	// Retried on the next run. Only an older now is superseded, so the
	// same now runs again.
	failing = false
	report, err = o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created)
	assert.Len(t, sched.byKind(KindSurahKahf), 4)
}

func TestSync_OlderCallIsSuperseded(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)

	later := testNow.Add(3 * time.Hour)
	want, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), later)
	require.NoError(t, err)
	lists := sched.lists

	got, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, lists, sched.lists, "superseded call must not touch the backend")
}

func TestSync_ConcurrentCallsAreSerialized(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Sync(context.Background(), fixedProvider(nil), DefaultSettings(), testNow)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, testDesiredCount, sched.creates)
	assert.Len(t, sched.ids(), testDesiredCount)
}

func TestSync_ProviderFailureMutatesNothing(t *testing.T) {
	sched := newMemScheduler()
	o := NewOrchestrator(sched)
	boom := WindowProviderFunc(func(ctx context.Context, date time.Time) (prayer.Window, error) {
		return prayer.Window{}, prayer.ErrSolverFailure
	})

	_, err := o.Sync(context.Background(), boom, DefaultSettings(), testNow)
	require.ErrorIs(t, err, prayer.ErrSolverFailure)
	assert.Zero(t, sched.creates)
	assert.Zero(t, sched.cancels)
}

func TestSync_TomorrowComputedOnce(t *testing.T) {
	calls := 0
	_, err := Desired(context.Background(), fixedProvider(&calls), DefaultSettings(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// ---------------------------------------------------------------------------
// Reconcile
// ---------------------------------------------------------------------------

func TestReconcile(t *testing.T) {
	settings := DefaultSettings()
	at := testNow.Add(time.Hour)

	keep := newPrayerTask(prayer.Asr, at, "default")
	create := newPrayerTask(prayer.Maghrib, at.Add(time.Hour), "default")
	moved := newPrayerTask(prayer.Isha, at.Add(2*time.Hour), "default")
	old := newPrayerTask(prayer.Isha, at.Add(2*time.Hour-time.Minute), "default")
	past := newReminderTask(KindAdhkarMorning, testNow.Add(-time.Hour), "default")

	plan := Reconcile(
		[]Task{keep, old, past, keep},
		[]Task{keep, create, moved},
		settings, testNow,
	)

	ids := func(ts []Task) []string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = t.ID
		}
		return out
	}
	sortIDs := cmpopts.SortSlices(func(a, b string) bool { return a < b })

	if diff := cmp.Diff([]string{keep.ID}, ids(plan.Keep), sortIDs); diff != "" {
		t.Errorf("keep mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{old.ID, past.ID, keep.ID}, ids(plan.Cancel), sortIDs); diff != "" {
		t.Errorf("cancel mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{create.ID, moved.ID}, ids(plan.Create), sortIDs); diff != "" {
		t.Errorf("create mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

func TestTaskID_Deterministic(t *testing.T) {
	a := TaskID(KindPrayer, prayer.Fajr, testNow)
	b := TaskID(KindPrayer, prayer.Fajr, testNow.In(time.FixedZone("X", 3600)))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, TaskID(KindPrayer, prayer.Fajr, testNow.Add(time.Minute)))
	assert.NotEqual(t, a, TaskID(KindPrayer, prayer.Isha, testNow))
}

func TestTaskDeepLinks(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want map[string]string
	}{
		{
			"prayer",
			newPrayerTask(prayer.Maghrib, testNow, "adhan"),
			map[string]string{"kind": "prayer", "name": "Maghrib", "route": "/prayer-times"},
		},
		{
			"morning",
			newReminderTask(KindAdhkarMorning, testNow, ""),
			map[string]string{"kind": "adhkar", "category": "morning", "route": "/adhkar?category=morning"},
		},
		{
			"evening",
			newReminderTask(KindAdhkarEvening, testNow, ""),
			map[string]string{"kind": "adhkar", "category": "evening", "route": "/adhkar?category=evening"},
		},
		{
			"kahf",
			newReminderTask(KindSurahKahf, testNow, ""),
			map[string]string{"kind": "surah_kahf", "route": "/quran/18"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.task.Data); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	bad := DefaultSettings()
	bad.AdhkarMorning.TimeOfDay = "25:00"
	assert.Error(t, bad.Validate())

	bad = DefaultSettings()
	bad.Prayers = map[string]bool{prayer.Sunrise: true}
	assert.Error(t, bad.Validate())

	// Disabled reminders are not parsed.
	off := DefaultSettings()
	off.SurahKahf = Reminder{Enabled: false, TimeOfDay: "bogus"}
	assert.NoError(t, off.Validate())
}
