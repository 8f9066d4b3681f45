package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// ErrPermissionDenied means notifications are not permitted. Sync made no
// changes; the caller may ask again later.
var ErrPermissionDenied = errors.New("notification permission denied")

// Scheduler is the notification backend.
type Scheduler interface {
	Permitted(ctx context.Context) (bool, error)
	List(ctx context.Context) ([]Task, error)
	Create(ctx context.Context, task Task) error
	Cancel(ctx context.Context, id string) error
}

// WindowProvider returns the prayer window for a civil date.
type WindowProvider interface {
	Window(ctx context.Context, date time.Time) (prayer.Window, error)
}

// WindowProviderFunc adapts a function to WindowProvider.
type WindowProviderFunc func(ctx context.Context, date time.Time) (prayer.Window, error)

// Window implements WindowProvider.
func (f WindowProviderFunc) Window(ctx context.Context, date time.Time) (prayer.Window, error) {
	return f(ctx, date)
}

// CalculatorProvider serves windows from a Calculator for a fixed point and settings.
func CalculatorProvider(calc *prayer.Calculator, point geo.GeoPoint, settings prayer.Settings) WindowProvider {
	return WindowProviderFunc(func(ctx context.Context, date time.Time) (prayer.Window, error) {
		return calc.Compute(ctx, point, date, settings)
	})
}

// IDStore persists the IDs of scheduled tasks after each run.
type IDStore interface {
	SaveScheduledIDs(ctx context.Context, ids []string) error
}

// Recorder observes finished runs.
type Recorder interface {
	ObserveSync(created, cancelled, kept, failed int, elapsed time.Duration, err error)
}

// Report summarises a Sync.
type Report struct {
	Created   int `json:"created"`
	Cancelled int `json:"cancelled"`
	Kept      int `json:"kept"`
}

// TaskFailure is one backend operation that did not succeed.
type TaskFailure struct {
	Op   string
	Task Task
	Err  error
}

// PartialScheduleFailure lists the operations that failed during a Sync.
// Everything else was applied; the failures are retried on the next Sync.
type PartialScheduleFailure struct {
	Failures []TaskFailure
}

func (e *PartialScheduleFailure) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("%s %s %s: %v", f.Op, f.Task.Kind, f.Task.ID, f.Err))
	}
	return fmt.Sprintf("%d notification operations failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.Is.
func (e *PartialScheduleFailure) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Plan is the outcome of reconciling current against desired tasks.
type Plan struct {
	Cancel []Task
	Create []Task
	Keep   []Task
}

type runResult struct {
	now    time.Time
	report Report
	err    error
}

// Orchestrator serializes Sync calls against one Scheduler.
type Orchestrator struct {
	scheduler Scheduler
	ids       IDStore
	recorder  Recorder

	mu   sync.Mutex
	last *runResult
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIDStore persists scheduled IDs after each run.
func WithIDStore(s IDStore) Option {
	return func(o *Orchestrator) { o.ids = s }
}

// WithRecorder reports run outcomes, e.g. to metrics.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator returns an orchestrator driving scheduler.
func NewOrchestrator(scheduler Scheduler, opts ...Option) *Orchestrator {
	o := &Orchestrator{scheduler: scheduler}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sync makes the scheduled set match the desired set for now.
//
// Calls are serialized. A call whose now is older than that of the last
// completed run is superseded by it and returns that run's result without
// touching the backend.
//
// A *PartialScheduleFailure error comes with a valid Report.
func (o *Orchestrator) Sync(ctx context.Context, provider WindowProvider, settings Settings, now time.Time) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.last != nil && now.Before(o.last.now) {
		log.Debug().
			Time("now", now).
			Time("last", o.last.now).
			Msg("[schedule] superseded by newer sync")
		return o.last.report, o.last.err
	}

	start := time.Now()
	report, failed, err := o.sync(ctx, provider, settings, now)
	if o.recorder != nil {
		o.recorder.ObserveSync(report.Created, report.Cancelled, report.Kept, failed, time.Since(start), err)
	}

	if err != nil && !isPartial(err) {
		log.Error().Err(err).Msg("[schedule] sync failed")
		return report, err
	}

	o.last = &runResult{now: now, report: report, err: err}

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("created", report.Created).
		Int("cancelled", report.Cancelled).
		Int("kept", report.Kept).
		Msg("[schedule] sync complete")

	return report, err
}

func isPartial(err error) bool {
	var p *PartialScheduleFailure
	return errors.As(err, &p)
}

func (o *Orchestrator) sync(ctx context.Context, provider WindowProvider, settings Settings, now time.Time) (Report, int, error) {
	ok, err := o.scheduler.Permitted(ctx)
	if err != nil {
		return Report{}, 0, fmt.Errorf("failed to check notification permission: %w", err)
	}
	if !ok {
		return Report{}, 0, ErrPermissionDenied
	}

	if err := settings.Validate(); err != nil {
		return Report{}, 0, err
	}

	desired, err := Desired(ctx, provider, settings, now)
	if err != nil {
		return Report{}, 0, err
	}

	current, err := o.scheduler.List(ctx)
	if err != nil {
		return Report{}, 0, fmt.Errorf("failed to list scheduled notifications: %w", err)
	}

	plan := Reconcile(current, desired, settings, now)
	report := Report{Kept: len(plan.Keep)}
	var failures []TaskFailure
	live := make([]string, 0, len(plan.Keep)+len(plan.Create))
	for _, t := range plan.Keep {
		live = append(live, t.ID)
	}

	// Stale tasks go first so a slot never holds two live tasks.
	for _, t := range plan.Cancel {
		if err := ctx.Err(); err != nil {
			return report, len(failures), err
		}
		if err := o.scheduler.Cancel(ctx, t.ID); err != nil {
			failures = append(failures, TaskFailure{Op: "cancel", Task: t, Err: err})
			live = append(live, t.ID)
			continue
		}
		report.Cancelled++
	}

	for _, t := range plan.Create {
		if err := ctx.Err(); err != nil {
			return report, len(failures), err
		}
		if err := o.scheduler.Create(ctx, t); err != nil {
			failures = append(failures, TaskFailure{Op: "create", Task: t, Err: err})
			continue
		}
		report.Created++
		live = append(live, t.ID)
	}

	if o.ids != nil {
		sort.Strings(live)
		if err := o.ids.SaveScheduledIDs(ctx, live); err != nil {
			log.Warn().Err(err).Msg("[schedule] failed to persist scheduled ids")
		}
	}

	if len(failures) > 0 {
		return report, len(failures), &PartialScheduleFailure{Failures: failures}
	}
	return report, 0, nil
}

// Desired computes every task that should be live at now.
//
// Each enabled prayer gets one task at today's instant, or tomorrow's if
// today's has passed. Adhkar reminders cover the daily horizon and the
// Surah Al-Kahf reminder the next Fridays.
func Desired(ctx context.Context, provider WindowProvider, settings Settings, now time.Time) ([]Task, error) {
	loc := settings.location()
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var desired []Task

	if settings.Enabled(KindPrayer) {
		w, err := provider.Window(ctx, today)
		if err != nil {
			return nil, fmt.Errorf("failed to compute today's prayer times: %w", err)
		}

		var tomorrow *prayer.Window
		for _, name := range prayer.DefaultPrayerNames {
			if !settings.Prayers[name] {
				continue
			}
			at, _ := w.Time(name)
			if !at.After(now) {
				if tomorrow == nil {
					tw, err := provider.Window(ctx, today.AddDate(0, 0, 1))
					if err != nil {
						return nil, fmt.Errorf("failed to compute tomorrow's prayer times: %w", err)
					}
					tomorrow = &tw
				}
				at, _ = tomorrow.Time(name)
			}
			desired = append(desired, newPrayerTask(name, at, settings.Sound))
		}
	}

	for _, kind := range Kinds[1:] {
		if !settings.Enabled(kind) {
			continue
		}
		h, horizon, err := settings.horizonFor(kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		for _, at := range h.Occurrences(now, horizon) {
			desired = append(desired, newReminderTask(kind, at, settings.Sound))
		}
	}

	return desired, nil
}

// Reconcile splits current tasks into keep and cancel and lists the
// desired tasks that still need creating. A current task is cancelled
// when its kind is disabled, it is due at or before now, it is not
// desired, or its (kind, prayer, local day) slot is already held by a
// kept task.
func Reconcile(current, desired []Task, settings Settings, now time.Time) Plan {
	want := make(map[string]Task, len(desired))
	for _, t := range desired {
		want[t.ID] = t
	}

	var plan Plan
	loc := settings.location()
	kept := make(map[string]bool, len(current))
	slots := make(map[string]bool, len(current))
	for _, t := range current {
		_, isDesired := want[t.ID]
		key := t.Key(loc)
		switch {
		case !settings.Enabled(t.Kind),
			!t.FireAt.After(now),
			!isDesired,
			slots[key]:
			plan.Cancel = append(plan.Cancel, t)
		default:
			kept[t.ID] = true
			slots[key] = true
			plan.Keep = append(plan.Keep, t)
		}
	}

	for _, t := range desired {
		if !kept[t.ID] {
			plan.Create = append(plan.Create, t)
		}
	}
	return plan
}
