package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

const (
	keyLastKnown    = "location/last-known"
	keyDetected     = "location/detected"
	keyScheduledIDs = "notifications/scheduled-ids"
	keyWindowPrefix = "window/"

	// DetectedTTL bounds how long an IP lookup is reused.
	DetectedTTL = 24 * time.Hour
	// WindowTTL keeps computed windows for a couple of days.
	WindowTTL = 48 * time.Hour
)

// LastKnown is the most recent successfully resolved location.
type LastKnown struct {
	geo.Location
	Timestamp time.Time `json:"timestamp"`
}

// State exposes typed accessors over a Store.
type State struct {
	s Store
}

// NewState wraps s.
func NewState(s Store) *State {
	return &State{s: s}
}

func (st *State) getJSON(ctx context.Context, key string, v any) error {
	data, err := st.s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (st *State) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return st.s.Set(ctx, key, data, ttl)
}

// LastKnownLocation returns the saved location, or ErrNotFound.
func (st *State) LastKnownLocation(ctx context.Context) (*LastKnown, error) {
	var lk LastKnown
	if err := st.getJSON(ctx, keyLastKnown, &lk); err != nil {
		return nil, err
	}
	return &lk, nil
}

// SaveLastKnownLocation records loc as seen at ts.
func (st *State) SaveLastKnownLocation(ctx context.Context, loc geo.Location, ts time.Time) error {
	return st.setJSON(ctx, keyLastKnown, LastKnown{Location: loc, Timestamp: ts.UTC()}, 0)
}

// DetectedLocation returns a cached IP lookup younger than DetectedTTL.
func (st *State) DetectedLocation(ctx context.Context) (*geo.Location, error) {
	var loc geo.Location
	if err := st.getJSON(ctx, keyDetected, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// SaveDetectedLocation caches an IP lookup.
func (st *State) SaveDetectedLocation(ctx context.Context, loc geo.Location) error {
	return st.setJSON(ctx, keyDetected, loc, DetectedTTL)
}

// ScheduledIDs returns the IDs saved by the last sync. A missing entry is
// an empty list.
func (st *State) ScheduledIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := st.getJSON(ctx, keyScheduledIDs, &ids)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ids, err
}

// SaveScheduledIDs replaces the saved ID set.
func (st *State) SaveScheduledIDs(ctx context.Context, ids []string) error {
	return st.setJSON(ctx, keyScheduledIDs, ids, 0)
}

// Window returns a cached window for key (see prayer.CacheKey).
func (st *State) Window(ctx context.Context, key string) (*prayer.Window, error) {
	var w prayer.Window
	if err := st.getJSON(ctx, keyWindowPrefix+key, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWindow caches w under key for WindowTTL.
func (st *State) SaveWindow(ctx context.Context, key string, w prayer.Window) error {
	return st.setJSON(ctx, keyWindowPrefix+key, w, WindowTTL)
}

// CachingSolver serves windows from the state store before falling back
// to the wrapped solver, so repeated CLI runs avoid recomputation or
// network round trips. Name identifies the wrapped solver in cache keys;
// solvers that disagree must use different names.
type CachingSolver struct {
	State  *State
	Solver prayer.Solver
	Name   string
}

func (c CachingSolver) key(point geo.GeoPoint, date time.Time, settings prayer.Settings) string {
	return c.Name + "|" + prayer.CacheKey(point, date, settings)
}

// Solve implements prayer.Solver.
func (c CachingSolver) Solve(ctx context.Context, point geo.GeoPoint, date time.Time, settings prayer.Settings) (prayer.Times, error) {
	key := c.key(point, date, settings)
	if w, err := c.State.Window(ctx, key); err == nil {
		return w.Times, nil
	}

	times, err := c.Solver.Solve(ctx, point, date, settings)
	if err != nil {
		return prayer.Times{}, err
	}
	// Cache write failures are not fatal.
	_ = c.State.SaveWindow(ctx, key, prayer.Window{Date: date, Times: times})
	return times, nil
}
