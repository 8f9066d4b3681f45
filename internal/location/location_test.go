package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/store"
)

var (
	lagos  = geo.Location{Latitude: 6.5244, Longitude: 3.3792, City: "Lagos", Country: "Nigeria", Timezone: "Africa/Lagos"}
	london = geo.Location{Latitude: 51.5074, Longitude: -0.1278, City: "London", Country: "United Kingdom", Timezone: "Europe/London"}
)

func newState(t *testing.T) *store.State {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store.NewState(fs)
}

func detectReturning(loc *geo.Location, err error) Detector {
	return func(ctx context.Context) (*geo.Location, error) {
		return loc, err
	}
}

func TestResolve_ConfigWins(t *testing.T) {
	called := false
	r := &Resolver{
		State:  newState(t),
		Detect: func(ctx context.Context) (*geo.Location, error) { called = true; return &lagos, nil },
	}

	p := geo.GeoPoint{Latitude: 21.3891, Longitude: 39.8579}
	res := r.Resolve(context.Background(), Request{Point: &p, Timezone: "Asia/Riyadh"})

	assert.Equal(t, SourceConfig, res.Source)
	assert.False(t, res.Stale)
	assert.Equal(t, p, res.Point())
	assert.Equal(t, "Asia/Riyadh", res.Timezone)
	assert.False(t, called)
}

func TestResolve_InvalidConfigFallsThrough(t *testing.T) {
	r := &Resolver{State: newState(t), Detect: detectReturning(&lagos, nil)}
	bad := geo.GeoPoint{Latitude: 95, Longitude: 0}

	res := r.Resolve(context.Background(), Request{Point: &bad})
	assert.Equal(t, SourceDetected, res.Source)
	assert.Equal(t, "Lagos", res.City)
}

func TestResolve_Geocoded(t *testing.T) {
	r := &Resolver{
		State: newState(t),
		Geocode: func(ctx context.Context, city, country string) (*geo.Location, error) {
			assert.Equal(t, "London", city)
			assert.Equal(t, "UK", country)
			return &london, nil
		},
	}

	res := r.Resolve(context.Background(), Request{City: "London", Country: "UK"})
	assert.Equal(t, SourceGeocoded, res.Source)
	assert.InDelta(t, 51.5074, res.Latitude, 1e-9)
}

func TestResolve_DetectionCachedAndRemembered(t *testing.T) {
	st := newState(t)
	calls := 0
	r := &Resolver{
		State:  st,
		Detect: func(ctx context.Context) (*geo.Location, error) { calls++; return &lagos, nil },
	}

	first := r.Resolve(context.Background(), Request{})
	second := r.Resolve(context.Background(), Request{})

	assert.Equal(t, SourceDetected, first.Source)
	assert.Equal(t, SourceCached, second.Source)
	assert.Equal(t, 1, calls)

	lk, err := st.LastKnownLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lagos", lk.City)
}

func TestResolve_DeclinedUsesLastKnownMarkedStale(t *testing.T) {
	st := newState(t)
	seen := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveLastKnownLocation(context.Background(), london, seen))

	r := &Resolver{State: st, Detect: detectReturning(nil, ErrPermissionDenied)}
	res := r.Resolve(context.Background(), Request{})

	assert.Equal(t, SourceLastKnown, res.Source)
	assert.True(t, res.Stale)
	assert.Equal(t, "London", res.City)
	assert.True(t, res.SeenAt.Equal(seen))
}

func TestResolve_NoDetectSkipsDetector(t *testing.T) {
	called := false
	r := &Resolver{
		State:  newState(t),
		Detect: func(ctx context.Context) (*geo.Location, error) { called = true; return &lagos, nil },
	}

	res := r.Resolve(context.Background(), Request{NoDetect: true})
	assert.False(t, called)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolve_DefaultWhenEverythingFails(t *testing.T) {
	r := &Resolver{Detect: detectReturning(nil, errors.New("offline"))}
	res := r.Resolve(context.Background(), Request{})

	assert.Equal(t, SourceDefault, res.Source)
	assert.True(t, res.Stale)
	assert.Equal(t, "Mecca", res.City)
	assert.Equal(t, geo.Kaaba, res.Point())
}

func TestResolve_DetectionTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	r := &Resolver{
		Timeout: 50 * time.Millisecond,
		Detect: func(ctx context.Context) (*geo.Location, error) {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		},
	}

	start := time.Now()
	res := r.Resolve(context.Background(), Request{})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolve_RejectsInvalidDetection(t *testing.T) {
	bad := geo.Location{Latitude: 200, Longitude: 0}
	r := &Resolver{Detect: detectReturning(&bad, nil)}

	res := r.Resolve(context.Background(), Request{})
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolvedTimeZone(t *testing.T) {
	assert.Equal(t, "Africa/Lagos", Resolved{Location: lagos}.TimeZone().String())
	assert.Equal(t, time.Local, Resolved{}.TimeZone())
	assert.Equal(t, time.Local, Resolved{Location: geo.Location{Timezone: "Nowhere/Special"}}.TimeZone())
}
