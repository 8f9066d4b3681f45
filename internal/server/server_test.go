package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var testLocation = location.Resolved{
	Location: geo.Location{
		Latitude:  51.5074,
		Longitude: -0.1278,
		City:      "London",
		Country:   "UK",
		Timezone:  "UTC",
	},
	Source: location.SourceConfig,
}

// fixedSolver returns the same clock times every day.
var fixedSolver = prayer.SolverFunc(func(_ context.Context, _ geo.GeoPoint, day time.Time, _ prayer.Settings) (prayer.Times, error) {
	return prayer.Times{
		Fajr:    day.Add(5 * time.Hour),
		Sunrise: day.Add(6*time.Hour + 30*time.Minute),
		Dhuhr:   day.Add(12 * time.Hour),
		Asr:     day.Add(15*time.Hour + 30*time.Minute),
		Maghrib: day.Add(18 * time.Hour),
		Isha:    day.Add(19*time.Hour + 30*time.Minute),
	}, nil
})

type routeRecorder struct {
	routes map[string]int
}

func (r *routeRecorder) ObserveRequest(route string, status int) {
	r.routes[route] = status
}

func newTestServer(t *testing.T, now time.Time, solver prayer.Solver) (*Server, *routeRecorder) {
	t.Helper()
	rec := &routeRecorder{routes: map[string]int{}}
	s, err := New(Options{
		Calculator: prayer.NewCalculator(solver),
		Location:   func(context.Context) location.Resolved { return testLocation },
		Settings:   prayer.DefaultSettings(),
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		Recorder:   rec,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	return s, rec
}

func get(t *testing.T, s *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 4, hour, min, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{Location: func(context.Context) location.Resolved { return testLocation }})
	assert.Error(t, err)

	_, err = New(Options{Calculator: prayer.NewCalculator(fixedSolver)})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func TestHealthzAndMetrics(t *testing.T) {
	s, rec := newTestServer(t, at(13, 0), fixedSolver)

	w := get(t, s, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(t, s, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")

	assert.Equal(t, http.StatusOK, rec.routes["/healthz"])
	assert.Equal(t, http.StatusOK, rec.routes["/metrics"])
}

func TestPrayerTimes(t *testing.T) {
	s, _ := newTestServer(t, at(13, 0), fixedSolver)

	t.Run("today by default", func(t *testing.T) {
		var got timingsResponse
		w := get(t, s, "/api/prayer-times", &got)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, "2026-03-04", got.Date)
		assert.True(t, got.Times.Fajr.Equal(at(5, 0)))
		assert.True(t, got.Times.Isha.Equal(at(19, 30)))
		assert.Equal(t, "London", got.Location.City)
		assert.Equal(t, location.SourceConfig, got.Location.Source)
		assert.Equal(t, "MuslimWorldLeague/Shafi/MiddleOfTheNight", got.Settings)
		assert.InDelta(t, 119, got.Qibla, 1)
		assert.NotZero(t, got.Hijri.Year)
	})

	t.Run("explicit date", func(t *testing.T) {
		var got timingsResponse
		w := get(t, s, "/api/prayer-times?date=2026-12-25", &got)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2026-12-25", got.Date)
	})

	t.Run("invalid date", func(t *testing.T) {
		w := get(t, s, "/api/prayer-times?date=25/12/2026", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid date")
	})
}

func TestPrayerTimes_SolverFailure(t *testing.T) {
	failing := prayer.SolverFunc(func(context.Context, geo.GeoPoint, time.Time, prayer.Settings) (prayer.Times, error) {
		return prayer.Times{}, errors.New("sun never sets")
	})
	s, rec := newTestServer(t, at(13, 0), failing)

	w := get(t, s, "/api/prayer-times", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.routes["/api/prayer-times"])
}

func TestNext(t *testing.T) {
	tests := []struct {
		name         string
		now          time.Time
		wantName     string
		wantTime     time.Time
		wantTomorrow bool
	}{
		{"afternoon", at(13, 0), prayer.Asr, at(15, 30), false},
		{"before fajr", at(3, 0), prayer.Fajr, at(5, 0), false},
		{"after isha", at(21, 0), prayer.Fajr, at(5, 0).AddDate(0, 0, 1), true},
		{"sunrise counts", at(6, 0), prayer.Sunrise, at(6, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.now, fixedSolver)

			var got prayerResponse
			w := get(t, s, "/api/next", &got)
			require.Equal(t, http.StatusOK, w.Code)

			assert.Equal(t, tt.wantName, got.Name)
			assert.True(t, got.Time.Equal(tt.wantTime), "time = %v, want %v", got.Time, tt.wantTime)
			assert.Equal(t, tt.wantTomorrow, got.Tomorrow)
			assert.Equal(t, int64(tt.wantTime.Sub(tt.now)/time.Second), got.RemainingSeconds)
		})
	}
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		wantName string
		wantTime time.Time
	}{
		{"after dhuhr", at(13, 0), prayer.Dhuhr, at(12, 0)},
		{"exactly asr", at(15, 30), prayer.Asr, at(15, 30)},
		{"before fajr uses last night", at(3, 0), prayer.Isha, at(19, 30).AddDate(0, 0, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.now, fixedSolver)

			var got prayerResponse
			w := get(t, s, "/api/current", &got)
			require.Equal(t, http.StatusOK, w.Code)

			assert.Equal(t, tt.wantName, got.Name)
			assert.True(t, got.Time.Equal(tt.wantTime), "time = %v, want %v", got.Time, tt.wantTime)
		})
	}
}

func TestQibla(t *testing.T) {
	s, _ := newTestServer(t, at(13, 0), fixedSolver)

	var got struct {
		Bearing    float64          `json:"bearing"`
		DistanceKm float64          `json:"distance_km"`
		Location   locationResponse `json:"location"`
	}
	w := get(t, s, "/api/qibla", &got)
	require.Equal(t, http.StatusOK, w.Code)

	assert.InDelta(t, 119, got.Bearing, 1)
	assert.InDelta(t, 4790, got.DistanceKm, 50)
	assert.Equal(t, "London", got.Location.City)
}

func TestHijri(t *testing.T) {
	s, _ := newTestServer(t, at(13, 0), fixedSolver)

	var got struct {
		Gregorian string `json:"gregorian"`
		Hijri     struct {
			Day   int `json:"day"`
			Month int `json:"month"`
			Year  int `json:"year"`
		} `json:"hijri"`
		Formatted string `json:"formatted"`
	}
	w := get(t, s, "/api/hijri?date=2026-03-04", &got)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "2026-03-04", got.Gregorian)
	assert.Equal(t, 1447, got.Hijri.Year)
	assert.Equal(t, 9, got.Hijri.Month)
	assert.Contains(t, got.Formatted, "Ramadan")

	w = get(t, s, "/api/hijri?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForbidden(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		wantActive bool
	}{
		{"solar noon", at(12, 0), true},
		{"after sunrise", at(6, 40), true},
		{"before sunset", at(17, 50), true},
		{"mid afternoon", at(14, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.now, fixedSolver)

			var got forbiddenResponse
			w := get(t, s, "/api/forbidden", &got)
			require.Equal(t, http.StatusOK, w.Code)

			assert.Len(t, got.Windows, 3)
			assert.Equal(t, tt.wantActive, got.Active)
		})
	}
}

type savedIDs struct {
	ids []string
	err error
}

func (s savedIDs) ScheduledIDs(context.Context) ([]string, error) {
	return s.ids, s.err
}

func TestReminders(t *testing.T) {
	newServer := func(t *testing.T, r ReminderIDs) *Server {
		t.Helper()
		s, err := New(Options{
			Calculator: prayer.NewCalculator(fixedSolver),
			Location:   func(context.Context) location.Resolved { return testLocation },
			Reminders:  r,
		})
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name      string
		reminders ReminderIDs
		status    int
		want      string
	}{
		{"saved ids", savedIDs{ids: []string{"a", "b"}}, http.StatusOK, `{"count":2,"ids":["a","b"]}`},
		{"nothing saved", savedIDs{}, http.StatusOK, `{"count":0,"ids":[]}`},
		{"store error", savedIDs{err: errors.New("disk gone")}, http.StatusInternalServerError, `{"error":"disk gone"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, newServer(t, tt.reminders), "/api/reminders", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}

	t.Run("not configured", func(t *testing.T) {
		w := get(t, newServer(t, nil), "/api/reminders", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, at(13, 0), fixedSolver)

	req := httptest.NewRequest(http.MethodGet, "/api/next", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://dashboard.local", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnmatchedRoute(t *testing.T) {
	s, rec := newTestServer(t, at(13, 0), fixedSolver)

	w := get(t, s, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, rec.routes["unmatched"])
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, at(13, 0), fixedSolver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
