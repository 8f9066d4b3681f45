package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/hijri"
	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

const dateLayout = "2006-01-02"

type locationResponse struct {
	City      string          `json:"city,omitempty"`
	Country   string          `json:"country,omitempty"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Timezone  string          `json:"timezone"`
	Source    location.Source `json:"source"`
	Stale     bool            `json:"stale"`
}

type timingsResponse struct {
	Date     string           `json:"date"`
	Location locationResponse `json:"location"`
	Settings string           `json:"settings"`
	Hijri    hijri.Date       `json:"hijri"`
	Times    prayer.Times     `json:"times"`
	Qibla    float64          `json:"qibla_bearing"`
}

type prayerResponse struct {
	Name             string    `json:"name"`
	Time             time.Time `json:"time"`
	Tomorrow         bool      `json:"tomorrow,omitempty"`
	RemainingSeconds int64     `json:"remaining_seconds,omitempty"`
	Remaining        string    `json:"remaining,omitempty"`
}

type forbiddenResponse struct {
	Date    string                   `json:"date"`
	Windows []prayer.ForbiddenWindow `json:"windows"`
	Active  bool                     `json:"active"`
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// window resolves the location and computes the window for the ?date=
// query parameter, defaulting to today in the location's timezone.
func (s *Server) window(c *gin.Context) (prayer.Window, location.Resolved, bool) {
	ctx := c.Request.Context()
	loc := s.opts.Location(ctx)
	tz := loc.TimeZone()

	day := s.opts.Now().In(tz)
	if raw := c.Query("date"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, tz)
		if err != nil {
			abortError(c, http.StatusBadRequest, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw))
			return prayer.Window{}, loc, false
		}
		day = d
	}

	w, err := s.opts.Calculator.Compute(ctx, loc.Point(), day, s.opts.Settings)
	if err != nil {
		s.computeError(c, err)
		return prayer.Window{}, loc, false
	}
	return w.In(tz), loc, true
}

func (s *Server) computeError(c *gin.Context, err error) {
	log.Warn().Err(err).Msg("[server] computation failed")
	switch {
	case errors.Is(err, prayer.ErrSolverFailure):
		abortError(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, geo.ErrInvalidCoordinates):
		abortError(c, http.StatusBadRequest, err)
	default:
		abortError(c, http.StatusInternalServerError, err)
	}
}

func toLocationResponse(r location.Resolved) locationResponse {
	return locationResponse{
		City:      r.City,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.TimeZone().String(),
		Source:    r.Source,
		Stale:     r.Stale,
	}
}

func (s *Server) handlePrayerTimes(c *gin.Context) {
	w, loc, ok := s.window(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, timingsResponse{
		Date:     w.Date.Format(dateLayout),
		Location: toLocationResponse(loc),
		Settings: s.opts.Settings.String(),
		Hijri:    hijri.ToHijri(w.Date),
		Times:    w.Times,
		Qibla:    w.QiblaBearing,
	})
}

func (s *Server) handleNext(c *gin.Context) {
	w, loc, ok := s.window(c)
	if !ok {
		return
	}
	now := s.opts.Now()
	next, err := s.opts.Calculator.NextPrayer(c.Request.Context(), w, loc.Point(), s.opts.Settings, now)
	if err != nil {
		s.computeError(c, err)
		return
	}
	d := prayer.TimeRemaining(next.Prayer, now)
	c.JSON(http.StatusOK, prayerResponse{
		Name:             next.Name,
		Time:             next.Time.In(loc.TimeZone()),
		Tomorrow:         next.Tomorrow,
		RemainingSeconds: int64(d / time.Second),
		Remaining:        prayer.FormatRemaining(d),
	})
}

func (s *Server) handleCurrent(c *gin.Context) {
	w, loc, ok := s.window(c)
	if !ok {
		return
	}
	now := s.opts.Now()
	name := prayer.CurrentPrayer(w, now)
	at, _ := w.Time(name)
	if at.After(now) {
		// Before Fajr: the current prayer is the previous night's Isha.
		prev, err := s.opts.Calculator.Compute(c.Request.Context(), loc.Point(), w.Date.AddDate(0, 0, -1), s.opts.Settings)
		if err != nil {
			s.computeError(c, err)
			return
		}
		at = prev.Isha.In(loc.TimeZone())
	}
	c.JSON(http.StatusOK, prayerResponse{Name: name, Time: at})
}

func (s *Server) handleQibla(c *gin.Context) {
	loc := s.opts.Location(c.Request.Context())
	p := loc.Point()
	bearing, err := geo.BearingToMecca(p)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	dist, err := geo.DistanceToMecca(p)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bearing":     bearing,
		"distance_km": dist,
		"location":    toLocationResponse(loc),
	})
}

func (s *Server) handleHijri(c *gin.Context) {
	tz := s.opts.Location(c.Request.Context()).TimeZone()
	day := s.opts.Now().In(tz)
	if raw := c.Query("date"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, tz)
		if err != nil {
			abortError(c, http.StatusBadRequest, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw))
			return
		}
		day = d
	}
	c.JSON(http.StatusOK, gin.H{
		"gregorian": day.Format(dateLayout),
		"hijri":     hijri.ToHijri(day),
		"formatted": hijri.ToHijri(day).Format(),
	})
}

func (s *Server) handleForbidden(c *gin.Context) {
	w, _, ok := s.window(c)
	if !ok {
		return
	}
	windows := prayer.ForbiddenWindows(w)
	c.JSON(http.StatusOK, forbiddenResponse{
		Date:    w.Date.Format(dateLayout),
		Windows: windows[:],
		Active:  prayer.InForbiddenWindow(w, s.opts.Now()),
	})
}

func (s *Server) handleReminders(c *gin.Context) {
	ids, err := s.opts.Reminders.ScheduledIDs(c.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("[server] failed to read scheduled reminders")
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ids), "ids": ids})
}
