// Package server exposes prayer windows, qibla, Hijri and forbidden-window
// queries over HTTP for dashboards and home-automation clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/location"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
)

const shutdownTimeout = 5 * time.Second

// LocationFunc returns the location requests are answered for.
type LocationFunc func(ctx context.Context) location.Resolved

// RequestRecorder receives one observation per handled request.
type RequestRecorder interface {
	ObserveRequest(route string, status int)
}

// ReminderIDs lists the reminder IDs saved by the last schedule sync.
type ReminderIDs interface {
	ScheduledIDs(ctx context.Context) ([]string, error)
}

// Options configures a Server.
type Options struct {
	Calculator *prayer.Calculator
	Location   LocationFunc
	Settings   prayer.Settings

	// Metrics, when set, is served at /metrics.
	Metrics  http.Handler
	Recorder RequestRecorder

	// Reminders, when set, is served at /api/reminders.
	Reminders ReminderIDs

	// AllowOrigins restricts CORS; empty allows any origin.
	AllowOrigins []string

	Now func() time.Time
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	engine *gin.Engine
}

// New builds the router. Calculator and Location are required.
func New(opts Options) (*Server, error) {
	if opts.Calculator == nil {
		return nil, errors.New("server: calculator is required")
	}
	if opts.Location == nil {
		return nil, errors.New("server: location is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{opts: opts, engine: r}
	r.Use(s.observe)
	r.Use(cors.New(s.corsConfig()))

	s.registerRoutes(r)
	return s, nil
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Accept", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.opts.AllowOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = s.opts.AllowOrigins
	}
	return cfg
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	api := r.Group("/api")
	api.GET("/prayer-times", s.handlePrayerTimes)
	api.GET("/next", s.handleNext)
	api.GET("/current", s.handleCurrent)
	api.GET("/qibla", s.handleQibla)
	api.GET("/hijri", s.handleHijri)
	api.GET("/forbidden", s.handleForbidden)
	if s.opts.Reminders != nil {
		api.GET("/reminders", s.handleReminders)
	}
}

// observe logs each request and feeds the request recorder.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveRequest(route, status)
	}
	log.Debug().
		Str("method", c.Request.Method).
		Str("route", route).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("[server] request")
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("[server] listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("[server] stopped")
	return nil
}
