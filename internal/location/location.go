// Package location decides where the user is. It never fails: when every
// source is unavailable it falls back to a default location and says so.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/store"
)

// ErrPermissionDenied is returned by a Detector when the user declined
// location access.
var ErrPermissionDenied = errors.New("location permission denied")

// DefaultTimeout bounds detection and geocoding.
const DefaultTimeout = 3 * time.Second

// Source names where a resolved location came from.
type Source string

const (
	SourceConfig    Source = "config"
	SourceGeocoded  Source = "geocoded"
	SourceDetected  Source = "detected"
	SourceCached    Source = "cached"
	SourceLastKnown Source = "last_known"
	SourceDefault   Source = "default"
)

// Default is used when nothing else is available.
var Default = geo.Location{
	Latitude:  geo.Kaaba.Latitude,
	Longitude: geo.Kaaba.Longitude,
	City:      "Mecca",
	Country:   "Saudi Arabia",
	Timezone:  "Asia/Riyadh",
}

// Request carries user-configured location hints.
type Request struct {
	Point   *geo.GeoPoint
	City    string
	Country string
	// Timezone overrides whatever the source reports.
	Timezone string
	// NoDetect skips IP detection, as if the user declined.
	NoDetect bool
}

// Resolved is a usable location plus its provenance.
type Resolved struct {
	geo.Location
	Source Source    `json:"source"`
	Stale  bool      `json:"stale"`
	SeenAt time.Time `json:"seen_at,omitempty"`
}

// Point returns the resolved coordinates.
func (r Resolved) Point() geo.GeoPoint {
	return geo.GeoPoint{Latitude: r.Latitude, Longitude: r.Longitude}
}

// TimeZone loads the location's timezone, or time.Local if it is unknown.
func (r Resolved) TimeZone() *time.Location {
	if r.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Detector finds the current location, e.g. geo.DetectLocation.
type Detector func(ctx context.Context) (*geo.Location, error)

// Geocoder turns a city and country into coordinates.
type Geocoder func(ctx context.Context, city, country string) (*geo.Location, error)

// Resolver applies the fallback chain: configured coordinates, geocoded
// city, cached detection, live detection, last known, default.
type Resolver struct {
	State   *store.State
	Detect  Detector
	Geocode Geocoder
	Timeout time.Duration
	Now     func() time.Time
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve always returns a usable location.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolved {
	res := r.resolve(ctx, req)
	if req.Timezone != "" {
		res.Timezone = req.Timezone
	}

	if res.Source != SourceDefault && res.Source != SourceLastKnown && r.State != nil {
		if err := r.State.SaveLastKnownLocation(ctx, res.Location, r.now()); err != nil {
			log.Warn().Err(err).Msg("[location] failed to save last known location")
		}
	}

	log.Debug().
		Str("source", string(res.Source)).
		Bool("stale", res.Stale).
		Str("point", res.Point().String()).
		Msg("[location] resolved")
	return res
}

func (r *Resolver) resolve(ctx context.Context, req Request) Resolved {
	if req.Point != nil {
		err := req.Point.Validate()
		if err == nil {
			return Resolved{
				Location: geo.Location{
					Latitude:  req.Point.Latitude,
					Longitude: req.Point.Longitude,
					City:      req.City,
					Country:   req.Country,
				},
				Source: SourceConfig,
				SeenAt: r.now(),
			}
		}
		log.Warn().Err(err).Msg("[location] ignoring configured coordinates")
	}

	if req.City != "" && r.Geocode != nil {
		loc, err := r.bounded(ctx, func(ctx context.Context) (*geo.Location, error) {
			return r.Geocode(ctx, req.City, req.Country)
		})
		if err == nil {
			return Resolved{Location: *loc, Source: SourceGeocoded, SeenAt: r.now()}
		}
		log.Warn().Err(err).Str("city", req.City).Msg("[location] geocoding failed")
	}

	if !req.NoDetect {
		if r.State != nil {
			if loc, err := r.State.DetectedLocation(ctx); err == nil {
				return Resolved{Location: *loc, Source: SourceCached, SeenAt: r.now()}
			}
		}
		if r.Detect != nil {
			loc, err := r.bounded(ctx, r.Detect)
			if err == nil {
				if r.State != nil {
					if err := r.State.SaveDetectedLocation(ctx, *loc); err != nil {
						log.Warn().Err(err).Msg("[location] failed to cache detection")
					}
				}
				return Resolved{Location: *loc, Source: SourceDetected, SeenAt: r.now()}
			}
			log.Warn().Err(err).Msg("[location] detection failed")
		}
	}

	if r.State != nil {
		if lk, err := r.State.LastKnownLocation(ctx); err == nil {
			return Resolved{Location: lk.Location, Source: SourceLastKnown, Stale: true, SeenAt: lk.Timestamp}
		}
	}

	return Resolved{Location: Default, Source: SourceDefault, Stale: true}
}

// bounded runs fn with the resolver timeout and validates its result.
func (r *Resolver) bounded(ctx context.Context, fn func(context.Context) (*geo.Location, error)) (*geo.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	type result struct {
		loc *geo.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		loc, err := fn(ctx)
		ch <- result{loc, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.loc == nil {
			return nil, fmt.Errorf("no location returned")
		}
		if _, err := res.loc.Point(); err != nil {
			return nil, err
		}
		return res.loc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
