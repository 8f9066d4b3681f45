package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/schedule"
)

// DueSource lists due tasks and removes delivered ones.
type DueSource interface {
	Due(ctx context.Context, now time.Time) ([]schedule.Task, error)
	Cancel(ctx context.Context, id string) error
}

// DeliveryRecorder observes deliveries.
type DeliveryRecorder interface {
	ObserveDelivery(kind string, err error)
}

// MaxLateness drops tasks that are too old to be worth showing.
const MaxLateness = time.Hour

// Dispatcher delivers due tasks to a sink.
type Dispatcher struct {
	Source   DueSource
	Sink     Sink
	Interval time.Duration
	Recorder DeliveryRecorder
	Now      func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchDue delivers every due task once. Delivered and expired tasks
// are removed; failed ones stay for the next pass. It returns the number
// delivered.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.Source.Due(ctx, now)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, t := range due {
		if now.Sub(t.FireAt) > MaxLateness {
			log.Debug().Str("id", t.ID).Time("fire_at", t.FireAt).Msg("[notify] dropping expired notification")
			if err := d.Source.Cancel(ctx, t.ID); err != nil {
				return delivered, err
			}
			continue
		}

		err := d.Sink.Deliver(ctx, t)
		if d.Recorder != nil {
			d.Recorder.ObserveDelivery(string(t.Kind), err)
		}
		if err != nil {
			log.Warn().Err(err).Str("id", t.ID).Msg("[notify] delivery failed")
			continue
		}
		if err := d.Source.Cancel(ctx, t.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// Run dispatches every Interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("[notify] dispatch failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
