package compass

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrSensorUnavailable is terminal for a session: the UI should show the
// compass as unavailable instead of retrying.
var ErrSensorUnavailable = errors.New("compass unavailable")

// ProbeTimeout bounds the availability check in Start.
const ProbeTimeout = 3 * time.Second

// queueSize is how many samples may wait for the consumer.
const queueSize = 64

// Magnetometer is the platform sensor.
type Magnetometer interface {
	// Available reports whether a magnetometer is present.
	Available(ctx context.Context) (bool, error)
	// Subscribe starts delivering samples to handler. After unsubscribe
	// returns, handler is never called again.
	Subscribe(handler func(Sample)) (unsubscribe func(), err error)
}

// SessionState is the lifecycle of one compass session.
type SessionState int

const (
	Uninitialized SessionState = iota
	Available
	Streaming
	Stopped
	Unavailable
)

func (s SessionState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Available:
		return "available"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Session streams samples from a Magnetometer through an Estimator.
// Samples are queued and processed one at a time by a single goroutine.
type Session struct {
	est *Estimator

	mu          sync.Mutex
	state       SessionState
	unsubscribe func()
	samples     chan Sample
	done        chan struct{}
	updates     chan State
	wg          sync.WaitGroup
}

// NewSession returns a session in the Uninitialized state.
func NewSession() *Session {
	return &Session{
		est:     NewEstimator(),
		updates: make(chan State, 1),
	}
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates delivers the latest compass state after each processed sample.
// Slow readers only see the most recent value. The channel is closed by Stop.
func (s *Session) Updates() <-chan State {
	return s.updates
}

// Start probes the sensor and begins streaming. A missing sensor, a probe
// error or a probe slower than ProbeTimeout moves the session to
// Unavailable and returns ErrSensorUnavailable.
func (s *Session) Start(ctx context.Context, m Magnetometer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Uninitialized {
		return fmt.Errorf("compass session already %s", s.state)
	}

	if err := probe(ctx, m); err != nil {
		s.state = Unavailable
		close(s.updates)
		log.Warn().Err(err).Msg("[compass] sensor unavailable")
		return err
	}
	s.state = Available

	s.samples = make(chan Sample, queueSize)
	s.done = make(chan struct{})
	samples, done := s.samples, s.done

	unsubscribe, err := m.Subscribe(func(sample Sample) {
		select {
		case samples <- sample:
		case <-done:
		}
	})
	if err != nil {
		s.state = Unavailable
		close(s.updates)
		return fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}
	s.unsubscribe = unsubscribe

	s.wg.Add(1)
	go s.consume(samples, done)

	s.state = Streaming
	log.Debug().Msg("[compass] streaming")
	return nil
}

func probe(ctx context.Context, m Magnetometer) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ok, err := m.Available(ctx)
		ch <- result{ok, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("%w: %v", ErrSensorUnavailable, r.err)
		}
		if !r.ok {
			return ErrSensorUnavailable
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: probe: %v", ErrSensorUnavailable, ctx.Err())
	}
}

func (s *Session) consume(samples <-chan Sample, done <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case sample := <-samples:
			select {
			case <-done:
				return
			default:
			}
			if !s.est.OnSample(sample) {
				continue
			}
			s.publish(s.est.State())
		}
	}
}

// publish replaces any unread state with st.
func (s *Session) publish(st State) {
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}

// Stop tears the session down. Once Stop returns no further sample is
// processed and Updates is closed. Stopping an idle or stopped session is
// a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Streaming && s.state != Available {
		return
	}

	// Release any sensor callback blocked on a full queue before
	// unsubscribing, so unsubscribe cannot wait on it.
	close(s.done)
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.wg.Wait()
	close(s.updates)

	s.state = Stopped
	log.Debug().Int("ignored", s.est.Ignored()).Msg("[compass] stopped")
}
