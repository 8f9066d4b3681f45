package compass

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ReaderMagnetometer replays "x,y,z[,timestamp_ms]" lines from a stream as
// magnetometer samples. Blank lines and lines starting with '#' are skipped.
type ReaderMagnetometer struct {
	r        io.Reader
	Interval time.Duration // zero delivers as fast as lines arrive

	mu      sync.Mutex
	stopped bool
	started bool
	done    chan struct{}
}

// NewReaderMagnetometer reads samples from r.
func NewReaderMagnetometer(r io.Reader) *ReaderMagnetometer {
	return &ReaderMagnetometer{r: r, done: make(chan struct{})}
}

// Done is closed once the stream is exhausted or delivery stops.
func (m *ReaderMagnetometer) Done() <-chan struct{} {
	return m.done
}

// Available reports whether there is a stream to read.
func (m *ReaderMagnetometer) Available(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.r != nil, nil
}

// Subscribe starts reading in the background. It may be called once.
func (m *ReaderMagnetometer) Subscribe(handler func(Sample)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil, fmt.Errorf("magnetometer already subscribed")
	}
	if m.r == nil {
		return nil, ErrSensorUnavailable
	}
	m.started = true

	go m.run(handler)

	return func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
	}, nil
}

func (m *ReaderMagnetometer) run(handler func(Sample)) {
	defer close(m.done)
	scanner := bufio.NewScanner(m.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sample, err := ParseSample(line)
		if err != nil {
			log.Debug().Err(err).Msg("[compass] skipping line")
			continue
		}
		if sample.TimestampMs == 0 {
			sample.TimestampMs = time.Now().UnixMilli()
		}

		if !m.deliver(handler, sample) {
			return
		}
		if m.Interval > 0 {
			time.Sleep(m.Interval)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("[compass] sample stream failed")
	}
}

// deliver calls handler unless unsubscribed. The lock is held during the
// call so unsubscribe waits for an in-flight delivery.
func (m *ReaderMagnetometer) deliver(handler func(Sample), s Sample) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	handler(s)
	return true
}

// ParseSample parses "x,y,z" or "x,y,z,timestamp_ms".
func ParseSample(line string) (Sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Sample{}, fmt.Errorf("invalid sample %q: want x,y,z[,timestamp_ms]", line)
	}

	var vals [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid sample %q: %w", line, err)
		}
		vals[i] = v
	}

	s := Sample{X: vals[0], Y: vals[1], Z: vals[2]}
	if len(parts) == 4 {
		ts, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid timestamp in %q: %w", line, err)
		}
		s.TimestampMs = ts
	}
	return s, nil
}
