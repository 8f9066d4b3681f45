package compass

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeMagnetometer delivers samples synchronously from emit, like a
// platform sensor callback.
type fakeMagnetometer struct {
	available bool
	probeErr  error
	block     bool

	mu           sync.Mutex
	handler      func(Sample)
	unsubscribed bool
}

func (f *fakeMagnetometer) Available(ctx context.Context) (bool, error) {
	if f.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return f.available, f.probeErr
}

func (f *fakeMagnetometer) Subscribe(handler func(Sample)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.unsubscribed = true
		f.mu.Unlock()
	}, nil
}

// emit reports whether a handler was subscribed.
func (f *fakeMagnetometer) emit(s Sample) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handler == nil {
		return false
	}
	f.handler(s)
	return true
}

// waitForHeading reads updates until one matches want.
func waitForHeading(t *testing.T, updates <-chan State, want float64) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-updates:
			require.True(t, ok, "updates closed early")
			if st.HeadingDegrees > want-1e-6 && st.HeadingDegrees < want+1e-6 {
				return st
			}
		case <-timeout:
			t.Fatalf("no update with heading %v", want)
		}
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestSession_Unavailable(t *testing.T) {
	s := NewSession()
	err := s.Start(context.Background(), &fakeMagnetometer{available: false})

	require.ErrorIs(t, err, ErrSensorUnavailable)
	assert.Equal(t, Unavailable, s.State())

	_, ok := <-s.Updates()
	assert.False(t, ok, "updates should be closed")

	// Terminal: a second Start does not retry.
	assert.Error(t, s.Start(context.Background(), &fakeMagnetometer{available: true}))
	assert.Equal(t, Unavailable, s.State())
}

func TestSession_ProbeError(t *testing.T) {
	s := NewSession()
	err := s.Start(context.Background(), &fakeMagnetometer{probeErr: errors.New("no sensor service")})
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.Equal(t, Unavailable, s.State())
}

func TestSession_ProbeTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := NewSession()
	start := time.Now()
	err := s.Start(ctx, &fakeMagnetometer{block: true})

	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.Less(t, time.Since(start), ProbeTimeout)
	assert.Equal(t, Unavailable, s.State())
}

func TestSession_StreamAndStop(t *testing.T) {
	m := &fakeMagnetometer{available: true}
	s := NewSession()
	require.NoError(t, s.Start(context.Background(), m))
	assert.Equal(t, Streaming, s.State())

	require.True(t, m.emit(headingSample(30, 45)))
	require.True(t, m.emit(Sample{X: 9999}))
	require.True(t, m.emit(headingSample(90, 45)))

	st := waitForHeading(t, s.Updates(), 90)
	assert.InDelta(t, 45.0, st.FieldStrengthMicroTesla, 1e-9)
	assert.False(t, st.NeedsCalibration)

	s.Stop()
	assert.Equal(t, Stopped, s.State())
	assert.True(t, m.unsubscribed)
	assert.False(t, m.emit(headingSample(180, 45)), "no delivery after Stop")

	// Drain whatever was published before Stop; the channel must close.
	for range s.Updates() {
	}

	// Stop is idempotent.
	s.Stop()
}

func TestSession_StopBeforeStart(t *testing.T) {
	s := NewSession()
	s.Stop()
	assert.Equal(t, Uninitialized, s.State())
}

func TestSession_ConcurrentCallbacksAreSerialized(t *testing.T) {
	m := &fakeMagnetometer{available: true}
	s := NewSession()
	require.NoError(t, s.Start(context.Background(), m))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.emit(headingSample(float64(i), 45))
			}
		}()
	}
	wg.Wait()

	s.Stop()
	assert.LessOrEqual(t, s.est.Len(), BufferSize)
}

func TestSession_StopWhileQueueFull(t *testing.T) {
	m := &fakeMagnetometer{available: true}
	s := NewSession()
	require.NoError(t, s.Start(context.Background(), m))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize*4; i++ {
			if !m.emit(headingSample(float64(i%360), 45)) {
				return
			}
		}
	}()

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sensor callback stuck after Stop")
	}
}

// ---------------------------------------------------------------------------
// ReaderMagnetometer
// ---------------------------------------------------------------------------

func TestReaderMagnetometer_EndToEnd(t *testing.T) {
	input := strings.Join([]string{
		"# x,y,z",
		"45,0,0",
		"",
		"garbage",
		"0,45,0,1700000000000",
	}, "\n")

	s := NewSession()
	require.NoError(t, s.Start(context.Background(), NewReaderMagnetometer(strings.NewReader(input))))

	waitForHeading(t, s.Updates(), 90)
	s.Stop()
	assert.Equal(t, 2, s.est.Len())
}

func TestReaderMagnetometer_NilReader(t *testing.T) {
	s := NewSession()
	err := s.Start(context.Background(), NewReaderMagnetometer(nil))
	assert.ErrorIs(t, err, ErrSensorUnavailable)
}

func TestReaderMagnetometer_SubscribeOnce(t *testing.T) {
	m := NewReaderMagnetometer(strings.NewReader(""))
	unsub, err := m.Subscribe(func(Sample) {})
	require.NoError(t, err)
	defer unsub()

	_, err = m.Subscribe(func(Sample) {})
	assert.Error(t, err)
}

func TestReaderMagnetometer_DoneAfterLastDelivery(t *testing.T) {
	m := NewReaderMagnetometer(strings.NewReader("1,0,0\n0,1,0\n0,0,1\n"))
	var mu sync.Mutex
	var got []Sample
	unsub, err := m.Subscribe(func(s Sample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader never finished")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 3)
}

func TestParseSample(t *testing.T) {
	tests := []struct {
		line    string
		want    Sample
		wantErr bool
	}{
		{"1,2,3", Sample{X: 1, Y: 2, Z: 3}, false},
		{" -20.5 , 4 , 0 ", Sample{X: -20.5, Y: 4}, false},
		{"1,2,3,42", Sample{X: 1, Y: 2, Z: 3, TimestampMs: 42}, false},
		{"1,2", Sample{}, true},
		{"a,2,3", Sample{}, true},
		{"1,2,3,x", Sample{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseSample(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
