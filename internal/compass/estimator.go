// Package compass turns raw magnetometer samples into a heading for the
// Qibla needle and decides when the sensor needs calibrating.
package compass

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
)

const (
	// BufferSize is the number of recent samples kept for analysis.
	BufferSize = 10

	// MaxComponent rejects obviously broken readings (µT).
	MaxComponent = 1000.0

	// MinFieldMicroTesla and MaxFieldMicroTesla bound Earth's nominal field.
	MinFieldMicroTesla = 20.0
	MaxFieldMicroTesla = 70.0

	// MinCalibrationSamples is how many samples must be buffered before
	// calibration can be flagged at all.
	MinCalibrationSamples = 5

	// ErraticThresholdDegrees is the mean heading jump that marks the
	// stream as erratic.
	ErraticThresholdDegrees = 30.0
)

// DeviceFrameOffset converts the raw atan2(y, x) heading into the device's
// "top edge" frame. It assumes the magnetometer's x axis points to the
// right of the screen; verify on hardware before relying on it.
const DeviceFrameOffset = 90.0

// Sample is one raw 3-axis magnetometer reading in µT.
type Sample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// Valid reports whether every component is finite and within MaxComponent.
func (s Sample) Valid() bool {
	for _, v := range []float64{s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxComponent {
			return false
		}
	}
	return true
}

// FieldStrength is the magnitude of the field vector.
func (s Sample) FieldStrength() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Heading is atan2(y, x) in degrees, normalized to [0,360).
func (s Sample) Heading() float64 {
	return geo.NormalizeDegrees(math.Atan2(s.Y, s.X) * 180 / math.Pi)
}

// State is the derived compass reading shown to the user.
type State struct {
	HeadingDegrees          float64 `json:"heading_degrees"`
	NeedsCalibration        bool    `json:"needs_calibration"`
	FieldStrengthMicroTesla float64 `json:"field_strength_micro_tesla"`
}

// Calibration is the result of EvaluateCalibration.
type Calibration struct {
	NeedsCalibration        bool
	FieldStrengthMicroTesla float64
	FieldOutOfRange         bool
	Erratic                 bool
}

// Estimator keeps the last BufferSize valid samples. It is not safe for
// concurrent use; Session feeds it from a single goroutine.
type Estimator struct {
	samples  [BufferSize]Sample
	headings [BufferSize]float64
	next     int
	count    int
	ignored  int
	state    State
}

// NewEstimator returns an empty estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// OnSample ingests a reading. Invalid samples are dropped and reported
// with false; they never change the state.
func (e *Estimator) OnSample(s Sample) bool {
	if !s.Valid() {
		e.ignored++
		log.Debug().
			Float64("x", s.X).
			Float64("y", s.Y).
			Float64("z", s.Z).
			Msg("[compass] ignoring invalid sample")
		return false
	}

	e.samples[e.next] = s
	e.headings[e.next] = s.Heading()
	e.next = (e.next + 1) % BufferSize
	if e.count < BufferSize {
		e.count++
	}

	cal := e.EvaluateCalibration()
	e.state = State{
		HeadingDegrees:          s.Heading(),
		NeedsCalibration:        cal.NeedsCalibration,
		FieldStrengthMicroTesla: cal.FieldStrengthMicroTesla,
	}
	return true
}

// State returns the latest derived state.
func (e *Estimator) State() State {
	return e.state
}

// Len is the number of buffered samples.
func (e *Estimator) Len() int {
	return e.count
}

// Ignored is the number of invalid samples seen so far.
func (e *Estimator) Ignored() int {
	return e.ignored
}

// EvaluateCalibration inspects the buffer. The field strength is taken
// from the newest sample. Calibration is never requested before
// MinCalibrationSamples samples are buffered.
func (e *Estimator) EvaluateCalibration() Calibration {
	if e.count == 0 {
		return Calibration{}
	}

	latest := e.samples[(e.next-1+BufferSize)%BufferSize]
	field := latest.FieldStrength()
	cal := Calibration{FieldStrengthMicroTesla: field}
	if e.count < MinCalibrationSamples {
		return cal
	}

	cal.FieldOutOfRange = field < MinFieldMicroTesla || field > MaxFieldMicroTesla

	recent := e.recentHeadings(MinCalibrationSamples)
	var total float64
	for i := 1; i < len(recent); i++ {
		total += angularDiff(recent[i-1], recent[i])
	}
	cal.Erratic = total/float64(len(recent)-1) > ErraticThresholdDegrees

	cal.NeedsCalibration = cal.FieldOutOfRange || cal.Erratic
	return cal
}

// recentHeadings returns the newest n headings, oldest first.
func (e *Estimator) recentHeadings(n int) []float64 {
	if n > e.count {
		n = e.count
	}
	out := make([]float64, n)
	start := e.next - n
	for i := 0; i < n; i++ {
		out[i] = e.headings[(start+i+BufferSize)%BufferSize]
	}
	return out
}

// angularDiff is the unsigned smallest angle between two headings.
func angularDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 360-d)
}

// NeedleRotation is the rotation in degrees to apply to a needle so it
// points at qiblaBearing while the device faces heading. Any NaN input
// yields 0.
func NeedleRotation(qiblaBearing, heading float64) float64 {
	r := -math.Mod(qiblaBearing-heading+180, 360)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// AdjustHeading applies DeviceFrameOffset to a raw heading.
func AdjustHeading(raw float64) float64 {
	return geo.NormalizeDegrees(raw - DeviceFrameOffset)
}
