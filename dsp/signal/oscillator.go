package signal

import (
	"math"
	"math/rand"
)

// Shape selects an Oscillator waveform.
type Shape int

const (
	// ShapeSine is sin(2π·phase).
	ShapeSine Shape = iota
	// ShapePhasor is the raw phase ramp in [0, 1).
	ShapePhasor
	// ShapeTriangle is a triangle in [-1, 1] with adjustable slopes.
	ShapeTriangle
)

// Oscillator is a phase-continuous periodic block generator. The phase is
// kept in cycles, in [0, 1).
type Oscillator struct {
	shape      Shape
	sampleRate float64
	phase      float64

	upSlope, downSlope float64
}

// NewOscillator returns an Oscillator at phase 0.
func NewOscillator(shape Shape, sampleRate float64) *Oscillator {
	return &Oscillator{
		shape:      shape,
		sampleRate: sampleRate,
		upSlope:    1,
		downSlope:  1,
	}
}

// Shape returns the waveform.
func (o *Oscillator) Shape() Shape { return o.shape }

// SetSampleRate changes the rate used to convert Hz to phase increments.
func (o *Oscillator) SetSampleRate(sampleRate float64) { o.sampleRate = sampleRate }

// Phase returns the current phase in cycles.
func (o *Oscillator) Phase() float64 { return o.phase }

// Reset returns the phase to 0.
func (o *Oscillator) Reset() { o.phase = 0 }

// SetSlopes sets the triangle rise and fall multipliers. With both equal to
// 1 the triangle is symmetric. Values <= 0 are ignored.
func (o *Oscillator) SetSlopes(up, down float64) {
	if up > 0 {
		o.upSlope = up
	}
	if down > 0 {
		o.downSlope = down
	}
}

// Process fills out at a constant frequency in Hz.
func (o *Oscillator) Process(out []float32, freq float32) {
	incr := float64(freq) / o.sampleRate
	phase := o.phase
	for i := range out {
		out[i] = o.sample(phase)
		phase = wrap(phase + incr)
	}
	o.phase = phase
}

// ProcessVarying fills out with a per-sample frequency. freqs must be at
// least as long as out.
func (o *Oscillator) ProcessVarying(out, freqs []float32) {
	inv := 1 / o.sampleRate
	phase := o.phase
	for i := range out {
		out[i] = o.sample(phase)
		phase = wrap(phase + float64(freqs[i])*inv)
	}
	o.phase = phase
}

func (o *Oscillator) sample(phase float64) float32 {
	switch o.shape {
	case ShapePhasor:
		return float32(phase)
	case ShapeTriangle:
		v := min(phase*o.upSlope, (1-phase)*o.downSlope)
		return float32(v*4 - 1)
	default:
		return float32(math.Sin(2 * math.Pi * phase))
	}
}

func wrap(phase float64) float64 {
	return phase - math.Floor(phase)
}

// Noise is a seeded uniform white noise source in [-1, 1].
type Noise struct {
	rng *rand.Rand
}

// NewNoise returns a Noise source with the given seed.
func NewNoise(seed int64) *Noise {
	return &Noise{rng: rand.New(rand.NewSource(seed))}
}

// Process fills out with noise.
func (n *Noise) Process(out []float32) {
	for i := range out {
		out[i] = n.rng.Float32()*2 - 1
	}
}
