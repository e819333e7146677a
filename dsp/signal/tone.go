package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Partial is one sinusoid of a Tone. Phase is in cycles.
type Partial struct {
	Freq      float64
	Amplitude float64
	Phase     float64
}

// Tone is offline test material: a sum of partials plus optional seeded
// white noise, identical on every channel.
type Tone struct {
	Partials []Partial
	Noise    float64
	Seed     int64
}

// SineTone returns a single full-phase sine of the given amplitude.
func SineTone(freq, amplitude float64) Tone {
	return Tone{Partials: []Partial{{Freq: freq, Amplitude: amplitude}}}
}

// Render returns frames of t at sampleRate in a planar buffer.
func (t Tone) Render(frames, channels int, sampleRate float64) (*buffer.Buffer, error) {
	if frames <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: tone needs frames and channels > 0: %d, %d",
			core.ErrConfiguration, frames, channels)
	}
	buf := buffer.New(frames, channels)
	if err := t.RenderInto(buf, 0, sampleRate); err != nil {
		return nil, err
	}
	return buf, nil
}

// RenderInto overwrites buf with t starting at absolute frame start, so
// consecutive blocks line up.
func (t Tone) RenderInto(buf *buffer.Buffer, start int, sampleRate float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: tone sample rate must be > 0: %f", core.ErrConfiguration, sampleRate)
	}
	if t.Noise < 0 {
		return fmt.Errorf("%w: noise amplitude must be >= 0: %f", core.ErrConfiguration, t.Noise)
	}
	if buf.NumChannels() == 0 {
		return nil
	}

	first := buf.Channel(0)
	for i := range first {
		n := float64(start + i)
		v := 0.0
		for _, p := range t.Partials {
			v += p.Amplitude * math.Sin(2*math.Pi*(p.Freq*n/sampleRate+p.Phase))
		}
		first[i] = float32(v)
	}
	if t.Noise > 0 {
		// Skip the draws of earlier frames so block boundaries don't matter.
		rng := rand.New(rand.NewSource(t.Seed))
		for range start {
			rng.Float64()
		}
		for i := range first {
			first[i] += float32((rng.Float64()*2 - 1) * t.Noise)
		}
	}
	for ch := 1; ch < buf.NumChannels(); ch++ {
		copy(buf.Channel(ch), first)
	}
	return nil
}

// Normalize scales buf to the target peak. Silent buffers are untouched.
func Normalize(buf *buffer.Buffer, targetPeak float32) error {
	if targetPeak < 0 {
		return fmt.Errorf("%w: normalize target peak must be >= 0: %f", core.ErrConfiguration, targetPeak)
	}
	if peak := buf.Peak(); peak > 0 {
		buf.Scale(targetPeak / peak)
	}
	return nil
}
