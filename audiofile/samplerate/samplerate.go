// Package samplerate converts sample rates with libsamplerate.
package samplerate

import (
	"fmt"

	"github.com/dh1tw/gosamplerate"

	"github.com/cwbudde/algo-audiograph/audiofile"
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Quality selects the libsamplerate converter.
const (
	BestQuality   = gosamplerate.SRC_SINC_BEST_QUALITY
	MediumQuality = gosamplerate.SRC_SINC_MEDIUM_QUALITY
	Fastest       = gosamplerate.SRC_SINC_FASTEST
	ZeroOrderHold = gosamplerate.SRC_ZERO_ORDER_HOLD
	Linear        = gosamplerate.SRC_LINEAR
)

// bufferSamples sizes libsamplerate's input and output buffers.
const bufferSamples = 1 << 15

// Option configures a Converter.
type Option func(*Converter)

// WithQuality selects the converter type.
func WithQuality(q int) Option {
	return func(c *Converter) { c.quality = q }
}

// Converter streams planar frames through a libsamplerate converter. It
// implements audiofile.Converter.
type Converter struct {
	src      gosamplerate.Src
	quality  int
	ratio    float64
	channels int
	maxIn    int
	in       []float32
	pending  []float32
}

// New returns a converter from inRate to outRate.
func New(inRate, outRate float64, numChannels int, opts ...Option) (*Converter, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: invalid rates %f -> %f", core.ErrConfiguration, inRate, outRate)
	}
	if numChannels <= 0 {
		return nil, fmt.Errorf("%w: channel count must be > 0: %d", core.ErrConfiguration, numChannels)
	}
	c := &Converter{
		quality:  MediumQuality,
		ratio:    outRate / inRate,
		channels: numChannels,
	}
	for _, opt := range opts {
		opt(c)
	}

	src, err := gosamplerate.New(c.quality, numChannels, bufferSamples)
	if err != nil {
		return nil, fmt.Errorf("%w: libsamplerate: %w", core.ErrConfiguration, err)
	}
	c.src = src
	// Keep each call's output within the output buffer.
	c.maxIn = max(1, int(float64(bufferSamples/numChannels)/max(1, c.ratio))-1)
	c.in = make([]float32, c.maxIn*numChannels)
	return c, nil
}

// Factory adapts New to audiofile.WithResampler.
func Factory(opts ...Option) audiofile.NewConverterFunc {
	return func(inRate, outRate float64, numChannels int) (audiofile.Converter, error) {
		return New(inRate, outRate, numChannels, opts...)
	}
}

// Ratio returns outRate / inRate.
func (c *Converter) Ratio() float64 { return c.ratio }

// Convert implements audiofile.Converter.
func (c *Converter) Convert(src, dst *buffer.Buffer) (consumed, produced int, err error) {
	if src.NumChannels() != c.channels || dst.NumChannels() != c.channels {
		return 0, 0, fmt.Errorf("%w: converter runs %d channels, got %d -> %d",
			core.ErrConfiguration, c.channels, src.NumChannels(), dst.NumChannels())
	}
	if src.Layout() != buffer.LayoutPlanar || dst.Layout() != buffer.LayoutPlanar {
		return 0, 0, fmt.Errorf("%w: converter needs planar buffers", core.ErrConfiguration)
	}

	frames := src.NumFrames()
	for at := 0; at < frames; at += c.maxIn {
		n := min(c.maxIn, frames-at)
		in := c.in[:n*c.channels]
		for ch := range c.channels {
			for i, v := range src.Channel(ch)[at : at+n] {
				in[i*c.channels+ch] = v
			}
		}
		if err := c.process(in, false); err != nil {
			return at, 0, err
		}
	}
	return frames, c.drain(dst), nil
}

// Flush pushes the end of the input through the filter. Later Convert calls
// drain the tail.
func (c *Converter) Flush() error {
	return c.process(make([]float32, c.channels), true)
}

// Reset clears the filter state and any held output.
func (c *Converter) Reset() error {
	c.pending = c.pending[:0]
	if err := c.src.Reset(); err != nil {
		return fmt.Errorf("%w: reset libsamplerate: %w", core.ErrState, err)
	}
	return nil
}

// Close releases the libsamplerate state.
func (c *Converter) Close() error {
	return gosamplerate.Delete(c.src)
}

func (c *Converter) process(in []float32, end bool) error {
	out, err := c.src.Process(in, c.ratio, end)
	if err != nil {
		return fmt.Errorf("%w: libsamplerate: %w", core.ErrFormat, err)
	}
	c.pending = append(c.pending, out...)
	return nil
}

func (c *Converter) drain(dst *buffer.Buffer) int {
	n := min(dst.NumFrames(), len(c.pending)/c.channels)
	if n == 0 {
		return 0
	}
	for ch := range c.channels {
		out := dst.Channel(ch)
		for i := range n {
			out[i] = c.pending[i*c.channels+ch]
		}
	}
	c.pending = append(c.pending[:0], c.pending[n*c.channels:]...)
	return n
}

var _ audiofile.Converter = (*Converter)(nil)
