package graph

import (
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/spectrum"
	"github.com/cwbudde/algo-audiograph/dsp/window"
)

// DefaultFFTSize is the FFT size of a SpectrumTap created with size 0.
const DefaultFFTSize = 512

// SpectrumTap passes audio through and keeps the magnitude spectrum of the
// latest block. The render goroutine only copies samples; the FFT runs on
// the reader's goroutine when the spectrum is requested.
type SpectrumTap struct {
	*Node
	analyzer *spectrum.Analyzer
}

// NewSpectrumTap returns a spectrum tap. fftSize is rounded up to a power
// of two; 0 selects DefaultFFTSize.
func NewSpectrumTap(ctx *Context, fftSize int, opts ...NodeOption) (*SpectrumTap, error) {
	if fftSize == 0 {
		fftSize = DefaultFFTSize
	}
	a, err := spectrum.NewAnalyzer(fftSize)
	if err != nil {
		return nil, err
	}
	t := &SpectrumTap{analyzer: a}
	t.Node = ctx.MakeNode(t, RoleTap, opts...)
	return t, nil
}

// Process implements Processor.
func (t *SpectrumTap) Process(buf *buffer.Buffer) {
	t.analyzer.Write(buf)
}

// MagSpectrum returns fftSize/2 linear magnitudes.
func (t *SpectrumTap) MagSpectrum() []float64 { return t.analyzer.MagSpectrum() }

// MagSpectrumDB returns the magnitudes in dB.
func (t *SpectrumTap) MagSpectrumDB() []float64 { return t.analyzer.MagSpectrumDB() }

// FFTSize returns the transform size.
func (t *SpectrumTap) FFTSize() int { return t.analyzer.FFTSize() }

// NumBins returns the number of magnitude bins.
func (t *SpectrumTap) NumBins() int { return t.analyzer.NumBins() }

// BinFrequency returns the centre frequency of bin k in Hz.
func (t *SpectrumTap) BinFrequency(k int) float64 {
	return t.analyzer.BinFrequency(k, t.ctx.SampleRate())
}

// SetWindow selects the analysis window. The default is Blackman.
func (t *SpectrumTap) SetWindow(w window.Type) { t.analyzer.SetWindow(w) }

// SetWindowingEnabled toggles windowing.
func (t *SpectrumTap) SetWindowingEnabled(enabled bool) { t.analyzer.SetWindowingEnabled(enabled) }

// IsWindowingEnabled reports whether windowing is on.
func (t *SpectrumTap) IsWindowingEnabled() bool { return t.analyzer.IsWindowingEnabled() }
