package spectrum

import (
	"fmt"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-audiograph/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWindow selects the analysis window. The default is Blackman.
func WithWindow(t window.Type) Option {
	return func(a *Analyzer) {
		a.windowType = t
	}
}

// WithWindowing enables or disables windowing before the FFT.
func WithWindowing(enabled bool) Option {
	return func(a *Analyzer) {
		a.windowing = enabled
	}
}

// Analyzer turns the most recent block of audio into a magnitude spectrum.
//
// Write is called from the render goroutine and only copies samples; the
// FFT runs lazily in MagSpectrum on the caller's goroutine the first time
// it is read after new input arrived. Both sides share the Analyzer's own
// mutex, never the graph lock.
type Analyzer struct {
	mu sync.Mutex

	fftSize    int
	windowType window.Type
	windowing  bool

	plan    *algofft.Plan[complex128]
	input   []float64
	scratch []float64
	numIn   int
	win     window.Table

	fftIn, fftOut []complex128
	re, im        []float64
	mag           []float64
	dirty         bool
}

// NewAnalyzer returns an Analyzer with the given FFT size, rounded up to a
// power of two.
func NewAnalyzer(fftSize int, opts ...Option) (*Analyzer, error) {
	if fftSize < 2 {
		return nil, fmt.Errorf("%w: fft size must be >= 2: %d", core.ErrConfiguration, fftSize)
	}
	n := nextPowerOfTwo(fftSize)

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("spectrum init fft plan: %w", err)
	}

	a := &Analyzer{
		fftSize:    n,
		windowType: window.TypeBlackman,
		windowing:  true,
		plan:       plan,
		input:      make([]float64, n),
		scratch:    make([]float64, n),
		fftIn:      make([]complex128, n),
		fftOut:     make([]complex128, n),
		re:         make([]float64, n/2),
		im:         make([]float64, n/2),
		mag:        make([]float64, n/2),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// FFTSize returns the transform length.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// NumBins returns the number of magnitude bins, FFTSize()/2.
func (a *Analyzer) NumBins() int { return a.fftSize / 2 }

// BinFrequency returns the center frequency of bin k in Hz.
func (a *Analyzer) BinFrequency(k int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(a.fftSize)
}

// SetWindowingEnabled toggles windowing.
func (a *Analyzer) SetWindowingEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.windowing != enabled {
		a.windowing = enabled
		a.dirty = true
	}
}

// SetWindow selects the analysis window.
func (a *Analyzer) SetWindow(t window.Type) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.windowType != t {
		a.windowType = t
		a.dirty = true
	}
}

// Window returns the analysis window type.
func (a *Analyzer) Window() window.Type {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windowType
}

// IsWindowingEnabled reports whether windowing is applied.
func (a *Analyzer) IsWindowingEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windowing
}

// Write stores up to FFTSize() frames of buf as the analysis input. A mono
// buffer is copied; more channels are averaged. buf must be planar.
func (a *Analyzer) Write(buf *buffer.Buffer) {
	channels := buf.NumChannels()
	if channels == 0 || buf.Layout() != buffer.LayoutPlanar {
		return
	}
	n := min(a.fftSize, buf.NumFrames())

	a.mu.Lock()
	defer a.mu.Unlock()

	in := a.input[:n]
	toFloat64(in, buf.Channel(0)[:n])
	if channels > 1 {
		scratch := a.scratch[:n]
		for ch := 1; ch < channels; ch++ {
			toFloat64(scratch, buf.Channel(ch)[:n])
			vecmath.AddBlockInPlace(in, scratch)
		}
		vecmath.ScaleBlock(in, in, 1/float64(channels))
	}
	a.numIn = n
	a.dirty = true
}

func toFloat64(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

// MagSpectrum returns FFTSize()/2 magnitudes scaled by 1/FFTSize(). The
// transform runs only when new input arrived since the previous call.
func (a *Analyzer) MagSpectrum() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dirty {
		a.compute()
		a.dirty = false
	}
	return append([]float64(nil), a.mag...)
}

// MagSpectrumDB returns MagSpectrum in decibels, floored at MinDecibels.
func (a *Analyzer) MagSpectrumDB() []float64 {
	return ToDecibels(a.MagSpectrum())
}

func (a *Analyzer) compute() {
	n := a.numIn
	in := a.input[:n]
	if a.windowing {
		// input is kept raw so a window change can recompute the same block.
		windowed := a.scratch[:n]
		if err := window.Apply(windowed, in, a.win.Coefficients(a.windowType, n)); err != nil {
			core.Zero(a.mag)
			return
		}
		in = windowed
	}

	clear(a.fftIn)
	for i, v := range in {
		a.fftIn[i] = complex(v, 0)
	}

	if err := a.plan.Forward(a.fftOut, a.fftIn); err != nil {
		core.Zero(a.mag)
		return
	}

	for k := range a.re {
		a.re[k] = real(a.fftOut[k])
		a.im[k] = imag(a.fftOut[k])
	}
	// Bin 0 of a packed real transform carries Nyquist in its imaginary part.
	a.im[0] = 0

	vecmath.Magnitude(a.mag, a.re, a.im)
	vecmath.ScaleBlock(a.mag, a.mag, 1/float64(a.fftSize))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
