package window

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-vecmath"
)

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	periodic bool
}

// WithAlpha sets the Blackman α. Values outside [0, 1] are ignored.
func WithAlpha(alpha float64) Option {
	return func(c *config) {
		if alpha >= 0 && alpha <= 1 {
			c.alpha = alpha
		}
	}
}

// WithPeriodic selects the periodic form used for FFT framing.
func WithPeriodic() Option {
	return func(c *config) { c.periodic = true }
}

// Generate returns n coefficients of t. n <= 0 returns nil.
func Generate(t Type, n int, opts ...Option) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	GenerateInto(t, out, opts...)
	return out
}

// GenerateInto fills dst with coefficients of t without allocating.
// Unknown types fill ones.
func GenerateInto(t Type, dst []float64, opts ...Option) {
	cfg := config{alpha: DefaultBlackmanAlpha}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	s, ok := shapes[t]
	if !ok {
		s = shapes[TypeRectangular]
	}

	den := float64(len(dst) - 1)
	if cfg.periodic {
		den = float64(len(dst))
	}
	for i := range dst {
		x := 0.0
		if den > 0 {
			x = float64(i) / den
		}
		dst[i] = s.at(x, cfg.alpha, t == TypeBlackman)
	}
}

// Table is a cached set of periodic coefficients, regenerated only when the
// requested shape or length changes.
type Table struct {
	typ    Type
	coeffs []float64
	valid  bool
}

// Coefficients returns n periodic coefficients of t, reusing the previous
// result when neither changed. The returned slice is owned by the Table.
func (w *Table) Coefficients(t Type, n int) []float64 {
	if w.valid && w.typ == t && len(w.coeffs) == n {
		return w.coeffs
	}
	w.coeffs = core.Resize(w.coeffs, n)
	GenerateInto(t, w.coeffs, WithPeriodic())
	w.typ = t
	w.valid = true
	return w.coeffs
}

// Invalidate forces the next Coefficients call to regenerate.
func (w *Table) Invalidate() { w.valid = false }

// Apply writes src·coeffs into dst. All three must have the same length.
func Apply(dst, src, coeffs []float64) error {
	if len(dst) != len(src) || len(src) != len(coeffs) {
		return fmt.Errorf("%w: window length %d does not match %d samples",
			core.ErrConfiguration, len(coeffs), len(src))
	}
	vecmath.MulBlock(dst, src, coeffs)
	return nil
}

// CoherentGain returns the mean of coeffs.
func CoherentGain(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, fmt.Errorf("%w: window coefficients must not be empty", core.ErrConfiguration)
	}
	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}
	return sum / float64(len(coeffs)), nil
}

// EquivalentNoiseBandwidth returns N·Σw² / (Σw)² in bins.
func EquivalentNoiseBandwidth(coeffs []float64) (float64, error) {
	gain, err := CoherentGain(coeffs)
	if err != nil {
		return 0, err
	}
	if gain == 0 {
		return 0, fmt.Errorf("%w: window coherent gain is zero", core.ErrConfiguration)
	}
	power := 0.0
	for _, c := range coeffs {
		power += c * c
	}
	n := float64(len(coeffs))
	return power / n / (gain * gain), nil
}
