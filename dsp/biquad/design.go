package biquad

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// DefaultQ is the Butterworth quality factor 1/√2.
const DefaultQ = 1 / math.Sqrt2

// Kind selects a filter response.
type Kind int

const (
	Lowpass Kind = iota
	Highpass
	Bandpass
	Notch
	Allpass
	Peak
	LowShelf
	HighShelf
)

var kindNames = [...]string{"lowpass", "highpass", "bandpass", "notch", "allpass", "peak", "lowshelf", "highshelf"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind with the given case-insensitive name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), nil
		}
	}
	return Lowpass, fmt.Errorf("%w: unknown filter kind %q", core.ErrConfiguration, name)
}

// UsesGain reports whether gainDB affects the response of k.
func (k Kind) UsesGain() bool {
	return k == Peak || k == LowShelf || k == HighShelf
}

// Coefficients of one section, normalized so that a0 = 1:
//
//	y[n] = B0·x[n] + B1·x[n-1] + B2·x[n-2] - A1·y[n-1] - A2·y[n-2]
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity passes the input through unchanged.
var Identity = Coefficients{B0: 1}

// Design returns the RBJ cookbook section for k. freq must lie strictly
// between 0 and Nyquist. q <= 0 selects DefaultQ. gainDB is only used by
// Peak and the shelves.
func Design(k Kind, freq, q, gainDB, sampleRate float64) (Coefficients, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return Identity, fmt.Errorf("%w: sample rate must be > 0: %f", core.ErrConfiguration, sampleRate)
	}
	if freq <= 0 || freq >= sampleRate/2 || math.IsNaN(freq) {
		return Identity, fmt.Errorf("%w: filter frequency %f outside (0, %f)", core.ErrConfiguration, freq, sampleRate/2)
	}
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		q = DefaultQ
	}

	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	a := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch k {
	case Lowpass:
		b0, b1, b2 = (1-cw)/2, 1-cw, (1-cw)/2
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Highpass:
		b0, b1, b2 = (1+cw)/2, -(1 + cw), (1+cw)/2
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Bandpass:
		// constant 0 dB peak gain
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Notch:
		b0, b1, b2 = 1, -2*cw, 1
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Allpass:
		b0, b1, b2 = 1-alpha, -2*cw, 1+alpha
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Peak:
		b0, b1, b2 = 1+alpha*a, -2*cw, 1-alpha*a
		a0, a1, a2 = 1+alpha/a, -2*cw, 1-alpha/a
	case LowShelf:
		beta := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cw + beta)
		b1 = 2 * a * ((a - 1) - (a+1)*cw)
		b2 = a * ((a + 1) - (a-1)*cw - beta)
		a0 = (a + 1) + (a-1)*cw + beta
		a1 = -2 * ((a - 1) + (a+1)*cw)
		a2 = (a + 1) + (a-1)*cw - beta
	case HighShelf:
		beta := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cw + beta)
		b1 = -2 * a * ((a - 1) + (a+1)*cw)
		b2 = a * ((a + 1) + (a-1)*cw - beta)
		a0 = (a + 1) - (a-1)*cw + beta
		a1 = 2 * ((a - 1) - (a+1)*cw)
		a2 = (a + 1) - (a-1)*cw - beta
	default:
		return Identity, fmt.Errorf("%w: unknown filter kind %d", core.ErrConfiguration, int(k))
	}

	return Coefficients{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}, nil
}

// MagnitudeSquared returns |H(f)|² in closed form.
func (c Coefficients) MagnitudeSquared(freq, sampleRate float64) float64 {
	cw := 2 * math.Cos(2*math.Pi*freq/sampleRate)
	num := (c.B0-c.B2)*(c.B0-c.B2) + c.B1*c.B1 + (c.B1*(c.B0+c.B2)+c.B0*c.B2*cw)*cw
	den := (1-c.A2)*(1-c.A2) + c.A1*c.A1 + (c.A1*(c.A2+1)+cw*c.A2)*cw
	return num / den
}

// MagnitudeDB returns the response at freq in dB.
func (c Coefficients) MagnitudeDB(freq, sampleRate float64) float64 {
	return 10 * math.Log10(c.MagnitudeSquared(freq, sampleRate))
}
