// Package delay provides the circular delay line behind the graph's Echo
// node.
package delay

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Line is a circular float32 delay line. Read(d) returns the sample written
// d writes ago, so Read(1) is the most recent one.
type Line struct {
	buf []float32
	pos int
}

// New returns a line able to delay by up to maxDelay samples with
// fractional reads.
func New(maxDelay int) (*Line, error) {
	if maxDelay <= 0 {
		return nil, fmt.Errorf("%w: delay line length must be > 0: %d", core.ErrConfiguration, maxDelay)
	}
	// Hermite reads touch one sample on each side.
	return &Line{buf: make([]float32, maxDelay+3)}, nil
}

// MaxDelay returns the longest delay Read and ReadFractional serve.
func (l *Line) MaxDelay() int { return len(l.buf) - 3 }

// Write pushes one sample.
func (l *Line) Write(x float32) {
	l.buf[l.pos] = x
	l.pos++
	if l.pos == len(l.buf) {
		l.pos = 0
	}
}

// Read returns the sample from d writes ago, d clamped to [1, MaxDelay].
func (l *Line) Read(d int) float32 {
	d = min(max(d, 1), l.MaxDelay()+2)
	i := l.pos - d
	if i < 0 {
		i += len(l.buf)
	}
	return l.buf[i]
}

// ReadFractional returns the delayed signal at a fractional delay using
// 4-point Hermite interpolation. d is clamped to [1, MaxDelay].
func (l *Line) ReadFractional(d float64) float32 {
	d = min(max(d, 1), float64(l.MaxDelay()))
	p := int(math.Floor(d))
	t := float32(d - float64(p))
	if t == 0 {
		return l.Read(p)
	}
	// Larger delays are older samples, so walk backwards in time.
	xm1, x0, x1, x2 := l.Read(p-1), l.Read(p), l.Read(p+1), l.Read(p+2)
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + x0
}

// Reset silences the line.
func (l *Line) Reset() {
	clear(l.buf)
	l.pos = 0
}
