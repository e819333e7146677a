// Package testutil has reference signals and sample assertions for graph
// and device tests.
package testutil

import (
	"math"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Sine returns frames samples of amplitude·sin(2π·freq·n/sampleRate), the
// reference a freshly started sine node at phase 0 should match.
func Sine[T core.Sample](freq, sampleRate, amplitude float64, frames int) []T {
	out := make([]T, frames)
	for n := range out {
		out[n] = T(amplitude * math.Sin(2*math.Pi*freq*float64(n)/sampleRate))
	}
	return out
}

// Ramp returns 0, 1, ..., frames-1. Positions in a played-back ramp give the
// read index directly.
func Ramp[T core.Sample](frames int) []T {
	out := make([]T, frames)
	for n := range out {
		out[n] = T(n)
	}
	return out
}

// Constant returns frames copies of value.
func Constant[T core.Sample](value float64, frames int) []T {
	out := make([]T, frames)
	for n := range out {
		out[n] = T(value)
	}
	return out
}

// PeakIndex returns the index of the largest value, or -1 when data is
// empty. With a magnitude spectrum this is the dominant bin.
func PeakIndex[T core.Sample](data []T) int {
	best := -1
	for i, v := range data {
		if best < 0 || v > data[best] {
			best = i
		}
	}
	return best
}
