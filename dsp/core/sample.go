package core

import "math"

// Sample constrains the floating point types used for audio samples.
type Sample interface {
	~float32 | ~float64
}

// Zero sets every value in buf to 0.
func Zero[T Sample](buf []T) {
	clear(buf)
}

// Resize returns buf with length n, reallocating only when the capacity is
// short. Contents are not preserved across a reallocation.
func Resize[T any](buf []T, n int) []T {
	if n <= 0 {
		return buf[:0]
	}
	if cap(buf) < n {
		return make([]T, n)
	}
	return buf[:n]
}

// PeakAbs returns the largest absolute value in buf.
func PeakAbs[T Sample](buf []T) T {
	var peak T
	for _, v := range buf {
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return peak
}

// Clamp limits value to [lo, hi]. Swapped bounds are reordered.
func Clamp[T Sample](value, lo, hi T) T {
	if lo > hi {
		lo, hi = hi, lo
	}
	return min(max(value, lo), hi)
}

// DBToLinear converts a gain in dB to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear amplitude to dB. Zero maps to -Inf and
// negative values to NaN.
func LinearToDB(linear float64) float64 {
	switch {
	case linear < 0:
		return math.NaN()
	case linear == 0:
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}
