package testutil

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// MaxAbsDiff returns the largest |a[i]-b[i]| over the common prefix and
// whether the lengths matched.
func MaxAbsDiff[T core.Sample](a, b []T) (diff float64, sameLen bool) {
	for i := range min(len(a), len(b)) {
		diff = max(diff, math.Abs(float64(a[i])-float64(b[i])))
	}
	return diff, len(a) == len(b)
}

// RequireNear fails t unless got and want have equal length and every pair
// is within eps.
func RequireNear[T core.Sample](t testing.TB, got, want []T, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range got {
		if d := math.Abs(float64(got[i]) - float64(want[i])); d > eps {
			t.Fatalf("sample %d: got %v, want %v (|diff| %g > %g)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireSilent fails t if any sample is non-zero.
func RequireSilent[T core.Sample](t testing.TB, data []T) {
	t.Helper()
	for i, v := range data {
		if v != 0 {
			t.Fatalf("sample %d: got %v, want silence", i, v)
		}
	}
}

// RequireFinite fails t on the first NaN or Inf.
func RequireFinite[T core.Sample](t testing.TB, data []T) {
	t.Helper()
	for i, v := range data {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("sample %d: non-finite %v", i, v)
		}
	}
}
