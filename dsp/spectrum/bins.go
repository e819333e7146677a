package spectrum

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-vecmath"
	"github.com/meko-christian/algo-approx"
)

const ln10 = 2.302585092994045684017991454684364208

// MinDecibels is the floor ToDecibels clamps silent bins to.
const MinDecibels = -130.0

// ToDecibels converts magnitudes to dB in place, floored at MinDecibels.
func ToDecibels(mag []float64) []float64 {
	for i, m := range mag {
		if m <= 0 {
			mag[i] = MinDecibels
			continue
		}
		mag[i] = math.Max(20*approx.FastLog(m)/ln10, MinDecibels)
	}
	return mag
}

// PeakBin returns the strongest bin and its value. It returns -1 for an
// empty spectrum.
func PeakBin(mag []float64) (int, float64) {
	if len(mag) == 0 {
		return -1, 0
	}
	best := 0
	for k, m := range mag {
		if m > mag[best] {
			best = k
		}
	}
	return best, mag[best]
}

// TopBins returns the indices of the n strongest bins, strongest first.
// Equal magnitudes keep ascending bin order.
func TopBins(mag []float64, n int) []int {
	bins := make([]int, len(mag))
	for k := range bins {
		bins[k] = k
	}
	sort.SliceStable(bins, func(i, j int) bool { return mag[bins[i]] > mag[bins[j]] })
	return bins[:max(0, min(n, len(bins)))]
}

// Average accumulates magnitude spectra of equal length.
type Average struct {
	sum []float64
	n   int
}

// Add accumulates one spectrum. The first call fixes the bin count; later
// spectra of a different length are ignored and Add returns false.
func (a *Average) Add(mag []float64) bool {
	if a.sum == nil {
		a.sum = make([]float64, len(mag))
	}
	if len(mag) != len(a.sum) {
		return false
	}
	vecmath.AddBlockInPlace(a.sum, mag)
	a.n++
	return true
}

// Count returns the number of spectra added.
func (a *Average) Count() int { return a.n }

// Mean returns the bin-wise mean, or nil before the first Add.
func (a *Average) Mean() []float64 {
	if a.n == 0 {
		return nil
	}
	out := make([]float64, len(a.sum))
	vecmath.ScaleBlock(out, a.sum, 1/float64(a.n))
	return out
}

// Reset discards all accumulated spectra.
func (a *Average) Reset() {
	a.sum = nil
	a.n = 0
}
