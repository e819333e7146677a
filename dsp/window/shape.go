package window

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Type identifies a window shape.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeTriangle
	TypeBlackmanHarris
)

// DefaultBlackmanAlpha is the α of the classic Blackman window.
const DefaultBlackmanAlpha = 0.16

// Metadata describes a window shape at large N.
type Metadata struct {
	Name string
	// ENBW is the equivalent noise bandwidth in bins.
	ENBW float64
	// CoherentGain is the mean coefficient; a full-scale bin-centred sine
	// reads CoherentGain/2 in a one-sided magnitude spectrum.
	CoherentGain float64
}

type shape struct {
	meta Metadata
	// cosine-sum terms with alternating sign already applied; nil for
	// shapes evaluated by eval.
	terms []float64
	eval  func(x float64) float64
}

var shapes = map[Type]shape{
	TypeRectangular: {
		meta: Metadata{Name: "Rectangular", ENBW: 1, CoherentGain: 1},
		eval: func(float64) float64 { return 1 },
	},
	TypeHann: {
		meta:  Metadata{Name: "Hann", ENBW: 1.5, CoherentGain: 0.5},
		terms: []float64{0.5, -0.5},
	},
	TypeHamming: {
		meta:  Metadata{Name: "Hamming", ENBW: 1.3628, CoherentGain: 0.54},
		terms: []float64{0.54, -0.46},
	},
	TypeBlackman: {
		meta:  Metadata{Name: "Blackman", ENBW: 1.7268, CoherentGain: 0.42},
		terms: blackmanTerms(DefaultBlackmanAlpha),
	},
	TypeTriangle: {
		meta: Metadata{Name: "Triangle", ENBW: 1.3333, CoherentGain: 0.5},
		eval: func(x float64) float64 { return 1 - math.Abs(2*x-1) },
	},
	TypeBlackmanHarris: {
		meta:  Metadata{Name: "Blackman-Harris", ENBW: 2.0044, CoherentGain: 0.35875},
		terms: []float64{0.35875, -0.48829, 0.14128, -0.01168},
	},
}

// Types lists every supported shape in declaration order.
func Types() []Type {
	out := make([]Type, 0, len(shapes))
	for t := TypeRectangular; int(t) < len(shapes); t++ {
		out = append(out, t)
	}
	return out
}

func (t Type) String() string {
	if s, ok := shapes[t]; ok {
		return s.meta.Name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Parse returns the shape with the given case-insensitive name. Hyphens may
// be omitted, so "blackmanharris" selects Blackman-Harris.
func Parse(name string) (Type, error) {
	key := strings.ReplaceAll(name, "-", "")
	for t, s := range shapes {
		if strings.EqualFold(strings.ReplaceAll(s.meta.Name, "-", ""), key) {
			return t, nil
		}
	}
	return TypeRectangular, fmt.Errorf("%w: unknown window %q", core.ErrConfiguration, name)
}

// Info returns the static metadata of a shape. Unknown types return the zero
// Metadata.
func Info(t Type) Metadata {
	return shapes[t].meta
}

func blackmanTerms(alpha float64) []float64 {
	return []float64{0.5 * (1 - alpha), -0.5, 0.5 * alpha}
}

func (s shape) at(x float64, alpha float64, blackman bool) float64 {
	if s.eval != nil {
		return s.eval(x)
	}
	terms := s.terms
	if blackman && alpha != DefaultBlackmanAlpha {
		terms = blackmanTerms(alpha)
	}
	sum := 0.0
	for k, a := range terms {
		sum += a * math.Cos(2*math.Pi*float64(k)*x)
	}
	return sum
}
