package signal

import (
	"math"
	"testing"
)

func TestSineMatchesClosedForm(t *testing.T) {
	const rate = 44100
	osc := NewOscillator(ShapeSine, rate)
	out := make([]float32, 512)

	// Two blocks must continue the phase.
	osc.Process(out[:256], 220)
	osc.Process(out[256:], 220)

	for n, v := range out {
		want := math.Sin(2 * math.Pi * 220 * float64(n) / rate)
		if math.Abs(float64(v)-want) > 1e-5 {
			t.Fatalf("out[%d] = %v, want %v", n, v, want)
		}
	}
}

func TestPhasorWraps(t *testing.T) {
	osc := NewOscillator(ShapePhasor, 4)
	out := make([]float32, 6)
	osc.Process(out, 1)
	want := []float32{0, 0.25, 0.5, 0.75, 0, 0.25}
	for i, v := range out {
		if v != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, v, want[i])
		}
	}
	if osc.Phase() != 0.5 {
		t.Fatalf("Phase() = %v, want 0.5", osc.Phase())
	}
	osc.Reset()
	if osc.Phase() != 0 {
		t.Fatal("Reset should zero the phase")
	}
}

func TestTriangle(t *testing.T) {
	osc := NewOscillator(ShapeTriangle, 8)
	out := make([]float32, 8)
	osc.Process(out, 1)
	// Symmetric triangle: -1 at phase 0, +1 at phase 0.5.
	if out[0] != -1 || out[4] != 1 {
		t.Fatalf("triangle = %v", out)
	}
	if out[2] != 0 || out[6] != 0 {
		t.Fatalf("triangle zero crossings = %v", out)
	}
}

func TestProcessVaryingMatchesConstant(t *testing.T) {
	a := NewOscillator(ShapeSine, 48000)
	b := NewOscillator(ShapeSine, 48000)
	freqs := make([]float32, 128)
	for i := range freqs {
		freqs[i] = 1000
	}
	outA := make([]float32, 128)
	outB := make([]float32, 128)
	a.Process(outA, 1000)
	b.ProcessVarying(outB, freqs)
	for i := range outA {
		if math.Abs(float64(outA[i]-outB[i])) > 1e-6 {
			t.Fatalf("index %d: %v != %v", i, outA[i], outB[i])
		}
	}
}

func TestNoiseSeeded(t *testing.T) {
	a := make([]float32, 32)
	b := make([]float32, 32)
	NewNoise(7).Process(a)
	NewNoise(7).Process(b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise mismatch at %d", i)
		}
		if a[i] < -1 || a[i] > 1 {
			t.Fatalf("noise[%d] = %v out of range", i, a[i])
		}
	}
}
