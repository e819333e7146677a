package biquad

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

const rate = 48000.0

func mustDesign(t *testing.T, k Kind, freq, q, gainDB float64) Coefficients {
	t.Helper()
	c, err := Design(k, freq, q, gainDB, rate)
	if err != nil {
		t.Fatalf("Design(%s): %v", k, err)
	}
	return c
}

func TestDesignResponses(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		gainDB float64
		at     float64
		wantDB float64
	}{
		{"lowpass passes DC", Lowpass, 0, 0, 0},
		{"lowpass -3dB at cutoff", Lowpass, 0, 1000, -3.0103},
		{"highpass passes Nyquist", Highpass, 0, rate / 2, 0},
		{"highpass -3dB at cutoff", Highpass, 0, 1000, -3.0103},
		{"bandpass unity at centre", Bandpass, 0, 1000, 0},
		{"allpass flat", Allpass, 0, 5000, 0},
		{"peak gain at centre", Peak, 6, 1000, 6},
		{"low shelf gain at DC", LowShelf, -9, 0, -9},
		{"high shelf gain at Nyquist", HighShelf, 4, rate / 2, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustDesign(t, tt.kind, 1000, 0, tt.gainDB)
			if got := c.MagnitudeDB(tt.at, rate); math.Abs(got-tt.wantDB) > 1e-3 {
				t.Fatalf("|H(%v)| = %.4f dB, want %.4f", tt.at, got, tt.wantDB)
			}
		})
	}
}

func TestDesignStopbands(t *testing.T) {
	if got := mustDesign(t, Lowpass, 1000, 0, 0).MagnitudeSquared(rate/2, rate); got > 1e-20 {
		t.Fatalf("lowpass at Nyquist = %g, want 0", got)
	}
	if got := mustDesign(t, Highpass, 1000, 0, 0).MagnitudeDB(10, rate); got > -70 {
		t.Fatalf("highpass at 10 Hz = %.1f dB, want < -70", got)
	}
	if got := mustDesign(t, Notch, 1000, 4, 0).MagnitudeSquared(1000, rate); got > 1e-20 {
		t.Fatalf("notch at centre = %g, want 0", got)
	}
}

func TestDesignRejects(t *testing.T) {
	for _, tt := range []struct {
		name             string
		kind             Kind
		freq, sampleRate float64
	}{
		{"zero freq", Lowpass, 0, rate},
		{"at Nyquist", Lowpass, rate / 2, rate},
		{"bad rate", Lowpass, 100, 0},
		{"unknown kind", Kind(99), 100, rate},
	} {
		c, err := Design(tt.kind, tt.freq, 0, 0, tt.sampleRate)
		if !errors.Is(err, core.ErrConfiguration) {
			t.Fatalf("%s: err = %v, want ErrConfiguration", tt.name, err)
		}
		if c != Identity {
			t.Fatalf("%s: coefficients = %+v, want Identity", tt.name, c)
		}
	}
}

func TestParseKind(t *testing.T) {
	for k := Lowpass; k <= HighShelf; k++ {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, _ := ParseKind("LowPass"); got != Lowpass {
		t.Fatalf("case-insensitive parse = %v", got)
	}
	if _, err := ParseKind("comb"); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
	if !Peak.UsesGain() || Lowpass.UsesGain() {
		t.Fatal("UsesGain mismatch")
	}
	if Kind(-1).String() != "Kind(-1)" {
		t.Fatalf("String() = %q", Kind(-1).String())
	}
}

func TestFilterBlockMatchesSamples(t *testing.T) {
	c := mustDesign(t, Lowpass, 2000, 0.9, 0)
	want := c.ImpulseResponse(64)

	f := NewFilter(2)
	f.Coefficients = c
	block := make([]float32, 64)
	block[0] = 1
	// Split the block to check state carries across calls.
	f.Process(0, block[:20])
	f.Process(0, block[20:])
	for i, v := range block {
		if math.Abs(float64(v)-want[i]) > 1e-6 {
			t.Fatalf("y[%d] = %v, want %v", i, v, want[i])
		}
	}

	other := make([]float32, 8)
	f.Process(1, other)
	for i, v := range other {
		if v != 0 {
			t.Fatalf("channel 1 sample %d = %v, channels must not share state", i, v)
		}
	}
}

func TestFilterResetAndResize(t *testing.T) {
	f := NewFilter(1)
	f.Coefficients = mustDesign(t, Lowpass, 500, 0, 0)
	f.ProcessSample(0, 1)
	f.Reset()
	if got := f.ProcessSample(0, 0); got != 0 {
		t.Fatalf("after Reset y = %v, want 0", got)
	}

	f.SetChannels(3)
	if f.NumChannels() != 3 {
		t.Fatalf("NumChannels() = %d", f.NumChannels())
	}
	ir := Identity.ImpulseResponse(3)
	if ir[0] != 1 || ir[1] != 0 || ir[2] != 0 {
		t.Fatalf("identity impulse response = %v", ir)
	}
	if Identity.ImpulseResponse(0) != nil {
		t.Fatal("zero-length impulse response should be nil")
	}
}
