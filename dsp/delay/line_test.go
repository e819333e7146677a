package delay

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

func rampLine(t *testing.T, maxDelay, n int) *Line {
	t.Helper()
	l, err := New(maxDelay)
	if err != nil {
		t.Fatal(err)
	}
	for i := range n {
		l.Write(float32(i))
	}
	return l
}

func TestReadInteger(t *testing.T) {
	l := rampLine(t, 8, 20)
	for d, want := range map[int]float32{1: 19, 3: 17, 8: 12} {
		if got := l.Read(d); got != want {
			t.Fatalf("Read(%d) = %v, want %v", d, got, want)
		}
	}
	if got := l.Read(0); got != 19 {
		t.Fatalf("Read(0) = %v, want clamp to the newest sample", got)
	}
}

func TestReadFractionalOnRamp(t *testing.T) {
	l := rampLine(t, 16, 40)
	tests := []struct {
		d    float64
		want float32
	}{
		{2, 38},
		{2.5, 37.5},
		{7.25, 32.75},
		{100, 24}, // clamped to MaxDelay
		{0.2, 39}, // clamped to 1
	}
	for _, tt := range tests {
		if got := l.ReadFractional(tt.d); got != tt.want {
			t.Fatalf("ReadFractional(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestResetAndErrors(t *testing.T) {
	l := rampLine(t, 4, 10)
	if l.MaxDelay() != 4 {
		t.Fatalf("MaxDelay() = %d", l.MaxDelay())
	}
	l.Reset()
	for d := 1; d <= 4; d++ {
		if got := l.Read(d); got != 0 {
			t.Fatalf("Read(%d) after Reset = %v", d, got)
		}
	}
	if _, err := New(0); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("New(0) err = %v", err)
	}
}
