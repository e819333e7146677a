package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestApplyProcessorOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []ProcessorOption
		want ProcessorConfig
	}{
		{"defaults", nil, ProcessorConfig{SampleRate: 44100, BlockSize: 512}},
		{"both", []ProcessorOption{WithSampleRate(96000), WithBlockSize(256)}, ProcessorConfig{SampleRate: 96000, BlockSize: 256}},
		{"invalid ignored", []ProcessorOption{WithSampleRate(0), WithBlockSize(-1), nil}, DefaultProcessorConfig()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyProcessorOptions(tt.opts...); got != tt.want {
				t.Fatalf("cfg = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultProcessorConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	for _, cfg := range []ProcessorConfig{{}, {SampleRate: 44100}, {BlockSize: 64}} {
		if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("Validate(%#v) = %v, want ErrConfiguration", cfg, err)
		}
	}
}

func TestBlockDuration(t *testing.T) {
	cfg := ApplyProcessorOptions(WithSampleRate(48000), WithBlockSize(480))
	if got := cfg.BlockDuration(); got != 10*time.Millisecond {
		t.Fatalf("BlockDuration() = %v, want 10ms", got)
	}
	if got := (ProcessorConfig{}).BlockDuration(); got != 0 {
		t.Fatalf("zero config BlockDuration() = %v, want 0", got)
	}
}

func TestFrameSecondConversions(t *testing.T) {
	if got := SecondsToFrames(0.5, 44100); got != 22050 {
		t.Fatalf("SecondsToFrames = %d, want 22050", got)
	}
	if got := SecondsToFrames(1.0/3, 3); got != 1 {
		t.Fatalf("SecondsToFrames rounding = %d, want 1", got)
	}
	if got := FramesToSeconds(22050, 44100); got != 0.5 {
		t.Fatalf("FramesToSeconds = %v, want 0.5", got)
	}
	if got := FramesToSeconds(10, 0); got != 0 {
		t.Fatalf("FramesToSeconds at rate 0 = %v, want 0", got)
	}
}

func TestResize(t *testing.T) {
	buf := make([]int, 2, 8)
	out := Resize(buf, 6)
	if len(out) != 6 || &out[0] != &buf[0] {
		t.Fatal("Resize should reuse capacity")
	}
	grown := Resize(out, 20)
	if len(grown) != 20 || cap(grown) < 20 {
		t.Fatalf("len = %d, cap = %d", len(grown), cap(grown))
	}
	if got := Resize(grown, 0); len(got) != 0 {
		t.Fatalf("Resize(0) len = %d", len(got))
	}
}

func TestPeakAbsAndZero(t *testing.T) {
	buf := []float32{0.25, -0.75, 0.5}
	if got := PeakAbs(buf); got != 0.75 {
		t.Fatalf("PeakAbs = %v, want 0.75", got)
	}
	Zero(buf)
	if got := PeakAbs(buf); got != 0 {
		t.Fatalf("PeakAbs after Zero = %v", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name          string
		value, lo, hi float64
		want          float64
	}{
		{"inside", 0.5, 0, 1, 0.5},
		{"below", -1, 0, 1, 0},
		{"above", 2, 0, 1, 1},
		{"swapped", 2, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.value, tt.lo, tt.hi); got != tt.want {
				t.Fatalf("Clamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecibels(t *testing.T) {
	if got := LinearToDB(DBToLinear(-6)); math.Abs(got+6) > 1e-10 {
		t.Fatalf("round trip = %v, want -6", got)
	}
	if got := DBToLinear(0); got != 1 {
		t.Fatalf("DBToLinear(0) = %v", got)
	}
	if !math.IsInf(LinearToDB(0), -1) {
		t.Fatal("expected -Inf for zero")
	}
	if !math.IsNaN(LinearToDB(-1)) {
		t.Fatal("expected NaN for negative amplitude")
	}
}
