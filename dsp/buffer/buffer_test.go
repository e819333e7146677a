package buffer

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

func TestNewZeroFilled(t *testing.T) {
	b := New(8, 2)
	if b.NumFrames() != 8 || b.NumChannels() != 2 {
		t.Fatalf("shape = %dx%d, want 8x2", b.NumFrames(), b.NumChannels())
	}
	if b.Size() != 16 {
		t.Fatalf("Size() = %d, want 16", b.Size())
	}
	for i, v := range b.Data() {
		if v != 0 {
			t.Fatalf("Data()[%d] = %v, want 0", i, v)
		}
	}
}

func TestNewNegativeShape(t *testing.T) {
	b := New(-1, -3)
	if b.Size() != 0 {
		t.Fatalf("Size() = %d, want 0 for negative input", b.Size())
	}
}

func TestFromSliceSharesMemory(t *testing.T) {
	s := []float32{1, 2, 3, 4}
	b, err := FromSlice(s, 2, LayoutPlanar)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	b.Channel(1)[0] = 99
	if s[2] != 99 {
		t.Fatal("FromSlice should share underlying memory")
	}
}

func TestFromSliceRejectsRaggedData(t *testing.T) {
	if _, err := FromSlice(make([]float32, 5), 2, LayoutPlanar); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if _, err := FromSlice(nil, 0, LayoutPlanar); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestChannelAtStride(t *testing.T) {
	b := New(4, 3)
	for ch := 0; ch < 3; ch++ {
		c := b.Channel(ch)
		for i := range c {
			c[i] = float32(ch*10 + i)
		}
	}
	want := []float32{0, 1, 2, 3, 10, 11, 12, 13, 20, 21, 22, 23}
	for i, v := range b.Data() {
		if v != want[i] {
			t.Fatalf("Data()[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestChannelAtErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  *Buffer
		ch   int
	}{
		{"negative", New(4, 2), -1},
		{"too large", New(4, 2), 2},
		{"interleaved", NewInterleaved(4, 2), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.buf.ChannelAt(tt.ch); !errors.Is(err, core.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestChannelPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Channel should panic for an out-of-range index")
		}
	}()
	New(4, 1).Channel(1)
}

func TestSetNumFrames(t *testing.T) {
	b := New(8, 2)
	if err := b.SetNumFrames(4); err != nil {
		t.Fatalf("SetNumFrames(4): %v", err)
	}
	if b.NumFrames() != 4 || b.Size() != 8 || len(b.Channel(1)) != 4 {
		t.Fatalf("unexpected shape after shrink: frames=%d size=%d", b.NumFrames(), b.Size())
	}
	if b.Capacity() != 8 {
		t.Fatalf("Capacity() = %d, want 8", b.Capacity())
	}
	if err := b.SetNumFrames(8); err != nil {
		t.Fatalf("SetNumFrames(8): %v", err)
	}
	if err := b.SetNumFrames(9); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if b.NumFrames() != 8 {
		t.Fatalf("failed SetNumFrames changed frames to %d", b.NumFrames())
	}
}

func TestSetNumFramesKeepsChannels(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
	}{
		{"planar", LayoutPlanar},
		{"interleaved", LayoutInterleaved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuffer(6, 3, tt.layout)
			frame := func(i, ch int) float32 { return float32(10*ch + i + 1) }
			set := func(i, ch int, v float32) {
				if tt.layout == LayoutPlanar {
					b.Channel(ch)[i] = v
					return
				}
				b.Data()[i*3+ch] = v
			}
			get := func(i, ch int) float32 {
				if tt.layout == LayoutPlanar {
					return b.Channel(ch)[i]
				}
				return b.Data()[i*3+ch]
			}
			for ch := range 3 {
				for i := range 6 {
					set(i, ch, frame(i, ch))
				}
			}

			if err := b.SetNumFrames(2); err != nil {
				t.Fatalf("SetNumFrames(2): %v", err)
			}
			for ch := range 3 {
				for i := range 2 {
					if got := get(i, ch); got != frame(i, ch) {
						t.Fatalf("after shrink ch%d[%d] = %v, want %v", ch, i, got, frame(i, ch))
					}
				}
			}

			if err := b.SetNumFrames(5); err != nil {
				t.Fatalf("SetNumFrames(5): %v", err)
			}
			for ch := range 3 {
				for i := range 5 {
					want := frame(i, ch)
					if i >= 2 {
						want = 0
					}
					if got := get(i, ch); got != want {
						t.Fatalf("after grow ch%d[%d] = %v, want %v", ch, i, got, want)
					}
				}
			}
		})
	}
}

func TestZeroFrames(t *testing.T) {
	b := New(4, 2)
	for i := range b.Data() {
		b.Data()[i] = 1
	}
	b.ZeroFrames(1, 3)
	want := []float32{1, 0, 0, 1, 1, 0, 0, 1}
	for i, v := range b.Data() {
		if v != want[i] {
			t.Fatalf("Data()[%d] = %v, want %v", i, v, want[i])
		}
	}
	b.ZeroFrames(-5, 100)
	for i, v := range b.Data() {
		if v != 0 {
			t.Fatalf("Data()[%d] = %v, want 0", i, v)
		}
	}
}

func TestCopyFromSharedChannels(t *testing.T) {
	src := New(4, 2)
	copy(src.Data(), []float32{1, 2, 3, 4, 5, 6, 7, 8})
	dst := New(3, 1)
	n, err := dst.CopyFrom(src)
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 3 {
		t.Fatalf("copied %d frames, want 3", n)
	}
	want := []float32{1, 2, 3}
	for i, v := range dst.Data() {
		if v != want[i] {
			t.Fatalf("Data()[%d] = %v, want %v", i, v, want[i])
		}
	}
	if _, err := New(4, 2).CopyFrom(NewInterleaved(4, 2)); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("layout mismatch err = %v, want ErrConfiguration", err)
	}
}

func TestScale(t *testing.T) {
	b := New(2, 2)
	copy(b.Data(), []float32{1, -2, 3, -4})
	b.Scale(0.5)
	want := []float32{0.5, -1, 1.5, -2}
	for i, v := range b.Data() {
		if v != want[i] {
			t.Fatalf("Data()[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestExceedsThreshold(t *testing.T) {
	b := New(8, 2)
	if _, ok := b.ExceedsThreshold(2); ok {
		t.Fatal("silent buffer should not exceed threshold")
	}
	b.Channel(0)[6] = 2.5
	b.Channel(1)[3] = -2
	frame, ok := b.ExceedsThreshold(2)
	if !ok || frame != 3 {
		t.Fatalf("ExceedsThreshold = (%d, %v), want (3, true)", frame, ok)
	}

	il := NewInterleaved(4, 2)
	il.Data()[5] = 3
	frame, ok = il.ExceedsThreshold(2)
	if !ok || frame != 2 {
		t.Fatalf("interleaved ExceedsThreshold = (%d, %v), want (2, true)", frame, ok)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	b := New(2, 1)
	b.Data()[0] = 7
	c := b.Copy()
	c.Data()[0] = 0
	if b.Data()[0] != 7 {
		t.Fatal("Copy should not share memory")
	}
}

func TestAddFromAndPeak(t *testing.T) {
	dst := New(3, 2)
	src := New(2, 1)
	copy(src.Channel(0), []float32{0.5, -2})
	copy(dst.Channel(0), []float32{1, 1, 1})

	n, err := dst.AddFrom(src)
	if err != nil {
		t.Fatalf("AddFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("AddFrom frames = %d, want 2", n)
	}
	got := dst.Channel(0)
	want := []float32{1.5, -1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ch0[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if p := dst.Peak(); p != 1.5 {
		t.Fatalf("Peak() = %v, want 1.5", p)
	}

	if _, err := dst.AddFrom(NewInterleaved(3, 2)); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("AddFrom layout mismatch err = %v, want ErrConfiguration", err)
	}
}
