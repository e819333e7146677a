package buffer

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Layout describes how channels are arranged in a Buffer's sample store.
type Layout int

const (
	// LayoutPlanar stores each channel as its own contiguous run.
	LayoutPlanar Layout = iota
	// LayoutInterleaved stores samples frame by frame.
	LayoutInterleaved
)

func (l Layout) String() string {
	switch l {
	case LayoutPlanar:
		return "planar"
	case LayoutInterleaved:
		return "interleaved"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Buffer is a fixed-capacity multichannel float32 sample container.
//
// The logical frame count may shrink and grow up to the capacity the buffer
// was created with; this never reallocates. Planar channels are stored with a
// stride equal to the logical frame count, so SetNumFrames moves channel runs
// to keep their leading frames.
type Buffer struct {
	data        []float32
	numChannels int
	numFrames   int
	capFrames   int
	layout      Layout
}

// New returns a zero-filled planar Buffer.
func New(numFrames, numChannels int) *Buffer {
	return newBuffer(numFrames, numChannels, LayoutPlanar)
}

// NewInterleaved returns a zero-filled interleaved Buffer.
func NewInterleaved(numFrames, numChannels int) *Buffer {
	return newBuffer(numFrames, numChannels, LayoutInterleaved)
}

func newBuffer(numFrames, numChannels int, layout Layout) *Buffer {
	if numFrames < 0 {
		numFrames = 0
	}
	if numChannels < 0 {
		numChannels = 0
	}
	return &Buffer{
		data:        make([]float32, numFrames*numChannels),
		numChannels: numChannels,
		numFrames:   numFrames,
		capFrames:   numFrames,
		layout:      layout,
	}
}

// FromSlice wraps an existing slice without copying. The slice length must be
// a multiple of numChannels.
func FromSlice(data []float32, numChannels int, layout Layout) (*Buffer, error) {
	if numChannels <= 0 {
		return nil, fmt.Errorf("%w: channel count must be > 0: %d", core.ErrConfiguration, numChannels)
	}
	if len(data)%numChannels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels",
			core.ErrConfiguration, len(data), numChannels)
	}
	frames := len(data) / numChannels
	return &Buffer{
		data:        data,
		numChannels: numChannels,
		numFrames:   frames,
		capFrames:   frames,
		layout:      layout,
	}, nil
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return b.numChannels }

// NumFrames returns the logical frames per channel.
func (b *Buffer) NumFrames() int { return b.numFrames }

// Capacity returns the number of frames per channel the store can hold.
func (b *Buffer) Capacity() int { return b.capFrames }

// Size returns the logical sample count (frames × channels).
func (b *Buffer) Size() int { return b.numFrames * b.numChannels }

// Layout returns the channel arrangement.
func (b *Buffer) Layout() Layout { return b.layout }

// Data returns the logical extent of the sample store.
func (b *Buffer) Data() []float32 {
	return b.data[:b.Size()]
}

// ChannelAt returns a view of channel ch of a planar buffer.
func (b *Buffer) ChannelAt(ch int) ([]float32, error) {
	if b.layout != LayoutPlanar {
		return nil, fmt.Errorf("%w: channel view needs a planar buffer", core.ErrConfiguration)
	}
	if ch < 0 || ch >= b.numChannels {
		return nil, fmt.Errorf("%w: channel %d out of range (channels: %d)", core.ErrConfiguration, ch, b.numChannels)
	}
	start := ch * b.numFrames
	return b.data[start : start+b.numFrames : start+b.numFrames], nil
}

// Channel is like ChannelAt but panics on error. It is meant for render code
// that already validated the channel count at initialization.
func (b *Buffer) Channel(ch int) []float32 {
	c, err := b.ChannelAt(ch)
	if err != nil {
		panic("buffer: " + err.Error())
	}
	return c
}

// SetNumFrames changes the logical frame count without reallocating. The
// first min(old, n) frames of every channel are kept; frames gained by
// growing are zero.
func (b *Buffer) SetNumFrames(n int) error {
	if n < 0 || n > b.capFrames {
		return fmt.Errorf("%w: %d frames exceed capacity %d", core.ErrConfiguration, n, b.capFrames)
	}
	old := b.numFrames
	switch {
	case n == old:
		return nil
	case b.layout == LayoutInterleaved:
		if n > old {
			core.Zero(b.data[old*b.numChannels : n*b.numChannels])
		}
	case n < old:
		// Moving down in ascending channel order never overwrites a run
		// that is still to be moved.
		for ch := 1; ch < b.numChannels; ch++ {
			copy(b.data[ch*n:ch*n+n], b.data[ch*old:ch*old+n])
		}
	default:
		for ch := b.numChannels - 1; ch >= 0; ch-- {
			copy(b.data[ch*n:ch*n+old], b.data[ch*old:ch*old+old])
			core.Zero(b.data[ch*n+old : ch*n+n])
		}
	}
	b.numFrames = n
	return nil
}

// Zero sets every sample in the logical extent to 0.
func (b *Buffer) Zero() {
	core.Zero(b.Data())
}

// ZeroFrames sets frames [start, end) of every channel to 0.
// Indices are clamped to valid bounds.
func (b *Buffer) ZeroFrames(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > b.numFrames {
		end = b.numFrames
	}
	if start >= end {
		return
	}
	if b.layout == LayoutInterleaved {
		core.Zero(b.data[start*b.numChannels : end*b.numChannels])
		return
	}
	for ch := 0; ch < b.numChannels; ch++ {
		core.Zero(b.Channel(ch)[start:end])
	}
}

// CopyFrom copies src into b frame by frame for the channels both share and
// returns the number of frames copied. Layouts must match.
func (b *Buffer) CopyFrom(src *Buffer) (int, error) {
	if b.layout != src.layout {
		return 0, fmt.Errorf("%w: layout mismatch %s != %s", core.ErrConfiguration, b.layout, src.layout)
	}
	frames := min(b.numFrames, src.numFrames)
	if b.layout == LayoutInterleaved {
		if b.numChannels != src.numChannels {
			return 0, fmt.Errorf("%w: interleaved copy needs equal channel counts", core.ErrConfiguration)
		}
		copy(b.data[:frames*b.numChannels], src.data[:frames*src.numChannels])
		return frames, nil
	}
	channels := min(b.numChannels, src.numChannels)
	for ch := 0; ch < channels; ch++ {
		copy(b.Channel(ch)[:frames], src.Channel(ch)[:frames])
	}
	return frames, nil
}

// AddFrom adds src into b for the channels and frames both share and
// returns the number of frames mixed. Layouts must match.
func (b *Buffer) AddFrom(src *Buffer) (int, error) {
	if b.layout != src.layout {
		return 0, fmt.Errorf("%w: layout mismatch %s != %s", core.ErrConfiguration, b.layout, src.layout)
	}
	frames := min(b.numFrames, src.numFrames)
	if b.layout == LayoutInterleaved {
		if b.numChannels != src.numChannels {
			return 0, fmt.Errorf("%w: interleaved mix needs equal channel counts", core.ErrConfiguration)
		}
		dst := b.data[:frames*b.numChannels]
		for i, v := range src.data[:frames*src.numChannels] {
			dst[i] += v
		}
		return frames, nil
	}
	channels := min(b.numChannels, src.numChannels)
	for ch := 0; ch < channels; ch++ {
		dst := b.Channel(ch)[:frames]
		for i, v := range src.Channel(ch)[:frames] {
			dst[i] += v
		}
	}
	return frames, nil
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float32 {
	return core.PeakAbs(b.Data())
}

// Scale multiplies every sample in the logical extent by gain.
func (b *Buffer) Scale(gain float32) {
	data := b.Data()
	for i := range data {
		data[i] *= gain
	}
}

// ExceedsThreshold reports the earliest frame at which any channel's
// absolute value reaches threshold.
func (b *Buffer) ExceedsThreshold(threshold float32) (frame int, ok bool) {
	if b.layout == LayoutInterleaved {
		for i, v := range b.Data() {
			if v >= threshold || v <= -threshold {
				return i / b.numChannels, true
			}
		}
		return 0, false
	}
	frame = b.numFrames
	for ch := 0; ch < b.numChannels; ch++ {
		for i, v := range b.Channel(ch)[:frame] {
			if v >= threshold || v <= -threshold {
				frame = i
				ok = true
				break
			}
		}
	}
	if !ok {
		return 0, false
	}
	return frame, true
}

// Copy returns a deep copy of the logical extent.
func (b *Buffer) Copy() *Buffer {
	c := newBuffer(b.numFrames, b.numChannels, b.layout)
	copy(c.data, b.Data())
	return c
}

// reshape sets a new shape, growing the store when needed.
func (b *Buffer) reshape(numFrames, numChannels int, layout Layout) {
	need := numFrames * numChannels
	if cap(b.data) < need {
		b.data = make([]float32, need)
	}
	b.data = b.data[:cap(b.data)]
	b.numChannels = numChannels
	b.numFrames = numFrames
	b.capFrames = numFrames
	if numChannels > 0 {
		b.capFrames = len(b.data) / numChannels
	}
	b.layout = layout
}
