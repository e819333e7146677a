package audiofile

import (
	"fmt"
	"io"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

type memoryReader struct {
	data     []float32
	channels int
	pos      int
}

func (m *memoryReader) readFrames(dst []float32) (int, error) {
	frames := len(m.data) / m.channels
	if m.pos >= frames {
		return 0, io.EOF
	}
	n := min(len(dst)/m.channels, frames-m.pos)
	copy(dst, m.data[m.pos*m.channels:(m.pos+n)*m.channels])
	m.pos += n
	return n, nil
}

func (m *memoryReader) seekFrame(frame int) error {
	m.pos = frame
	return nil
}

// MemorySource serves frames held in memory.
type MemorySource struct {
	source
}

// NewMemorySource copies buf into a source running at sampleRate.
func NewMemorySource(buf *buffer.Buffer, sampleRate float64, opts ...Option) (*MemorySource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be > 0: %f", core.ErrConfiguration, sampleRate)
	}
	if buf.NumChannels() <= 0 {
		return nil, fmt.Errorf("%w: source needs at least one channel", core.ErrConfiguration)
	}

	data := make([]float32, buf.Size())
	if buf.Layout() == buffer.LayoutInterleaved {
		copy(data, buf.Data())
	} else if err := buffer.InterleaveTo(data, buf); err != nil {
		return nil, err
	}
	return newMemorySource(data, buf.NumChannels(), sampleRate, applyOptions(opts)), nil
}

func newMemorySource(interleaved []float32, channels int, sampleRate float64, o options) *MemorySource {
	r := &memoryReader{data: interleaved, channels: channels}
	return &MemorySource{source: newSource(r, sampleRate, channels, len(interleaved)/channels, o)}
}
