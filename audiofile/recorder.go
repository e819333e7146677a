package audiofile

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Recorder renders a graph offline by pulling blocks from a Manual device
// and writing them to a TargetFile.
type Recorder struct {
	dev    *device.Manual
	target TargetFile
	block  *buffer.Buffer
	frames int
}

// NewRecorder records dev's output into target.
func NewRecorder(dev *device.Manual, target TargetFile) (*Recorder, error) {
	desc := dev.Descriptor()
	if desc.NumOutputChannels <= 0 {
		return nil, fmt.Errorf("%w: device %q has no output channels", core.ErrConfiguration, desc.Name)
	}
	return &Recorder{
		dev:    dev,
		target: target,
		block:  buffer.New(desc.FramesPerBlock, desc.NumOutputChannels),
	}, nil
}

// Record renders frames frames. The last block is truncated to fit. The
// device must be running for the output to be non-silent.
func (r *Recorder) Record(frames int) error {
	if frames < 0 {
		return fmt.Errorf("%w: negative frame count %d", core.ErrConfiguration, frames)
	}
	for remaining := frames; remaining > 0; {
		out := r.dev.RenderBlock()
		if len(out) != r.block.Size() {
			return fmt.Errorf("%w: device format changed while recording", core.ErrState)
		}
		if err := buffer.DeinterleaveFrom(r.block, out); err != nil {
			return err
		}
		n := min(remaining, r.block.NumFrames())
		if err := r.target.Write(r.block, 0, n); err != nil {
			return err
		}
		r.frames += n
		remaining -= n
	}
	return nil
}

// RecordSeconds renders the given duration at the device sample rate.
func (r *Recorder) RecordSeconds(seconds float64) error {
	return r.Record(core.SecondsToFrames(seconds, r.dev.Descriptor().SampleRate))
}

// NumFrames returns the frames recorded so far.
func (r *Recorder) NumFrames() int { return r.frames }
