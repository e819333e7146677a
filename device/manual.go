package device

import (
	"fmt"
	"sync"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Manual is an in-process device whose clock is advanced by the caller. It
// backs offline rendering and tests.
type Manual struct {
	Notifier

	mu      sync.Mutex
	desc    Descriptor
	render  RenderFunc
	capture CaptureFunc
	running bool
	closed  bool
	starts  int
	stops   int
}

// NewManual returns a stopped Manual device.
func NewManual(desc Descriptor) (*Manual, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = "manual"
	}
	return &Manual{desc: desc}, nil
}

// Descriptor returns the current format.
func (m *Manual) Descriptor() Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc
}

// SetRenderCallback sets the function RenderBlock calls.
func (m *Manual) SetRenderCallback(fn RenderFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.render = fn
}

// SetCaptureCallback sets the function Capture calls.
func (m *Manual) SetCaptureCallback(fn CaptureFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = fn
}

// Start marks the device running.
func (m *Manual) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !m.running {
		m.running = true
		m.starts++
	}
	return nil
}

// Stop marks the device stopped.
func (m *Manual) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.stops++
	}
	return nil
}

// Close stops the device and drops its callbacks.
func (m *Manual) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.closed = true
	m.render = nil
	m.capture = nil
	return nil
}

// IsRunning reports whether Start was called without a later Stop.
func (m *Manual) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NumStarts returns how many times the device transitioned to running.
func (m *Manual) NumStarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// RenderBlock pulls one block from the render callback. A stopped device or
// one without a callback yields silence.
func (m *Manual) RenderBlock() []float32 {
	m.mu.Lock()
	out := make([]float32, m.desc.FramesPerBlock*m.desc.NumOutputChannels)
	fn := m.render
	running := m.running
	m.mu.Unlock()

	// The callback takes the graph lock; never call it with m.mu held.
	if running && fn != nil {
		fn(out)
	}
	return out
}

// RenderBlocks pulls n consecutive blocks and returns them concatenated.
func (m *Manual) RenderBlocks(n int) []float32 {
	var out []float32
	for i := 0; i < n; i++ {
		out = append(out, m.RenderBlock()...)
	}
	return out
}

// Capture hands one interleaved input block to the capture callback.
func (m *Manual) Capture(in []float32) error {
	m.mu.Lock()
	fn := m.capture
	want := m.desc.FramesPerBlock * m.desc.NumInputChannels
	m.mu.Unlock()

	if len(in) != want {
		return fmt.Errorf("%w: capture block holds %d samples, need %d", core.ErrDevice, len(in), want)
	}
	if fn != nil {
		fn(in)
	}
	return nil
}

// Reconfigure switches to a new format, notifying listeners before and
// after the change.
func (m *Manual) Reconfigure(desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	return m.Change(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return ErrClosed
		}
		if desc.Name == "" {
			desc.Name = m.desc.Name
		}
		m.desc = desc
		return nil
	})
}
