package graph

import (
	"sync/atomic"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/ringbuffer"
)

// DefaultClipThreshold is the absolute sample value LineOut reports as a
// clip unless configured otherwise.
const DefaultClipThreshold = 2.0

// LineOut is the context root. It sums its inputs and hands the block to
// the device.
type LineOut struct {
	*Node
	clipDetection bool
	clipThreshold float32
	// lastClip holds frame+1 of the first clip since the last read, or 0.
	lastClip atomic.Uint64
}

func newLineOutLocked(c *Context) *LineOut {
	out := &LineOut{clipThreshold: DefaultClipThreshold}
	out.Node = c.makeNodeLocked(out, RoleOutput|RoleMixer, Named("LineOut"), Channels(c.rootChannels()))
	return out
}

// EnableClipDetection turns clip detection on or off. A threshold <= 0
// selects DefaultClipThreshold.
func (o *LineOut) EnableClipDetection(enable bool, threshold float32) {
	if threshold <= 0 {
		threshold = DefaultClipThreshold
	}
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.clipDetection = enable
	o.clipThreshold = threshold
}

// LastClip returns the absolute frame of the first clip since the previous
// call, and whether one occurred. Reading resets it.
func (o *LineOut) LastClip() (uint64, bool) {
	v := o.lastClip.Swap(0)
	if v == 0 {
		return 0, false
	}
	return v - 1, true
}

// Process implements Processor.
func (o *LineOut) Process(buf *buffer.Buffer) {
	if !o.clipDetection {
		return
	}
	if frame, ok := buf.ExceedsThreshold(o.clipThreshold); ok {
		o.lastClip.CompareAndSwap(0, o.ctx.processed.Load()+uint64(frame)+1)
	}
}

// LineIn renders the device's capture stream. The capture callback only
// writes to a RingBuffer; blocks with too little captured audio are
// rendered silent and counted as underruns.
type LineIn struct {
	*Node
	ring      atomic.Pointer[ringbuffer.RingBuffer]
	scratch   []float32
	active    atomic.Bool
	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// LineInBlocks is the capture ring size in render blocks.
const LineInBlocks = 4

// NewLineIn returns a capture node with the device's input channel count
// and registers it as the device's capture callback.
func NewLineIn(ctx *Context, opts ...NodeOption) *LineIn {
	l := &LineIn{}
	channels := 1
	if ctx.dev != nil {
		channels = max(1, ctx.dev.Descriptor().NumInputChannels)
	}
	base := []NodeOption{Channels(channels)}
	l.Node = ctx.MakeNode(l, RoleSource, append(base, opts...)...)
	l.allocate(channels)
	if ctx.dev != nil {
		ctx.dev.SetCaptureCallback(l.Capture)
	}
	return l
}

func (l *LineIn) allocate(channels int) {
	block := l.ctx.FramesPerBlock() * channels
	if len(l.scratch) != block {
		l.scratch = make([]float32, block)
	}
	if r := l.ring.Load(); r != nil && r.Capacity() == LineInBlocks*block {
		return
	}
	if ring, err := ringbuffer.New(LineInBlocks * block); err == nil {
		l.ring.Store(ring)
	}
}

// Capture accepts one interleaved block from the device. It runs on the
// device's capture goroutine.
func (l *LineIn) Capture(in []float32) {
	if !l.active.Load() {
		return
	}
	if r := l.ring.Load(); r == nil || !r.Write(in) {
		l.overruns.Add(1)
	}
}

// NumOverruns counts captured blocks dropped because the ring was full.
func (l *LineIn) NumOverruns() uint64 { return l.overruns.Load() }

// NumUnderruns counts rendered blocks that found too little capture.
func (l *LineIn) NumUnderruns() uint64 { return l.underruns.Load() }

// OnInitialize resizes the ring for the current block size.
func (l *LineIn) OnInitialize() error {
	l.allocate(l.format.NumChannels)
	return nil
}

// OnStart drops stale capture and accepts new blocks.
func (l *LineIn) OnStart() error {
	r := l.ring.Load()
	for r.AvailableRead() >= len(l.scratch) && r.Read(l.scratch) {
	}
	l.active.Store(true)
	return nil
}

// OnStop stops accepting capture.
func (l *LineIn) OnStop() {
	l.active.Store(false)
}

// Process implements Processor.
func (l *LineIn) Process(buf *buffer.Buffer) {
	data := l.scratch[:buf.Size()]
	if !l.ring.Load().Read(data) {
		l.underruns.Add(1)
		buf.Zero()
		return
	}
	if err := buffer.DeinterleaveFrom(buf, data); err != nil {
		l.underruns.Add(1)
		buf.Zero()
	}
}

// Tap passes audio through and publishes every block, interleaved, to a
// RingBuffer for a consumer such as a scope or a recorder. Blocks that do
// not fit are dropped whole and counted as overruns.
type Tap struct {
	*Node
	blocks   int
	ring     atomic.Pointer[ringbuffer.RingBuffer]
	scratch  []float32
	last     *buffer.Buffer
	overruns atomic.Uint64
}

// DefaultTapBlocks is the ring size of a Tap in render blocks.
const DefaultTapBlocks = 16

// NewTap returns a tap buffering up to blocks render blocks.
func NewTap(ctx *Context, blocks int, opts ...NodeOption) *Tap {
	if blocks <= 0 {
		blocks = DefaultTapBlocks
	}
	t := &Tap{blocks: blocks}
	t.Node = ctx.MakeNode(t, RoleTap, opts...)
	return t
}

// OnInitialize sizes the ring for the resolved format.
func (t *Tap) OnInitialize() error {
	n := t.ctx.FramesPerBlock() * t.format.NumChannels
	ring, err := ringbuffer.New(t.blocks * n)
	if err != nil {
		return err
	}
	t.ring.Store(ring)
	t.scratch = make([]float32, n)
	t.last = buffer.New(t.ctx.FramesPerBlock(), t.format.NumChannels)
	return nil
}

// Process implements Processor.
func (t *Tap) Process(buf *buffer.Buffer) {
	if _, err := t.last.CopyFrom(buf); err != nil {
		t.overruns.Add(1)
		return
	}
	data := t.scratch[:buf.Size()]
	if err := buffer.InterleaveTo(data, buf); err != nil || !t.ring.Load().Write(data) {
		t.overruns.Add(1)
	}
}

// Read fills dst with interleaved samples if enough are buffered. Only one
// goroutine may read.
func (t *Tap) Read(dst []float32) bool {
	r := t.ring.Load()
	return r != nil && r.Read(dst)
}

// Available returns the number of buffered samples.
func (t *Tap) Available() int {
	if r := t.ring.Load(); r != nil {
		return r.AvailableRead()
	}
	return 0
}

// NumOverruns counts blocks dropped because the reader fell behind.
func (t *Tap) NumOverruns() uint64 { return t.overruns.Load() }

// Buffer returns a copy of the most recent block, or nil before the tap
// is initialized.
func (t *Tap) Buffer() *buffer.Buffer {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	if t.last == nil {
		return nil
	}
	return t.last.Copy()
}
