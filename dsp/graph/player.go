package graph

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-audiograph/dsp/ringbuffer"
)

// BufferPlayer plays an in-memory buffer. At the end it either loops or
// stops itself; starting a player that reached the end rewinds it.
type BufferPlayer struct {
	*Node
	data *buffer.Buffer
	pos  int
	loop bool
}

// NewBufferPlayer returns a player for data, with data's channel count.
func NewBufferPlayer(ctx *Context, data *buffer.Buffer, opts ...NodeOption) *BufferPlayer {
	p := &BufferPlayer{data: planar(data)}
	base := []NodeOption{Channels(max(1, data.NumChannels()))}
	p.Node = ctx.MakeNode(p, RoleSource, append(base, opts...)...)
	return p
}

func planar(b *buffer.Buffer) *buffer.Buffer {
	if b.Layout() == buffer.LayoutPlanar {
		return b
	}
	out := buffer.New(b.NumFrames(), b.NumChannels())
	if err := buffer.Deinterleave(out, b); err != nil {
		panic("graph: " + err.Error())
	}
	return out
}

// SetBuffer replaces the played buffer and rewinds.
func (p *BufferPlayer) SetBuffer(data *buffer.Buffer) {
	data = planar(data)
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.data = data
	p.pos = 0
}

// NumFrames returns the length of the played buffer.
func (p *BufferPlayer) NumFrames() int {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.data.NumFrames()
}

// Position returns the next frame to be played.
func (p *BufferPlayer) Position() int {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.pos
}

// Seek moves the read position.
func (p *BufferPlayer) Seek(frame int) error {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if frame < 0 || frame > p.data.NumFrames() {
		return fmt.Errorf("%w: seek to %d beyond %d frames", core.ErrConfiguration, frame, p.data.NumFrames())
	}
	p.pos = frame
	return nil
}

// SetLoop enables looping.
func (p *BufferPlayer) SetLoop(loop bool) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.loop = loop
}

// IsEOF reports whether the player reached the end.
func (p *BufferPlayer) IsEOF() bool {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.pos >= p.data.NumFrames()
}

// OnStart rewinds a player that reached the end.
func (p *BufferPlayer) OnStart() error {
	if p.pos >= p.data.NumFrames() {
		p.pos = 0
	}
	return nil
}

// Process implements Processor.
func (p *BufferPlayer) Process(buf *buffer.Buffer) {
	frames := buf.NumFrames()
	total := p.data.NumFrames()
	written := 0
	for written < frames {
		if p.pos >= total {
			if p.loop && total > 0 {
				p.pos = 0
				continue
			}
			buf.ZeroFrames(written, frames)
			p.ctx.stopNodeLocked(p.Node)
			return
		}
		n := min(frames-written, total-p.pos)
		copyFrames(buf, written, p.data, p.pos, n)
		p.pos += n
		written += n
	}
}

// copyFrames copies n frames, repeating src's last channel when dst has
// more channels.
func copyFrames(dst *buffer.Buffer, dstOff int, src *buffer.Buffer, srcOff, n int) {
	srcChannels := src.NumChannels()
	for ch := range dst.NumChannels() {
		in := src.Channel(min(ch, srcChannels-1))
		copy(dst.Channel(ch)[dstOff:dstOff+n], in[srcOff:srcOff+n])
	}
}

// SampleSource is a seekable stream of frames, such as an audio file.
// Read fills up to buf.NumFrames() planar frames and returns io.EOF once
// the stream is exhausted.
type SampleSource interface {
	NumChannels() int
	NumFrames() int
	SampleRate() float64
	Read(buf *buffer.Buffer) (int, error)
	Seek(frame int) error
}

// outputFormatter is implemented by sources that can convert to the graph
// format on the fly.
type outputFormatter interface {
	SetOutputFormat(sampleRate float64, numChannels int) error
}

// FilePlayer streams a SampleSource. By default a background goroutine
// keeps a RingBuffer filled and the render goroutine only copies from it;
// blocks that find the ring short are counted as underruns and rendered
// silent. Seeks and rewinds are handed to that goroutine, so the context
// lock is never held across source I/O. With SetAsync(false) the source is
// read on the render goroutine.
type FilePlayer struct {
	*Node
	src   SampleSource
	srcMu sync.Mutex
	async bool
	loop  atomic.Bool

	// seekTo is a pending seek frame, or -1.
	seekTo    atomic.Int64
	eof       atomic.Bool
	underruns atomic.Uint64
	readErr   atomic.Pointer[error]

	stream   *fileStream
	ringSize int
	chunk    int
	readBuf  *buffer.Buffer
	renderIn []float32
}

// fileStream is one background reader. A stream is retired by closing done
// and is never joined; a retired reader may finish its current read.
type fileStream struct {
	ring     atomic.Pointer[ringbuffer.RingBuffer]
	capacity int
	chunk    int
	buf      *buffer.Buffer
	out      []float32
	rewound  bool

	wake   chan struct{}
	done   chan struct{}
	filled chan struct{}
	reqSeq atomic.Uint64
	ackSeq atomic.Uint64
}

// FileRingBlocks is the ring size of a FilePlayer in render blocks.
const FileRingBlocks = 8

// FilePrimeTimeout bounds how long Start waits for the reader to fill the
// ring.
const FilePrimeTimeout = time.Second

// NewFilePlayer returns a player for src with src's channel count.
func NewFilePlayer(ctx *Context, src SampleSource, opts ...NodeOption) *FilePlayer {
	f := &FilePlayer{src: src, async: true}
	f.seekTo.Store(-1)
	base := []NodeOption{Channels(max(1, src.NumChannels()))}
	f.Node = ctx.MakeNode(f, RoleSource, append(base, opts...)...)
	return f
}

// SetAsync selects background (true) or render-goroutine reads. It takes
// effect on the next start.
func (f *FilePlayer) SetAsync(async bool) {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	f.async = async
}

// SetLoop enables looping.
func (f *FilePlayer) SetLoop(loop bool) { f.loop.Store(loop) }

// IsEOF reports whether the source is exhausted.
func (f *FilePlayer) IsEOF() bool { return f.eof.Load() }

// NumUnderruns counts blocks rendered silent because the reader fell
// behind.
func (f *FilePlayer) NumUnderruns() uint64 { return f.underruns.Load() }

// Err returns the last read error other than io.EOF.
func (f *FilePlayer) Err() error {
	if p := f.readErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (f *FilePlayer) fail(err error) {
	f.readErr.Store(&err)
	f.eof.Store(true)
}

// OnInitialize negotiates the source format and sizes the ring.
func (f *FilePlayer) OnInitialize() error {
	ch := f.format.NumChannels
	f.srcMu.Lock()
	defer f.srcMu.Unlock()
	if of, ok := f.src.(outputFormatter); ok {
		if err := of.SetOutputFormat(f.ctx.SampleRate(), ch); err != nil {
			return err
		}
	} else if f.src.SampleRate() != f.ctx.SampleRate() {
		f.ctx.log.WithFields(logrus.Fields{
			"component":   "graph",
			"node":        f.String(),
			"file_rate":   f.src.SampleRate(),
			"sample_rate": f.ctx.SampleRate(),
		}).Warn("file sample rate differs from context")
	}
	if f.src.NumChannels() != ch {
		return fmt.Errorf("%w: source has %d channels, player %d", core.ErrConfiguration, f.src.NumChannels(), ch)
	}

	fpb := f.ctx.FramesPerBlock()
	f.ringSize = FileRingBlocks * fpb * ch
	f.chunk = fpb
	f.readBuf = buffer.New(fpb, ch)
	f.renderIn = make([]float32, fpb*ch)
	return nil
}

// OnUninitialize retires the reader.
func (f *FilePlayer) OnUninitialize() {
	f.closeStreamLocked()
}

// Start rewinds a finished player, waits for the reader to fill the ring
// and starts the node. The wait happens without the context lock.
func (f *FilePlayer) Start() error {
	f.ctx.mu.Lock()
	var s *fileStream
	if f.initialized && !f.enabled {
		if err := f.prepareLocked(); err != nil {
			f.ctx.mu.Unlock()
			return err
		}
		s = f.stream
	}
	f.ctx.mu.Unlock()

	if s != nil && !s.prime(FilePrimeTimeout) {
		f.ctx.log.WithFields(logrus.Fields{
			"component": "graph",
			"node":      f.String(),
		}).Warn("file reader did not fill the ring in time")
	}
	return f.Node.Start()
}

// prepareLocked latches the read mode and requests a rewind after the end
// of the source.
func (f *FilePlayer) prepareLocked() error {
	if f.async {
		if err := f.openStreamLocked(); err != nil {
			return err
		}
	} else {
		f.closeStreamLocked()
	}
	if f.eof.Load() {
		f.seekTo.CompareAndSwap(-1, 0)
	}
	if f.stream != nil {
		f.stream.signal()
	}
	return nil
}

// OnStart starts the background reader.
func (f *FilePlayer) OnStart() error {
	return f.prepareLocked()
}

// Seek requests a new read position and discards buffered audio. The seek
// itself runs on the reader, or on the next block without one; failures
// are reported by Err.
func (f *FilePlayer) Seek(frame int) error {
	if frame < 0 || frame > f.src.NumFrames() {
		return fmt.Errorf("%w: seek to %d outside [0, %d]", core.ErrConfiguration, frame, f.src.NumFrames())
	}
	f.seekTo.Store(int64(frame))
	f.ctx.mu.Lock()
	s := f.stream
	f.ctx.mu.Unlock()
	if s != nil {
		s.signal()
	}
	return nil
}

func (f *FilePlayer) openStreamLocked() error {
	if f.stream != nil {
		return nil
	}
	ring, err := ringbuffer.New(f.ringSize)
	if err != nil {
		return err
	}
	ch := f.format.NumChannels
	s := &fileStream{
		capacity: f.ringSize,
		chunk:    f.chunk,
		buf:      buffer.New(f.chunk, ch),
		out:      make([]float32, f.chunk*ch),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		filled:   make(chan struct{}, 1),
	}
	s.ring.Store(ring)
	f.stream = s
	go f.runStream(s)
	return nil
}

func (f *FilePlayer) closeStreamLocked() {
	if f.stream == nil {
		return
	}
	close(f.stream.done)
	f.stream = nil
}

func (s *fileStream) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *fileStream) retired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// prime wakes the reader and waits until it has served every request made
// so far.
func (s *fileStream) prime(timeout time.Duration) bool {
	want := s.reqSeq.Add(1)
	s.signal()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for s.ackSeq.Load() < want {
		select {
		case <-s.filled:
		case <-s.done:
			return false
		case <-deadline.C:
			return false
		}
	}
	return true
}

func (f *FilePlayer) runStream(s *fileStream) {
	for {
		seq := s.reqSeq.Load()
		for f.step(s) {
		}
		s.ackSeq.Store(seq)
		select {
		case s.filled <- struct{}{}:
		default:
		}
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
	}
}

// step applies a pending seek or reads one chunk into the ring. It reports
// whether there is more to do.
func (f *FilePlayer) step(s *fileStream) bool {
	f.srcMu.Lock()
	defer f.srcMu.Unlock()
	if s.retired() {
		return false
	}
	if frame := f.seekTo.Swap(-1); frame >= 0 {
		if err := f.src.Seek(int(frame)); err != nil {
			f.fail(fmt.Errorf("%w: seek to %d: %w", core.ErrFile, frame, err))
			return false
		}
		ring, err := ringbuffer.New(s.capacity)
		if err != nil {
			f.fail(err)
			return false
		}
		s.ring.Store(ring)
		f.eof.Store(false)
	}

	ring := s.ring.Load()
	ch := s.buf.NumChannels()
	if f.eof.Load() || ring.AvailableWrite() < s.chunk*ch {
		return false
	}
	if err := s.buf.SetNumFrames(s.chunk); err != nil {
		f.fail(err)
		return false
	}
	n, err := f.src.Read(s.buf)
	if n > 0 {
		s.rewound = false
		out := s.out[:n*ch]
		if err := s.buf.SetNumFrames(n); err != nil {
			f.fail(err)
			return false
		}
		if err := buffer.InterleaveTo(out, s.buf); err != nil {
			f.fail(err)
			return false
		}
		ring.Write(out)
	}
	switch {
	case err == nil && n > 0:
	case err == nil || errors.Is(err, io.EOF):
		// Loop rewinds keep the ring; rewinding twice without reading
		// means the source is empty.
		if f.loop.Load() && !s.rewound && f.src.Seek(0) == nil {
			s.rewound = true
			break
		}
		f.eof.Store(true)
	default:
		f.fail(err)
	}
	return true
}

// Process implements Processor.
func (f *FilePlayer) Process(buf *buffer.Buffer) {
	s := f.stream
	if s == nil {
		f.readDirect(buf)
		return
	}

	data := f.renderIn[:buf.Size()]
	switch ring := s.ring.Load(); {
	case ring.Read(data):
	case f.eof.Load() && f.seekTo.Load() < 0:
		avail := ring.AvailableRead()
		clear(data)
		if avail > 0 {
			ring.Read(data[:avail])
		} else {
			f.ctx.stopNodeLocked(f.Node)
		}
	default:
		f.underruns.Add(1)
		clear(data)
	}
	if err := buffer.DeinterleaveFrom(buf, data); err != nil {
		buf.Zero()
	}
	s.signal()
}

// readDirect reads on the render goroutine. A retired reader still holding
// the source makes the block an underrun instead of a wait.
func (f *FilePlayer) readDirect(buf *buffer.Buffer) {
	if !f.srcMu.TryLock() {
		f.underruns.Add(1)
		buf.Zero()
		return
	}
	defer f.srcMu.Unlock()
	if frame := f.seekTo.Swap(-1); frame >= 0 {
		if err := f.src.Seek(int(frame)); err != nil {
			f.fail(fmt.Errorf("%w: seek to %d: %w", core.ErrFile, frame, err))
		} else {
			f.eof.Store(false)
		}
	}

	frames := buf.NumFrames()
	written := 0
	rewound := false
	for written < frames && !f.eof.Load() {
		if err := f.readBuf.SetNumFrames(frames - written); err != nil {
			f.fail(err)
			break
		}
		n, err := f.src.Read(f.readBuf)
		if n > 0 {
			rewound = false
			copyFrames(buf, written, f.readBuf, 0, n)
			written += n
		}
		if err != nil && !errors.Is(err, io.EOF) {
			f.fail(err)
			break
		}
		if n > 0 && err == nil {
			continue
		}
		if f.loop.Load() && !rewound && f.src.Seek(0) == nil {
			rewound = true
			continue
		}
		f.eof.Store(true)
	}
	if written < frames {
		buf.ZeroFrames(written, frames)
		f.ctx.stopNodeLocked(f.Node)
	}
}
