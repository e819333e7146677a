// Package oto plays a render graph through an oto v3 output player.
//
// oto pulls bytes from an io.Reader on its own goroutine. The reader renders
// whole blocks of FramesPerBlock frames and hands them out as little-endian
// float32 bytes, so the graph always sees its configured block size. The
// device has no capture path.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

const (
	DefaultSampleRate     = 44100
	DefaultFramesPerBlock = 512
	DefaultChannels       = 2
	DefaultBufferSize     = 50 * time.Millisecond
)

// Option configures a Device.
type Option func(*config)

type config struct {
	desc       device.Descriptor
	bufferSize time.Duration
	log        logrus.FieldLogger
}

// WithSampleRate sets the output sample rate.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.desc.SampleRate = float64(rate) }
}

// WithFramesPerBlock sets the block size the render callback is asked for.
func WithFramesPerBlock(frames int) Option {
	return func(c *config) { c.desc.FramesPerBlock = frames }
}

// WithChannels sets the output channel count (1 or 2).
func WithChannels(n int) Option {
	return func(c *config) { c.desc.NumOutputChannels = n }
}

// WithBufferSize sets oto's internal buffer duration.
func WithBufferSize(d time.Duration) Option {
	return func(c *config) { c.bufferSize = d }
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) { c.log = log }
}

func buildConfig(opts []Option) (config, error) {
	c := config{
		desc: device.Descriptor{
			Name:              "oto",
			SampleRate:        DefaultSampleRate,
			NumOutputChannels: DefaultChannels,
			FramesPerBlock:    DefaultFramesPerBlock,
		},
		bufferSize: DefaultBufferSize,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if err := c.desc.Validate(); err != nil {
		return c, err
	}
	if c.desc.NumOutputChannels < 1 || c.desc.NumOutputChannels > 2 {
		return c, fmt.Errorf("%w: oto supports 1 or 2 output channels, got %d", core.ErrDevice, c.desc.NumOutputChannels)
	}
	if c.desc.SampleRate != math.Trunc(c.desc.SampleRate) {
		return c, fmt.Errorf("%w: oto needs an integral sample rate: %f", core.ErrDevice, c.desc.SampleRate)
	}
	return c, nil
}

// blockReader adapts a render callback to io.Reader.
type blockReader struct {
	render  atomic.Pointer[device.RenderFunc]
	block   []float32
	pending []byte
	bytes   []byte
}

func newBlockReader(frames, channels int) *blockReader {
	n := frames * channels
	return &blockReader{
		block: make([]float32, n),
		bytes: make([]byte, n*4),
	}
}

func (r *blockReader) setRender(fn device.RenderFunc) {
	if fn == nil {
		r.render.Store(nil)
		return
	}
	r.render.Store(&fn)
}

// Read fills p with rendered samples, rendering a new block whenever the
// previous one is used up. It never fails.
func (r *blockReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			r.renderBlock()
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}

func (r *blockReader) renderBlock() {
	clear(r.block)
	if fn := r.render.Load(); fn != nil {
		(*fn)(r.block)
	}
	for i, v := range r.block {
		binary.LittleEndian.PutUint32(r.bytes[i*4:], math.Float32bits(v))
	}
	r.pending = r.bytes
}

// Device is an output-only oto player implementing device.Device.
type Device struct {
	device.Notifier

	mu      sync.Mutex
	log     logrus.FieldLogger
	desc    device.Descriptor
	ctx     *oto.Context
	player  *oto.Player
	reader  *blockReader
	running bool
	closed  bool
}

// Open creates the oto context and waits until it is ready. oto allows one
// context per process.
func Open(opts ...Option) (*Device, error) {
	c, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(c.desc.SampleRate),
		ChannelCount: c.desc.NumOutputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   c.bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: oto context: %w", core.ErrDevice, err)
	}
	<-ready

	d := &Device{
		log:    c.log.WithField("component", "oto"),
		desc:   c.desc,
		ctx:    ctx,
		reader: newBlockReader(c.desc.FramesPerBlock, c.desc.NumOutputChannels),
	}
	d.player = ctx.NewPlayer(d.reader)
	d.log.WithFields(logrus.Fields{
		"sample_rate": d.desc.SampleRate,
		"channels":    d.desc.NumOutputChannels,
		"block":       d.desc.FramesPerBlock,
	}).Info("opened player")
	return d, nil
}

// Descriptor returns the output format.
func (d *Device) Descriptor() device.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.desc
}

// SetRenderCallback sets the function filling each block. The player reads it
// atomically and never takes the device lock.
func (d *Device) SetRenderCallback(fn device.RenderFunc) {
	d.reader.setRender(fn)
}

// SetCaptureCallback is accepted for interface conformance; oto has no input.
func (d *Device) SetCaptureCallback(device.CaptureFunc) {}

// Start starts playback.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	if d.running {
		return nil
	}
	if err := d.ctx.Resume(); err != nil {
		return fmt.Errorf("%w: resume: %w", core.ErrDevice, err)
	}
	d.player.Play()
	d.running = true
	d.log.Debug("playback started")
	return nil
}

// Stop pauses playback.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.player.Pause()
	d.running = false
	if err := d.player.Err(); err != nil {
		return fmt.Errorf("%w: player: %w", core.ErrDevice, err)
	}
	d.log.Debug("playback stopped")
	return nil
}

// Close stops playback and closes the player. The oto context itself lives
// until the process exits.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.running = false
	d.reader.setRender(nil)
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("%w: close player: %w", core.ErrDevice, err)
	}
	if err := d.ctx.Suspend(); err != nil {
		return fmt.Errorf("%w: suspend: %w", core.ErrDevice, err)
	}
	return nil
}

var _ device.Device = (*Device)(nil)
