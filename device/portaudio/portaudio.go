// Package portaudio drives a render graph from a PortAudio default stream.
//
// The stream callback hands its interleaved buffers to the capture and render
// callbacks without holding the device lock, so a graph may take its own
// lock inside them while Stop waits for the callback to return.
package portaudio

import (
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

const (
	DefaultSampleRate     = 44100
	DefaultFramesPerBlock = 512
	DefaultOutputChannels = 2
)

// Option configures a Device.
type Option func(*config)

type config struct {
	desc device.Descriptor
	log  logrus.FieldLogger
}

// WithSampleRate sets the stream sample rate.
func WithSampleRate(rate float64) Option {
	return func(c *config) { c.desc.SampleRate = rate }
}

// WithFramesPerBlock sets the frames per callback.
func WithFramesPerBlock(frames int) Option {
	return func(c *config) { c.desc.FramesPerBlock = frames }
}

// WithChannels sets the input and output channel counts. Zero inputs opens an
// output-only stream.
func WithChannels(inputs, outputs int) Option {
	return func(c *config) {
		c.desc.NumInputChannels = inputs
		c.desc.NumOutputChannels = outputs
	}
}

// WithLogger sets the logger for stream lifecycle events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) { c.log = log }
}

func buildConfig(opts []Option) (config, error) {
	c := config{
		desc: device.Descriptor{
			Name:              "portaudio",
			SampleRate:        DefaultSampleRate,
			NumOutputChannels: DefaultOutputChannels,
			FramesPerBlock:    DefaultFramesPerBlock,
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if err := c.desc.Validate(); err != nil {
		return c, err
	}
	if c.desc.NumOutputChannels == 0 {
		return c, fmt.Errorf("%w: portaudio stream needs at least one output channel", core.ErrDevice)
	}
	return c, nil
}

// Device is a duplex PortAudio stream implementing device.Device.
type Device struct {
	device.Notifier

	mu      sync.Mutex
	log     logrus.FieldLogger
	desc    device.Descriptor
	stream  *pa.Stream
	render  device.RenderFunc
	capture device.CaptureFunc
	running bool
	closed  bool
}

// Open initializes PortAudio and opens the default stream.
func Open(opts ...Option) (*Device, error) {
	c, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %w", core.ErrDevice, err)
	}

	d := &Device{
		log:  c.log.WithField("component", "portaudio"),
		desc: c.desc,
	}
	if out, err := pa.DefaultOutputDevice(); err == nil && out != nil {
		d.desc.Name = out.Name
	}
	if err := d.openStream(); err != nil {
		_ = pa.Terminate()
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"device":      d.desc.Name,
		"sample_rate": d.desc.SampleRate,
		"block":       d.desc.FramesPerBlock,
	}).Info("opened stream")
	return d, nil
}

func (d *Device) openStream() error {
	stream, err := pa.OpenDefaultStream(
		d.desc.NumInputChannels,
		d.desc.NumOutputChannels,
		d.desc.SampleRate,
		d.desc.FramesPerBlock,
		d.process,
	)
	if err != nil {
		return fmt.Errorf("%w: open stream: %w", core.ErrDevice, err)
	}
	d.stream = stream
	return nil
}

// process is the PortAudio stream callback.
func (d *Device) process(in, out []float32) {
	d.mu.Lock()
	render, capture := d.render, d.capture
	d.mu.Unlock()

	if capture != nil && len(in) > 0 {
		capture(in)
	}
	if render == nil {
		clear(out)
		return
	}
	render(out)
}

// Descriptor returns the stream format.
func (d *Device) Descriptor() device.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.desc
}

// SetRenderCallback sets the function filling each output block.
func (d *Device) SetRenderCallback(fn device.RenderFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.render = fn
}

// SetCaptureCallback sets the function receiving each input block.
func (d *Device) SetCaptureCallback(fn device.CaptureFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capture = fn
}

// Start starts the stream. Starting a running stream is a no-op.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	if d.running {
		return nil
	}
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("%w: start stream: %w", core.ErrDevice, err)
	}
	d.running = true
	d.log.Debug("stream started")
	return nil
}

// Stop stops the stream and waits for the callback in flight to return.
func (d *Device) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	stream := d.stream
	d.running = false
	d.mu.Unlock()

	// The callback takes d.mu; stop without it.
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("%w: stop stream: %w", core.ErrDevice, err)
	}
	d.log.Debug("stream stopped")
	return nil
}

// Reconfigure reopens the stream with a new format. Subscribed listeners are
// notified before the old stream stops and after the new one is ready.
func (d *Device) Reconfigure(opts ...Option) error {
	d.mu.Lock()
	current := d.desc
	d.mu.Unlock()

	c, err := buildConfig(append([]Option{func(c *config) { c.desc = current }}, opts...))
	if err != nil {
		return err
	}

	return d.Change(func() error { return d.reopen(c.desc) })
}

// reopen swaps the stream for one opened with desc and restarts it if the
// old one was running.
func (d *Device) reopen(desc device.Descriptor) error {
	wasRunning := d.isRunning()
	if err := d.Stop(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return device.ErrClosed
	}
	if err := d.stream.Close(); err != nil {
		d.log.WithError(err).Warn("close stream on reconfigure")
	}
	d.desc = desc
	err := d.openStream()
	d.mu.Unlock()
	if err != nil {
		return err
	}

	if wasRunning {
		return d.Start()
	}
	return nil
}

func (d *Device) isRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Close stops and closes the stream and terminates PortAudio.
func (d *Device) Close() error {
	if err := d.Stop(); err != nil {
		d.log.WithError(err).Warn("stop on close")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.render = nil
	d.capture = nil

	var errs []error
	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := pa.Terminate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: close: %w", core.ErrDevice, errors.Join(errs...))
	}
	return nil
}

var _ device.Device = (*Device)(nil)
