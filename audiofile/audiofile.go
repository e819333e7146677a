// Package audiofile reads and writes sample files for render graphs.
//
// A SourceFile yields planar float32 frames and can convert them on the fly
// to the format a graph runs at. A TargetFile receives rendered frames. Rate
// conversion is delegated to a Converter supplied with WithResampler, so the
// package itself has no cgo dependency.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// SourceFile is a seekable source of planar frames.
type SourceFile interface {
	// Read fills up to buf.NumFrames() frames and returns the number read.
	// It returns io.EOF once the file is exhausted.
	Read(buf *buffer.Buffer) (int, error)
	// LoadBuffer reads the whole file from the start.
	LoadBuffer() (*buffer.Buffer, error)
	Seek(frame int) error
	NumFrames() int
	NumChannels() int
	SampleRate() float64
	// SetOutputFormat makes later reads deliver frames at sampleRate with
	// numChannels channels.
	SetOutputFormat(sampleRate float64, numChannels int) error
}

// TargetFile receives rendered frames.
type TargetFile interface {
	// Write appends frames [offset, offset+count) of buf.
	Write(buf *buffer.Buffer, offset, count int) error
	Close() error
}

// Converter converts planar frames between formats. Convert consumes all of
// src and produces up to dst.NumFrames() frames, holding back the rest; an
// empty src drains held frames and an empty dst only feeds input.
type Converter interface {
	Convert(src, dst *buffer.Buffer) (consumed, produced int, err error)
}

// NewConverterFunc builds a Converter from inRate to outRate for frames with
// numChannels channels.
type NewConverterFunc func(inRate, outRate float64, numChannels int) (Converter, error)

// Converters may also implement these.
type (
	flusher  interface{ Flush() error }
	resetter interface{ Reset() error }
)

// ReadChunkFrames is the number of native frames a source decodes per read.
const ReadChunkFrames = 4096

// Option configures a source.
type Option func(*options)

type options struct {
	resampler NewConverterFunc
	log       logrus.FieldLogger
}

// WithResampler sets the converter used when SetOutputFormat asks for a
// sample rate other than the file's.
func WithResampler(fn NewConverterFunc) Option {
	return func(o *options) { o.resampler = fn }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

func applyOptions(opts []Option) options {
	o := options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// frameReader decodes interleaved frames in the file's native format.
type frameReader interface {
	readFrames(dst []float32) (int, error)
	seekFrame(frame int) error
}

// source implements SourceFile on top of a frameReader.
type source struct {
	r        frameReader
	rate     float64
	channels int
	frames   int
	opts     options

	outRate     float64
	outChannels int
	conv        Converter
	flushed     bool

	native    []float32
	nativeBuf *buffer.Buffer
	mapped    *buffer.Buffer
	convOut   *buffer.Buffer
	noFrames  *buffer.Buffer
}

func newSource(r frameReader, rate float64, channels, frames int, opts options) source {
	s := source{
		r:           r,
		rate:        rate,
		channels:    channels,
		frames:      frames,
		opts:        opts,
		outRate:     rate,
		outChannels: channels,
		native:      make([]float32, ReadChunkFrames*channels),
		nativeBuf:   buffer.New(ReadChunkFrames, channels),
	}
	s.allocOutput()
	return s
}

func (s *source) allocOutput() {
	s.mapped = buffer.New(ReadChunkFrames, s.outChannels)
	s.convOut = buffer.New(ReadChunkFrames, s.outChannels)
	s.noFrames = buffer.New(0, s.outChannels)
}

// NumFrames returns the length in output frames.
func (s *source) NumFrames() int {
	if s.conv == nil {
		return s.frames
	}
	return int(math.Round(float64(s.frames) * s.outRate / s.rate))
}

// NumChannels returns the output channel count.
func (s *source) NumChannels() int { return s.outChannels }

// SampleRate returns the output sample rate.
func (s *source) SampleRate() float64 { return s.outRate }

// NativeSampleRate returns the rate the file was recorded at.
func (s *source) NativeSampleRate() float64 { return s.rate }

// NativeChannels returns the file's channel count.
func (s *source) NativeChannels() int { return s.channels }

// SetOutputFormat implements SourceFile. A rate change needs a resampler.
func (s *source) SetOutputFormat(sampleRate float64, numChannels int) error {
	if sampleRate <= 0 || numChannels <= 0 {
		return fmt.Errorf("%w: invalid output format %.0f Hz, %d channels", core.ErrConfiguration, sampleRate, numChannels)
	}

	var conv Converter
	if sampleRate != s.rate {
		if s.opts.resampler == nil {
			return fmt.Errorf("%w: file runs at %.0f Hz, %.0f Hz requested and no resampler configured",
				core.ErrFormat, s.rate, sampleRate)
		}
		c, err := s.opts.resampler(s.rate, sampleRate, numChannels)
		if err != nil {
			return err
		}
		conv = c
	}

	s.closeConverter()
	s.conv = conv
	s.flushed = false
	s.outRate = sampleRate
	s.outChannels = numChannels
	s.allocOutput()
	s.opts.log.WithFields(logrus.Fields{
		"component":       "audiofile",
		"native_rate":     s.rate,
		"native_channels": s.channels,
		"sample_rate":     sampleRate,
		"channels":        numChannels,
	}).Debug("output format set")
	return nil
}

// Read implements SourceFile.
func (s *source) Read(buf *buffer.Buffer) (int, error) {
	if buf.NumChannels() != s.outChannels || buf.Layout() != buffer.LayoutPlanar {
		return 0, fmt.Errorf("%w: read needs a planar %d-channel buffer", core.ErrConfiguration, s.outChannels)
	}
	if s.conv == nil {
		return s.readMapped(buf, 0, buf.NumFrames())
	}

	want := buf.NumFrames()
	written := 0
	for written < want {
		if err := s.convOut.SetNumFrames(min(want-written, s.convOut.Capacity())); err != nil {
			return written, err
		}
		_, produced, err := s.conv.Convert(s.noFrames, s.convOut)
		if err != nil {
			return written, err
		}
		if produced > 0 {
			copyFrames(buf, written, s.convOut, 0, produced)
			written += produced
			continue
		}
		if s.flushed {
			return written, io.EOF
		}

		if err := s.mapped.SetNumFrames(ReadChunkFrames); err != nil {
			return written, err
		}
		n, rerr := s.readMapped(s.mapped, 0, ReadChunkFrames)
		if n > 0 {
			if err := s.mapped.SetNumFrames(n); err != nil {
				return written, err
			}
			if _, _, err := s.conv.Convert(s.mapped, s.noFrames); err != nil {
				return written, err
			}
		}
		switch {
		case errors.Is(rerr, io.EOF):
			if f, ok := s.conv.(flusher); ok {
				if err := f.Flush(); err != nil {
					return written, err
				}
			}
			s.flushed = true
		case rerr != nil:
			return written, rerr
		}
	}
	return written, nil
}

// readMapped reads up to frames native frames into dst at offset, mapping
// channels to dst's count.
func (s *source) readMapped(dst *buffer.Buffer, offset, frames int) (int, error) {
	frames = min(frames, ReadChunkFrames)
	if frames <= 0 {
		return 0, nil
	}
	n, err := s.r.readFrames(s.native[:frames*s.channels])
	if n > 0 {
		if err := s.nativeBuf.SetNumFrames(n); err != nil {
			return 0, err
		}
		if err := buffer.DeinterleaveFrom(s.nativeBuf, s.native[:n*s.channels]); err != nil {
			return 0, err
		}
		mapFrames(dst, offset, s.nativeBuf, 0, n)
	}
	return n, err
}

// Seek implements SourceFile. frame counts output frames.
func (s *source) Seek(frame int) error {
	if frame < 0 || frame > s.NumFrames() {
		return fmt.Errorf("%w: seek to %d outside [0, %d]", core.ErrConfiguration, frame, s.NumFrames())
	}
	native := frame
	if s.conv != nil {
		native = min(s.frames, int(math.Round(float64(frame)*s.rate/s.outRate)))
		if r, ok := s.conv.(resetter); ok {
			if err := r.Reset(); err != nil {
				return err
			}
		}
		s.flushed = false
	}
	return s.r.seekFrame(native)
}

// LoadBuffer implements SourceFile. It leaves the read position at the end.
func (s *source) LoadBuffer() (*buffer.Buffer, error) {
	if err := s.Seek(0); err != nil {
		return nil, err
	}
	chunk := buffer.New(ReadChunkFrames, s.outChannels)
	var blocks []*buffer.Buffer
	total := 0
	for {
		if err := chunk.SetNumFrames(ReadChunkFrames); err != nil {
			return nil, err
		}
		n, err := s.Read(chunk)
		if n > 0 {
			if err := chunk.SetNumFrames(n); err != nil {
				return nil, err
			}
			blocks = append(blocks, chunk.Copy())
			total += n
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	out := buffer.New(total, s.outChannels)
	at := 0
	for _, b := range blocks {
		copyFrames(out, at, b, 0, b.NumFrames())
		at += b.NumFrames()
	}
	return out, nil
}

func (s *source) closeConverter() {
	if c, ok := s.conv.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.opts.log.WithError(err).Warn("closing converter")
		}
	}
	s.conv = nil
}
