package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// DefaultBitDepth is the sample size WAV targets write unless told otherwise.
const DefaultBitDepth = 16

type wavReader struct {
	rs       io.ReadSeeker
	dec      *wav.Decoder
	format   *audio.Format
	channels int
	depth    int
	scale    float32
	frames   int
	pos      int
	ints     *audio.IntBuffer
}

func newWAVReader(rs io.ReadSeeker) (*wavReader, error) {
	w := &wavReader{rs: rs}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.channels = w.format.NumChannels
	w.depth = int(w.dec.SampleBitDepth())
	switch w.depth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported WAV bit depth %d", core.ErrFormat, w.depth)
	}
	if w.channels <= 0 || w.format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: WAV header has %d channels at %d Hz", core.ErrFormat, w.channels, w.format.SampleRate)
	}
	w.scale = 1 / float32(int64(1)<<(w.depth-1))
	w.frames = int(w.dec.PCMLen()) / (w.depth / 8) / w.channels
	w.ints = &audio.IntBuffer{
		Format:         w.format,
		Data:           make([]int, ReadChunkFrames*w.channels),
		SourceBitDepth: w.depth,
	}
	return w, nil
}

// open (re)positions the decoder at the start of the PCM data.
func (w *wavReader) open() error {
	if _, err := w.rs.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind: %w", core.ErrFile, err)
	}
	dec := wav.NewDecoder(w.rs)
	if !dec.IsValidFile() {
		return fmt.Errorf("%w: not a valid WAV file", core.ErrFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return fmt.Errorf("%w: locate PCM data: %w", core.ErrFile, err)
	}
	w.dec = dec
	w.format = dec.Format()
	w.pos = 0
	return nil
}

func (w *wavReader) readFrames(dst []float32) (int, error) {
	want := min(len(dst)/w.channels, w.frames-w.pos)
	if want <= 0 {
		return 0, io.EOF
	}
	w.ints.Data = w.ints.Data[:want*w.channels]
	got, err := w.dec.PCMBuffer(w.ints)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: decode WAV: %w", core.ErrFile, err)
	}
	n := got / w.channels
	for i, v := range w.ints.Data[:n*w.channels] {
		dst[i] = float32(v) * w.scale
	}
	w.pos += n
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (w *wavReader) seekFrame(frame int) error {
	if err := w.open(); err != nil {
		return err
	}
	scratch := make([]float32, ReadChunkFrames*w.channels)
	for w.pos < frame {
		step := min(frame-w.pos, ReadChunkFrames)
		if _, err := w.readFrames(scratch[:step*w.channels]); err != nil {
			return err
		}
	}
	return nil
}

// WAVSource reads PCM WAV files.
type WAVSource struct {
	source
	file *os.File
}

// OpenWAV opens the WAV file at path.
func OpenWAV(path string, opts ...Option) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFile, err)
	}
	s, err := NewWAVSource(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.file = f
	return s, nil
}

// NewWAVSource reads WAV data from rs.
func NewWAVSource(rs io.ReadSeeker, opts ...Option) (*WAVSource, error) {
	o := applyOptions(opts)
	r, err := newWAVReader(rs)
	if err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"component":   "audiofile",
		"sample_rate": r.format.SampleRate,
		"channels":    r.channels,
		"bit_depth":   r.depth,
		"frames":      r.frames,
	}).Debug("opened WAV source")
	return &WAVSource{source: newSource(r, float64(r.format.SampleRate), r.channels, r.frames, o)}, nil
}

// BitDepth returns the bits per sample of the file.
func (s *WAVSource) BitDepth() int { return s.r.(*wavReader).depth }

// Close releases the converter and the file opened by OpenWAV.
func (s *WAVSource) Close() error {
	s.closeConverter()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// WAVTarget writes PCM WAV files.
type WAVTarget struct {
	enc      *wav.Encoder
	file     *os.File
	format   *audio.Format
	channels int
	depth    int
	peak     float64
	ints     *audio.IntBuffer
	frames   int
	closed   bool
}

// CreateWAV creates or truncates path. bitDepth 0 selects DefaultBitDepth.
func CreateWAV(path string, sampleRate, numChannels, bitDepth int) (*WAVTarget, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFile, err)
	}
	t, err := NewWAVTarget(f, sampleRate, numChannels, bitDepth)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t.file = f
	return t, nil
}

// NewWAVTarget writes WAV data to ws, which Close finalizes but does not
// close.
func NewWAVTarget(ws io.WriteSeeker, sampleRate, numChannels, bitDepth int) (*WAVTarget, error) {
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported WAV bit depth %d", core.ErrConfiguration, bitDepth)
	}
	if sampleRate <= 0 || numChannels <= 0 {
		return nil, fmt.Errorf("%w: invalid WAV format %d Hz, %d channels", core.ErrConfiguration, sampleRate, numChannels)
	}
	format := &audio.Format{NumChannels: numChannels, SampleRate: sampleRate}
	return &WAVTarget{
		enc:      wav.NewEncoder(ws, sampleRate, bitDepth, numChannels, 1),
		format:   format,
		channels: numChannels,
		depth:    bitDepth,
		peak:     float64(int64(1)<<(bitDepth-1) - 1),
		ints:     &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
	}, nil
}

// Write implements TargetFile. Samples are clipped to [-1, 1].
func (t *WAVTarget) Write(buf *buffer.Buffer, offset, count int) error {
	if t.closed {
		return fmt.Errorf("%w: write after close", core.ErrState)
	}
	if buf.NumChannels() != t.channels || buf.Layout() != buffer.LayoutPlanar {
		return fmt.Errorf("%w: target needs a planar %d-channel buffer, got %d channels",
			core.ErrFormat, t.channels, buf.NumChannels())
	}
	if offset < 0 || count < 0 || offset+count > buf.NumFrames() {
		return fmt.Errorf("%w: frames [%d, %d) outside buffer of %d", core.ErrConfiguration, offset, offset+count, buf.NumFrames())
	}
	if count == 0 {
		return nil
	}

	t.ints.Data = core.Resize(t.ints.Data, count*t.channels)
	for ch := range t.channels {
		for i, v := range buf.Channel(ch)[offset : offset+count] {
			t.ints.Data[i*t.channels+ch] = int(core.Clamp(float64(v), -1, 1) * t.peak)
		}
	}
	if err := t.enc.Write(t.ints); err != nil {
		return fmt.Errorf("%w: encode WAV: %w", core.ErrFile, err)
	}
	t.frames += count
	return nil
}

// NumFrames returns the frames written so far.
func (t *WAVTarget) NumFrames() int { return t.frames }

// Close finalizes the header and closes the file opened by CreateWAV.
func (t *WAVTarget) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err := t.enc.Close()
	if t.file != nil {
		err = errors.Join(err, t.file.Close())
	}
	if err != nil {
		return fmt.Errorf("%w: close WAV: %w", core.ErrFile, err)
	}
	return nil
}

var (
	_ SourceFile = (*WAVSource)(nil)
	_ TargetFile = (*WAVTarget)(nil)
)
