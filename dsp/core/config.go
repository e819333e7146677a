package core

import (
	"fmt"
	"math"
	"time"
)

// Defaults used when no device dictates the stream format.
const (
	DefaultSampleRate = 44100
	DefaultBlockSize  = 512
)

// ProcessorConfig is the stream format a render graph runs at.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns DefaultSampleRate and DefaultBlockSize.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{SampleRate: DefaultSampleRate, BlockSize: DefaultBlockSize}
}

// WithSampleRate sets the sample rate. Values <= 0 are ignored.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the frames rendered per block. Values <= 0 are ignored.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// ApplyProcessorOptions applies opts to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Validate reports a config that cannot drive a render graph.
func (c ProcessorConfig) Validate() error {
	if c.SampleRate <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("%w: sample rate %f and block size %d must be > 0",
			ErrConfiguration, c.SampleRate, c.BlockSize)
	}
	return nil
}

// BlockDuration returns the wall-clock length of one block.
func (c ProcessorConfig) BlockDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.BlockSize) / c.SampleRate * float64(time.Second))
}

// SecondsToFrames returns the nearest whole number of frames in seconds at
// sampleRate.
func SecondsToFrames(seconds, sampleRate float64) int {
	return int(math.Round(seconds * sampleRate))
}

// FramesToSeconds returns the duration of frames at sampleRate.
func FramesToSeconds(frames uint64, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frames) / sampleRate
}
