package portaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

func TestBuildConfigDefaults(t *testing.T) {
	c, err := buildConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultSampleRate), c.desc.SampleRate)
	assert.Equal(t, DefaultFramesPerBlock, c.desc.FramesPerBlock)
	assert.Equal(t, 0, c.desc.NumInputChannels)
	assert.Equal(t, DefaultOutputChannels, c.desc.NumOutputChannels)
	assert.NotNil(t, c.log)
}

func TestBuildConfigOptions(t *testing.T) {
	c, err := buildConfig([]Option{
		WithSampleRate(48000),
		WithFramesPerBlock(256),
		WithChannels(1, 2),
		nil,
	})
	require.NoError(t, err)
	assert.Equal(t, 48000.0, c.desc.SampleRate)
	assert.Equal(t, 256, c.desc.FramesPerBlock)
	assert.Equal(t, 1, c.desc.NumInputChannels)
}

func TestBuildConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero rate", []Option{WithSampleRate(0)}},
		{"zero block", []Option{WithFramesPerBlock(0)}},
		{"no outputs", []Option{WithChannels(1, 0)}},
		{"negative inputs", []Option{WithChannels(-1, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildConfig(tt.opts)
			require.ErrorIs(t, err, core.ErrDevice)
		})
	}
}

func TestProcessWithoutCallbacksIsSilent(t *testing.T) {
	d := &Device{}
	out := []float32{1, 1, 1, 1}
	d.process(nil, out)
	assert.Equal(t, []float32{0, 0, 0, 0}, out)
}

func TestProcessForwardsBuffers(t *testing.T) {
	d := &Device{}
	var captured []float32
	d.SetCaptureCallback(func(in []float32) { captured = append(captured, in...) })
	d.SetRenderCallback(func(out []float32) {
		for i := range out {
			out[i] = 0.25
		}
	})

	out := make([]float32, 4)
	d.process([]float32{0.1, 0.2}, out)
	assert.Equal(t, []float32{0.1, 0.2}, captured)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, out)
}
