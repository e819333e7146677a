package graph

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

const (
	testRate  = 44100
	testBlock = 512
)

func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	base := []Option{
		WithConfig(core.WithSampleRate(testRate), core.WithBlockSize(testBlock)),
		WithLogger(logger),
	}
	ctx, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func newTestDevice(t *testing.T, inputs int) *device.Manual {
	t.Helper()
	dev, err := device.NewManual(device.Descriptor{
		Name:              "test",
		SampleRate:        testRate,
		NumInputChannels:  inputs,
		NumOutputChannels: 2,
		FramesPerBlock:    testBlock,
	})
	require.NoError(t, err)
	return dev
}

// constant returns a source filling every channel with v.
func constant(ctx *Context, v float32, opts ...NodeOption) *Callback {
	return NewCallback(ctx, func(buf *buffer.Buffer) {
		data := buf.Data()
		for i := range data {
			data[i] = v
		}
	}, opts...)
}

// renderBlock renders one stereo block and splits it into channels.
func renderBlock(ctx *Context) (left, right []float32) {
	fpb := ctx.FramesPerBlock()
	out := make([]float32, fpb*2)
	ctx.Render(out)
	left = make([]float32, fpb)
	right = make([]float32, fpb)
	for i := range fpb {
		left[i] = out[2*i]
		right[i] = out[2*i+1]
	}
	return left, right
}

type countingProc struct {
	starts, stops  int
	inits, uninits int
}

func (p *countingProc) Process(*buffer.Buffer) {}
func (p *countingProc) OnInitialize() error    { p.inits++; return nil }
func (p *countingProc) OnUninitialize()        { p.uninits++ }
func (p *countingProc) OnStart() error         { p.starts++; return nil }
func (p *countingProc) OnStop()                { p.stops++ }

func requireAll(t *testing.T, data []float32, want float32) {
	t.Helper()
	for i, v := range data {
		require.InDeltaf(t, want, v, 1e-6, "sample %d", i)
	}
}
