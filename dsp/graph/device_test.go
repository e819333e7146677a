package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-audiograph/device"
)

// probe renders from inside the change notifications, after the context
// has handled them.
type probe struct {
	ctx      *Context
	during   []float32
	enabled  bool
	notified int
}

func (p *probe) ParamsWillChange() {
	p.during = make([]float32, 2*p.ctx.FramesPerBlock())
	for i := range p.during {
		p.during[i] = 1
	}
	p.ctx.Render(p.during)
	p.enabled = p.ctx.IsEnabled()
	p.notified++
}

func (p *probe) ParamsDidChange() { p.notified++ }

func TestDeviceChangeProtocol(t *testing.T) {
	dev := newTestDevice(t, 0)
	ctx := newTestContext(t, WithDevice(dev))
	sine := NewSine(ctx, 440)
	_, err := sine.Connect(ctx.Root())
	require.NoError(t, err)
	require.NoError(t, ctx.Start())
	require.NoError(t, sine.Start())

	p := &probe{ctx: ctx}
	unsubscribe := dev.Subscribe(p)
	defer unsubscribe()

	out := dev.RenderBlock()
	require.Len(t, out, 2*testBlock)
	assert.NotZero(t, out[2])
	inUse := ctx.pool.Stats().InUse
	require.Positive(t, inUse)

	require.NoError(t, dev.Reconfigure(device.Descriptor{
		SampleRate:        48000,
		NumOutputChannels: 2,
		FramesPerBlock:    128,
	}))

	assert.Equal(t, 2, p.notified)
	assert.False(t, p.enabled)
	for _, v := range p.during {
		require.Zero(t, v)
	}

	assert.Equal(t, 48000.0, ctx.SampleRate())
	assert.Equal(t, 128, ctx.FramesPerBlock())
	assert.True(t, ctx.IsEnabled())
	assert.True(t, sine.IsInitialized())
	assert.True(t, sine.IsEnabled())
	assert.Equal(t, inUse, ctx.pool.Stats().InUse, "re-initialization returns every node buffer")

	out = dev.RenderBlock()
	require.Len(t, out, 2*128)
	assert.NotZero(t, out[2])
}

func TestDeviceChangeKeepsStoppedContextStopped(t *testing.T) {
	dev := newTestDevice(t, 0)
	ctx := newTestContext(t, WithDevice(dev))
	require.NoError(t, ctx.InitializeAll())

	require.NoError(t, dev.Reconfigure(device.Descriptor{
		SampleRate:        22050,
		NumOutputChannels: 1,
		FramesPerBlock:    64,
	}))
	assert.False(t, ctx.IsEnabled())
	assert.Equal(t, 1, ctx.Root().NumChannels())
	assert.True(t, ctx.Root().IsInitialized())
}

func TestCloseUnsubscribes(t *testing.T) {
	dev := newTestDevice(t, 0)
	ctx := newTestContext(t, WithDevice(dev))
	assert.Equal(t, 1, dev.NumListeners())
	require.NoError(t, ctx.Close())
	assert.Equal(t, 0, dev.NumListeners())
}

func TestInvalidDevice(t *testing.T) {
	_, err := New(WithDevice(&device.Manual{}))
	require.Error(t, err)
}
