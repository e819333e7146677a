package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-audiograph/internal/testutil"
)

type failingInit struct{}

func (failingInit) Process(*buffer.Buffer) {}
func (failingInit) OnInitialize() error    { return errors.New("no device") }

func TestFailedLinkIsRolledBack(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.Start())

	proc := &countingProc{}
	up := ctx.MakeNode(proc, RoleSource, InferChannels(), AutoEnable(true))
	failing := ctx.MakeNode(failingInit{}, RoleEffect, InferChannels())
	_, err := up.Connect(failing)
	require.NoError(t, err)

	_, err = failing.Connect(ctx.Root())
	require.Error(t, err)
	assert.Empty(t, ctx.Root().Sources())
	assert.Equal(t, NoNode, failing.Parent())
	assert.Equal(t, failing.ID(), up.Parent())
	assert.Zero(t, failing.NumChannels())
	assert.Zero(t, up.NumChannels())
	assert.False(t, up.IsInitialized())
	assert.False(t, up.IsEnabled())
	assert.Equal(t, 1, proc.inits)
	assert.Equal(t, 1, proc.uninits)

	l, _ := renderBlock(ctx)
	testutil.RequireSilent(t, l)
}

func TestRenderOrderIsPostOrder(t *testing.T) {
	ctx := newTestContext(t)
	var order []string
	record := func(name string) CallbackFunc {
		return func(*buffer.Buffer) { order = append(order, name) }
	}
	a := NewCallback(ctx, record("A"), AutoEnable(true))
	b := NewCallbackEffect(ctx, record("B"))
	c := NewCallbackEffect(ctx, record("C"))
	require.NoError(t, ctx.Chain(a, b, c, ctx.Root()))
	require.NoError(t, ctx.Start())

	renderBlock(ctx)
	assert.Equal(t, []string{"A", "B", "C"}, order)
	renderBlock(ctx)
	assert.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, order)
}

func TestSharedSourceRendersOncePerBlock(t *testing.T) {
	ctx := newTestContext(t)
	calls := 0
	src := NewCallback(ctx, func(buf *buffer.Buffer) {
		calls++
		data := buf.Data()
		for i := range data {
			data[i] = 0.25
		}
	}, AutoEnable(true))
	left := NewGain(ctx, 1)
	right := NewGain(ctx, 1)
	mix := NewMixer(ctx)

	_, err := src.Connect(left)
	require.NoError(t, err)
	_, err = src.Connect(right)
	require.NoError(t, err)
	require.NoError(t, ctx.Chain(left, mix))
	require.NoError(t, ctx.Chain(right, mix, ctx.Root()))
	assert.Equal(t, right.ID(), src.Parent())

	require.NoError(t, ctx.Start())
	l, _ := renderBlock(ctx)
	assert.Equal(t, 1, calls)
	requireAll(t, l, 0.5)
}

func TestSineThroughGainEndToEnd(t *testing.T) {
	ctx := newTestContext(t)
	sine := NewSine(ctx, 220)
	gain := NewGain(ctx, 0.5)
	require.NoError(t, ctx.Chain(sine, gain, ctx.Root()))
	require.NoError(t, ctx.Start())
	require.NoError(t, sine.Start())

	want := testutil.Sine[float32](220, testRate, 0.5, 2*testBlock)
	l1, r1 := renderBlock(ctx)
	l2, _ := renderBlock(ctx)
	testutil.RequireNear(t, append(l1, l2...), want, 1e-5)
	testutil.RequireNear(t, r1, l1, 0)
	assert.Equal(t, uint64(2*testBlock), ctx.NumProcessedFrames())
	assert.InDelta(t, 2*float64(testBlock)/testRate, ctx.NumProcessedSeconds(), 1e-12)
}

func TestRenderBeforeStartIsSilent(t *testing.T) {
	ctx := newTestContext(t)
	_, err := constant(ctx, 1, AutoEnable(true)).Connect(ctx.Root())
	require.NoError(t, err)

	out := []float32{1, 2, 3}
	ctx.Render(out)
	testutil.RequireSilent(t, out)
	assert.Zero(t, ctx.NumDroppedBlocks())
}

func TestRenderWrongSizeIsDropped(t *testing.T) {
	ctx := newTestContext(t)
	_, err := constant(ctx, 1, AutoEnable(true)).Connect(ctx.Root())
	require.NoError(t, err)
	require.NoError(t, ctx.Start())

	out := make([]float32, 7)
	for i := range out {
		out[i] = 9
	}
	ctx.Render(out)
	testutil.RequireSilent(t, out)
	assert.Equal(t, uint64(1), ctx.NumDroppedBlocks())
	assert.Zero(t, ctx.NumProcessedFrames())
}

func TestRenderMapsToWiderOutput(t *testing.T) {
	ctx := newTestContext(t, WithOutputChannels(1))
	_, err := constant(ctx, 0.5, AutoEnable(true)).Connect(ctx.Root())
	require.NoError(t, err)
	require.NoError(t, ctx.Start())

	out := make([]float32, testBlock*4)
	ctx.Render(out)
	requireAll(t, out, 0.5)
}

func TestInferredSourceTakesConsumerChannels(t *testing.T) {
	ctx := newTestContext(t)
	src := NewCallback(ctx, nil, InferChannels())
	consumer := NewGain(ctx, 1, Channels(2))

	_, err := src.Connect(consumer)
	require.NoError(t, err)
	assert.Equal(t, 2, src.NumChannels())
	assert.Equal(t, ChannelsInferred, src.Format().ChannelMode)
}

func TestInferredChainResolvesFromRoot(t *testing.T) {
	ctx := newTestContext(t)
	a := NewCallbackEffect(ctx, nil)
	b := NewCallbackEffect(ctx, nil)
	_, err := b.Connect(ctx.Root())
	require.NoError(t, err)
	_, err = a.Connect(b)
	require.NoError(t, err)
	assert.Equal(t, 2, a.NumChannels())

	require.NoError(t, ctx.InitializeAll())
	assert.True(t, a.IsInitialized())
	ctx.UninitializeAll()
	assert.Equal(t, 0, a.NumChannels())
	require.NoError(t, ctx.InitializeAll())
	assert.Equal(t, 2, a.NumChannels())
}

func TestStrictChannelMismatch(t *testing.T) {
	ctx := newTestContext(t)
	mono := NewSine(ctx, 440)
	strict := NewGain(ctx, 1, StrictChannels(2))

	_, err := mono.Connect(strict)
	require.ErrorIs(t, err, core.ErrConfiguration)
	assert.Equal(t, []ID{NoNode}, strict.Sources())
	assert.Equal(t, NoNode, mono.Parent())

	stereo := NewSine(ctx, 440, Channels(2))
	_, err = stereo.Connect(strict)
	require.NoError(t, err)
}

func TestUnresolvedFormat(t *testing.T) {
	ctx := newTestContext(t)
	fx := NewCallbackEffect(ctx, nil)
	require.ErrorIs(t, fx.Initialize(), core.ErrFormat)

	src := NewCallback(ctx, nil, InferChannels())
	require.ErrorIs(t, src.Initialize(), core.ErrFormat)
}

func TestChannelMapping(t *testing.T) {
	ctx := newTestContext(t)
	stereo := NewCallback(ctx, func(buf *buffer.Buffer) {
		for i := range buf.Channel(0) {
			buf.Channel(0)[i] = 1
			buf.Channel(1)[i] = 0
		}
	}, Channels(2), AutoEnable(true))
	mono := NewGain(ctx, 1, Channels(1))
	require.NoError(t, ctx.Chain(stereo, mono, ctx.Root()))
	require.NoError(t, ctx.Start())

	l, r := renderBlock(ctx)
	requireAll(t, l, 0.5)
	requireAll(t, r, 0.5)
}

func TestBusRules(t *testing.T) {
	ctx := newTestContext(t)
	g := NewGain(ctx, 1)
	s1 := NewSine(ctx, 100)
	s2 := NewSine(ctx, 200)

	_, err := s1.ConnectBus(g, 1)
	require.ErrorIs(t, err, core.ErrConfiguration)
	_, err = s1.ConnectBus(g, -1)
	require.ErrorIs(t, err, core.ErrConfiguration)

	dest, err := s1.ConnectBus(g, 0)
	require.NoError(t, err)
	assert.Equal(t, g.ID(), dest.ID())

	_, err = s2.ConnectBus(g, 0)
	require.ErrorIs(t, err, ErrBusOccupied)
	require.ErrorIs(t, err, core.ErrConfiguration)
	require.ErrorIs(t, g.SetSource(s2, 0), ErrBusOccupied)

	_, err = s1.ConnectBus(g, 0)
	require.NoError(t, err, "reconnecting the same source is a no-op")

	require.NoError(t, g.ClearSource(0))
	assert.Equal(t, NoNode, s1.Parent())
	require.NoError(t, g.SetSource(s2, 0))
	assert.Equal(t, []ID{s2.ID()}, g.Sources())
	require.ErrorIs(t, g.ClearSource(3), core.ErrConfiguration)

	_, err = s2.Connect(s1)
	require.ErrorIs(t, err, core.ErrConfiguration, "sources have no inputs")
}

func TestMixerBusses(t *testing.T) {
	ctx := newTestContext(t)
	m := NewMixer(ctx)
	a, b, c, d, e := NewSine(ctx, 1), NewSine(ctx, 2), NewSine(ctx, 3), NewSine(ctx, 4), NewSine(ctx, 5)

	for _, s := range []*Gen{a, b, c} {
		_, err := s.Connect(m)
		require.NoError(t, err)
	}
	assert.Equal(t, []ID{a.ID(), b.ID(), c.ID()}, m.Sources())

	_, err := d.ConnectBus(m, 5)
	require.ErrorIs(t, err, core.ErrConfiguration)

	require.NoError(t, m.ClearSource(1))
	_, err = d.Connect(m)
	require.NoError(t, err)
	assert.Equal(t, d.ID(), m.Sources()[1])

	_, err = e.ConnectBus(m, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumInputs())
}

func TestMixerSums(t *testing.T) {
	ctx := newTestContext(t)
	_, err := constant(ctx, 0.25, AutoEnable(true)).Connect(ctx.Root())
	require.NoError(t, err)
	_, err = constant(ctx, 0.5, AutoEnable(true)).Connect(ctx.Root())
	require.NoError(t, err)
	require.NoError(t, ctx.Start())

	l, r := renderBlock(ctx)
	requireAll(t, l, 0.75)
	requireAll(t, r, 0.75)
}

func TestCycleRejected(t *testing.T) {
	ctx := newTestContext(t)
	a := NewGain(ctx, 1)
	b := NewGain(ctx, 1)
	c := NewGain(ctx, 1)
	require.NoError(t, ctx.Chain(a, b, c))

	_, err := c.Connect(a)
	require.ErrorIs(t, err, ErrCycle)
	_, err = a.Connect(a)
	require.ErrorIs(t, err, ErrCycle)
}

func TestForeignAndReleasedNodes(t *testing.T) {
	ctx := newTestContext(t)
	other := newTestContext(t)
	_, err := NewSine(other, 1).Connect(NewGain(ctx, 1))
	require.ErrorIs(t, err, ErrForeignNode)

	g := NewGain(ctx, 1)
	src := NewSine(ctx, 1)
	_, err = src.Connect(g)
	require.NoError(t, err)
	before := ctx.NumNodes()
	ctx.Release(g)
	assert.Equal(t, before-1, ctx.NumNodes())
	assert.Nil(t, ctx.Node(g.ID()))
	assert.Equal(t, NoNode, src.Parent())

	_, err = src.Connect(g)
	require.ErrorIs(t, err, ErrForeignNode)
}

func TestStartUninitializedNode(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSine(ctx, 440)
	require.ErrorIs(t, s.Start(), core.ErrState)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start())
	assert.True(t, s.IsEnabled())
	s.Uninitialize()
	assert.False(t, s.IsEnabled())
}

func TestStartStopIdempotent(t *testing.T) {
	dev := newTestDevice(t, 0)
	ctx := newTestContext(t, WithDevice(dev))
	proc := &countingProc{}
	n := ctx.MakeNode(proc, RoleEffect)
	_, err := n.Connect(ctx.Root())
	require.NoError(t, err)

	require.NoError(t, ctx.Start())
	require.NoError(t, ctx.Start())
	assert.True(t, ctx.IsEnabled())
	assert.Equal(t, 1, proc.starts)
	assert.Equal(t, 1, proc.inits)
	assert.Equal(t, 1, dev.NumStarts())

	ctx.Stop()
	ctx.Stop()
	assert.False(t, ctx.IsEnabled())
	assert.Equal(t, 1, proc.stops)
	assert.False(t, dev.IsRunning())

	require.NoError(t, ctx.SetEnabled(true))
	assert.Equal(t, 2, proc.starts)
	assert.Equal(t, 1, proc.inits)
	assert.Equal(t, 2, dev.NumStarts())
}

func TestStoppedNodes(t *testing.T) {
	ctx := newTestContext(t)
	src := constant(ctx, 1, AutoEnable(true))
	g := NewGain(ctx, 0.5)
	require.NoError(t, ctx.Chain(src, g, ctx.Root()))
	require.NoError(t, ctx.Start())

	l, _ := renderBlock(ctx)
	requireAll(t, l, 0.5)

	g.Stop()
	l, _ = renderBlock(ctx)
	requireAll(t, l, 1)

	require.NoError(t, src.SetEnabled(false))
	l, _ = renderBlock(ctx)
	requireAll(t, l, 0)
}

func TestGainRamp(t *testing.T) {
	ctx := newTestContext(t)
	src := constant(ctx, 1, AutoEnable(true))
	g := NewGain(ctx, 0)
	require.NoError(t, ctx.Chain(src, g, ctx.Root()))
	require.NoError(t, ctx.Start())

	g.Param().RampTo(1, float64(testBlock)/testRate, 0)
	l, _ := renderBlock(ctx)
	assert.Equal(t, float32(0), l[0])
	for i := 1; i < len(l); i++ {
		require.GreaterOrEqual(t, l[i], l[i-1])
		require.LessOrEqual(t, l[i], float32(1))
	}
	assert.Equal(t, float32(1), g.Value())

	l, _ = renderBlock(ctx)
	requireAll(t, l, 1)
}

func TestGainDecibels(t *testing.T) {
	ctx := newTestContext(t)
	g := NewGain(ctx, 1)
	g.SetDecibels(-6.0205999)
	assert.InDelta(t, 0.5, g.Value(), 1e-6)
}

func TestAutoPulledSpectrumTap(t *testing.T) {
	ctx := newTestContext(t)
	sine := NewSine(ctx, 440)
	tap, err := NewSpectrumTap(ctx, testBlock)
	require.NoError(t, err)
	_, err = sine.Connect(tap)
	require.NoError(t, err)
	require.NoError(t, tap.SetAutoPulled(true))
	require.NoError(t, ctx.Start())
	require.NoError(t, sine.Start())

	renderBlock(ctx)
	mag := tap.MagSpectrum()
	require.Len(t, mag, testBlock/2)
	assert.InDelta(t, 5, testutil.PeakIndex(mag), 1)
	assert.InDelta(t, 430.66, tap.BinFrequency(5), 0.01)
	assert.True(t, tap.IsWindowingEnabled())

	require.NoError(t, tap.SetAutoPulled(false))
	assert.Empty(t, ctx.autoPulled)
}

func TestDefaultContext(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, float64(44100), Default().SampleRate())
}
