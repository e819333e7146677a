package graph

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

func newVoiceMixer(t *testing.T, ctx *Context) *VoiceMixer {
	t.Helper()
	vm := NewVoiceMixer(ctx)
	_, err := vm.Connect(ctx.Root())
	require.NoError(t, err)
	return vm
}

func TestAdapterInsertedForGenericSource(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	ctx := newTestContext(t, WithLogger(logger))
	vm := newVoiceMixer(t, ctx)
	src := constant(ctx, 1, AutoEnable(true))

	dest, err := src.Connect(vm)
	require.NoError(t, err)
	assert.Equal(t, vm.ID(), dest.ID())

	voices := vm.Voices()
	require.Len(t, voices, 1)
	v := voices[0]
	assert.True(t, v.IsAdapter())
	assert.Equal(t, VoiceKey, v.NativeKey())
	assert.Equal(t, []ID{src.ID()}, v.Sources())
	assert.Equal(t, v.ID(), src.Parent())
	assert.Equal(t, 1, v.NumChannels())
	assert.Same(t, v, vm.VoiceFor(src))

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "inserted adapter" && e.Level == logrus.InfoLevel {
			logged = true
		}
	}
	assert.True(t, logged)

	require.NoError(t, ctx.Start())
	v.Volume().SetValue(0.5)
	l, r := renderBlock(ctx)
	requireAll(t, l, 0.5)
	requireAll(t, r, 0.5)
}

func TestNativeSourceConnectsDirectly(t *testing.T) {
	ctx := newTestContext(t)
	vm := newVoiceMixer(t, ctx)
	v := NewVoice(ctx, Channels(1))
	before := ctx.NumNodes()

	_, err := v.Connect(vm)
	require.NoError(t, err)
	assert.Equal(t, before, ctx.NumNodes())
	assert.Equal(t, []ID{v.ID()}, vm.Sources())
	assert.False(t, v.IsAdapter())
}

func TestAdapterReusedDownstream(t *testing.T) {
	ctx := newTestContext(t)
	vm1 := newVoiceMixer(t, ctx)
	vm2 := newVoiceMixer(t, ctx)
	src := NewSine(ctx, 440)

	_, err := src.Connect(vm1)
	require.NoError(t, err)
	v := vm1.VoiceFor(src)
	require.NotNil(t, v)
	before := ctx.NumNodes()

	_, err = src.Connect(vm2)
	require.NoError(t, err)
	assert.Equal(t, before, ctx.NumNodes())
	assert.Equal(t, []ID{v.ID()}, vm2.Sources())
	assert.Equal(t, []ID{v.ID()}, vm1.Sources())
}

func TestAdapterReusedUpstream(t *testing.T) {
	ctx := newTestContext(t)
	vm1 := newVoiceMixer(t, ctx)
	src := NewSine(ctx, 440)
	_, err := src.Connect(vm1)
	require.NoError(t, err)
	v := vm1.VoiceFor(src)
	require.NotNil(t, v)

	fx := NewGain(ctx, 1)
	_, err = v.Connect(fx)
	require.NoError(t, err)
	vm2 := newVoiceMixer(t, ctx)
	before := ctx.NumNodes()

	_, err = fx.Connect(vm2)
	require.NoError(t, err)
	assert.Equal(t, before, ctx.NumNodes())
	assert.Equal(t, []ID{fx.ID()}, vm2.Sources())
}

func TestAdapterSplicedFromFurtherDownstream(t *testing.T) {
	ctx := newTestContext(t)
	vm1 := newVoiceMixer(t, ctx)
	vm2 := newVoiceMixer(t, ctx)
	src := constant(ctx, 1, AutoEnable(true))
	gain := NewGain(ctx, 0.5)

	_, err := src.Connect(gain)
	require.NoError(t, err)
	_, err = gain.Connect(vm1)
	require.NoError(t, err)
	v := vm1.VoiceFor(gain)
	require.NotNil(t, v)
	before := ctx.NumNodes()

	_, err = src.Connect(vm2)
	require.NoError(t, err)
	assert.Equal(t, before, ctx.NumNodes())
	assert.Equal(t, []ID{src.ID()}, v.Sources())
	assert.Equal(t, []ID{v.ID()}, gain.Sources())
	assert.Equal(t, []ID{gain.ID()}, vm1.Sources())
	assert.Equal(t, []ID{v.ID()}, vm2.Sources())
	assert.Same(t, v, vm2.VoiceFor(src))
	assert.Equal(t, v.ID(), src.Parent())

	require.NoError(t, ctx.Start())
	l, r := renderBlock(ctx)
	requireAll(t, l, 1.5)
	requireAll(t, r, 1.5)
}

func TestGenericIntoNativeWithoutAdapterFails(t *testing.T) {
	ctx := newTestContext(t)
	vm := newVoiceMixer(t, ctx)
	native := ctx.MakeNode(&countingProc{}, RoleEffect, Native(VoiceKey))
	src := NewSine(ctx, 440)
	_, err := src.Connect(native)
	require.NoError(t, err)
	before := ctx.NumNodes()

	_, err = src.Connect(vm)
	require.ErrorIs(t, err, core.ErrConfiguration)
	assert.Equal(t, before, ctx.NumNodes())
	assert.Empty(t, vm.Voices())
}

func TestAdapterRuleRejectsSource(t *testing.T) {
	rules := NewAdapterRules()
	rules.MustRegister(AdapterRule{
		Key:     VoiceKey,
		Accepts: func(*Node) bool { return false },
		New:     VoiceRule().New,
	})
	ctx := newTestContext(t, WithAdapterRules(rules))
	vm := newVoiceMixer(t, ctx)

	_, err := NewSine(ctx, 440).Connect(vm)
	require.ErrorIs(t, err, core.ErrConfiguration)
}

func TestMissingAdapterRule(t *testing.T) {
	ctx := newTestContext(t)
	dest := ctx.MakeNode(&countingProc{}, RoleMixer, RequiresNative("dsp"))
	_, err := NewSine(ctx, 440).Connect(dest)
	require.ErrorIs(t, err, core.ErrConfiguration)
}

func TestAdapterRulesRegistry(t *testing.T) {
	r := NewAdapterRules()
	require.Error(t, r.Register(AdapterRule{New: VoiceRule().New}))
	require.Error(t, r.Register(AdapterRule{Key: "x"}))
	require.NoError(t, r.Register(VoiceRule()))
	require.Error(t, r.Register(VoiceRule()))
	assert.Panics(t, func() { r.MustRegister(VoiceRule()) })

	rule, ok := r.Lookup(VoiceKey)
	assert.True(t, ok)
	assert.Equal(t, VoiceKey, rule.Key)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}
