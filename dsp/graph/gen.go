package graph

import (
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/param"
	"github.com/cwbudde/algo-audiograph/dsp/signal"
)

// Gen is a periodic oscillator source with a frequency Param. Every output
// channel carries the same signal.
type Gen struct {
	*Node
	osc  *signal.Oscillator
	freq *param.Param
}

// NewSine returns a sine generator at freq Hz.
func NewSine(ctx *Context, freq float32, opts ...NodeOption) *Gen {
	return newGen(ctx, signal.ShapeSine, "Sine", freq, opts)
}

// NewPhasor returns a generator of the raw phase ramp in [0, 1).
func NewPhasor(ctx *Context, freq float32, opts ...NodeOption) *Gen {
	return newGen(ctx, signal.ShapePhasor, "Phasor", freq, opts)
}

// NewTriangle returns a triangle generator. Use SetSlopes to skew it.
func NewTriangle(ctx *Context, freq float32, opts ...NodeOption) *Gen {
	return newGen(ctx, signal.ShapeTriangle, "Triangle", freq, opts)
}

func newGen(ctx *Context, shape signal.Shape, name string, freq float32, opts []NodeOption) *Gen {
	g := &Gen{osc: signal.NewOscillator(shape, ctx.SampleRate())}
	g.Node = ctx.MakeNode(g, RoleSource, append([]NodeOption{Named(name)}, opts...)...)
	g.freq = g.NewParam(freq)
	return g
}

// Freq returns the frequency Param in Hz.
func (g *Gen) Freq() *param.Param { return g.freq }

// SetFreq sets the frequency immediately.
func (g *Gen) SetFreq(freq float32) { g.freq.SetValue(freq) }

// SetSlopes sets the triangle rise and fall multipliers.
func (g *Gen) SetSlopes(up, down float64) {
	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()
	g.osc.SetSlopes(up, down)
}

// Phase returns the oscillator phase in cycles.
func (g *Gen) Phase() float64 {
	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()
	return g.osc.Phase()
}

// OnInitialize adopts the context sample rate.
func (g *Gen) OnInitialize() error {
	g.osc.SetSampleRate(g.ctx.SampleRate())
	return nil
}

// Process implements Processor.
func (g *Gen) Process(buf *buffer.Buffer) {
	out := buf.Channel(0)
	if g.freq.IsVaryingThisBlock() && g.freq.EvalBlock() {
		g.osc.ProcessVarying(out, g.freq.Values())
	} else {
		g.osc.Process(out, g.freq.Value())
	}
	for ch := 1; ch < buf.NumChannels(); ch++ {
		copy(buf.Channel(ch), out)
	}
}

// Noise is a white noise source.
type Noise struct {
	*Node
	gen *signal.Noise
}

// NewNoise returns a seeded noise source.
func NewNoise(ctx *Context, seed int64, opts ...NodeOption) *Noise {
	n := &Noise{gen: signal.NewNoise(seed)}
	n.Node = ctx.MakeNode(n, RoleSource, opts...)
	return n
}

// Process implements Processor. Channels are independent.
func (n *Noise) Process(buf *buffer.Buffer) {
	for ch := range buf.NumChannels() {
		n.gen.Process(buf.Channel(ch))
	}
}
