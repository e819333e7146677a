package graph

import (
	"math"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-audiograph/dsp/param"
	"github.com/cwbudde/algo-audiograph/dsp/signal"
)

// Gain multiplies its input by a linear gain Param.
type Gain struct {
	*Node
	gain *param.Param
}

// NewGain returns a Gain effect.
func NewGain(ctx *Context, gain float32, opts ...NodeOption) *Gain {
	g := &Gain{}
	g.Node = ctx.MakeNode(g, RoleEffect, opts...)
	g.gain = g.NewParam(gain)
	return g
}

// Param returns the linear gain Param.
func (g *Gain) Param() *param.Param { return g.gain }

// SetValue sets the linear gain immediately.
func (g *Gain) SetValue(gain float32) { g.gain.SetValue(gain) }

// Value returns the current linear gain.
func (g *Gain) Value() float32 { return g.gain.Value() }

// SetDecibels sets the gain in dB.
func (g *Gain) SetDecibels(db float64) {
	g.gain.SetValue(float32(core.DBToLinear(db)))
}

// Process implements Processor.
func (g *Gain) Process(buf *buffer.Buffer) {
	if g.gain.IsVaryingThisBlock() && g.gain.EvalBlock() {
		values := g.gain.Values()
		for ch := range buf.NumChannels() {
			data := buf.Channel(ch)
			for i := range data {
				data[i] *= values[i]
			}
		}
		return
	}
	buf.Scale(g.gain.Value())
}

// Pan2d is an equal-power stereo panner. Position 0 is hard left, 0.5 the
// centre and 1 hard right. A mono input is spread over both channels.
type Pan2d struct {
	*Node
	pos *param.Param
}

// NewPan2d returns a stereo panner at the centre.
func NewPan2d(ctx *Context, opts ...NodeOption) *Pan2d {
	p := &Pan2d{}
	p.Node = ctx.MakeNode(p, RoleEffect, append([]NodeOption{Channels(2)}, opts...)...)
	p.pos = p.NewParam(0.5)
	return p
}

// Pos returns the position Param.
func (p *Pan2d) Pos() *param.Param { return p.pos }

// SetPos sets the position, clamped to [0, 1].
func (p *Pan2d) SetPos(pos float32) {
	p.pos.SetValue(core.Clamp(pos, 0, 1))
}

// Process implements Processor.
func (p *Pan2d) Process(buf *buffer.Buffer) {
	if buf.NumChannels() != 2 {
		return
	}
	left, right := buf.Channel(0), buf.Channel(1)
	if p.pos.IsVaryingThisBlock() && p.pos.EvalBlock() {
		for i, pos := range p.pos.Values()[:len(left)] {
			l, r := panGains(pos)
			left[i] *= l
			right[i] *= r
		}
		return
	}
	l, r := panGains(p.pos.Value())
	for i := range left {
		left[i] *= l
		right[i] *= r
	}
}

// panGains returns cos and sin of pos·π/2.
func panGains(pos float32) (float32, float32) {
	x := float64(core.Clamp(pos, 0, 1)) * math.Pi / 2
	return float32(math.Cos(x)), float32(math.Sin(x))
}

// RingMod multiplies its input by a sine carrier.
type RingMod struct {
	*Node
	osc     *signal.Oscillator
	freq    *param.Param
	carrier []float32
}

// NewRingMod returns a ring modulator with the given carrier frequency.
func NewRingMod(ctx *Context, freq float32, opts ...NodeOption) *RingMod {
	r := &RingMod{osc: signal.NewOscillator(signal.ShapeSine, ctx.SampleRate())}
	r.Node = ctx.MakeNode(r, RoleEffect, opts...)
	r.freq = r.NewParam(freq)
	return r
}

// Freq returns the carrier frequency Param.
func (r *RingMod) Freq() *param.Param { return r.freq }

// OnInitialize sizes the carrier buffer.
func (r *RingMod) OnInitialize() error {
	r.osc.SetSampleRate(r.ctx.SampleRate())
	r.carrier = make([]float32, r.ctx.FramesPerBlock())
	return nil
}

// Process implements Processor.
func (r *RingMod) Process(buf *buffer.Buffer) {
	carrier := r.carrier[:buf.NumFrames()]
	if r.freq.IsVaryingThisBlock() && r.freq.EvalBlock() {
		r.osc.ProcessVarying(carrier, r.freq.Values())
	} else {
		r.osc.Process(carrier, r.freq.Value())
	}
	for ch := range buf.NumChannels() {
		data := buf.Channel(ch)
		for i, c := range carrier {
			data[i] *= c
		}
	}
}
