package graph

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-audiograph/dsp/biquad"
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-audiograph/dsp/delay"
	"github.com/cwbudde/algo-audiograph/dsp/param"
)

// filterControlFrames is how often a ramping Filter redesigns its section.
const filterControlFrames = 32

// blockValues evaluates p for the coming block. It returns nil when p holds
// a constant value.
func blockValues(p *param.Param, n int) []float32 {
	if p.IsVaryingThisBlock() && p.EvalBlock() {
		return p.Values()[:n]
	}
	return nil
}

func valueAt(p *param.Param, values []float32, i int) float32 {
	if values == nil {
		return p.Value()
	}
	return values[i]
}

// Filter is a biquad effect with frequency, Q and gain Params. Gain, in dB,
// only affects the peak and shelf kinds.
type Filter struct {
	*Node
	kind biquad.Kind
	freq *param.Param
	q    *param.Param
	gain *param.Param

	f        *biquad.Filter
	designed [3]float32
	valid    bool
}

// NewFilter returns a filter of the given kind at freq Hz with the
// Butterworth Q and 0 dB gain.
func NewFilter(ctx *Context, kind biquad.Kind, freq float32, opts ...NodeOption) *Filter {
	f := &Filter{kind: kind, f: biquad.NewFilter(0)}
	f.Node = ctx.MakeNode(f, RoleEffect, opts...)
	f.freq = f.NewParam(freq)
	f.q = f.NewParam(float32(biquad.DefaultQ))
	f.gain = f.NewParam(0)
	return f
}

// Freq returns the corner or centre frequency Param in Hz.
func (f *Filter) Freq() *param.Param { return f.freq }

// Q returns the quality factor Param.
func (f *Filter) Q() *param.Param { return f.q }

// Gain returns the gain Param in dB.
func (f *Filter) Gain() *param.Param { return f.gain }

// Kind returns the response type.
func (f *Filter) Kind() biquad.Kind {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.kind
}

// SetKind changes the response type. The filter state is kept.
func (f *Filter) SetKind(kind biquad.Kind) error {
	if kind < biquad.Lowpass || kind > biquad.HighShelf {
		return fmt.Errorf("%w: unknown filter kind %d", core.ErrConfiguration, int(kind))
	}
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	f.kind = kind
	f.valid = false
	return nil
}

// Coefficients returns the section designed for the last rendered block.
func (f *Filter) Coefficients() biquad.Coefficients {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.f.Coefficients
}

// OnInitialize sizes the per-channel state for the resolved format.
func (f *Filter) OnInitialize() error {
	f.f.SetChannels(f.format.NumChannels)
	f.f.Reset()
	f.valid = false
	return nil
}

func (f *Filter) redesign(freq, q, gain float32) {
	key := [3]float32{freq, q, gain}
	if f.valid && key == f.designed {
		return
	}
	rate := f.ctx.SampleRate()
	hz := core.Clamp(float64(freq), 1, 0.499*rate)
	c, err := biquad.Design(f.kind, hz, float64(q), float64(gain), rate)
	if err != nil {
		return
	}
	f.f.Coefficients = c
	f.designed = key
	f.valid = true
}

// Process implements Processor.
func (f *Filter) Process(buf *buffer.Buffer) {
	n := buf.NumFrames()
	freqs := blockValues(f.freq, n)
	qs := blockValues(f.q, n)
	gains := blockValues(f.gain, n)

	if freqs == nil && qs == nil && gains == nil {
		f.redesign(f.freq.Value(), f.q.Value(), f.gain.Value())
		for ch := range buf.NumChannels() {
			f.f.Process(ch, buf.Channel(ch))
		}
		return
	}
	for at := 0; at < n; at += filterControlFrames {
		end := min(n, at+filterControlFrames)
		f.redesign(valueAt(f.freq, freqs, at), valueAt(f.q, qs, at), valueAt(f.gain, gains, at))
		for ch := range buf.NumChannels() {
			f.f.Process(ch, buf.Channel(ch)[at:end])
		}
	}
}

// DefaultMaxEchoSeconds bounds the Echo delay when no limit is given.
const DefaultMaxEchoSeconds = 2.0

// maxEchoFeedback keeps the feedback loop stable.
const maxEchoFeedback = 0.99

// Echo is a feedback delay. Each output sample is
// (1-mix)·x + mix·d, where d is the line read Delay seconds back and the line
// is fed x + feedback·d.
type Echo struct {
	*Node
	maxSeconds float64
	delay      *param.Param
	feedback   *param.Param
	mix        *param.Param
	lines      []*delay.Line
}

// NewEcho returns an echo with the given delay, 0.5 feedback and 0.5 mix.
// maxSeconds <= 0 selects DefaultMaxEchoSeconds.
func NewEcho(ctx *Context, delaySeconds float32, maxSeconds float64, opts ...NodeOption) *Echo {
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxEchoSeconds
	}
	e := &Echo{maxSeconds: maxSeconds}
	e.Node = ctx.MakeNode(e, RoleEffect, opts...)
	e.delay = e.NewParam(core.Clamp(delaySeconds, 0, float32(maxSeconds)))
	e.feedback = e.NewParam(0.5)
	e.mix = e.NewParam(0.5)
	return e
}

// Delay returns the delay time Param in seconds.
func (e *Echo) Delay() *param.Param { return e.delay }

// Feedback returns the feedback Param, clamped to [0, 0.99] when rendering.
func (e *Echo) Feedback() *param.Param { return e.feedback }

// Mix returns the wet/dry Param; 0 is dry only, 1 wet only.
func (e *Echo) Mix() *param.Param { return e.mix }

// MaxDelaySeconds returns the longest delay the lines hold.
func (e *Echo) MaxDelaySeconds() float64 { return e.maxSeconds }

// OnInitialize allocates one line per channel at the current sample rate.
func (e *Echo) OnInitialize() error {
	frames := int(math.Ceil(e.maxSeconds * e.ctx.SampleRate()))
	e.lines = make([]*delay.Line, e.format.NumChannels)
	for ch := range e.lines {
		l, err := delay.New(max(1, frames))
		if err != nil {
			return err
		}
		e.lines[ch] = l
	}
	return nil
}

// OnUninitialize drops the lines.
func (e *Echo) OnUninitialize() { e.lines = nil }

// Process implements Processor.
func (e *Echo) Process(buf *buffer.Buffer) {
	n := buf.NumFrames()
	rate := e.ctx.SampleRate()
	delays := blockValues(e.delay, n)
	feedbacks := blockValues(e.feedback, n)
	mixes := blockValues(e.mix, n)

	for ch := range min(buf.NumChannels(), len(e.lines)) {
		line := e.lines[ch]
		data := buf.Channel(ch)
		for i, x := range data {
			d := float64(valueAt(e.delay, delays, i)) * rate
			fb := core.Clamp(valueAt(e.feedback, feedbacks, i), 0, maxEchoFeedback)
			mix := core.Clamp(valueAt(e.mix, mixes, i), 0, 1)

			wet := line.ReadFractional(d)
			line.Write(x + fb*wet)
			data[i] = (1-mix)*x + mix*wet
		}
	}
}
