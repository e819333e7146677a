package graph

import (
	"math"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/param"
)

// Mixer sums any number of inputs. Connect without a bus takes the first
// free bus and grows the mixer when all are in use.
type Mixer struct {
	*Node
}

// NewMixer returns an empty mixer.
func NewMixer(ctx *Context, opts ...NodeOption) *Mixer {
	m := &Mixer{}
	m.Node = ctx.MakeNode(m, RoleMixer, opts...)
	return m
}

// Process implements Processor. The render pass has already summed the
// inputs.
func (m *Mixer) Process(*buffer.Buffer) {}

// VoiceKey is the native key of the voice backend.
const VoiceKey = "voice"

// VoiceMixer is a mixer native to the voice backend. It only takes Voice
// inputs; generic sources are routed through implicitly inserted voices.
type VoiceMixer struct {
	*Node
}

// NewVoiceMixer returns an empty voice mixer.
func NewVoiceMixer(ctx *Context, opts ...NodeOption) *VoiceMixer {
	m := &VoiceMixer{}
	base := []NodeOption{Native(VoiceKey), RequiresNative(VoiceKey)}
	m.Node = ctx.MakeNode(m, RoleMixer, append(base, opts...)...)
	return m
}

// Process implements Processor.
func (m *VoiceMixer) Process(*buffer.Buffer) {}

// Voices returns the voices feeding the mixer, in bus order.
func (m *VoiceMixer) Voices() []*Voice {
	m.ctx.mu.Lock()
	defer m.ctx.mu.Unlock()
	var out []*Voice
	for _, id := range m.sources {
		if n := m.ctx.nodeLocked(id); n != nil {
			if v, ok := n.proc.(*Voice); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// VoiceFor returns the voice that hosts source on this mixer, or nil.
func (m *VoiceMixer) VoiceFor(source Handle) *Voice {
	id := source.node().id
	for _, v := range m.Voices() {
		if v.Sources()[0] == id {
			return v
		}
	}
	return nil
}

// Voice adapts one generic source to the voice backend, with its own
// volume and stereo pan.
type Voice struct {
	*Node
	volume *param.Param
	pan    *param.Param
}

// NewVoice returns a voice. Pass Channels to match its source.
func NewVoice(ctx *Context, opts ...NodeOption) *Voice {
	v := &Voice{}
	base := []NodeOption{Native(VoiceKey)}
	v.Node = ctx.MakeNode(v, RoleEffect, append(base, opts...)...)
	v.volume = v.NewParam(1)
	v.pan = v.NewParam(0.5)
	return v
}

// Volume returns the linear volume Param.
func (v *Voice) Volume() *param.Param { return v.volume }

// Pan returns the pan position Param, 0 left to 1 right. It applies to
// stereo voices only.
func (v *Voice) Pan() *param.Param { return v.pan }

// Process implements Processor.
func (v *Voice) Process(buf *buffer.Buffer) {
	if v.volume.IsVaryingThisBlock() && v.volume.EvalBlock() {
		values := v.volume.Values()
		for ch := range buf.NumChannels() {
			data := buf.Channel(ch)
			for i := range data {
				data[i] *= values[i]
			}
		}
	} else if vol := v.volume.Value(); vol != 1 {
		buf.Scale(vol)
	}

	if buf.NumChannels() != 2 {
		return
	}
	// Pan moves once per block.
	if v.pan.IsVaryingThisBlock() {
		v.pan.EvalBlock()
	}
	pos := v.pan.Value()
	if pos == 0.5 {
		return
	}
	// Unity at the centre.
	l, r := panGains(pos)
	scaleSlice(buf.Channel(0), l*math.Sqrt2)
	scaleSlice(buf.Channel(1), r*math.Sqrt2)
}

func scaleSlice(data []float32, gain float32) {
	for i := range data {
		data[i] *= gain
	}
}

// VoiceRule routes generic sources into voice-native nodes through a new
// Voice with the source's channel count.
func VoiceRule() AdapterRule {
	return AdapterRule{
		Key: VoiceKey,
		Accepts: func(source *Node) bool {
			return !source.Role().Has(RoleOutput)
		},
		New: func(ctx *Context, source *Node) (*Node, error) {
			opt := InferChannels()
			if ch := source.NumChannels(); ch > 0 {
				opt = Channels(ch)
			}
			v := NewVoice(ctx, opt, Named("Voice("+source.Name()+")"))
			return v.Node, nil
		},
	}
}
