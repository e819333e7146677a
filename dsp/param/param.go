package param

import (
	"math"
	"sync"
	"sync/atomic"
)

// DefaultRampSeconds is the ramp duration used by RampToDefault.
const DefaultRampSeconds = 0.005

// Timeline supplies the render clock a Param schedules against.
type Timeline interface {
	// NumProcessedSeconds returns the start time of the next block.
	NumProcessedSeconds() float64
	SampleRate() float64
}

type event struct {
	begin, end           float64
	valueBegin, valueEnd float32
}

func (e event) valueAt(t float64) float32 {
	if t >= e.end {
		return e.valueEnd
	}
	if t <= e.begin {
		return e.valueBegin
	}
	frac := float32((t - e.begin) / (e.end - e.begin))
	return e.valueBegin + (e.valueEnd-e.valueBegin)*frac
}

// Param is one automatable scalar.
type Param struct {
	bits atomic.Uint32 // current value as float32 bits

	own sync.Mutex
	mu  sync.Locker
	tl  Timeline

	defaultRamp    float64
	events         []event
	values         []float32
	framesPerBlock int
}

// New returns an unbound Param holding value.
func New(value float32) *Param {
	p := &Param{defaultRamp: DefaultRampSeconds}
	p.mu = &p.own
	p.store(value)
	return p
}

// Bind attaches the Param to a render timeline and the lock guarding its
// event list, and sizes the per-block value buffer. A nil mu keeps the
// Param's private lock.
func (p *Param) Bind(tl Timeline, mu sync.Locker, framesPerBlock int) {
	if mu == nil {
		mu = &p.own
	}
	p.tl = tl
	p.mu = mu
	p.framesPerBlock = framesPerBlock
	if cap(p.values) < framesPerBlock {
		p.values = make([]float32, framesPerBlock)
	}
	p.values = p.values[:framesPerBlock]
}

func (p *Param) load() float32   { return math.Float32frombits(p.bits.Load()) }
func (p *Param) store(v float32) { p.bits.Store(math.Float32bits(v)) }

// Value returns the current resolved value. It is safe from any goroutine.
func (p *Param) Value() float32 { return p.load() }

// SetValue sets the value immediately and drops every pending ramp.
func (p *Param) SetValue(v float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = p.events[:0]
	p.store(v)
}

// DefaultRampSeconds returns the duration used by RampToDefault.
func (p *Param) DefaultRampSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultRamp
}

// SetDefaultRampSeconds sets the duration used by RampToDefault.
func (p *Param) SetDefaultRampSeconds(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultRamp = max(seconds, 0)
}

// RampToDefault ramps to target over the default ramp duration.
func (p *Param) RampToDefault(target float32) {
	p.RampTo(target, p.DefaultRampSeconds(), 0)
}

// RampTo schedules a linear ramp to target lasting duration seconds and
// starting delay seconds after the next rendered block begins.
//
// The ramp starts from the value the existing schedule would reach at its
// start time. Events beginning at or after that time are dropped and an
// event still running then is cut short there.
func (p *Param) RampTo(target float32, duration, delay float64) {
	duration = max(duration, 0)
	delay = max(delay, 0)

	p.mu.Lock()
	defer p.mu.Unlock()

	begin := p.now() + delay
	from := p.valueAtLocked(begin)

	kept := p.events[:0]
	for _, e := range p.events {
		if e.begin >= begin {
			continue
		}
		if e.end > begin {
			e.end = begin
			e.valueEnd = from
		}
		kept = append(kept, e)
	}
	p.events = append(kept, event{
		begin:      begin,
		end:        begin + duration,
		valueBegin: from,
		valueEnd:   target,
	})
}

// NumEvents returns the number of scheduled events not yet retired.
func (p *Param) NumEvents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// IsVaryingThisBlock reports whether a scheduled event affects the block
// that renders next. The caller must hold the bound lock.
func (p *Param) IsVaryingThisBlock() bool {
	if len(p.events) == 0 {
		return false
	}
	if p.tl == nil || p.framesPerBlock == 0 {
		return true
	}
	blockEnd := p.now() + float64(p.framesPerBlock)/p.tl.SampleRate()
	return p.events[0].begin < blockEnd
}

// EvalBlock evaluates the next block into the buffer returned by Values and
// reports whether the values vary. It runs on the render goroutine with the
// bound lock held. A Param that was never bound evaluates nothing.
func (p *Param) EvalBlock() bool {
	if p.tl == nil || len(p.values) == 0 {
		return false
	}
	return p.Eval(p.now(), p.values, p.tl.SampleRate())
}

// Values returns the buffer filled by the last EvalBlock.
func (p *Param) Values() []float32 { return p.values }

// Eval writes the parameter value for each sample of a block beginning at
// timeBegin seconds into out and reports whether any ramp was active. The
// caller must hold the bound lock.
//
// Events that finish within the block are retired and the current value
// becomes their exact end value.
func (p *Param) Eval(timeBegin float64, out []float32, sampleRate float64) bool {
	if len(out) == 0 || sampleRate <= 0 {
		return false
	}
	blockEnd := timeBegin + float64(len(out))/sampleRate
	if len(p.events) == 0 || p.events[0].begin >= blockEnd {
		v := p.load()
		for i := range out {
			out[i] = v
		}
		return false
	}

	value := p.load()
	idx := 0
	for i := range out {
		t := timeBegin + float64(i)/sampleRate
		for idx < len(p.events) && t >= p.events[idx].end {
			value = p.events[idx].valueEnd
			idx++
		}
		if idx < len(p.events) && t >= p.events[idx].begin {
			out[i] = p.events[idx].valueAt(t)
		} else {
			out[i] = value
		}
	}

	// Retire events finished by the end of the block.
	retired := 0
	for _, e := range p.events {
		if e.end > blockEnd {
			break
		}
		value = e.valueEnd
		retired++
	}
	if retired > 0 {
		n := copy(p.events, p.events[retired:])
		p.events = p.events[:n]
	}
	if len(p.events) > 0 && p.events[0].begin < blockEnd {
		value = p.events[0].valueAt(blockEnd)
	}
	p.store(value)
	return true
}

func (p *Param) now() float64 {
	if p.tl == nil {
		return 0
	}
	return p.tl.NumProcessedSeconds()
}

func (p *Param) valueAtLocked(t float64) float32 {
	v := p.load()
	for _, e := range p.events {
		if t < e.begin {
			break
		}
		if t < e.end {
			return e.valueAt(t)
		}
		v = e.valueEnd
	}
	return v
}
