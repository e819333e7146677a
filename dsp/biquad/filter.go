package biquad

// Filter runs one section per channel. Coefficients are shared; each
// channel keeps its own transposed direct form II state.
type Filter struct {
	Coefficients
	state [][2]float64
}

// NewFilter returns a filter for channels channels passing audio through.
func NewFilter(channels int) *Filter {
	return &Filter{Coefficients: Identity, state: make([][2]float64, max(0, channels))}
}

// NumChannels returns the number of channel states.
func (f *Filter) NumChannels() int { return len(f.state) }

// SetChannels resizes the state, clearing it when the count changes.
func (f *Filter) SetChannels(n int) {
	if n != len(f.state) {
		f.state = make([][2]float64, max(0, n))
	}
}

// Reset clears the state of every channel.
func (f *Filter) Reset() { clear(f.state) }

// ProcessSample filters one sample of channel ch.
func (f *Filter) ProcessSample(ch int, x float64) float64 {
	s := &f.state[ch]
	y := f.B0*x + s[0]
	s[0] = f.B1*x - f.A1*y + s[1]
	s[1] = f.B2*x - f.A2*y
	return y
}

// Process filters buf in place as channel ch.
func (f *Filter) Process(ch int, buf []float32) {
	b0, b1, b2, a1, a2 := f.B0, f.B1, f.B2, f.A1, f.A2
	d0, d1 := f.state[ch][0], f.state[ch][1]
	for i, v := range buf {
		x := float64(v)
		y := b0*x + d0
		d0 = b1*x - a1*y + d1
		d1 = b2*x - a2*y
		buf[i] = float32(y)
	}
	f.state[ch] = [2]float64{d0, d1}
}

// ImpulseResponse returns n samples of the response of the current
// coefficients from zero state. The filter state is untouched.
func (c Coefficients) ImpulseResponse(n int) []float64 {
	if n <= 0 {
		return nil
	}
	f := Filter{Coefficients: c, state: make([][2]float64, 1)}
	out := make([]float64, n)
	out[0] = f.ProcessSample(0, 1)
	for i := 1; i < n; i++ {
		out[i] = f.ProcessSample(0, 0)
	}
	return out
}
