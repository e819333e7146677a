package buffer

import (
	"sync"
	"sync/atomic"
)

// PoolStats counts Pool traffic.
type PoolStats struct {
	// Gets is the number of Get calls.
	Gets uint64
	// Allocs is how many of those had to allocate a new Buffer.
	Allocs uint64
	// InUse is Gets minus Puts.
	InUse int64
}

// Pool recycles node output buffers across graph re-initialization, so a
// device format change reshapes existing storage instead of allocating.
type Pool struct {
	free   sync.Pool
	gets   atomic.Uint64
	allocs atomic.Uint64
	inUse  atomic.Int64
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	p := &Pool{}
	p.free.New = func() any {
		p.allocs.Add(1)
		return &Buffer{}
	}
	return p
}

// Get returns a silent planar buffer of numFrames × numChannels. Negative
// sizes are treated as 0.
func (p *Pool) Get(numFrames, numChannels int) *Buffer {
	p.gets.Add(1)
	p.inUse.Add(1)
	b := p.free.Get().(*Buffer)
	b.reshape(max(0, numFrames), max(0, numChannels), LayoutPlanar)
	b.Zero()
	return b
}

// Put hands b back. b must not be used afterwards. nil is ignored.
func (p *Pool) Put(b *Buffer) {
	if b == nil {
		return
	}
	p.inUse.Add(-1)
	p.free.Put(b)
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Gets:   p.gets.Load(),
		Allocs: p.allocs.Load(),
		InUse:  p.inUse.Load(),
	}
}
