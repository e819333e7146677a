// Package ringbuffer provides a lock-free single-producer single-consumer
// float32 FIFO for handing samples between a render callback and another
// goroutine.
//
// Exactly one goroutine may call Write and exactly one may call Read. Both
// operations are all-or-nothing: a request that does not fit leaves the
// buffer untouched and returns false.
package ringbuffer

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// RingBuffer is a bounded SPSC queue of float32 samples.
type RingBuffer struct {
	data []float32

	// Monotonic sample counters. write-read is the fill level.
	readPos  atomic.Uint64
	writePos atomic.Uint64
}

// New returns a RingBuffer holding up to capacity samples.
func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: ring buffer capacity must be > 0: %d", core.ErrConfiguration, capacity)
	}
	return &RingBuffer{data: make([]float32, capacity)}, nil
}

// Capacity returns the maximum number of buffered samples.
func (r *RingBuffer) Capacity() int { return len(r.data) }

// AvailableRead returns the number of samples ready to read.
func (r *RingBuffer) AvailableRead() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// AvailableWrite returns the number of samples that can be written.
func (r *RingBuffer) AvailableWrite() int {
	return len(r.data) - r.AvailableRead()
}

// Write appends all of src or nothing. It returns false when src does not
// fit in the free space.
func (r *RingBuffer) Write(src []float32) bool {
	if len(src) == 0 {
		return true
	}
	w := r.writePos.Load()
	rd := r.readPos.Load()
	if len(src) > len(r.data)-int(w-rd) {
		return false
	}
	start := int(w % uint64(len(r.data)))
	n := copy(r.data[start:], src)
	copy(r.data, src[n:])
	r.writePos.Store(w + uint64(len(src)))
	return true
}

// Read fills dst completely or not at all. It returns false when fewer than
// len(dst) samples are available.
func (r *RingBuffer) Read(dst []float32) bool {
	if len(dst) == 0 {
		return true
	}
	rd := r.readPos.Load()
	w := r.writePos.Load()
	if len(dst) > int(w-rd) {
		return false
	}
	start := int(rd % uint64(len(r.data)))
	n := copy(dst, r.data[start:])
	copy(dst[n:], r.data)
	r.readPos.Store(rd + uint64(len(dst)))
	return true
}

// Clear discards all buffered samples. It must only be called while neither
// side is active.
func (r *RingBuffer) Clear() {
	r.readPos.Store(r.writePos.Load())
}
