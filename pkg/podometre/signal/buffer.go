// Package signal holds the fixed-capacity sample window fed by the ingest path.
package signal

import (
	"errors"
	"math"
)

// ErrCapacity is returned when a buffer is created or resized with a
// capacity that is not a positive power of two.
var ErrCapacity = errors.New("buffer capacity must be a positive power of two")

// ResetPolicy decides what happens to a session buffer when a new batch
// arrives.
type ResetPolicy string

const (
	// PolicyReset clears the buffer before every batch.
	PolicyReset ResetPolicy = "reset"
	// PolicySliding keeps the buffer across batches.
	PolicySliding ResetPolicy = "sliding"
)

// Valid reports whether p is a known policy.
func (p ResetPolicy) Valid() bool {
	return p == PolicyReset || p == PolicySliding
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Buffer is a ring of float64 samples. Once full, each Push evicts the
// oldest sample. Buffer is not safe for concurrent use; the owning session
// serializes access.
type Buffer struct {
	data  []float64
	head  int // index of the oldest sample
	count int
}

// NewBuffer returns an empty buffer holding at most capacity samples.
func NewBuffer(capacity int) (*Buffer, error) {
	if !IsPowerOfTwo(capacity) {
		return nil, ErrCapacity
	}
	return &Buffer{data: make([]float64, capacity)}, nil
}

// Push appends one sample, evicting the oldest when the buffer is full.
func (b *Buffer) Push(sample float64) {
	n := len(b.data)
	if b.count < n {
		b.data[(b.head+b.count)%n] = sample
		b.count++
		return
	}
	b.data[b.head] = sample
	b.head = (b.head + 1) % n
}

// PushAll pushes samples in order.
func (b *Buffer) PushAll(samples []float64) {
	for _, s := range samples {
		b.Push(s)
	}
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the window size.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Full reports whether the buffer holds a complete window.
func (b *Buffer) Full() bool {
	return b.count == len(b.data)
}

// Ordered returns a copy of the contents, oldest first. Missing samples
// (NaN or infinities) come back as 0.
func (b *Buffer) Ordered() []float64 {
	out := make([]float64, b.count)
	n := len(b.data)
	for i := 0; i < b.count; i++ {
		v := b.data[(b.head+i)%n]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
	}
	return out
}

// Reset drops every sample while keeping the capacity.
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
}

// Resize changes the capacity, keeping the newest min(Len, capacity) samples.
func (b *Buffer) Resize(capacity int) error {
	if !IsPowerOfTwo(capacity) {
		return ErrCapacity
	}
	if capacity == len(b.data) {
		return nil
	}

	keep := b.count
	if keep > capacity {
		keep = capacity
	}
	next := make([]float64, capacity)
	n := len(b.data)
	start := b.head + b.count - keep
	for i := 0; i < keep; i++ {
		next[i] = b.data[(start+i)%n]
	}

	b.data = next
	b.head = 0
	b.count = keep
	return nil
}
