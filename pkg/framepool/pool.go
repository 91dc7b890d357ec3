// Package framepool provides a fixed-capacity lock-free ring buffer for
// exactly one producer goroutine and one consumer goroutine.
//
// The producer publishes a slot by storing head after writing the slot; the
// consumer observes it by loading head before reading the slot. The same
// pairing runs the other way on tail. Go's sync/atomic operations are
// sequentially consistent, which is at least as strong as the
// release/acquire pairing this protocol needs.
//
// Using more than one producer or more than one consumer is undefined.
// Nothing checks for it at runtime.
package framepool

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidCapacity is returned when the capacity cannot hold a frame.
var ErrInvalidCapacity = errors.New("framepool: capacity must be at least 2")

// Pool is a single-producer/single-consumer ring of N slots. One slot is
// always left unused so head == tail means empty, giving N-1 usable slots.
type Pool[T any] struct {
	slots []T
	head  atomic.Uint64 // next slot the producer writes
	tail  atomic.Uint64 // next slot the consumer reads
}

// New creates a pool with the given number of slots.
func New[T any](capacity int) (*Pool[T], error) {
	if capacity < 2 {
		return nil, ErrInvalidCapacity
	}
	return &Pool[T]{slots: make([]T, capacity)}, nil
}

// Enqueue stores v at head. It returns false without touching v when the
// pool is full. Producer side only.
func (p *Pool[T]) Enqueue(v T) bool {
	head := p.head.Load()
	next := p.increment(head)
	if next == p.tail.Load() {
		return false
	}
	p.slots[head] = v
	p.head.Store(next)
	return true
}

// Dequeue moves the value at tail out, resets the slot to the zero value
// and advances tail. Consumer side only.
func (p *Pool[T]) Dequeue() (T, bool) {
	var zero T
	tail := p.tail.Load()
	if tail == p.head.Load() {
		return zero, false
	}
	v := p.slots[tail]
	p.slots[tail] = zero
	p.tail.Store(p.increment(tail))
	return v, true
}

// CurrentSize returns how many values are queued.
func (p *Pool[T]) CurrentSize() int {
	n := uint64(len(p.slots))
	head := p.head.Load()
	tail := p.tail.Load()
	return int((head + n - tail) % n)
}

// HasSpace reports whether another Enqueue would succeed.
func (p *Pool[T]) HasSpace() bool {
	return p.CurrentSize() < p.ActualMaxSize()
}

// ActualMaxSize returns the usable capacity, one less than the slot count.
func (p *Pool[T]) ActualMaxSize() int {
	return len(p.slots) - 1
}

// Capacity returns the slot count the pool was created with.
func (p *Pool[T]) Capacity() int {
	return len(p.slots)
}

// Clear drops every queued value and resets both indices.
// The caller must guarantee no Enqueue or Dequeue is in flight.
func (p *Pool[T]) Clear() {
	var zero T
	for i := range p.slots {
		p.slots[i] = zero
	}
	p.head.Store(0)
	p.tail.Store(0)
}

func (p *Pool[T]) increment(i uint64) uint64 {
	return (i + 1) % uint64(len(p.slots))
}
