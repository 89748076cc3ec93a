package router

import (
	"errors"
	"sync"
)

// Buffer errors
var (
	ErrBufferClosed = errors.New("buffer closed")
	ErrBufferFull   = errors.New("buffer full")
)

// GrowableBuffer is a thread-safe FIFO ring that doubles its capacity when
// it reaches 70% full, up to an optional limit. It decouples the connection
// worker, which must never block, from slower consumers such as the
// database writer.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int // next item to read
	size   int
	limit  int // 0 = unbounded
	closed bool

	// Stats
	pushed  int64
	popped  int64
	grows   int
	rejects int64
}

// NewGrowableBuffer creates a buffer with the given initial capacity and
// no size limit.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	return NewBoundedBuffer[T](initialCapacity, 0)
}

// NewBoundedBuffer creates a buffer that grows up to limit items. A
// non-positive limit means unbounded.
func NewBoundedBuffer[T any](initialCapacity, limit int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit > 0 && initialCapacity > limit {
		initialCapacity = limit
	}
	return &GrowableBuffer[T]{
		ring:  make([]T, initialCapacity),
		limit: limit,
	}
}

// Send appends item. It never blocks; it fails with ErrBufferClosed after
// Close and ErrBufferFull when the limit is reached.
func (b *GrowableBuffer[T]) Send(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.rejects++
		return ErrBufferClosed
	}

	threshold := max(len(b.ring)*70/100, 1)
	if b.size+1 >= threshold && (b.limit == 0 || len(b.ring) < b.limit) {
		b.grow()
	}
	if b.size == len(b.ring) {
		b.rejects++
		return ErrBufferFull
	}

	b.ring[(b.head+b.size)%len(b.ring)] = item
	b.size++
	b.pushed++
	return nil
}

// TryReceive pops the oldest item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.size == 0 {
		return zero, false
	}
	item := b.pop()
	return item, true
}

// DrainTo pops up to n items (all when n <= 0), oldest first.
func (b *GrowableBuffer[T]) DrainTo(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	return out
}

// pop removes the head item. Must be called with lock held and size > 0.
func (b *GrowableBuffer[T]) pop() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.size--
	b.popped++
	return item
}

// grow doubles the ring, capped at the limit. Must be called with lock held.
func (b *GrowableBuffer[T]) grow() {
	newCap := len(b.ring) * 2
	if b.limit > 0 && newCap > b.limit {
		newCap = b.limit
	}
	if newCap <= len(b.ring) {
		return
	}

	ring := make([]T, newCap)
	for i := 0; i < b.size; i++ {
		ring[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = ring
	b.head = 0
	b.grows++
}

// Close rejects further sends. Items already queued can still be drained.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Closed reports whether Close was called.
func (b *GrowableBuffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the current ring capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count    int
	Capacity int
	Pushed   int64
	Popped   int64
	Grows    int
	Rejected int64
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:    b.size,
		Capacity: len(b.ring),
		Pushed:   b.pushed,
		Popped:   b.popped,
		Grows:    b.grows,
		Rejected: b.rejects,
	}
}
