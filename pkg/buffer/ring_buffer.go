package buffer

import (
	"slices"
	"sync"
)

// RingBuffer is a thread-safe fixed-size buffer that overwrites the oldest
// elements when full, keeping a sliding window of the most recent data.
// Writes never block.
type RingBuffer[T any] struct {
	mu         sync.Mutex
	buf        []T
	head, tail int64
}

// RingN creates a new RingBuffer with the specified size.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &RingBuffer[T]{buf: make([]T, size)}
}

// Write appends p to the buffer. If p is larger than the remaining space the
// oldest elements are overwritten; only the last Cap() elements of p survive
// when p itself exceeds the capacity.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := len(p)
	size := len(rb.buf)
	if len(p) > size {
		rb.tail += int64(len(p) - size)
		p = p[len(p)-size:]
	}
	for _, v := range p {
		rb.buf[rb.tail%int64(size)] = v
		rb.tail++
	}
	if rb.tail-rb.head > int64(size) {
		rb.head = rb.tail - int64(size)
	}
	return n, nil
}

// Add adds a single element, overwriting the oldest element when full.
func (rb *RingBuffer[T]) Add(t T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buf[rb.tail%int64(len(rb.buf))] = t
	rb.tail++
	if rb.tail-rb.head > int64(len(rb.buf)) {
		rb.head++
	}
}

// Reset discards all buffered data.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.tail = 0
	clear(rb.buf)
}

// Len returns the number of elements currently in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf)
}

// Snapshot returns a copy of the buffered elements, oldest first.
func (rb *RingBuffer[T]) Snapshot() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := rb.tail - rb.head
	if n == 0 {
		return nil
	}
	size := int64(len(rb.buf))
	h := rb.head % size
	if h+n <= size {
		return slices.Clone(rb.buf[h : h+n])
	}
	return slices.Concat(rb.buf[h:], rb.buf[:(h+n)-size])
}
