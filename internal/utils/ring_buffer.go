package utils

import "sync"

// RingBuffer is a fixed-size circular buffer of T.
// Pushing into a full buffer overwrites the oldest element, so the buffer always
// holds the most recent Cap() elements in arrival order.
//
// Example:
//
//	rb := NewRingBuffer[float64](3)
//	rb.Push(1)
//	rb.Push(2)
//	rb.Push(3)
//	rb.Push(4) // 1 is evicted
//	fmt.Println(rb.ToSlice()) // [2 3 4]
type RingBuffer[T any] struct {
	data  []T // backing array
	size  int // capacity
	count int // number of stored elements
	head  int // index of the oldest element
	tail  int // index of the next write position
	mu    sync.RWMutex
}

// NewRingBuffer creates a ring buffer of the given capacity.
// A non-positive size panics.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{
		data: make([]T, size),
		size: size,
	}
}

// Push appends item, evicting the oldest element when the buffer is full.
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.tail] = item
	rb.tail = (rb.tail + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % rb.size
	}
}

// Len returns the number of stored elements, always within [0, Cap()].
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// At returns the i-th element where 0 is the oldest and Len()-1 the newest.
// An index outside [0, Len()) panics.
func (rb *RingBuffer[T]) At(i int) T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if i < 0 || i >= rb.count {
		panic("index out of range")
	}
	return rb.data[(rb.head+i)%rb.size]
}

// ToSlice returns a copy of the stored elements from oldest to newest.
func (rb *RingBuffer[T]) ToSlice() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	result := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.data[(rb.head+i)%rb.size]
	}
	return result
}

// Clone returns an independent copy with the same capacity and contents.
// Callers that carry a buffer from one step of a fold to the next clone it
// so the previous step stays untouched.
func (rb *RingBuffer[T]) Clone() *RingBuffer[T] {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	clone := &RingBuffer[T]{
		data:  make([]T, rb.size),
		size:  rb.size,
		count: rb.count,
		head:  rb.head,
		tail:  rb.tail,
	}
	copy(clone.data, rb.data)
	return clone
}
