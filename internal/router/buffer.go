package router

import (
	"sync"
)

// GrowableBuffer is a thread-safe FIFO queue that doubles its capacity when
// it reaches 70% full, up to an optional hard limit. At the limit the oldest
// item is evicted to make room, so a stalled consumer cannot grow memory
// without bound.
type GrowableBuffer[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int // 0 = unbounded
	closed   bool

	// Stats
	totalReceived int64
	totalSent     int64
	dropped       int64
	resizeCount   int
}

// NewGrowableBuffer creates a new buffer with the given initial capacity and
// hard limit (0 for none).
func NewGrowableBuffer[T any](initialCapacity, limit int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit > 0 && limit < initialCapacity {
		initialCapacity = limit
	}
	b := &GrowableBuffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. It returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := max((b.capacity*70)/100, 1)
	if b.count+1 >= threshold && (b.limit == 0 || b.capacity < b.limit) {
		b.grow()
	}

	if b.count == b.capacity {
		b.popLocked()
		b.totalSent--
		b.dropped++
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed and
// empty, in which case it returns false.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// DrainTo removes up to max items (all if max <= 0) without blocking.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := range result {
		result[i] = b.popLocked()
	}
	return result
}

// Close closes the buffer. Later sends fail; receivers drain what is left.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the current number of items in the buffer.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalReceived: b.totalReceived,
		TotalSent:     b.totalSent,
		Dropped:       b.dropped,
		ResizeCount:   b.resizeCount,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	Dropped       int64
	ResizeCount   int
}

// popLocked removes the head item. Caller holds mu and count > 0.
func (b *GrowableBuffer[T]) popLocked() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero
	b.head = (b.head + 1) % b.capacity
	b.count--
	b.totalSent++
	return item
}

// grow doubles the capacity, clamped to the limit. Caller holds mu.
func (b *GrowableBuffer[T]) grow() {
	newCapacity := b.capacity * 2
	if b.limit > 0 && newCapacity > b.limit {
		newCapacity = b.limit
	}
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count % newCapacity
	b.capacity = newCapacity
	b.resizeCount++
}
