package audit

import "sync"

// RingBuffer is a bounded, thread-safe buffer of pending audit entries.
// When full, the oldest entry is evicted and returned to the caller so it can
// be routed to the dead-letter sink instead of vanishing.
type RingBuffer struct {
	mu       sync.Mutex
	items    []Pending
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	evicted int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		items:    make([]Pending, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an entry. If the buffer was full the oldest entry is evicted
// and returned with ok=true.
func (b *RingBuffer) Enqueue(p Pending) (evicted Pending, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		evicted = b.items[b.tail]
		b.items[b.tail] = Pending{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.evicted++
		ok = true
	}

	b.items[b.head] = p
	b.head = (b.head + 1) % b.capacity
	b.count++
	return evicted, ok
}

// DequeueBatch removes up to n entries, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []Pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]Pending, n)
	for i := 0; i < n; i++ {
		result[i] = b.items[b.tail]
		b.items[b.tail] = Pending{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Len returns the number of buffered entries.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Evicted returns how many entries were pushed out by overflow.
func (b *RingBuffer) Evicted() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}
