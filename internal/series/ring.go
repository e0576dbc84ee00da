package series

// Ring is a fixed-capacity FIFO that drops its oldest entry when full. It is
// not safe for concurrent use; Store provides the locking.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest entry
	size  int
}

// NewRing returns an empty ring. Capacities below one are raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry if the ring is full. It reports
// whether an entry was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size == len(r.items) {
		r.items[r.head] = v
		r.head = (r.head + 1) % len(r.items)
		return true
	}
	r.items[(r.head+r.size)%len(r.items)] = v
	r.size++
	return false
}

// Len reports the number of stored entries.
func (r *Ring[T]) Len() int { return r.size }

// Cap reports the maximum number of entries.
func (r *Ring[T]) Cap() int { return len(r.items) }

// At returns the i-th entry, oldest first.
func (r *Ring[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.size {
		return zero, false
	}
	return r.items[(r.head+i)%len(r.items)], true
}

// Last returns the newest entry.
func (r *Ring[T]) Last() (T, bool) {
	return r.At(r.size - 1)
}

// Snapshot copies the entries, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.size)
	n := copy(out, r.items[r.head:min(r.head+r.size, len(r.items))])
	copy(out[n:], r.items[:r.size-n])
	return out
}

// Tail copies at most the newest n entries, oldest first.
func (r *Ring[T]) Tail(n int) []T {
	if n <= 0 {
		return []T{}
	}
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	for i := range out {
		out[i], _ = r.At(r.size - n + i)
	}
	return out
}

// Reset empties the ring without releasing its storage.
func (r *Ring[T]) Reset() {
	clear(r.items)
	r.head, r.size = 0, 0
}
