package cpu

const (
	HISTORY_INSTRUCTIONS = 20 // Capacity of the recent-instruction history.
	HISTORY_JUMPS        = 24 // Capacity of the recent-jump history.
)

// Jump is a taken control transfer.
type Jump struct {
	From uint32 // PC before the jump.
	To   uint32 // Jump target.
}

// Ring is a fixed-capacity FIFO. Pushing to a full ring evicts the oldest entry.
type Ring[T any] struct {
	arena []T
	head  int // Index of the oldest entry.
	count int
}

// NewRing creates an empty ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{arena: make([]T, capacity)}
}

// Push appends value, evicting the oldest entry if the ring is full.
func (r *Ring[T]) Push(value T) {
	if len(r.arena) == 0 {
		return
	}

	tail := (r.head + r.count) % len(r.arena)
	r.arena[tail] = value
	if r.count == len(r.arena) {
		r.head = (r.head + 1) % len(r.arena)
	} else {
		r.count++
	}
}

// Len returns the number of entries held.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.arena)
}

// Snapshot returns a copy of the entries, oldest first.
func (r *Ring[T]) Snapshot() (values []T) {
	values = make([]T, r.count)
	for n := range r.count {
		values[n] = r.arena[(r.head+n)%len(r.arena)]
	}
	return
}

// Last returns the most recent entry.
func (r *Ring[T]) Last() (value T, ok bool) {
	if r.count == 0 {
		return
	}

	return r.arena[(r.head+r.count-1)%len(r.arena)], true
}
