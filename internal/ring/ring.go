// Package ring provides the fixed-capacity ring buffer used by the alert
// store, the event log and the statistics sample windows. Index arithmetic
// lives here once instead of being repeated per buffer.
package ring

// Buffer is a fixed-capacity ring. Once full, Push overwrites the oldest
// element. The zero value is not usable; use New.
type Buffer[T any] struct {
	slots []T
	head  int // next write position
	count int
}

// New returns a Buffer holding at most capacity elements.
// It panics when capacity is not positive; buffer sizes are compile-time
// constants in this codebase, so a bad one is a programming error.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{slots: make([]T, capacity)}
}

// Push appends v, overwriting the oldest element when the buffer is full.
// It returns the slot index written, which callers may retain as a stable
// handle until the ring wraps over it.
func (b *Buffer[T]) Push(v T) int {
	i := b.head
	b.slots[i] = v
	b.head = (b.head + 1) % len(b.slots)
	if b.count < len(b.slots) {
		b.count++
	}
	return i
}

// Len reports the number of live elements, never exceeding capacity.
func (b *Buffer[T]) Len() int { return b.count }

// Cap reports the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.slots) }

// Full reports whether the buffer has wrapped at least once.
func (b *Buffer[T]) Full() bool { return b.count == len(b.slots) }

// At returns the i-th oldest element; i must be in [0, Len()).
func (b *Buffer[T]) At(i int) T {
	return b.slots[b.index(i)]
}

// Replace overwrites the i-th oldest element in place.
func (b *Buffer[T]) Replace(i int, v T) {
	b.slots[b.index(i)] = v
}

// Snapshot returns the live elements, oldest first, in a fresh slice.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.slots[b.index(i)]
	}
	return out
}

// Each calls fn for every live element, oldest first, with its logical
// index. fn may mutate the element through Replace.
func (b *Buffer[T]) Each(fn func(i int, v T)) {
	for i := 0; i < b.count; i++ {
		fn(i, b.slots[b.index(i)])
	}
}

func (b *Buffer[T]) index(i int) int {
	if b.count < len(b.slots) {
		// Not yet wrapped: oldest element sits at slot 0.
		return i
	}
	return (b.head + i) % len(b.slots)
}
