// Package ptrcringbuf provides a fixed-capacity ring of recent values.
package ptrcringbuf

// Ring holds the most recent values added to it, up to a fixed capacity.
// Ring is not safe for concurrent use: callers provide their own locking.
type Ring[T any] struct {
	buf []T // fully allocated at construction
	cur int // index for next write
	len int // count of actual values
}

// New returns an empty ring with the given capacity, which must be positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Add the value to the ring. If the ring was full, the oldest value is
// overwritten, and returned along with true.
func (r *Ring[T]) Add(val T) (dropped T, ok bool) {
	if r.len >= len(r.buf) {
		dropped, ok = r.buf[r.cur], true
	}

	r.buf[r.cur] = val

	if r.len < len(r.buf) {
		r.len++
	}

	r.cur++
	if r.cur >= len(r.buf) {
		r.cur = 0
	}

	return dropped, ok
}

// Len returns the number of values in the ring.
func (r *Ring[T]) Len() int { return r.len }

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// AppendTo appends the values in the ring to dst, oldest first.
func (r *Ring[T]) AppendTo(dst []T) []T {
	start := r.cur - r.len
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.len; i++ {
		idx := start + i
		if idx >= len(r.buf) {
			idx -= len(r.buf)
		}
		dst = append(dst, r.buf[idx])
	}
	return dst
}

// Reset empties the ring, zeroing every slot.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.cur, r.len = 0, 0
}
