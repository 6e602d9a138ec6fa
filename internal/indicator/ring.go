package indicator

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring evicts the oldest value.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates a ring holding at most capacity values. Capacity below one is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{
		buf:   make([]T, max(capacity, 1)),
		start: 0,
		size:  0,
	}
}

// Push appends v, evicting the oldest value when full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++

		return
	}

	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len is the number of stored values.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap is the maximum number of stored values.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Full reports whether Len equals Cap.
func (r *Ring[T]) Full() bool {
	return r.size == len(r.buf)
}

// At returns the i-th stored value, 0 being the oldest.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("ring index out of range")
	}

	return r.buf[(r.start+i)%len(r.buf)]
}

// Last returns the value lag positions back from the newest; Last(0) is the newest.
func (r *Ring[T]) Last(lag int) T {
	return r.At(r.size - 1 - lag)
}

// Values copies the stored values oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.At(i)
	}

	return out
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.start = 0
	r.size = 0
}
