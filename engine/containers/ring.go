package containers

// Ring is a fixed capacity FIFO. Pushing into a full ring overwrites the
// oldest element.
type Ring[T any] struct {
	data       []T
	readIndex  int
	writeIndex int
	count      int
}

func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		data: make([]T, size),
	}
}

// Push adds value, dropping the oldest element when full. It reports whether
// an element was dropped.
func (r *Ring[T]) Push(value T) bool {
	dropped := false
	if r.IsFull() {
		r.readIndex = (r.readIndex + 1) % len(r.data)
		r.count--
		dropped = true
	}
	r.data[r.writeIndex] = value
	r.writeIndex = (r.writeIndex + 1) % len(r.data)
	r.count++
	return dropped
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.IsEmpty() {
		return zero, false
	}
	value := r.data[r.readIndex]
	r.data[r.readIndex] = zero
	r.readIndex = (r.readIndex + 1) % len(r.data)
	r.count--
	return value, true
}

func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	if r.IsEmpty() {
		return zero, false
	}
	return r.data[r.readIndex], true
}

// Each visits elements from oldest to newest.
func (r *Ring[T]) Each(fn func(T)) {
	for i := 0; i < r.count; i++ {
		fn(r.data[(r.readIndex+i)%len(r.data)])
	}
}

func (r *Ring[T]) Len() int { return r.count }

func (r *Ring[T]) Cap() int { return len(r.data) }

func (r *Ring[T]) IsEmpty() bool {
	return r.count == 0
}

func (r *Ring[T]) IsFull() bool {
	return r.count == len(r.data)
}
