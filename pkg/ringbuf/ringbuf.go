package ringbuf

// Ringbuf is a simple circular buffer keeping the most recent values.
type Ringbuf[T any] struct {
	buf []T
	p   int
	s   int
}

func NewRingbuf[T any](size int) *Ringbuf[T] {
	return &Ringbuf[T]{
		s: size,
	}
}

func (r *Ringbuf[T]) Add(v T) {
	if r.s <= 0 {
		return
	}
	if len(r.buf) < r.s {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.p] = v
	r.p = (r.p + 1) % r.s
}

// Items returns the values oldest first.
func (r *Ringbuf[T]) Items() []T {
	items := make([]T, 0, len(r.buf))
	items = append(items, r.buf[r.p:]...)
	return append(items, r.buf[:r.p]...)
}

func (r *Ringbuf[T]) Len() int {
	return len(r.buf)
}
