package buffer

// Ring is a fixed-capacity buffer that keeps the most recent entries,
// overwriting the oldest once full. Not safe for concurrent use; callers
// hold their own locks.
type Ring[T any] struct {
	entries []T
	next    int
	full    bool
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		entries: make([]T, 0, capacity),
	}
}

func (r *Ring[T]) Add(entry T) {
	if r == nil || cap(r.entries) == 0 {
		return
	}

	if !r.full {
		r.entries = append(r.entries, entry)
		if len(r.entries) == cap(r.entries) {
			r.full = true
		}
		return
	}

	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
}

func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// List returns the buffered entries oldest first.
func (r *Ring[T]) List() []T {
	if r == nil || len(r.entries) == 0 {
		return nil
	}

	out := make([]T, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
