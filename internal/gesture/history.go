package gesture

// history is a fixed-capacity FIFO; pushing onto a full history evicts the
// oldest entry.
type history[T any] struct {
	items []T
	start int
	size  int
}

func newHistory[T any](capacity int) *history[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &history[T]{items: make([]T, capacity)}
}

func (h *history[T]) push(v T) {
	if h.size < len(h.items) {
		h.items[(h.start+h.size)%len(h.items)] = v
		h.size++
		return
	}
	h.items[h.start] = v
	h.start = (h.start + 1) % len(h.items)
}

func (h *history[T]) len() int { return h.size }

func (h *history[T]) clear() {
	var zero T
	for i := range h.items {
		h.items[i] = zero
	}
	h.start = 0
	h.size = 0
}

// each visits entries oldest first.
func (h *history[T]) each(fn func(T)) {
	for i := 0; i < h.size; i++ {
		fn(h.items[(h.start+i)%len(h.items)])
	}
}
