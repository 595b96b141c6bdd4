package frame

// history is a fixed-size ring of recently published frames. Buffer guards it
// with its mutex.
type history struct {
	data     []Frame
	size     int
	capacity int
	head     int
}

// newHistory creates a ring holding capacity frames. capacity must be > 0.
func newHistory(capacity int) *history {
	return &history{
		data:     make([]Frame, capacity),
		capacity: capacity,
	}
}

// Add stores a frame, replacing the oldest one when the ring is full.
func (h *history) Add(f Frame) {
	h.data[h.head] = f
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// GetAll returns the stored frames oldest first.
func (h *history) GetAll() []Frame {
	if h.size == 0 {
		return nil
	}
	result := make([]Frame, h.size)
	if h.size < h.capacity {
		copy(result, h.data[:h.size])
	} else {
		copy(result, h.data[h.head:])
		copy(result[h.capacity-h.head:], h.data[:h.head])
	}
	return result
}

func (h *history) Find(generation uint64) (Frame, bool) {
	for i := 0; i < h.size; i++ {
		if h.data[i].Generation == generation {
			return h.data[i], true
		}
	}
	return Frame{}, false
}

func (h *history) Size() int {
	return h.size
}
