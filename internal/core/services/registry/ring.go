package registry

// Ring is a fixed-capacity buffer of RSSI samples. Pushing onto a full
// ring overwrites the oldest sample.
type Ring struct {
	buf   []int
	start int
	size  int
}

// NewRing creates a ring holding at most capacity samples (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]int, capacity)}
}

// Push appends a sample, dropping the oldest when full.
func (r *Ring) Push(v int) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Values returns a copy of the samples, oldest first.
func (r *Ring) Values() []int {
	out := make([]int, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of samples held.
func (r *Ring) Len() int { return r.size }

// Cap returns the capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Resize changes the capacity, keeping the newest samples.
func (r *Ring) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(r.buf) {
		return
	}
	values := r.Values()
	if len(values) > capacity {
		values = values[len(values)-capacity:]
	}
	r.buf = make([]int, capacity)
	r.start = 0
	r.size = copy(r.buf, values)
}
