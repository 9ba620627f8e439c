package blanker

// runningAverage maintains a windowed mean of absolute sample levels over
// a fixed-size circular buffer. The running sum always equals the sum of
// the buffer contents.
type runningAverage struct {
	buf []float64
	sum float64
	pos int
}

func newRunningAverage(size int) *runningAverage {
	return &runningAverage{buf: make([]float64, size)}
}

// Push replaces the oldest level with v and updates the running sum.
func (r *runningAverage) Push(v float64) {
	r.sum += v - r.buf[r.pos]
	r.buf[r.pos] = v

	r.pos++
	if r.pos >= len(r.buf) {
		r.pos = 0
	}

	// Float cancellation can leave a tiny negative residue on
	// near-silent input.
	if r.sum < 0 {
		r.sum = 0
	}
}

// Average returns the windowed mean level.
func (r *runningAverage) Average() float64 {
	return r.sum / float64(len(r.buf))
}

// Len returns the window length in samples.
func (r *runningAverage) Len() int {
	return len(r.buf)
}

// Reset clears buffer and sum.
func (r *runningAverage) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.sum = 0
	r.pos = 0
}
