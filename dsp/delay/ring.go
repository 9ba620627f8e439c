// Package delay provides a fixed-size circular sample buffer used by the
// frequency-domain blanker's classification window.
package delay

import "fmt"

// Ring is a fixed-size circular buffer of samples. Writing wraps around;
// the buffer always exposes the most recent Len samples.
type Ring struct {
	buffer   []float64
	writePos int
}

// New returns a ring of fixed size.
func New(size int) (*Ring, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ring size must be > 0: %d", size)
	}
	return &Ring{buffer: make([]float64, size)}, nil
}

// Len returns internal buffer size.
func (r *Ring) Len() int {
	return len(r.buffer)
}

// Write writes one sample.
func (r *Ring) Write(sample float64) {
	r.buffer[r.writePos] = sample
	r.writePos++
	if r.writePos >= len(r.buffer) {
		r.writePos = 0
	}
}

// Read reads the sample written delay steps ago. delay 0 is the most
// recent sample; delay is clamped to the buffer size.
func (r *Ring) Read(delay int) float64 {
	size := len(r.buffer)
	if delay < 0 {
		delay = 0
	}
	if delay >= size {
		delay = size - 1
	}
	readPos := (r.writePos - 1 - delay + 2*size) % size
	return r.buffer[readPos]
}

// CopyOrdered copies the ring contents into dst in chronological order,
// oldest sample first. dst must have length Len.
func (r *Ring) CopyOrdered(dst []float64) error {
	size := len(r.buffer)
	if len(dst) != size {
		return fmt.Errorf("ring snapshot length must be %d: %d", size, len(dst))
	}

	n := copy(dst, r.buffer[r.writePos:])
	copy(dst[n:], r.buffer[:r.writePos])

	return nil
}

// Reset clears ring state.
func (r *Ring) Reset() {
	for i := range r.buffer {
		r.buffer[i] = 0
	}
	r.writePos = 0
}
