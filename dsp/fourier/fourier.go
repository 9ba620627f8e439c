// Package fourier provides a fixed-size radix-2 complex FFT for the
// streaming noise-cleaning stages. The transform size is chosen at
// construction, twiddle factors and the bit-reversal permutation are
// precomputed, and the transform calls neither allocate nor fail.
package fourier

import (
	"fmt"
	"math"
)

// Transform is a fixed-size radix-2 Cooley-Tukey FFT.
//
// Forward and Inverse operate in place on separate real and imaginary
// slices whose length must equal Size. A Transform is not safe for
// concurrent use.
type Transform struct {
	size int

	// Twiddle tables: cos(2πk/size) and -sin(2πk/size) for k < size/2.
	cos []float64
	sin []float64

	rev []int
}

// New creates a Transform of the given size. size must be a power of two
// and at least 2.
func New(size int) (*Transform, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("fourier: size must be a power of two >= 2: %d", size)
	}

	t := &Transform{
		size: size,
		cos:  make([]float64, size/2),
		sin:  make([]float64, size/2),
		rev:  make([]int, size),
	}

	for k := range t.cos {
		angle := 2 * math.Pi * float64(k) / float64(size)
		t.cos[k] = math.Cos(angle)
		t.sin[k] = -math.Sin(angle)
	}

	bits := 0
	for 1<<bits < size {
		bits++
	}
	for i := range t.rev {
		r := 0
		for b := 0; b < bits; b++ {
			r = r<<1 | i>>b&1
		}
		t.rev[i] = r
	}

	return t, nil
}

// Size returns the fixed transform size.
func (t *Transform) Size() int {
	return t.size
}

// Forward computes the in-place forward FFT of re/im.
// Both slices must have length Size; the inputs are overwritten.
func (t *Transform) Forward(re, im []float64) {
	n := t.size

	for i, j := range t.rev {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for span := 2; span <= n; span <<= 1 {
		half := span >> 1
		step := n / span

		for start := 0; start < n; start += span {
			k := 0
			for j := start; j < start+half; j++ {
				wr := t.cos[k]
				wi := t.sin[k]
				k += step

				tr := wr*re[j+half] - wi*im[j+half]
				ti := wr*im[j+half] + wi*re[j+half]

				re[j+half] = re[j] - tr
				im[j+half] = im[j] - ti
				re[j] += tr
				im[j] += ti
			}
		}
	}
}

// Inverse computes the in-place inverse FFT of re/im, scaled by 1/Size.
// Implemented as conjugate, forward transform, conjugate-and-scale.
func (t *Transform) Inverse(re, im []float64) {
	for i := range im {
		im[i] = -im[i]
	}

	t.Forward(re, im)

	scale := 1 / float64(t.size)
	for i := range re {
		re[i] *= scale
		im[i] *= -scale
	}
}
