// Package window provides analysis/synthesis window generation for the
// noise-cleaning stages. Windows are generated as []float64 coefficient
// slices and applied with SIMD-backed vector multiplies.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
)

// Option configures window generation.
type Option func(*config)

type config struct {
	periodic bool
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// Generate returns window coefficients of the given length.
// A non-positive length yields nil.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	var cfg config

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	if length == 1 {
		out[0] = 1
		return out
	}

	denom := float64(length - 1)
	if cfg.periodic {
		denom = float64(length)
	}

	for i := range out {
		x := float64(i) / denom

		switch t {
		case TypeHann:
			out[i] = 0.5 - 0.5*math.Cos(2*math.Pi*x)
		case TypeHamming:
			out[i] = 0.54 - 0.46*math.Cos(2*math.Pi*x)
		default:
			out[i] = 1
		}
	}

	return out
}

// Hann returns Hann window coefficients.
func Hann(size int, opts ...Option) ([]float64, error) {
	return Generate(TypeHann, size, opts...), validateLength(size)
}

// Hamming returns Hamming window coefficients.
func Hamming(size int, opts ...Option) ([]float64, error) {
	return Generate(TypeHamming, size, opts...), validateLength(size)
}

// Apply multiplies buf in-place by the selected window.
func Apply(t Type, buf []float64, opts ...Option) {
	if len(buf) == 0 {
		return
	}

	coeffs := Generate(t, len(buf), opts...)
	if len(coeffs) != len(buf) {
		return
	}

	vecmath.MulBlockInPlace(buf, coeffs)
}

// ApplyCoefficients multiplies samples with coefficients into dst.
// All three slices must have the same length.
func ApplyCoefficients(dst, samples, coeffs []float64) error {
	if len(dst) != len(samples) || len(samples) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlock(dst, samples, coeffs)

	return nil
}

// SquaredSum returns the sum of squared coefficients, used for
// overlap-add COLA normalization.
func SquaredSum(coeffs []float64) float64 {
	sum := 0.0
	for _, c := range coeffs {
		sum += c * c
	}

	return sum
}
