package fourier

import (
	"math"
	"math/rand"
	"testing"

	algofft "github.com/cwbudde/algo-fft"
)

func TestNewInvalidSize(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"zero", 0},
		{"negative", -4},
		{"one", 1},
		{"not power of two", 48},
		{"odd", 129},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.size); err == nil {
				t.Errorf("New(%d) should fail", tt.size)
			}
		})
	}
}

func TestNewValidSizes(t *testing.T) {
	for _, size := range []int{2, 4, 128, 2048} {
		ft, err := New(size)
		if err != nil {
			t.Fatalf("New(%d): %v", size, err)
		}
		if ft.Size() != size {
			t.Errorf("Size() = %d, want %d", ft.Size(), size)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, size := range []int{8, 64, 512, 2048} {
		ft, err := New(size)
		if err != nil {
			t.Fatalf("New(%d): %v", size, err)
		}

		re := make([]float64, size)
		im := make([]float64, size)
		origRe := make([]float64, size)
		origIm := make([]float64, size)

		for i := range re {
			re[i] = rng.Float64()*2 - 1
			im[i] = rng.Float64()*2 - 1
		}
		copy(origRe, re)
		copy(origIm, im)

		ft.Forward(re, im)
		ft.Inverse(re, im)

		for i := range re {
			if math.Abs(re[i]-origRe[i]) > 1e-9 || math.Abs(im[i]-origIm[i]) > 1e-9 {
				t.Fatalf("size %d round trip diverges at %d: (%v,%v) vs (%v,%v)",
					size, i, re[i], im[i], origRe[i], origIm[i])
			}
		}
	}
}

func TestForwardImpulse(t *testing.T) {
	// A unit impulse transforms to a flat spectrum of ones.
	const size = 64

	ft, err := New(size)
	if err != nil {
		t.Fatal(err)
	}

	re := make([]float64, size)
	im := make([]float64, size)
	re[0] = 1

	ft.Forward(re, im)

	for i := range re {
		if math.Abs(re[i]-1) > 1e-12 || math.Abs(im[i]) > 1e-12 {
			t.Fatalf("impulse spectrum bin %d = (%v,%v), want (1,0)", i, re[i], im[i])
		}
	}
}

func TestForwardDC(t *testing.T) {
	const size = 32

	ft, err := New(size)
	if err != nil {
		t.Fatal(err)
	}

	re := make([]float64, size)
	im := make([]float64, size)
	for i := range re {
		re[i] = 1
	}

	ft.Forward(re, im)

	if math.Abs(re[0]-float64(size)) > 1e-12 {
		t.Errorf("DC bin = %v, want %d", re[0], size)
	}
	for i := 1; i < size; i++ {
		if math.Abs(re[i]) > 1e-10 || math.Abs(im[i]) > 1e-10 {
			t.Fatalf("non-DC bin %d = (%v,%v), want 0", i, re[i], im[i])
		}
	}
}

func TestForwardMatchesReferenceFFT(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, size := range []int{16, 128, 1024} {
		ft, err := New(size)
		if err != nil {
			t.Fatalf("New(%d): %v", size, err)
		}

		plan, err := algofft.NewPlan64(size)
		if err != nil {
			t.Fatalf("NewPlan64(%d): %v", size, err)
		}

		re := make([]float64, size)
		im := make([]float64, size)
		fftIn := make([]complex128, size)
		fftOut := make([]complex128, size)

		for i := range re {
			re[i] = rng.Float64()*2 - 1
			im[i] = rng.Float64()*2 - 1
			fftIn[i] = complex(re[i], im[i])
		}

		ft.Forward(re, im)

		if err := plan.Forward(fftOut, fftIn); err != nil {
			t.Fatalf("reference Forward: %v", err)
		}

		for i := range re {
			if math.Abs(re[i]-real(fftOut[i])) > 1e-8 || math.Abs(im[i]-imag(fftOut[i])) > 1e-8 {
				t.Fatalf("size %d bin %d: (%v,%v) vs reference (%v,%v)",
					size, i, re[i], im[i], real(fftOut[i]), imag(fftOut[i]))
			}
		}
	}
}

func TestInverseScaling(t *testing.T) {
	// Inverse of a flat spectrum concentrates all energy in sample 0 with
	// unit amplitude, confirming the 1/size scale.
	const size = 16

	ft, err := New(size)
	if err != nil {
		t.Fatal(err)
	}

	re := make([]float64, size)
	im := make([]float64, size)
	for i := range re {
		re[i] = 1
	}

	ft.Inverse(re, im)

	if math.Abs(re[0]-1) > 1e-12 {
		t.Errorf("sample 0 = %v, want 1", re[0])
	}
	for i := 1; i < size; i++ {
		if math.Abs(re[i]) > 1e-12 {
			t.Fatalf("sample %d = %v, want 0", i, re[i])
		}
	}
}

func BenchmarkForward2048(b *testing.B) {
	ft, err := New(2048)
	if err != nil {
		b.Fatal(err)
	}

	re := make([]float64, 2048)
	im := make([]float64, 2048)
	rng := rand.New(rand.NewSource(1))
	for i := range re {
		re[i] = rng.Float64()
	}

	b.ResetTimer()
	for range b.N {
		ft.Forward(re, im)
	}
}
