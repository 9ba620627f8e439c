package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name             string
		value, min, max  float64
		want             float64
	}{
		{"inside", 0.5, 0, 1, 0.5},
		{"below", -2, 0, 1, 0},
		{"above", 3, 0, 1, 1},
		{"swapped bounds", 0.5, 1, 0, 0.5},
		{"at min", 0, 0, 1, 0},
		{"at max", 1, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestNearlyEqual(t *testing.T) {
	if !NearlyEqual(1.0, 1.0+1e-13, 1e-12) {
		t.Error("values within eps should be nearly equal")
	}
	if NearlyEqual(1.0, 1.1, 1e-12) {
		t.Error("values outside eps should not be nearly equal")
	}
	if !NearlyEqual(0, 0, 0) {
		t.Error("zero should be nearly equal to itself with default eps")
	}
}

func TestMsToSamples(t *testing.T) {
	tests := []struct {
		name       string
		ms, rate   float64
		want       int
	}{
		{"2ms at 12kHz", 2, 12000, 24},
		{"1ms at 12kHz", 1, 12000, 12},
		{"10ms at 48kHz", 10, 48000, 480},
		{"rounds to nearest", 1, 44100, 44},
		{"never below one", 0.001, 8000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MsToSamples(tt.ms, tt.rate); got != tt.want {
				t.Errorf("MsToSamples(%v, %v) = %d, want %d", tt.ms, tt.rate, got, tt.want)
			}
		})
	}
}

func TestFlushDenormals(t *testing.T) {
	if got := FlushDenormals(1e-40); got != 0 {
		t.Errorf("FlushDenormals(1e-40) = %v, want 0", got)
	}
	if got := FlushDenormals(0.5); got != 0.5 {
		t.Errorf("FlushDenormals(0.5) = %v, want 0.5", got)
	}
	if got := FlushDenormals(-1e-40); got != 0 {
		t.Errorf("FlushDenormals(-1e-40) = %v, want 0", got)
	}
}

func TestIsFinitePositive(t *testing.T) {
	for _, v := range []float64{1, 1e-9, 48000} {
		if !IsFinitePositive(v) {
			t.Errorf("IsFinitePositive(%v) = false, want true", v)
		}
	}
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if IsFinitePositive(v) {
			t.Errorf("IsFinitePositive(%v) = true, want false", v)
		}
	}
}

func TestDBConversionRoundTrip(t *testing.T) {
	for _, db := range []float64{-60, -20, 0, 6, 20} {
		lin := DBToLinear(db)
		if got := LinearToDB(lin); !NearlyEqual(got, db, 1e-9) {
			t.Errorf("LinearToDB(DBToLinear(%v)) = %v", db, got)
		}
	}

	if !math.IsInf(LinearToDB(0), -1) {
		t.Error("LinearToDB(0) should be -Inf")
	}
	if !math.IsNaN(LinearToDB(-1)) {
		t.Error("LinearToDB(-1) should be NaN")
	}
}
