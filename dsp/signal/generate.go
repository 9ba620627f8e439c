// Package signal generates deterministic test signals for the
// noise-cleaning stages: tones, seeded noise, impulse bursts.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-noise/dsp/core"
)

// Generator creates deterministic signals at a fixed sample rate.
type Generator struct {
	sampleRate float64
	seed       int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a configured signal generator.
func NewGenerator(sampleRate float64, opts ...Option) (*Generator, error) {
	if !core.IsFinitePositive(sampleRate) {
		return nil, fmt.Errorf("generator sample rate must be > 0 and finite: %f", sampleRate)
	}

	g := &Generator{
		sampleRate: sampleRate,
		seed:       1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// SampleRate returns the generator sample rate in Hz.
func (g *Generator) SampleRate() float64 {
	return g.sampleRate
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("sine samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out, nil
}

// WhiteNoise generates deterministic white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out, nil
}

// Constant generates a constant-level signal.
func (g *Generator) Constant(level float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("constant samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	for i := range out {
		out[i] = level
	}
	return out, nil
}

// Silence generates an all-zero signal.
func (g *Generator) Silence(samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("silence samples must be > 0: %d", samples)
	}
	return make([]float64, samples), nil
}

// ImpulseBurst generates silence with a full-scale burst of the given
// amplitude starting at startMs and lasting durationMs.
func (g *Generator) ImpulseBurst(amplitude, startMs, durationMs float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("burst samples must be > 0: %d", samples)
	}
	if startMs < 0 || durationMs <= 0 {
		return nil, fmt.Errorf("burst timing must be non-negative start and positive duration: %f, %f", startMs, durationMs)
	}

	start := int(math.Round(startMs * g.sampleRate / 1000))
	length := core.MsToSamples(durationMs, g.sampleRate)

	out := make([]float64, samples)
	for i := start; i < start+length && i < samples; i++ {
		out[i] = amplitude
	}
	return out, nil
}

// Mix sums signals element-wise into a new slice.
// All signals must have the same length.
func Mix(signals ...[]float64) ([]float64, error) {
	if len(signals) == 0 {
		return nil, fmt.Errorf("mix requires at least one signal")
	}

	n := len(signals[0])
	for _, s := range signals[1:] {
		if len(s) != n {
			return nil, fmt.Errorf("mix length mismatch: %d vs %d", len(s), n)
		}
	}

	out := make([]float64, n)
	for _, s := range signals {
		for i, v := range s {
			out[i] += v
		}
	}
	return out, nil
}
