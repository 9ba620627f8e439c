package blanker

import "math"

// newFadeEnvelope returns the gain curve applied while the time-domain
// blanker suppresses a pulse: zero gain until the final fadeSamples, then
// a raised-cosine rise toward unity. Every value stays strictly below 1 so
// the whole window remains attenuated; full gain resumes only once the
// countdown ends. The curve is monotonically non-decreasing.
func newFadeEnvelope(blankSamples, fadeSamples int) []float64 {
	env := make([]float64, blankSamples)

	if fadeSamples > blankSamples {
		fadeSamples = blankSamples
	}
	if fadeSamples < 1 {
		fadeSamples = 1
	}

	fadeStart := blankSamples - fadeSamples
	for i := fadeStart; i < blankSamples; i++ {
		k := float64(i - fadeStart)
		env[i] = 0.5 * (1 - math.Cos(math.Pi*k/float64(fadeSamples)))
	}

	return env
}

// newHannEnvelope returns the gain curve applied by the frequency-domain
// blanker: maximum attenuation at the point of detection, then a
// Hann-shaped recovery toward unity across the whole window. Re-triggers
// restart the curve, so a sustained pulse is held at full attenuation.
func newHannEnvelope(blankSamples int) []float64 {
	env := make([]float64, blankSamples)
	for i := range env {
		env[i] = 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(blankSamples)))
	}

	return env
}
