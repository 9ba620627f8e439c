package blanker

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-noise/dsp/core"
	"github.com/cwbudde/algo-noise/dsp/delay"
	"github.com/cwbudde/algo-noise/dsp/window"
	"github.com/sirupsen/logrus"
)

const (
	defaultClassifierSize    = 128
	defaultFlatnessThreshold = 0.3
	defaultLogInterval       = time.Second

	// flatnessEpsilon avoids log(0) and division degeneracy in the
	// geometric/arithmetic mean ratio.
	flatnessEpsilon = 1e-10
)

// SpectralOption mutates frequency-domain blanker construction parameters.
type SpectralOption func(*spectralConfig) error

type spectralConfig struct {
	threshold         float64
	blankMs           float64
	avgWindowMs       float64
	classifierSize    int
	flatnessThreshold float64
	logger            logrus.FieldLogger
	logInterval       time.Duration
}

func defaultSpectralConfig() spectralConfig {
	return spectralConfig{
		threshold:         defaultThreshold,
		blankMs:           defaultBlankMs,
		avgWindowMs:       defaultAvgWindowMs,
		classifierSize:    defaultClassifierSize,
		flatnessThreshold: defaultFlatnessThreshold,
		logInterval:       defaultLogInterval,
	}
}

// WithSpectralThreshold sets the pulse detection ratio above the noise floor.
func WithSpectralThreshold(ratio float64) SpectralOption {
	return func(cfg *spectralConfig) error {
		if !core.IsFinitePositive(ratio) {
			return fmt.Errorf("spectral blanker threshold must be > 0 and finite: %f", ratio)
		}
		cfg.threshold = ratio
		return nil
	}
}

// WithSpectralBlankDurationMs sets the suppression window length in milliseconds.
func WithSpectralBlankDurationMs(ms float64) SpectralOption {
	return func(cfg *spectralConfig) error {
		if !core.IsFinitePositive(ms) {
			return fmt.Errorf("spectral blanker blank duration must be > 0 and finite: %f", ms)
		}
		cfg.blankMs = ms
		return nil
	}
}

// WithSpectralAverageWindowMs sets the running-average window length in milliseconds.
func WithSpectralAverageWindowMs(ms float64) SpectralOption {
	return func(cfg *spectralConfig) error {
		if !core.IsFinitePositive(ms) {
			return fmt.Errorf("spectral blanker average window must be > 0 and finite: %f", ms)
		}
		cfg.avgWindowMs = ms
		return nil
	}
}

// WithClassifierSize sets the classification window length in samples.
// size must be a power of two, at least 16.
func WithClassifierSize(size int) SpectralOption {
	return func(cfg *spectralConfig) error {
		if size < 16 || size&(size-1) != 0 {
			return fmt.Errorf("spectral blanker classifier size must be a power of two >= 16: %d", size)
		}
		cfg.classifierSize = size
		return nil
	}
}

// WithFlatnessThreshold sets the broadband/narrowband decision boundary.
// Pulses with spectral flatness strictly above the threshold are blanked;
// flatness equal to or below it classifies as narrowband (likely speech)
// and suppression is skipped.
func WithFlatnessThreshold(v float64) SpectralOption {
	return func(cfg *spectralConfig) error {
		if v <= 0 || v >= 1 || math.IsNaN(v) {
			return fmt.Errorf("spectral blanker flatness threshold must be in (0, 1): %f", v)
		}
		cfg.flatnessThreshold = v
		return nil
	}
}

// WithLogger enables rate-limited accept/reject diagnostics on the given
// logger. Without a logger the stage never logs.
func WithLogger(logger logrus.FieldLogger) SpectralOption {
	return func(cfg *spectralConfig) error {
		cfg.logger = logger
		return nil
	}
}

// WithLogInterval sets the minimum spacing between diagnostic log lines.
func WithLogInterval(d time.Duration) SpectralOption {
	return func(cfg *spectralConfig) error {
		if d <= 0 {
			return fmt.Errorf("spectral blanker log interval must be > 0: %v", d)
		}
		cfg.logInterval = d
		return nil
	}
}

// SpectralStats is a read-only snapshot of frequency-domain blanker state.
type SpectralStats struct {
	Enabled           bool
	Pulses            uint64
	Rejected          uint64
	AverageLevel      float64
	ThresholdLevel    float64
	BlankDurationMs   float64
	FlatnessThreshold float64
	Blanking          bool
	WarmingUp         bool
}

// SpectralBlanker suppresses short broadband pulses using the same
// running-average detector as [Blanker], but classifies each candidate
// pulse before committing: the spectral flatness of a short Hann-windowed
// classification window separates broadband clicks (blanked) from
// narrowband tonal or speech energy (passed through), cutting false
// positives on voice. A rejected onset holds further classification off
// for one classification window, so a tonal level jump is judged once
// rather than once per loud sample.
//
// Classification uses a direct DFT over positive-frequency bins with
// precomputed cosine/sine tables. This costs O(size²) per detection, which
// is acceptable at the default size of 128 because detections are rare;
// a radix-2 FFT of the same size would be a drop-in replacement.
//
// ProcessBlock must not be called concurrently with itself. SetEnabled and
// Reset are safe from another goroutine.
type SpectralBlanker struct {
	sampleRate        float64
	threshold         float64
	blankMs           float64
	avgWindowMs       float64
	flatnessThreshold float64
	classifierSize    int

	avg          *runningAverage
	ring         *delay.Ring
	windowCoeffs []float64
	cosTab       [][]float64
	sinTab       [][]float64
	frame        []float64
	mags         []float64
	envelope     []float64
	blankSamples int

	state       blankState
	remaining   int
	warmupLeft  int
	detectLevel float64
	holdoff     int

	logger      logrus.FieldLogger
	logInterval time.Duration
	lastLog     time.Time

	enabled      atomic.Bool
	resetPending atomic.Bool
	pulses       atomic.Uint64
	rejected     atomic.Uint64
}

// NewSpectral creates a frequency-domain noise blanker with practical defaults.
func NewSpectral(sampleRate float64, opts ...SpectralOption) (*SpectralBlanker, error) {
	if !core.IsFinitePositive(sampleRate) {
		return nil, fmt.Errorf("spectral blanker sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := defaultSpectralConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	s := &SpectralBlanker{
		sampleRate:        sampleRate,
		threshold:         cfg.threshold,
		blankMs:           cfg.blankMs,
		avgWindowMs:       cfg.avgWindowMs,
		flatnessThreshold: cfg.flatnessThreshold,
		classifierSize:    cfg.classifierSize,
		logger:            cfg.logger,
		logInterval:       cfg.logInterval,
	}
	s.enabled.Store(true)

	if err := s.rebuildState(); err != nil {
		return nil, err
	}

	return s, nil
}

// SampleRate returns the sample rate in Hz.
func (s *SpectralBlanker) SampleRate() float64 { return s.sampleRate }

// Threshold returns the detection ratio above the noise floor.
func (s *SpectralBlanker) Threshold() float64 { return s.threshold }

// BlankDurationMs returns the suppression window length in milliseconds.
func (s *SpectralBlanker) BlankDurationMs() float64 { return s.blankMs }

// FlatnessThreshold returns the broadband/narrowband decision boundary.
func (s *SpectralBlanker) FlatnessThreshold() float64 { return s.flatnessThreshold }

// ClassifierSize returns the classification window length in samples.
func (s *SpectralBlanker) ClassifierSize() int { return s.classifierSize }

// SetThreshold updates the detection ratio.
func (s *SpectralBlanker) SetThreshold(ratio float64) error {
	if !core.IsFinitePositive(ratio) {
		return fmt.Errorf("spectral blanker threshold must be > 0 and finite: %f", ratio)
	}
	s.threshold = ratio
	return nil
}

// SetBlankDurationMs updates the suppression window length and rebuilds
// dependent state, restarting warmup.
func (s *SpectralBlanker) SetBlankDurationMs(ms float64) error {
	if !core.IsFinitePositive(ms) {
		return fmt.Errorf("spectral blanker blank duration must be > 0 and finite: %f", ms)
	}
	s.blankMs = ms
	return s.rebuildState()
}

// SetAverageWindowMs updates the running-average window length and rebuilds
// dependent state, restarting warmup.
func (s *SpectralBlanker) SetAverageWindowMs(ms float64) error {
	if !core.IsFinitePositive(ms) {
		return fmt.Errorf("spectral blanker average window must be > 0 and finite: %f", ms)
	}
	s.avgWindowMs = ms
	return s.rebuildState()
}

// SetFlatnessThreshold updates the broadband/narrowband boundary.
// Flatness exactly at the threshold still classifies as narrowband; only a
// strictly greater value is treated as broadband noise.
func (s *SpectralBlanker) SetFlatnessThreshold(v float64) error {
	if v <= 0 || v >= 1 || math.IsNaN(v) {
		return fmt.Errorf("spectral blanker flatness threshold must be in (0, 1): %f", v)
	}
	s.flatnessThreshold = v
	return nil
}

// SetEnabled toggles the stage.
func (s *SpectralBlanker) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether the stage is active.
func (s *SpectralBlanker) Enabled() bool {
	return s.enabled.Load()
}

// Reset clears all running state and restarts warmup. Counters clear
// immediately; detector state is rebuilt at the start of the next block.
func (s *SpectralBlanker) Reset() {
	s.pulses.Store(0)
	s.rejected.Store(0)
	s.resetPending.Store(true)
}

// GetStats returns a read-only snapshot of blanker state.
func (s *SpectralBlanker) GetStats() SpectralStats {
	avgLevel := s.currentLevel()

	return SpectralStats{
		Enabled:           s.enabled.Load(),
		Pulses:            s.pulses.Load(),
		Rejected:          s.rejected.Load(),
		AverageLevel:      avgLevel,
		ThresholdLevel:    avgLevel * s.threshold,
		BlankDurationMs:   s.blankMs,
		FlatnessThreshold: s.flatnessThreshold,
		Blanking:          s.state == stateBlanking,
		WarmingUp:         s.state == stateWarmup,
	}
}

// ProcessBlock runs the blanker over one block. in and out must have equal
// length; out must not alias in.
func (s *SpectralBlanker) ProcessBlock(in, out []float64) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(in), len(out))
	}

	if s.resetPending.CompareAndSwap(true, false) {
		s.resetNow()
	}

	if !s.enabled.Load() {
		copy(out, in)
		return nil
	}

	for i, x := range in {
		mag := math.Abs(x)
		s.avg.Push(mag)
		s.ring.Write(x)

		if s.holdoff > 0 {
			s.holdoff--
		}

		switch s.state {
		case stateWarmup:
			out[i] = x
			s.warmupLeft--
			if s.warmupLeft <= 0 {
				s.state = stateArmed
			}

		case stateArmed:
			level := s.currentLevel()
			if mag <= level*s.threshold {
				out[i] = x
				continue
			}

			// After a narrowband rejection, detections within one
			// classification window pass through without reclassifying:
			// the rejected onset fills the ring sample by sample and
			// would otherwise flatten its own spectrum into a false
			// broadband verdict.
			if s.holdoff > 0 {
				out[i] = x
				continue
			}

			ratio := mag / level
			flatness := s.classify()
			if flatness > s.flatnessThreshold {
				s.pulses.Add(1)
				s.state = stateBlanking
				s.remaining = s.blankSamples
				s.detectLevel = level * s.threshold
				out[i] = x * s.envelope[0]
				s.advanceCountdown()
				s.logEvent("pulse blanked", ratio, flatness)
			} else {
				s.rejected.Add(1)
				s.holdoff = s.classifierSize
				out[i] = x
				s.logEvent("pulse rejected as narrowband", ratio, flatness)
			}

		case stateBlanking:
			// Re-triggers above the level latched at detection refresh the
			// countdown without reclassifying. The live average absorbs a
			// sustained burst within a few milliseconds, so comparing
			// against it would end suppression early.
			if mag > s.detectLevel {
				s.remaining = s.blankSamples
			}
			out[i] = x * s.envelope[s.blankSamples-s.remaining]
			s.advanceCountdown()
		}
	}

	return nil
}

func (s *SpectralBlanker) currentLevel() float64 {
	if s.avg == nil {
		return levelFloor
	}
	return math.Max(s.avg.Average(), levelFloor)
}

func (s *SpectralBlanker) advanceCountdown() {
	s.remaining--
	if s.remaining <= 0 {
		s.state = stateArmed
	}
}

// classify computes the spectral flatness of the current classification
// window: Hann-windowed direct DFT over positive-frequency bins, then the
// geometric/arithmetic magnitude mean ratio.
func (s *SpectralBlanker) classify() float64 {
	_ = s.ring.CopyOrdered(s.frame)
	_ = window.ApplyCoefficients(s.frame, s.frame, s.windowCoeffs)

	for b := range s.mags {
		cosRow := s.cosTab[b]
		sinRow := s.sinTab[b]

		re := 0.0
		im := 0.0
		for n, v := range s.frame {
			re += v * cosRow[n]
			im += v * sinRow[n]
		}
		s.mags[b] = math.Sqrt(re*re + im*im)
	}

	return spectralFlatness(s.mags)
}

// spectralFlatness returns the ratio of geometric to arithmetic mean of the
// bin magnitudes, clamped to [0, 1]. Values near 1 indicate broadband
// noise-like energy; values near 0 indicate tonal energy.
func spectralFlatness(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}

	logSum := 0.0
	arith := 0.0
	for _, m := range mags {
		logSum += math.Log(m + flatnessEpsilon)
		arith += m
	}
	arith /= float64(len(mags))

	if arith <= flatnessEpsilon {
		return 0
	}

	geo := math.Exp(logSum / float64(len(mags)))

	return core.Clamp(geo/arith, 0, 1)
}

func (s *SpectralBlanker) logEvent(msg string, ratio, flatness float64) {
	if s.logger == nil {
		return
	}

	now := time.Now()
	if now.Sub(s.lastLog) < s.logInterval {
		return
	}
	s.lastLog = now

	s.logger.WithFields(logrus.Fields{
		"ratio":    ratio,
		"flatness": flatness,
	}).Debug(msg)
}

// rebuildState derives sample counts and DFT tables from the current
// parameters and reallocates all dependent buffers in one step.
func (s *SpectralBlanker) rebuildState() error {
	size := s.classifierSize
	bins := size / 2

	ring, err := delay.New(size)
	if err != nil {
		return fmt.Errorf("spectral blanker: classification ring: %w", err)
	}

	// Periodic so the newest sample (last ring position) keeps nonzero
	// weight; a symmetric window would zero it out entirely.
	s.ring = ring
	s.windowCoeffs = window.Generate(window.TypeHann, size, window.WithPeriodic())
	s.frame = make([]float64, size)
	s.mags = make([]float64, bins)

	s.cosTab = make([][]float64, bins)
	s.sinTab = make([][]float64, bins)
	for b := range bins {
		s.cosTab[b] = make([]float64, size)
		s.sinTab[b] = make([]float64, size)
		for n := range size {
			angle := 2 * math.Pi * float64(b+1) * float64(n) / float64(size)
			s.cosTab[b][n] = math.Cos(angle)
			s.sinTab[b][n] = -math.Sin(angle)
		}
	}

	s.blankSamples = core.MsToSamples(s.blankMs, s.sampleRate)
	s.envelope = newHannEnvelope(s.blankSamples)
	s.avg = newRunningAverage(core.MsToSamples(s.avgWindowMs, s.sampleRate))
	s.resetNow()

	return nil
}

func (s *SpectralBlanker) resetNow() {
	s.avg.Reset()
	s.ring.Reset()
	s.state = stateWarmup
	s.warmupLeft = 2 * s.avg.Len()
	s.remaining = 0
	s.detectLevel = 0
	s.holdoff = 0
}
