package blanker

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-noise/dsp/core"
)

// ErrLengthMismatch is returned when input and output blocks differ in length.
var ErrLengthMismatch = errors.New("blanker: block length mismatch")

const (
	defaultThreshold   = 8.0
	defaultBlankMs     = 2.0
	defaultFadeMs      = 1.0
	defaultAvgWindowMs = 10.0

	// levelFloor keeps the detection level away from zero on silent input.
	levelFloor = 0.0001
)

// blankState is the detector state. Warmup passes samples through while the
// running average stabilizes; armed watches for pulses; blanking attenuates
// until the countdown expires.
type blankState int

const (
	stateWarmup blankState = iota
	stateArmed
	stateBlanking
)

// Option mutates time-domain blanker construction parameters.
type Option func(*config) error

type config struct {
	threshold   float64
	blankMs     float64
	fadeMs      float64
	avgWindowMs float64
	hard        bool
}

func defaultConfig() config {
	return config{
		threshold:   defaultThreshold,
		blankMs:     defaultBlankMs,
		fadeMs:      defaultFadeMs,
		avgWindowMs: defaultAvgWindowMs,
	}
}

// WithThreshold sets the pulse detection ratio above the noise floor.
func WithThreshold(ratio float64) Option {
	return func(cfg *config) error {
		if !core.IsFinitePositive(ratio) {
			return fmt.Errorf("blanker threshold must be > 0 and finite: %f", ratio)
		}
		cfg.threshold = ratio
		return nil
	}
}

// WithBlankDurationMs sets the suppression window length in milliseconds.
func WithBlankDurationMs(ms float64) Option {
	return func(cfg *config) error {
		if !core.IsFinitePositive(ms) {
			return fmt.Errorf("blanker blank duration must be > 0 and finite: %f", ms)
		}
		cfg.blankMs = ms
		return nil
	}
}

// WithFadeDurationMs sets the raised-cosine recovery length in milliseconds.
func WithFadeDurationMs(ms float64) Option {
	return func(cfg *config) error {
		if !core.IsFinitePositive(ms) {
			return fmt.Errorf("blanker fade duration must be > 0 and finite: %f", ms)
		}
		cfg.fadeMs = ms
		return nil
	}
}

// WithAverageWindowMs sets the running-average window length in milliseconds.
func WithAverageWindowMs(ms float64) Option {
	return func(cfg *config) error {
		if !core.IsFinitePositive(ms) {
			return fmt.Errorf("blanker average window must be > 0 and finite: %f", ms)
		}
		cfg.avgWindowMs = ms
		return nil
	}
}

// WithHardBlanking zeroes the whole suppression window instead of applying
// the fade envelope.
func WithHardBlanking() Option {
	return func(cfg *config) error {
		cfg.hard = true
		return nil
	}
}

// Stats is a read-only snapshot of blanker state.
type Stats struct {
	Enabled         bool
	Pulses          uint64
	AverageLevel    float64
	ThresholdLevel  float64
	BlankDurationMs float64
	Blanking        bool
	WarmingUp       bool
}

// Blanker suppresses short broadband pulses (ignition noise, electric-fence
// clicks) in the time domain. Every sample feeds a running average of
// absolute levels; a sample exceeding threshold×average opens a suppression
// window whose gain envelope holds at zero and fades back in just before
// the window closes.
//
// ProcessBlock must not be called concurrently with itself. SetEnabled and
// Reset are safe from another goroutine; a reset is applied at the start of
// the next block.
type Blanker struct {
	sampleRate  float64
	threshold   float64
	blankMs     float64
	fadeMs      float64
	avgWindowMs float64
	hard        bool

	avg          *runningAverage
	envelope     []float64
	blankSamples int

	state       blankState
	remaining   int
	warmupLeft  int
	detectLevel float64

	enabled      atomic.Bool
	resetPending atomic.Bool
	pulses       atomic.Uint64
}

// New creates a time-domain noise blanker with practical defaults.
func New(sampleRate float64, opts ...Option) (*Blanker, error) {
	if !core.IsFinitePositive(sampleRate) {
		return nil, fmt.Errorf("blanker sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	b := &Blanker{
		sampleRate:  sampleRate,
		threshold:   cfg.threshold,
		blankMs:     cfg.blankMs,
		fadeMs:      cfg.fadeMs,
		avgWindowMs: cfg.avgWindowMs,
		hard:        cfg.hard,
	}
	b.enabled.Store(true)

	if err := b.rebuildState(); err != nil {
		return nil, err
	}

	return b, nil
}

// SampleRate returns the sample rate in Hz.
func (b *Blanker) SampleRate() float64 { return b.sampleRate }

// Threshold returns the detection ratio above the noise floor.
func (b *Blanker) Threshold() float64 { return b.threshold }

// BlankDurationMs returns the suppression window length in milliseconds.
func (b *Blanker) BlankDurationMs() float64 { return b.blankMs }

// FadeDurationMs returns the recovery fade length in milliseconds.
func (b *Blanker) FadeDurationMs() float64 { return b.fadeMs }

// AverageWindowMs returns the running-average window length in milliseconds.
func (b *Blanker) AverageWindowMs() float64 { return b.avgWindowMs }

// HardBlanking reports whether the suppression window is zeroed outright.
func (b *Blanker) HardBlanking() bool { return b.hard }

// SetThreshold updates the detection ratio.
func (b *Blanker) SetThreshold(ratio float64) error {
	if !core.IsFinitePositive(ratio) {
		return fmt.Errorf("blanker threshold must be > 0 and finite: %f", ratio)
	}
	b.threshold = ratio
	return nil
}

// SetBlankDurationMs updates the suppression window length and rebuilds
// dependent state, restarting warmup.
func (b *Blanker) SetBlankDurationMs(ms float64) error {
	if !core.IsFinitePositive(ms) {
		return fmt.Errorf("blanker blank duration must be > 0 and finite: %f", ms)
	}
	prev := b.blankMs
	b.blankMs = ms
	if err := b.rebuildState(); err != nil {
		b.blankMs = prev
		return err
	}
	return nil
}

// SetFadeDurationMs updates the recovery fade length and rebuilds dependent
// state, restarting warmup.
func (b *Blanker) SetFadeDurationMs(ms float64) error {
	if !core.IsFinitePositive(ms) {
		return fmt.Errorf("blanker fade duration must be > 0 and finite: %f", ms)
	}
	prev := b.fadeMs
	b.fadeMs = ms
	if err := b.rebuildState(); err != nil {
		b.fadeMs = prev
		return err
	}
	return nil
}

// SetAverageWindowMs updates the running-average window length and rebuilds
// dependent state, restarting warmup.
func (b *Blanker) SetAverageWindowMs(ms float64) error {
	if !core.IsFinitePositive(ms) {
		return fmt.Errorf("blanker average window must be > 0 and finite: %f", ms)
	}
	b.avgWindowMs = ms
	return b.rebuildState()
}

// SetHardBlanking toggles hard (zeroing) suppression.
func (b *Blanker) SetHardBlanking(hard bool) {
	b.hard = hard
}

// SetEnabled toggles the stage. A disabled stage passes blocks through
// unmodified on the next call.
func (b *Blanker) SetEnabled(enabled bool) {
	b.enabled.Store(enabled)
}

// Enabled reports whether the stage is active.
func (b *Blanker) Enabled() bool {
	return b.enabled.Load()
}

// Reset clears all running state and restarts warmup. The pulse counter is
// cleared immediately; detector state is rebuilt at the start of the next
// ProcessBlock so a concurrent audio callback never observes partial state.
func (b *Blanker) Reset() {
	b.pulses.Store(0)
	b.resetPending.Store(true)
}

// GetStats returns a read-only snapshot of blanker state.
func (b *Blanker) GetStats() Stats {
	avgLevel := b.currentLevel()

	return Stats{
		Enabled:         b.enabled.Load(),
		Pulses:          b.pulses.Load(),
		AverageLevel:    avgLevel,
		ThresholdLevel:  avgLevel * b.threshold,
		BlankDurationMs: b.blankMs,
		Blanking:        b.state == stateBlanking,
		WarmingUp:       b.state == stateWarmup,
	}
}

// ProcessBlock runs the blanker over one block. in and out must have equal
// length; out must not alias in.
func (b *Blanker) ProcessBlock(in, out []float64) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(in), len(out))
	}

	if b.resetPending.CompareAndSwap(true, false) {
		b.resetNow()
	}

	if !b.enabled.Load() {
		copy(out, in)
		return nil
	}

	for i, x := range in {
		mag := math.Abs(x)
		b.avg.Push(mag)

		switch b.state {
		case stateWarmup:
			out[i] = x
			b.warmupLeft--
			if b.warmupLeft <= 0 {
				b.state = stateArmed
			}

		case stateArmed:
			level := b.currentLevel() * b.threshold
			if mag > level {
				b.pulses.Add(1)
				b.state = stateBlanking
				b.remaining = b.blankSamples
				b.detectLevel = level
				out[i] = b.attenuate(x, 0)
				b.advanceCountdown()
			} else {
				out[i] = x
			}

		case stateBlanking:
			// A pulse still above the level latched at detection refreshes
			// the countdown without counting a new detection. The live
			// average absorbs a sustained burst within a few milliseconds,
			// so comparing against it would end suppression early.
			if mag > b.detectLevel {
				b.remaining = b.blankSamples
			}
			out[i] = b.attenuate(x, b.blankSamples-b.remaining)
			b.advanceCountdown()
		}
	}

	return nil
}

func (b *Blanker) currentLevel() float64 {
	if b.avg == nil {
		return levelFloor
	}
	return math.Max(b.avg.Average(), levelFloor)
}

func (b *Blanker) attenuate(x float64, idx int) float64 {
	if b.hard {
		return 0
	}
	return x * b.envelope[idx]
}

func (b *Blanker) advanceCountdown() {
	b.remaining--
	if b.remaining <= 0 {
		b.state = stateArmed
	}
}

// rebuildState derives sample counts from the millisecond parameters and
// reallocates all dependent buffers in one step.
func (b *Blanker) rebuildState() error {
	blankSamples := core.MsToSamples(b.blankMs, b.sampleRate)
	fadeSamples := core.MsToSamples(b.fadeMs, b.sampleRate)
	if fadeSamples > blankSamples {
		return fmt.Errorf("blanker fade duration must not exceed blank duration: %f > %f ms",
			b.fadeMs, b.blankMs)
	}

	b.blankSamples = blankSamples
	b.envelope = newFadeEnvelope(blankSamples, fadeSamples)
	b.avg = newRunningAverage(core.MsToSamples(b.avgWindowMs, b.sampleRate))
	b.resetNow()

	return nil
}

func (b *Blanker) resetNow() {
	b.avg.Reset()
	b.state = stateWarmup
	b.warmupLeft = 2 * b.avg.Len()
	b.remaining = 0
	b.detectLevel = 0
}
