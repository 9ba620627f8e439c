// Package denoise reduces stationary background noise by spectral
// subtraction: a magnitude noise profile is learned from the incoming
// stream, then an over-scaled estimate of it is subtracted from every
// analysis frame, with a spectral floor guarding against musical-noise
// artifacts. Frames overlap and are recombined by overlap-add.
package denoise

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-noise/dsp/core"
	"github.com/cwbudde/algo-noise/dsp/fourier"
	"github.com/cwbudde/algo-noise/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

// ErrLengthMismatch is returned when input and output blocks differ in length.
var ErrLengthMismatch = errors.New("denoise: block length mismatch")

const (
	defaultFFTSize         = 2048
	defaultOverlapFactor   = 4
	defaultLearningFrames  = 30
	defaultAlpha           = 2.0
	defaultBeta            = 0.01
	defaultAdaptRate       = 0.01
	defaultSignalThreshold = 2.0

	minFFTSize = 64
)

// Option mutates reducer construction parameters.
type Option func(*config) error

type config struct {
	fftSize         int
	overlapFactor   int
	learningFrames  int
	adaptive        bool
	signalThreshold float64
}

func defaultReducerConfig() config {
	return config{
		fftSize:         defaultFFTSize,
		overlapFactor:   defaultOverlapFactor,
		learningFrames:  defaultLearningFrames,
		adaptive:        true,
		signalThreshold: defaultSignalThreshold,
	}
}

// WithFFTSize sets the analysis frame size. size must be a power of two
// and at least 64.
func WithFFTSize(size int) Option {
	return func(cfg *config) error {
		if size < minFFTSize || size&(size-1) != 0 {
			return fmt.Errorf("denoise fft size must be a power of two >= %d: %d", minFFTSize, size)
		}
		cfg.fftSize = size
		return nil
	}
}

// WithOverlapFactor sets the frame overlap factor. The hop size is
// fftSize/overlapFactor, so the factor must divide the frame size.
func WithOverlapFactor(factor int) Option {
	return func(cfg *config) error {
		if factor < 2 {
			return fmt.Errorf("denoise overlap factor must be >= 2: %d", factor)
		}
		cfg.overlapFactor = factor
		return nil
	}
}

// WithLearningFrames sets how many frames the initial noise profile
// averages over.
func WithLearningFrames(frames int) Option {
	return func(cfg *config) error {
		if frames < 1 {
			return fmt.Errorf("denoise learning frames must be >= 1: %d", frames)
		}
		cfg.learningFrames = frames
		return nil
	}
}

// WithAdaptiveTracking toggles continuous noise-profile adaptation after
// the learning phase.
func WithAdaptiveTracking(enabled bool) Option {
	return func(cfg *config) error {
		cfg.adaptive = enabled
		return nil
	}
}

// WithSignalThreshold sets the magnitude-to-profile ratio below which a
// bin is considered noise-only and eligible for profile adaptation.
func WithSignalThreshold(ratio float64) Option {
	return func(cfg *config) error {
		if !core.IsFinitePositive(ratio) {
			return fmt.Errorf("denoise signal threshold must be > 0 and finite: %f", ratio)
		}
		cfg.signalThreshold = ratio
		return nil
	}
}

// Stats is a read-only snapshot of reducer state.
type Stats struct {
	Enabled        bool
	Learning       bool
	FramesLearned  int
	LearningFrames int
	NoiseFloor     float64
	Alpha          float64
	Beta           float64
	AdaptRate      float64
	FFTSize        int
	HopSize        int
}

// Reducer is the spectral-subtraction noise reducer (NR2).
//
// The stage accumulates input into a sliding analysis window and processes
// one Hann-windowed frame every hop (fftSize/overlapFactor) new samples
// regardless of the caller's block size, recombining frames by normalized
// overlap-add. The output lags the input by slightly under one hop of
// silence while the pipeline fills.
//
// ProcessBlock must not be called concurrently with itself. SetEnabled and
// Reset are safe from another goroutine; a reset is applied at the start
// of the next block.
type Reducer struct {
	sampleRate      float64
	fftSize         int
	overlapFactor   int
	hop             int
	bins            int
	learningFrames  int
	adaptive        bool
	signalThreshold float64

	alpha     float64
	beta      float64
	adaptRate float64

	fft          *fourier.Transform
	windowCoeffs []float64
	colaNorm     float64

	inBuf   []float64
	outBuf  []float64
	pending []float64
	pendLen int

	fifo     []float64
	fifoHead int
	fifoLen  int

	re   []float64
	im   []float64
	mags []float64

	profile       []float64
	framesLearned int
	learning      bool

	enabled      atomic.Bool
	resetPending atomic.Bool
}

// New creates a spectral-subtraction reducer with practical defaults
// (2048-point frames, 4x overlap, 30 learning frames).
func New(sampleRate float64, opts ...Option) (*Reducer, error) {
	if !core.IsFinitePositive(sampleRate) {
		return nil, fmt.Errorf("denoise sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := defaultReducerConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	r := &Reducer{
		sampleRate:      sampleRate,
		fftSize:         cfg.fftSize,
		overlapFactor:   cfg.overlapFactor,
		learningFrames:  cfg.learningFrames,
		adaptive:        cfg.adaptive,
		signalThreshold: cfg.signalThreshold,
		alpha:           defaultAlpha,
		beta:            defaultBeta,
		adaptRate:       defaultAdaptRate,
	}
	r.enabled.Store(true)

	if err := r.rebuildState(); err != nil {
		return nil, err
	}

	return r, nil
}

// SampleRate returns the sample rate in Hz.
func (r *Reducer) SampleRate() float64 { return r.sampleRate }

// FFTSize returns the analysis frame size.
func (r *Reducer) FFTSize() int { return r.fftSize }

// HopSize returns the hop size in samples.
func (r *Reducer) HopSize() int { return r.hop }

// Alpha returns the over-subtraction factor.
func (r *Reducer) Alpha() float64 { return r.alpha }

// Beta returns the spectral floor fraction.
func (r *Reducer) Beta() float64 { return r.beta }

// AdaptRate returns the noise-profile adaptation rate per frame.
func (r *Reducer) AdaptRate() float64 { return r.adaptRate }

// Learning reports whether the initial noise profile is still being learned.
func (r *Reducer) Learning() bool { return r.learning }

// SetStrength maps a 0-100% strength to the over-subtraction factor
// alpha in [1, 4].
func (r *Reducer) SetStrength(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("denoise strength must be in [0, 100]: %f", percent)
	}
	r.alpha = 1 + percent/100*3
	return nil
}

// SetFloor maps a 0-100% floor to the spectral floor beta in [0.001, 0.1].
func (r *Reducer) SetFloor(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("denoise floor must be in [0, 100]: %f", percent)
	}
	r.beta = 0.001 + percent/100*0.099
	return nil
}

// SetAdaptRate maps a 0.1-5% per-frame rate to the profile adaptation
// rate in [0.001, 0.05].
func (r *Reducer) SetAdaptRate(percent float64) error {
	if percent < 0.1 || percent > 5 {
		return fmt.Errorf("denoise adapt rate must be in [0.1, 5]: %f", percent)
	}
	r.adaptRate = percent / 100
	return nil
}

// SetAdaptiveTracking toggles continuous profile adaptation.
func (r *Reducer) SetAdaptiveTracking(enabled bool) {
	r.adaptive = enabled
}

// SetFFTSize updates the analysis frame size, rebuilding all dependent
// buffers and restarting the learning phase.
func (r *Reducer) SetFFTSize(size int) error {
	if size < minFFTSize || size&(size-1) != 0 {
		return fmt.Errorf("denoise fft size must be a power of two >= %d: %d", minFFTSize, size)
	}
	r.fftSize = size
	return r.rebuildState()
}

// SetEnabled toggles the stage. A disabled stage copies blocks through
// unmodified and freezes learning and adaptation.
func (r *Reducer) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Enabled reports whether the stage is active.
func (r *Reducer) Enabled() bool {
	return r.enabled.Load()
}

// Reset clears the noise profile and all frame state and restarts the
// learning phase at the start of the next ProcessBlock.
func (r *Reducer) Reset() {
	r.resetPending.Store(true)
}

// GetStats returns a read-only snapshot of reducer state.
func (r *Reducer) GetStats() Stats {
	s := Stats{
		Enabled:        r.enabled.Load(),
		Learning:       r.learning,
		FramesLearned:  r.framesLearned,
		LearningFrames: r.learningFrames,
		NoiseFloor:     r.profileMean(),
		Alpha:          r.alpha,
		Beta:           r.beta,
		AdaptRate:      r.adaptRate,
		FFTSize:        r.fftSize,
		HopSize:        r.hop,
	}

	// A pending reset is reported as already applied so observers never
	// see stale learned state.
	if r.resetPending.Load() {
		s.Learning = true
		s.FramesLearned = 0
		s.NoiseFloor = 0
	}

	return s
}

// ProcessBlock runs the reducer over one block. in and out must have equal
// length; out must not alias in.
func (r *Reducer) ProcessBlock(in, out []float64) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(in), len(out))
	}

	if r.resetPending.CompareAndSwap(true, false) {
		r.resetNow()
	}

	if !r.enabled.Load() {
		copy(out, in)
		return nil
	}

	for i, x := range in {
		r.pending[r.pendLen] = x
		r.pendLen++

		if r.pendLen == r.hop {
			r.consumePending()
			r.pendLen = 0
		}

		if r.fifoLen > 0 {
			out[i] = r.fifoPop()
		} else {
			out[i] = 0
		}
	}

	return nil
}

// consumePending shifts one hop of new samples into the analysis window,
// processes the frame, and queues one hop of overlap-added output.
func (r *Reducer) consumePending() {
	copy(r.inBuf, r.inBuf[r.hop:])
	copy(r.inBuf[r.fftSize-r.hop:], r.pending[:r.hop])

	r.processFrame()

	for j := range r.hop {
		r.fifoPush(r.outBuf[j])
	}

	copy(r.outBuf, r.outBuf[r.hop:])
	for j := r.fftSize - r.hop; j < r.fftSize; j++ {
		r.outBuf[j] = 0
	}
}

func (r *Reducer) processFrame() {
	vecmath.MulBlock(r.re, r.inBuf, r.windowCoeffs)
	for i := range r.im {
		r.im[i] = 0
	}

	r.fft.Forward(r.re, r.im)
	vecmath.Magnitude(r.mags, r.re[:r.bins], r.im[:r.bins])

	if r.learning {
		r.learnFrame()
		return
	}

	for k := range r.bins {
		m := r.mags[k]

		if r.adaptive && m < r.signalThreshold*r.profile[k] {
			r.profile[k] = (1-r.adaptRate)*r.profile[k] + r.adaptRate*m
		}

		if m > 0 {
			scale := subtractBin(m, r.profile[k], r.alpha, r.beta) / m
			r.re[k] *= scale
			r.im[k] *= scale
		}
	}

	// Rebuild negative-frequency bins by conjugate symmetry.
	for k := 1; k < r.fftSize/2; k++ {
		r.re[r.fftSize-k] = r.re[k]
		r.im[r.fftSize-k] = -r.im[k]
	}

	r.fft.Inverse(r.re, r.im)

	for i := range r.outBuf {
		r.outBuf[i] += r.re[i] * r.windowCoeffs[i] / r.colaNorm
	}
}

// learnFrame accumulates the magnitude spectrum into the noise profile and
// passes the window-compensated input through untouched.
func (r *Reducer) learnFrame() {
	for k := range r.bins {
		r.profile[k] += r.mags[k]
	}
	r.framesLearned++

	if r.framesLearned >= r.learningFrames {
		for k := range r.bins {
			r.profile[k] /= float64(r.learningFrames)
		}
		r.learning = false
	}

	for i := range r.outBuf {
		w := r.windowCoeffs[i]
		r.outBuf[i] += r.inBuf[i] * w * w / r.colaNorm
	}
}

// subtractBin applies over-subtraction with a spectral floor. The result
// is never below beta×mag and never negative.
func subtractBin(mag, noise, alpha, beta float64) float64 {
	clean := mag - alpha*noise
	if floor := beta * mag; clean < floor {
		clean = floor
	}
	return clean
}

func (r *Reducer) profileMean() float64 {
	if r.learning || len(r.profile) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range r.profile {
		sum += v
	}
	return sum / float64(len(r.profile))
}

func (r *Reducer) fifoPush(v float64) {
	r.fifo[(r.fifoHead+r.fifoLen)%len(r.fifo)] = v
	r.fifoLen++
}

func (r *Reducer) fifoPop() float64 {
	v := r.fifo[r.fifoHead]
	r.fifoHead = (r.fifoHead + 1) % len(r.fifo)
	r.fifoLen--
	return v
}

// rebuildState derives hop size, window, FFT plan, and all buffers from
// the current parameters in one step, restarting the learning phase.
func (r *Reducer) rebuildState() error {
	if r.fftSize%r.overlapFactor != 0 {
		return fmt.Errorf("denoise overlap factor must divide fft size: %d %% %d != 0",
			r.fftSize, r.overlapFactor)
	}

	hop := r.fftSize / r.overlapFactor
	if hop < 1 {
		return fmt.Errorf("denoise hop size must be >= 1: %d", hop)
	}

	fft, err := fourier.New(r.fftSize)
	if err != nil {
		return fmt.Errorf("denoise: %w", err)
	}

	r.fft = fft
	r.hop = hop
	r.bins = r.fftSize/2 + 1
	r.windowCoeffs = window.Generate(window.TypeHann, r.fftSize, window.WithPeriodic())
	r.colaNorm = window.SquaredSum(r.windowCoeffs) / float64(hop)

	r.inBuf = make([]float64, r.fftSize)
	r.outBuf = make([]float64, r.fftSize)
	r.pending = make([]float64, hop)
	r.fifo = make([]float64, 2*hop)
	r.re = make([]float64, r.fftSize)
	r.im = make([]float64, r.fftSize)
	r.mags = make([]float64, r.bins)
	r.profile = make([]float64, r.bins)

	r.resetNow()

	return nil
}

func (r *Reducer) resetNow() {
	for i := range r.inBuf {
		r.inBuf[i] = 0
		r.outBuf[i] = 0
	}
	for i := range r.profile {
		r.profile[i] = 0
	}

	r.pendLen = 0
	r.fifoHead = 0
	r.fifoLen = 0
	r.framesLearned = 0
	r.learning = true
}
