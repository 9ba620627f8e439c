// Package chain runs a fixed sequence of block-processing stages, feeding
// each stage's output into the next. Disabled stages are skipped without
// copying overhead.
package chain

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when input and output blocks differ in length.
var ErrLengthMismatch = errors.New("chain: block length mismatch")

// Stage is one block processor in a chain. ProcessBlock reads one block
// from in and writes the same number of samples to out; in and out never
// alias. Implementations report their own enabled state so the chain can
// bypass them cheaply.
type Stage interface {
	ProcessBlock(in, out []float64) error
	Reset()
	SetEnabled(enabled bool)
	Enabled() bool
}

// Chain applies its stages in order. The zero number of stages is allowed;
// the chain then degenerates to a copy.
//
// ProcessBlock must not be called concurrently with itself. Stage-level
// SetEnabled and Reset follow each stage's own concurrency contract.
type Chain struct {
	stages   []Stage
	scratchA []float64
	scratchB []float64
}

// New creates a chain over the given stages. Stages run in argument order.
func New(stages ...Stage) (*Chain, error) {
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("chain: stage %d is nil", i)
		}
	}

	return &Chain{stages: stages}, nil
}

// Len returns the number of stages.
func (c *Chain) Len() int { return len(c.stages) }

// Stage returns the stage at index i, or nil if out of range.
func (c *Chain) Stage(i int) Stage {
	if i < 0 || i >= len(c.stages) {
		return nil
	}
	return c.stages[i]
}

// Reset resets every stage.
func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

// ProcessBlock runs the block through every enabled stage in order. in and
// out must have equal length; out must not alias in.
func (c *Chain) ProcessBlock(in, out []float64) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(in), len(out))
	}

	c.ensureScratch(len(in))

	// Ping-pong between scratch buffers so each stage sees non-aliased
	// input and output slices.
	src := c.scratchA[:len(in)]
	dst := c.scratchB[:len(in)]
	copy(src, in)

	for _, s := range c.stages {
		if !s.Enabled() {
			continue
		}
		if err := s.ProcessBlock(src, dst); err != nil {
			return err
		}
		src, dst = dst, src
	}

	copy(out, src)

	return nil
}

func (c *Chain) ensureScratch(n int) {
	if cap(c.scratchA) < n {
		c.scratchA = make([]float64, n)
		c.scratchB = make([]float64, n)
	}
}
