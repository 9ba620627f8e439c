package chain

import (
	"errors"
	"testing"
)

// gainStage scales every sample by a constant. It tracks resets so tests
// can observe propagation.
type gainStage struct {
	gain    float64
	enabled bool
	resets  int
	fail    error
}

func newGainStage(gain float64) *gainStage {
	return &gainStage{gain: gain, enabled: true}
}

func (g *gainStage) ProcessBlock(in, out []float64) error {
	if g.fail != nil {
		return g.fail
	}
	for i, x := range in {
		out[i] = x * g.gain
	}
	return nil
}

func (g *gainStage) Reset()                  { g.resets++ }
func (g *gainStage) SetEnabled(enabled bool) { g.enabled = enabled }
func (g *gainStage) Enabled() bool           { return g.enabled }

func TestNewRejectsNilStage(t *testing.T) {
	if _, err := New(newGainStage(1), nil); err == nil {
		t.Error("expected error for nil stage")
	}
}

func TestEmptyChainCopies(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := []float64{1, 2, 3, 4}
	out := make([]float64, len(in))
	if err := c.ProcessBlock(in, out); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestStagesRunInOrder(t *testing.T) {
	c, err := New(newGainStage(2), newGainStage(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := []float64{1, -1, 0.5}
	out := make([]float64, len(in))
	if err := c.ProcessBlock(in, out); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for i, x := range in {
		if want := x * 6; out[i] != want {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestDisabledStageSkipped(t *testing.T) {
	skipped := newGainStage(100)
	skipped.SetEnabled(false)

	c, err := New(newGainStage(2), skipped)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := []float64{1, 2}
	out := make([]float64, len(in))
	if err := c.ProcessBlock(in, out); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for i, x := range in {
		if out[i] != x*2 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], x*2)
		}
	}
}

func TestStageErrorPropagates(t *testing.T) {
	failing := newGainStage(1)
	failing.fail = errors.New("stage broke")

	c, err := New(newGainStage(2), failing)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := make([]float64, 4)
	out := make([]float64, 4)
	if err := c.ProcessBlock(in, out); err == nil {
		t.Error("expected stage error to propagate")
	}
}

func TestResetPropagates(t *testing.T) {
	a := newGainStage(1)
	b := newGainStage(1)

	c, err := New(a, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Reset()
	if a.resets != 1 || b.resets != 1 {
		t.Errorf("resets = %d/%d, want 1/1", a.resets, b.resets)
	}
}

func TestLengthMismatch(t *testing.T) {
	c, err := New(newGainStage(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.ProcessBlock(make([]float64, 8), make([]float64, 4))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("ProcessBlock error = %v, want ErrLengthMismatch", err)
	}
}

func TestStageAccessor(t *testing.T) {
	a := newGainStage(1)
	c, err := New(a)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if c.Stage(0) != Stage(a) {
		t.Error("Stage(0) should return the first stage")
	}
	if c.Stage(1) != nil || c.Stage(-1) != nil {
		t.Error("out-of-range Stage() should return nil")
	}
}
