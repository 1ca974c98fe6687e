package solver

import (
	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/residual"
)

// context implements residual.Context against a particular iterate x of
// the owning NonlinearSolver. A new context is created per assemble/
// Tangents call rather than reused, since its only state is which iterate
// it reads from.
type context struct {
	s *NonlinearSolver
	x []float64
}

var _ residual.Context = (*context)(nil)

func (c *context) UnknownSize() int { return c.s.nEq }

func (c *context) CurrentStress() []float64 {
	out := make([]float64, 9)
	copy(out, c.x[0:9])
	return out
}

func (c *context) PreviousStress() []float64 {
	out := make([]float64, 9)
	copy(out, c.s.prevStress)
	return out
}

func (c *context) Configuration(k int) ([]float64, error) {
	cc, ok := c.s.configCells[k]
	if !ok {
		return c.s.chain.GetConfiguration(k)
	}
	return cc.Get(func() ([]float64, error) { return c.s.chain.GetConfiguration(k) })
}

func (c *context) PreviousConfiguration(k int) ([]float64, error) {
	return c.s.chain.GetPreviousConfiguration(k)
}

func (c *context) Preceding(i int) ([]float64, error) {
	pc, ok := c.s.precedingCells[i]
	if !ok {
		return c.s.chain.GetPreceding(i)
	}
	return pc.Get(func() ([]float64, error) { return c.s.chain.GetPreceding(i) })
}

func (c *context) Following(i int) ([]float64, error) {
	fc, ok := c.s.followingCells[i]
	if !ok {
		return c.s.chain.GetFollowing(i)
	}
	return fc.Get(func() ([]float64, error) { return c.s.chain.GetFollowing(i) })
}

func (c *context) TotalDeformationGradient() []float64 {
	out := make([]float64, 9)
	copy(out, c.s.totalF)
	return out
}

func (c *context) Temperature() (current, previous float64) {
	return c.s.t, c.s.tPrev
}

func (c *context) TimeIncrement() float64 {
	return c.s.dt
}

func (c *context) SolveCoupledState() []float64 {
	out := make([]float64, c.s.nStateSolve)
	copy(out, c.x[9*c.s.n:9*c.s.n+c.s.nStateSolve])
	return out
}

func (c *context) PreviousState() []float64 {
	out := make([]float64, len(c.s.prevState))
	copy(out, c.s.prevState)
	return out
}

func (c *context) PreviousCarriedState() []float64 {
	out := make([]float64, len(c.s.prevState)-c.s.nStateSolve)
	copy(out, c.s.prevState[c.s.nStateSolve:])
	return out
}

func (c *context) Fail(kind failure.Kind, format string, args ...any) error {
	return failure.New(kind, format, args...)
}

// F1Gradients exposes the chain's ∂F1/∂F and ∂F1/∂F_k helper to modules
// that read F1 directly (the stress-carrier module), so they can fold the
// F1-on-F2..Fn and F1-on-total-F chain rule into their own Jacobian/DRdF
// blocks — the Open Question resolution of SPEC_FULL §7: modules treat
// their own configuration (here, F1) as the differentiation variable; the
// chain (core engine), not the solver's Newton loop, supplies how that
// configuration relates to the real unknowns.
func (c *context) F1Gradients() (dF1dF []float64, dF1dFk map[int][]float64, err error) {
	g, err := c.s.f1GradCell.Get(func() (f1Gradients, error) {
		dF1dFSlice, dF1dFkSlice, err := c.s.chain.GetF1Gradients()
		if err != nil {
			return f1Gradients{}, err
		}
		m := make(map[int][]float64, c.s.n)
		for k := 2; k <= c.s.n; k++ {
			m[k] = dF1dFkSlice[k]
		}
		return f1Gradients{dF1dF: dF1dFSlice, dF1dFk: m}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return g.dF1dF, g.dF1dFk, nil
}
