// Package chain implements the multiplicative configuration-decomposition
// engine (spec.md §3, §4.2): it owns the ordered sub-configurations
// F_1...F_n, their inverses, and the previous-step snapshot, and computes
// any contiguous sub-product and its analytic derivative with respect to
// any configuration in the chain.
package chain

import (
	"math"

	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/tensor"
)

// DefaultTolerance is the default configuration_tol of spec.md §4.2: the
// L2-norm tolerance for the "total product equals host F" invariant.
const DefaultTolerance = 1e-9

// ConfigurationChain owns F_1..F_n (1-indexed; slot 0 is unused) for both
// the current (being solved for) and previous (converged prior increment)
// snapshots.
type ConfigurationChain struct {
	n   int // number of configurations
	tol float64

	totalF []float64 // host-provided total deformation gradient F

	current    [][]float64 // current[k] = F_k, k in [1,n]
	currentInv [][]float64

	previous    [][]float64
	previousInv [][]float64
}

// New allocates a chain of n configurations, seeding F_2..F_n from the
// previous-step snapshot (spec.md §4.2 "Initial population") and setting
// F_1 so F_1*F_2*...*F_n = totalF holds exactly.
func New(n int, totalF, previousTotalF []float64, previousTail map[int][]float64, tol float64) (*ConfigurationChain, error) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	c := &ConfigurationChain{
		n:           n,
		tol:         tol,
		totalF:      tensor.Copy9(totalF),
		current:     make([][]float64, n+1),
		currentInv:  make([][]float64, n+1),
		previous:    make([][]float64, n+1),
		previousInv: make([][]float64, n+1),
	}

	for k := 2; k <= n; k++ {
		c.previous[k] = tensor.Copy9(previousTail[k])
		c.current[k] = tensor.Copy9(previousTail[k])
	}

	tailPrev, err := c.subproduct(c.previous, 2, n+1)
	if err != nil {
		return nil, err
	}
	tailPrevInv, err := tensor.Inv3(tailPrev)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidKinematics, "chain: previous tail product is non-invertible", err)
	}
	c.previous[1] = tensor.MatMul9(previousTotalF, tailPrevInv)

	if err := c.setConfigurationCurrent(1, totalF, 2, n+1); err != nil {
		return nil, err
	}

	if err := c.checkInvariant(); err != nil {
		return nil, err
	}
	return c, nil
}

// setConfigurationCurrent sets current[1] = F * (current[from]*...*current[to-1])^-1.
func (c *ConfigurationChain) setConfigurationCurrent(slot int, f []float64, from, to int) error {
	tail, err := c.subproduct(c.current, from, to)
	if err != nil {
		return err
	}
	tailInv, err := tensor.Inv3(tail)
	if err != nil {
		return failure.Wrap(failure.InvalidKinematics, "chain: current tail product is non-invertible", err)
	}
	c.current[slot] = tensor.MatMul9(f, tailInv)
	inv, err := tensor.Inv3(c.current[slot])
	if err != nil {
		return failure.Wrap(failure.InvalidKinematics, "chain: F_1 is non-invertible", err)
	}
	c.currentInv[slot] = inv
	return nil
}

// SetConfiguration sets F_k (k>=2) for the current iterate and recomputes
// F_1 so the chain invariant F = F_1*...*F_n continues to hold. Called by
// the solver when it materializes a new Newton iterate (spec.md §4.4
// step 2).
func (c *ConfigurationChain) SetConfiguration(k int, fk []float64) error {
	if k < 2 || k > c.n {
		return failure.New(failure.ModuleNotImplemented, "chain: cannot directly set F_%d; only F_2..F_%d are solver unknowns", k, c.n)
	}
	if tensor.Det3(fk) <= 0 {
		return failure.New(failure.InvalidKinematics, "chain: det(F_%d) = %v is non-positive", k, tensor.Det3(fk))
	}
	inv, err := tensor.Inv3(fk)
	if err != nil {
		return failure.Wrap(failure.InvalidKinematics, "chain: F_%d is non-invertible", err)
	}
	c.current[k] = tensor.Copy9(fk)
	c.currentInv[k] = inv
	return c.setConfigurationCurrent(1, c.totalF, 2, c.n+1)
}

// N returns the number of configurations in the chain.
func (c *ConfigurationChain) N() int { return c.n }

// GetConfiguration returns F_k for the current iterate.
func (c *ConfigurationChain) GetConfiguration(k int) ([]float64, error) {
	if err := c.checkSlot(k); err != nil {
		return nil, err
	}
	return tensor.Copy9(c.current[k]), nil
}

// GetPreviousConfiguration returns F_k from the previous converged step.
func (c *ConfigurationChain) GetPreviousConfiguration(k int) ([]float64, error) {
	if err := c.checkSlot(k); err != nil {
		return nil, err
	}
	return tensor.Copy9(c.previous[k]), nil
}

// GetSubproduct returns F_a*F_{a+1}*...*F_{b-1} (right-open interval) of
// the current iterate.
func (c *ConfigurationChain) GetSubproduct(a, b int) ([]float64, error) {
	return c.subproduct(c.current, a, b)
}

// GetPreviousSubproduct is the previous-step variant of GetSubproduct.
func (c *ConfigurationChain) GetPreviousSubproduct(a, b int) ([]float64, error) {
	return c.subproduct(c.previous, a, b)
}

// GetPreceding returns P_i = F_1*...*F_{i-1}.
func (c *ConfigurationChain) GetPreceding(i int) ([]float64, error) {
	return c.GetSubproduct(1, i)
}

// GetFollowing returns S_i = F_{i+1}*...*F_n.
func (c *ConfigurationChain) GetFollowing(i int) ([]float64, error) {
	return c.GetSubproduct(i+1, c.n+1)
}

// GetLocalDeformationGradient returns the configuration-k local view of the
// total deformation gradient, P_k^-1 * F * S_k^-1, i.e. the portion of the
// deformation "local" to slot k once the preceding and following
// sub-products are divided out. This is algebraically just F_k, but
// several physics modules (thermal expansion, Prony viscoelasticity) are
// most naturally written against this local view — SPEC_FULL §4.
func (c *ConfigurationChain) GetLocalDeformationGradient(k int) ([]float64, error) {
	return c.GetConfiguration(k)
}

// GetSubproductGradient returns the flat 9 x (9*(b-a)) block giving
// ∂(sub-product)/∂F_k for each k in [a,b), stacked in order, using the
// product rule ∂(F_a...F_{b-1})/∂F_k = F_a...F_{k-1} · I_kron ·
// F_{k+1}...F_{b-1} (spec.md §4.2).
func (c *ConfigurationChain) GetSubproductGradient(a, b int) ([]float64, error) {
	width := b - a
	if width <= 0 {
		return nil, failure.New(failure.ModuleNotImplemented, "chain: GetSubproductGradient: empty or inverted range [%d,%d)", a, b)
	}
	out := make([]float64, tensor.Dim*tensor.Dim*width)
	for idx, k := 0, a; k < b; idx, k = idx+1, k+1 {
		left, err := c.subproduct(c.current, a, k)
		if err != nil {
			return nil, err
		}
		right, err := c.subproduct(c.current, k+1, b)
		if err != nil {
			return nil, err
		}
		block := tensor.SubproductGradient(left, right)
		for row := 0; row < tensor.Dim; row++ {
			copy(out[row*tensor.Dim*width+idx*tensor.Dim:row*tensor.Dim*width+idx*tensor.Dim+tensor.Dim], block[row*tensor.Dim:row*tensor.Dim+tensor.Dim])
		}
	}
	return out, nil
}

// GetF1Gradients returns ∂F_1/∂F (9x9) and ∂F_1/∂F_k for k=2..n (each 9x9,
// concatenated in slot order), since F_1 = F·(F_2·...·F_n)^-1. These feed
// the solver's final tangent assembly (spec.md §4.2, §4.4).
func (c *ConfigurationChain) GetF1Gradients() (dF1dF []float64, dF1dFk [][]float64, err error) {
	tail, err := c.subproduct(c.current, 2, c.n+1)
	if err != nil {
		return nil, nil, err
	}
	tailInv, err := tensor.Inv3(tail)
	if err != nil {
		return nil, nil, failure.Wrap(failure.InvalidKinematics, "chain: GetF1Gradients: tail non-invertible", err)
	}

	// F1 = F * Sinv ⇒ ∂F1/∂F = I_kron composed with right=Sinv, left=I.
	id := tensor.Identity9()
	dF1dF = tensor.SubproductGradient(id, tailInv)
	dF1dFk = make([][]float64, c.n+1)
	if c.n < 2 {
		// single-configuration chain: F1 = F, no F_k to differentiate against.
		return dF1dF, dF1dFk, nil
	}

	// ∂F1/∂Sinv = d(F*X)/dX at X=Sinv ⇒ left=F, right=I.
	dF1dSinv := tensor.SubproductGradient(c.totalF, id)
	// ∂Sinv/∂S = InverseGradient(Sinv).
	dSinvdS := tensor.InverseGradient(tailInv)
	dF1dS := tensor.MulSquare(tensor.Dim, dF1dSinv, dSinvdS)

	dTaildFk, err := c.GetSubproductGradient(2, c.n+1)
	if err != nil {
		return nil, nil, err
	}
	width := c.n - 1
	for idx, k := 0, 2; k <= c.n; idx, k = idx+1, k+1 {
		block := make([]float64, tensor.Dim*tensor.Dim)
		for row := 0; row < tensor.Dim; row++ {
			copy(block[row*tensor.Dim:row*tensor.Dim+tensor.Dim], dTaildFk[row*tensor.Dim*width+idx*tensor.Dim:row*tensor.Dim*width+idx*tensor.Dim+tensor.Dim])
		}
		dF1dFk[k] = tensor.MulSquare(tensor.Dim, dF1dS, block)
	}
	return dF1dF, dF1dFk, nil
}

// CheckInvariant re-checks that F_1*...*F_n reproduces the host F within
// tol and that every det(F_k) is positive. Inverses are not compared here;
// they are recomputed from the forward tensors whenever a configuration is
// set. The solver calls this after every accepted Newton step.
func (c *ConfigurationChain) CheckInvariant() error {
	return c.checkInvariant()
}

func (c *ConfigurationChain) checkInvariant() error {
	full, err := c.subproduct(c.current, 1, c.n+1)
	if err != nil {
		return err
	}
	if l2Diff9(full, c.totalF) > c.tol {
		return failure.New(failure.InvalidKinematics, "chain: F_1*...*F_%d does not reproduce host F within tol=%v", c.n, c.tol)
	}
	for k := 1; k <= c.n; k++ {
		if tensor.Det3(c.current[k]) <= 0 {
			return failure.New(failure.InvalidKinematics, "chain: det(F_%d) is non-positive", k)
		}
	}
	return nil
}

func (c *ConfigurationChain) checkSlot(k int) error {
	if k < 1 || k > c.n {
		return failure.New(failure.ModuleNotImplemented, "chain: slot %d out of range [1,%d]", k, c.n)
	}
	return nil
}

func (c *ConfigurationChain) subproduct(store [][]float64, a, b int) ([]float64, error) {
	if a < 1 || b > c.n+1 || a > b {
		return nil, failure.New(failure.ModuleNotImplemented, "chain: subproduct range [%d,%d) invalid for chain of length %d", a, b, c.n)
	}
	if a == b {
		return tensor.Identity9(), nil
	}
	factors := make([][]float64, 0, b-a)
	for k := a; k < b; k++ {
		if store[k] == nil {
			return nil, failure.New(failure.ModuleNotImplemented, "chain: configuration F_%d is not set", k)
		}
		factors = append(factors, store[k])
	}
	return tensor.MatMulMany9(factors...), nil
}

func l2Diff9(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}
