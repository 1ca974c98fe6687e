// Package elastic implements the linear-elasticity stress-carrier module
// of spec.md §4.5: σ̂ = push-forward through F1 of S = λ·tr(E)·I + 2μ·E,
// E the Green-Lagrange strain of F1. This is always slot 1 (the stress
// carrier) in a module chain.
package elastic

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"

	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/residual"
	"github.com/cpmech/gomat/tensor"
)

// Module is the linear-elasticity stress-carrier ResidualModule.
type Module struct {
	Lambda, Mu float64
}

// New parses {lambda, mu} from prms, matching the fun.Prms convention of
// msolid/dp.go's positional-by-name parameter parsing.
func New(prms fun.Prms) (*Module, error) {
	m := &Module{}
	for _, p := range prms {
		switch p.N {
		case "lambda":
			m.Lambda = p.V
		case "mu":
			m.Mu = p.V
		default:
			return nil, chk.Err("elastic: parameter named %q is incorrect", p.N)
		}
	}
	return m, nil
}

// GetPrms returns an example parameter set.
func (m *Module) GetPrms() fun.Prms {
	return fun.Prms{
		&fun.Prm{N: "lambda", V: 100000},
		&fun.Prm{N: "mu", V: 40000},
	}
}

func (m *Module) Name() string { return "linear-elasticity" }

func (m *Module) Role() residual.Role { return residual.RoleStressCarrier }

func (m *Module) NumEquations() int { return 9 }

func (m *Module) Ownership() residual.StateOwnership { return residual.StateOwnership{} }

// stressAndTangent computes σ̂(F1) and ∂σ̂/∂F1 (flat 9x9) together: builds
// S = λ·tr(E)·I + 2μ·E and dS/dF1 = λ·(I⊗∂trE/∂F1) + 2μ·∂E/∂F1, then hands
// both to tensor.PushForwardGradient for the F1·S·F1ᵀ/J push-forward and
// its tangent.
func (m *Module) stressAndTangent(f1 []float64) (sigma, dSigmaDF1 []float64, err error) {
	e := tensor.GreenLagrange(f1)
	trE := e[0] + e[4] + e[8]

	s := make([]float64, 9)
	for i := 0; i < 9; i++ {
		s[i] = 2 * m.Mu * e[i]
	}
	s[0] += m.Lambda * trE
	s[4] += m.Lambda * trE
	s[8] += m.Lambda * trE

	dEdF1 := tensor.GreenLagrangeGradient(f1)
	trEGrad := make([]float64, 9)
	for col := 0; col < 9; col++ {
		trEGrad[col] = dEdF1[0*9+col] + dEdF1[4*9+col] + dEdF1[8*9+col]
	}
	volTerm := tensor.Dyad(tensor.Identity9(), trEGrad)
	dSdF1 := make([]float64, 81)
	for i := range dSdF1 {
		dSdF1[i] = m.Lambda*volTerm[i] + 2*m.Mu*dEdF1[i]
	}

	return tensor.PushForwardGradient(f1, s, dSdF1)
}

func (m *Module) Residual(ctx residual.Context) ([]float64, error) {
	f1, err := ctx.Configuration(1)
	if err != nil {
		return nil, err
	}
	sigmaHat, _, err := m.stressAndTangent(f1)
	if err != nil {
		return nil, ctx.Fail(failure.InvalidKinematics, "elastic: Residual: %v", err)
	}
	sigma := ctx.CurrentStress()
	r := make([]float64, 9)
	for i := range r {
		r[i] = sigma[i] - sigmaHat[i]
	}
	return r, nil
}

func (m *Module) Jacobian(ctx residual.Context) ([]float64, error) {
	n := ctx.UnknownSize()
	jac := make([]float64, 9*n)
	for i := 0; i < 9; i++ {
		jac[i*n+i] = 1
	}

	f1, err := ctx.Configuration(1)
	if err != nil {
		return nil, err
	}
	_, dSigmaDF1, err := m.stressAndTangent(f1)
	if err != nil {
		return nil, err
	}
	_, dF1dFk, err := ctx.F1Gradients()
	if err != nil {
		return nil, err
	}
	for k, block := range dF1dFk {
		colOff := 9 * (k - 1)
		contrib := tensor.MulSquare(9, dSigmaDF1, block)
		for r := 0; r < 9; r++ {
			for c := 0; c < 9; c++ {
				jac[r*n+colOff+c] = -contrib[r*9+c]
			}
		}
	}
	return jac, nil
}

func (m *Module) DRdF(ctx residual.Context) ([]float64, error) {
	f1, err := ctx.Configuration(1)
	if err != nil {
		return nil, err
	}
	_, dSigmaDF1, err := m.stressAndTangent(f1)
	if err != nil {
		return nil, err
	}
	dF1dF, _, err := ctx.F1Gradients()
	if err != nil {
		return nil, err
	}
	contrib := tensor.MulSquare(9, dSigmaDF1, dF1dF)
	out := make([]float64, 81)
	for i := range out {
		out[i] = -contrib[i]
	}
	return out, nil
}

func (m *Module) DRdT(ctx residual.Context) ([]float64, error) {
	return make([]float64, 9), nil
}

func (m *Module) CauchyStress(ctx residual.Context) ([]float64, error) {
	return ctx.CurrentStress(), nil
}

func (m *Module) PreviousCauchyStress(ctx residual.Context) ([]float64, error) {
	return ctx.PreviousStress(), nil
}

func (m *Module) CurrentStateVariables(ctx residual.Context) ([]float64, error) {
	return nil, nil
}

var _ residual.StressCarrier = (*Module)(nil)
