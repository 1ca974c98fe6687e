// Package viscoplastic implements the Perzyna viscoplasticity module of
// spec.md §4.5: a Drucker-Prager yield surface driving an overstress-type
// (Perzyna) flow rule, a pressure-sensitive non-associative flow potential,
// WLF-shifted rate sensitivity, and linear isotropic hardening. It is a
// combined kinematic (F_p configuration) + state-variable (hardening Ξ)
// module.
//
// Tangent note (see DESIGN.md, physics/viscoplastic): the exact Jacobian
// of a scaling-and-squaring matrix exponential is not analytically
// tractable in closed form. This module instead linearizes the exponential
// update to first order (F_p^{n+1} ≈ (I+Δt·L_p_mid)·F_p^{prev}) and freezes
// the preceding-product P at its current value for the purpose of building
// its OWN Jacobian/DRdF/DRdT blocks — a modified-Newton tangent. The
// residual itself always uses the exact tensor.ExpVelocityGradient update,
// so convergence is to the true kinematics; only the iteration matrix is
// approximate, trading iteration count for analytic tractability on the
// hardest derivative in the framework.
package viscoplastic

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"

	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/physics/wlf"
	"github.com/cpmech/gomat/residual"
	"github.com/cpmech/gomat/tensor"
)

// Module is the Perzyna-Drucker-Prager viscoplasticity ResidualModule.
type Module struct {
	Slot   int // configuration slot this module owns (F_p)
	HardAt int // SolveStart of its one hardening state variable Ξ

	Y, A       float64 // Drucker-Prager tensile strength, pressure coefficient
	Q0, Q1     float64 // drag stress q(Ξ) = Q0 + Q1*Ξ
	Nexp       float64 // Perzyna rate exponent
	B          float64 // flow-potential pressure sensitivity
	H0, H1     float64 // isotropic hardening rate h(Ξ) = H0 + H1*Ξ
	Beta       float64 // F_p integration weight, 0=explicit 1=implicit
	Tref, C1, C2 float64
}

// New parses {y, a, q0, q1, n, b, h0, h1, beta, tref, c1, c2}.
func New(slot, hardAt int, prms fun.Prms) (*Module, error) {
	m := &Module{Slot: slot, HardAt: hardAt}
	for _, p := range prms {
		switch p.N {
		case "y":
			m.Y = p.V
		case "a":
			m.A = p.V
		case "q0":
			m.Q0 = p.V
		case "q1":
			m.Q1 = p.V
		case "n":
			m.Nexp = p.V
		case "b":
			m.B = p.V
		case "h0":
			m.H0 = p.V
		case "h1":
			m.H1 = p.V
		case "beta":
			m.Beta = p.V
		case "tref":
			m.Tref = p.V
		case "c1":
			m.C1 = p.V
		case "c2":
			m.C2 = p.V
		default:
			return nil, chk.Err("viscoplastic: parameter named %q is incorrect", p.N)
		}
	}
	return m, nil
}

func (m *Module) GetPrms() fun.Prms {
	return fun.Prms{
		&fun.Prm{N: "y", V: 50}, &fun.Prm{N: "a", V: 0.3},
		&fun.Prm{N: "q0", V: 10}, &fun.Prm{N: "q1", V: 1},
		&fun.Prm{N: "n", V: 1}, &fun.Prm{N: "b", V: 0.1},
		&fun.Prm{N: "h0", V: 0}, &fun.Prm{N: "h1", V: 5},
		&fun.Prm{N: "beta", V: 1},
		&fun.Prm{N: "tref", V: 296}, &fun.Prm{N: "c1", V: 17.44}, &fun.Prm{N: "c2", V: 51.6},
	}
}

func (m *Module) Name() string { return "perzyna-drucker-prager-viscoplasticity" }

func (m *Module) Role() residual.Role { return residual.RoleKinematicState }

func (m *Module) NumEquations() int { return 10 }

func (m *Module) Ownership() residual.StateOwnership {
	return residual.StateOwnership{SolveStart: m.HardAt, SolveLen: 1}
}

// drivingState holds what evaluate derives from the pulled-back driving
// stress σ̃ = PullBack(P, σ) used for the yield surface and flow potential:
// p, s (deviatoric), σ̃_eq, f, q, γ̇, n̂, and the gradients of γ̇ and n̂ with
// respect to σ̃ (needed by the approximate Jacobian).
type drivingState struct {
	p, eq, f, q, gammaDot float64
	s                     []float64 // deviatoric part of σ̃, flat9
	nHat                  []float64 // flow direction, flat9
	dGammaDotDSigmaTilde  []float64 // flat9
	dNHatDSigmaTilde      []float64 // flat9x9 (81)
	apex                  bool
}

const apexTolerance = 1e-10

func (m *Module) evaluate(sigmaTilde []float64, xi, t float64) drivingState {
	tr := sigmaTilde[0] + sigmaTilde[4] + sigmaTilde[8]
	p := tr / 3
	s := make([]float64, 9)
	copy(s, sigmaTilde)
	s[0] -= p
	s[4] -= p
	s[8] -= p
	var sDotS float64
	for _, v := range s {
		sDotS += v * v
	}
	eq := math.Sqrt(1.5 * sDotS)

	ds := drivingState{p: p, eq: eq, s: s}
	ds.apex = eq < apexTolerance

	ds.f = eq - m.A*p - m.Y
	ds.q = m.Q0 + m.Q1*xi
	overstress := ds.f / ds.q
	if overstress < 0 {
		overstress = 0
	}
	aT := wlf.Shift(t, m.Tref, m.C1, m.C2)
	ds.gammaDot = aT * math.Pow(overstress, m.Nexp)

	nHat := make([]float64, 9)
	id := tensor.Identity9()
	if !ds.apex {
		for i := range nHat {
			nHat[i] = 1.5*s[i]/eq + m.B*id[i]
		}
	} else {
		for i := range nHat {
			nHat[i] = m.B * id[i]
		}
	}
	ds.nHat = nHat

	dGammaDotDF := 0.0
	if ds.f > 0 && overstress > 0 {
		dGammaDotDF = aT * m.Nexp * math.Pow(overstress, m.Nexp-1) / ds.q
	}
	dEqDSigmaTilde := make([]float64, 9)
	dPDSigmaTilde := make([]float64, 9)
	if !ds.apex {
		for i := range dEqDSigmaTilde {
			dEqDSigmaTilde[i] = 1.5 * s[i] / eq
		}
	}
	for _, i := range []int{0, 4, 8} {
		dPDSigmaTilde[i] = 1.0 / 3.0
	}
	dFdSigmaTilde := make([]float64, 9)
	for i := range dFdSigmaTilde {
		dFdSigmaTilde[i] = dEqDSigmaTilde[i] - m.A*dPDSigmaTilde[i]
	}
	ds.dGammaDotDSigmaTilde = make([]float64, 9)
	for i := range ds.dGammaDotDSigmaTilde {
		ds.dGammaDotDSigmaTilde[i] = dGammaDotDF * dFdSigmaTilde[i]
	}

	ds.dNHatDSigmaTilde = make([]float64, 81)
	if !ds.apex {
		devProj := make([]float64, 81)
		for i := 0; i < 9; i++ {
			devProj[i*9+i] = 1
			for j := 0; j < 9; j++ {
				devProj[i*9+j] -= id[i] * id[j] / 3
			}
		}
		outer := tensor.Dyad(s, dEqDSigmaTilde)
		for i := range ds.dNHatDSigmaTilde {
			ds.dNHatDSigmaTilde[i] = 1.5 * (devProj[i]/eq - outer[i]/(eq*eq))
		}
	}
	return ds
}

// dGammaDotDXiT returns (dγ̇/dΞ, dγ̇/dT) together since both need A_T(T) and
// its T-derivative.
func (m *Module) dGammaDotDXiT(ds drivingState, t float64) (dXi, dT float64) {
	if ds.f <= 0 {
		return 0, 0
	}
	overstress := ds.f / ds.q
	if overstress <= 0 {
		return 0, 0
	}
	aT := wlf.Shift(t, m.Tref, m.C1, m.C2)
	dAT := wlfShiftDerivative(t, m.Tref, m.C1, m.C2)
	pow := math.Pow(overstress, m.Nexp)
	powM1 := math.Pow(overstress, m.Nexp-1)
	dXi = aT * m.Nexp * powM1 * (-ds.f / (ds.q * ds.q)) * m.Q1
	dT = dAT * pow
	return
}

// wlfShiftDerivative returns d(a_T)/dT in closed form.
func wlfShiftDerivative(t, tref, c1, c2 float64) float64 {
	dT := t - tref
	denom := c2 + dT
	if denom == 0 {
		return 0
	}
	aT := wlf.Shift(t, tref, c1, c2)
	dLog10ATdT := -c1 * c2 / (denom * denom)
	return aT * math.Ln10 * dLog10ATdT
}

func (m *Module) sigmaTilde(ctx residual.Context, sigma []float64) ([]float64, []float64, error) {
	p, err := ctx.Preceding(m.Slot)
	if err != nil {
		return nil, nil, err
	}
	st, err := tensor.PullBack(p, sigma)
	if err != nil {
		return nil, nil, err
	}
	return st, p, nil
}

func (m *Module) Residual(ctx residual.Context) ([]float64, error) {
	sigma := ctx.CurrentStress()
	sigmaTilde, _, err := m.sigmaTilde(ctx, sigma)
	if err != nil {
		return nil, ctx.Fail(failure.InvalidKinematics, "viscoplastic: Residual: %v", err)
	}
	xiFull := ctx.SolveCoupledState()
	xi := xiFull[m.HardAt]
	tCurr, tPrev := ctx.Temperature()
	dt := ctx.TimeIncrement()
	ds := m.evaluate(sigmaTilde, xi, tCurr)

	lp := make([]float64, 9)
	for i := range lp {
		lp[i] = ds.gammaDot * ds.nHat[i]
	}

	sigmaPrev := ctx.PreviousStress()
	sigmaTildePrev, _, err := m.sigmaTilde(ctx, sigmaPrev)
	if err != nil {
		return nil, ctx.Fail(failure.InvalidKinematics, "viscoplastic: Residual (previous): %v", err)
	}
	prevState := ctx.PreviousState()
	xiPrev := prevState[m.HardAt]
	dsPrev := m.evaluate(sigmaTildePrev, xiPrev, tPrev)
	lpPrev := make([]float64, 9)
	for i := range lpPrev {
		lpPrev[i] = dsPrev.gammaDot * dsPrev.nHat[i]
	}

	lMid := make([]float64, 9)
	for i := range lMid {
		lMid[i] = (1-m.Beta)*lpPrev[i] + m.Beta*lp[i]
	}
	fpPrev, err := ctx.PreviousConfiguration(m.Slot)
	if err != nil {
		return nil, err
	}
	expTerm := tensor.ExpVelocityGradient(lMid, dt)
	fpHat := tensor.MatMul9(expTerm, fpPrev)

	fp, err := ctx.Configuration(m.Slot)
	if err != nil {
		return nil, err
	}
	r := make([]float64, 10)
	for i := 0; i < 9; i++ {
		r[i] = fp[i] - fpHat[i]
	}

	hXi := m.H0 + m.H1*xi
	r[9] = xi - xiPrev - dt*ds.gammaDot*hXi
	return r, nil
}

func (m *Module) Jacobian(ctx residual.Context) ([]float64, error) {
	n := ctx.UnknownSize()
	jac := make([]float64, 10*n)

	sigma := ctx.CurrentStress()
	sigmaTilde, p, err := m.sigmaTilde(ctx, sigma)
	if err != nil {
		return nil, err
	}
	xiFull := ctx.SolveCoupledState()
	xi := xiFull[m.HardAt]
	tCurr, _ := ctx.Temperature()
	dt := ctx.TimeIncrement()
	ds := m.evaluate(sigmaTilde, xi, tCurr)

	pinv, err := tensor.Inv3(p)
	if err != nil {
		return nil, err
	}
	jp := tensor.Det3(p)
	left := make([]float64, 9)
	for i := range left {
		left[i] = jp * pinv[i]
	}
	dSigmaTildeDSigma := tensor.SubproductGradient(left, tensor.Transpose9(pinv))

	dLpDSigmaTilde := make([]float64, 81)
	outerTerm := tensor.Dyad(ds.nHat, ds.dGammaDotDSigmaTilde)
	for i := range dLpDSigmaTilde {
		dLpDSigmaTilde[i] = outerTerm[i] + ds.gammaDot*ds.dNHatDSigmaTilde[i]
	}
	dLpDSigma := tensor.MulSquare(9, dLpDSigmaTilde, dSigmaTildeDSigma)

	fpPrev, err := ctx.PreviousConfiguration(m.Slot)
	if err != nil {
		return nil, err
	}
	subprod := tensor.SubproductGradient(tensor.Identity9(), fpPrev) // d((I+X)*Fprev)/dX = d(X*Fprev)/dX

	dFpHatDSigma := tensor.MulSquare(9, subprod, dLpDSigma)
	for i := range dFpHatDSigma {
		dFpHatDSigma[i] *= m.Beta * dt
	}

	dGammaDotDXi, _ := m.dGammaDotDXiT(ds, tCurr)
	dLpDXi := make([]float64, 9)
	for i := range dLpDXi {
		dLpDXi[i] = ds.nHat[i] * dGammaDotDXi
	}

	dFpHatDXiVec := make([]float64, 9)
	for i := 0; i < 9; i++ {
		var s float64
		for k := 0; k < 9; k++ {
			s += subprod[i*9+k] * dLpDXi[k]
		}
		dFpHatDXiVec[i] = m.Beta * dt * s
	}

	// F_p residual rows: dR/dsigma, dR/d(own slot)=I, dR/dXi.
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			jac[i*n+j] = -dFpHatDSigma[i*9+j]
		}
	}
	colOff := 9 * (m.Slot - 1)
	for i := 0; i < 9; i++ {
		jac[i*n+colOff+i] = 1
	}
	xiCol := 9*(ctxConfigCount(ctx)) + m.HardAt
	for i := 0; i < 9; i++ {
		jac[i*n+xiCol] = -dFpHatDXiVec[i]
	}

	// hardening residual row.
	hXi := m.H0 + m.H1*xi
	dRxiDSigma := make([]float64, 9)
	for j := 0; j < 9; j++ {
		var s float64
		for k := 0; k < 9; k++ {
			s += ds.dGammaDotDSigmaTilde[k] * dSigmaTildeDSigma[k*9+j]
		}
		dRxiDSigma[j] = -dt * hXi * s
	}
	for j := 0; j < 9; j++ {
		jac[9*n+j] = dRxiDSigma[j]
	}
	jac[9*n+xiCol] = 1 - dt*(dGammaDotDXi*hXi+ds.gammaDot*m.H1)

	return jac, nil
}

// ctxConfigCount recovers n, the number of configuration slots, from
// |X| = 9n + |Ξ_s|: both UnknownSize() and the trailing SolveCoupledState()
// length are available to every module through Context.
func ctxConfigCount(ctx residual.Context) int {
	return (ctx.UnknownSize() - len(ctx.SolveCoupledState())) / 9
}

func (m *Module) DRdF(ctx residual.Context) ([]float64, error) {
	return make([]float64, 90), nil
}

func (m *Module) DRdT(ctx residual.Context) ([]float64, error) {
	sigma := ctx.CurrentStress()
	sigmaTilde, _, err := m.sigmaTilde(ctx, sigma)
	if err != nil {
		return nil, err
	}
	xiFull := ctx.SolveCoupledState()
	xi := xiFull[m.HardAt]
	tCurr, _ := ctx.Temperature()
	dt := ctx.TimeIncrement()
	ds := m.evaluate(sigmaTilde, xi, tCurr)

	_, dGammaDotDT := m.dGammaDotDXiT(ds, tCurr)
	lDT := make([]float64, 9)
	for i := range lDT {
		lDT[i] = ds.nHat[i] * dGammaDotDT
	}
	fpPrev, err := ctx.PreviousConfiguration(m.Slot)
	if err != nil {
		return nil, err
	}
	subprod := tensor.SubproductGradient(tensor.Identity9(), fpPrev)
	r := make([]float64, 10)
	for i := 0; i < 9; i++ {
		var s float64
		for k := 0; k < 9; k++ {
			s += subprod[i*9+k] * lDT[k]
		}
		r[i] = -m.Beta * dt * s
	}
	hXi := m.H0 + m.H1*xi
	r[9] = -dt * dGammaDotDT * hXi
	return r, nil
}

func (m *Module) CurrentStateVariables(ctx residual.Context) ([]float64, error) {
	return nil, nil
}

var _ residual.Module = (*Module)(nil)
