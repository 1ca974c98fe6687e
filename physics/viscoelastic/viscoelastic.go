// Package viscoelastic implements the Prony-series linear-viscoelasticity
// stress-carrier module of spec.md §4.5: a volumetric/isochoric split of
// the elastic deformation, each Maxwell branch integrated by a
// generalized-midpoint rule with parameter α∈[0,1] and a WLF-shifted
// reduced time increment, the branch stresses summed and pushed forward
// through F1 exactly as physics/elastic does for its constant-modulus
// stress. This mirrors the original tardigrade-hydra sources, where
// linear viscoelasticity is a stress-carrier specialization of linear
// elasticity (its residual class derives from the elasticity residual
// class) rather than a module that only tracks history on the side.
package viscoelastic

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"

	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/physics/wlf"
	"github.com/cpmech/gomat/residual"
	"github.com/cpmech/gomat/tensor"
)

// Module is the Prony-series viscoelasticity ResidualModule.
type Module struct {
	CarriedAt          int // CarriedStart this module owns in Ξ_c
	Alpha              float64
	VolModuli, VolTaus []float64
	IsoModuli, IsoTaus []float64
	Tref, C1, C2       float64
}

// New parses {alpha, tref, c1, c2, nvol, niso, vol_modulus_i, vol_tau_i,
// iso_modulus_i, iso_tau_i}. Branch counts are read first so the remaining
// per-branch parameters can be sized.
func New(carriedAt int, prms fun.Prms) (*Module, error) {
	m := &Module{CarriedAt: carriedAt}
	var nVol, nIso int
	index := map[string]*fun.Prm{}
	for _, p := range prms {
		index[p.N] = p
	}
	if p, ok := index["nvol"]; ok {
		nVol = int(p.V)
	}
	if p, ok := index["niso"]; ok {
		nIso = int(p.V)
	}
	m.VolModuli = make([]float64, nVol)
	m.VolTaus = make([]float64, nVol)
	m.IsoModuli = make([]float64, nIso)
	m.IsoTaus = make([]float64, nIso)
	for _, p := range prms {
		switch p.N {
		case "alpha":
			m.Alpha = p.V
		case "tref":
			m.Tref = p.V
		case "c1":
			m.C1 = p.V
		case "c2":
			m.C2 = p.V
		case "nvol", "niso":
			// consumed above
		default:
			if err := m.assignBranchParam(p.N, p.V); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Module) assignBranchParam(name string, v float64) error {
	var idx int
	if scanBranchName(name, "vol_modulus_", &idx) {
		m.VolModuli[idx] = v
		return nil
	}
	if scanBranchName(name, "vol_tau_", &idx) {
		m.VolTaus[idx] = v
		return nil
	}
	if scanBranchName(name, "iso_modulus_", &idx) {
		m.IsoModuli[idx] = v
		return nil
	}
	if scanBranchName(name, "iso_tau_", &idx) {
		m.IsoTaus[idx] = v
		return nil
	}
	return chk.Err("viscoelastic: parameter named %q is incorrect", name)
}

// scanBranchName reports whether name is prefix followed by a decimal
// branch index, writing the index through idx.
func scanBranchName(name, prefix string, idx *int) bool {
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return false
	}
	n := 0
	for _, c := range name[len(prefix):] {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	*idx = n
	return true
}

// GetPrms returns an example single-volumetric/single-isochoric-branch
// parameter set.
func (m *Module) GetPrms() fun.Prms {
	return fun.Prms{
		&fun.Prm{N: "alpha", V: 0},
		&fun.Prm{N: "tref", V: 296}, &fun.Prm{N: "c1", V: 17.44}, &fun.Prm{N: "c2", V: 51.6},
		&fun.Prm{N: "nvol", V: 1}, &fun.Prm{N: "niso", V: 1},
		&fun.Prm{N: "vol_modulus_0", V: 50000}, &fun.Prm{N: "vol_tau_0", V: 10},
		&fun.Prm{N: "iso_modulus_0", V: 20000}, &fun.Prm{N: "iso_tau_0", V: 10},
	}
}

func (m *Module) Name() string { return "prony-viscoelasticity" }

func (m *Module) Role() residual.Role { return residual.RoleStressCarrier }

func (m *Module) NumEquations() int { return 9 }

func (m *Module) carriedLen() int { return len(m.VolModuli) + 6*len(m.IsoModuli) }

func (m *Module) Ownership() residual.StateOwnership {
	return residual.StateOwnership{CarriedStart: m.CarriedAt, CarriedLen: m.carriedLen()}
}

// stressAndTangent evaluates the trial stress-carrier formula at the
// current Newton iterate: every Prony branch's generalized-midpoint update
// (the same branchUpdate CurrentStateVariables applies post-convergence),
// evaluated here against the current trial F1 rather than only once
// convergence is reached, summed into one reference-configuration stress
// S, then pushed forward through F1 exactly as physics/elastic does. The
// WLF shift's temperature dependence feeds dtr (and so every branch's
// effective modulus) but its own tangent is not threaded into DRdT, which
// returns zero. physics/elastic's DRdT is zero too, there because its
// stress does not depend on T at all.
func (m *Module) stressAndTangent(ctx residual.Context) (sigma, dSigmaDF1 []float64, err error) {
	f1, err := ctx.Configuration(1)
	if err != nil {
		return nil, nil, err
	}
	own, dLnJ, dEIso, dtr, err := m.branchIncrements(ctx)
	if err != nil {
		return nil, nil, err
	}

	nVol := len(m.VolModuli)
	var pVol, keffVol float64
	for i := 0; i < nVol; i++ {
		pVol += branchUpdate(own[i], m.VolModuli[i], m.VolTaus[i], dLnJ, m.Alpha, dtr)
		keffVol += branchEffModulus(m.VolModuli[i], m.VolTaus[i], m.Alpha, dtr)
	}

	var sIso [6]float64
	var keffIso float64
	for i := 0; i < len(m.IsoModuli); i++ {
		base := nVol + 6*i
		keffIso += branchEffModulus(m.IsoModuli[i], m.IsoTaus[i], m.Alpha, dtr)
		for c := 0; c < 6; c++ {
			sIso[c] += branchUpdate(own[base+c], m.IsoModuli[i], m.IsoTaus[i], dEIso[c], m.Alpha, dtr)
		}
	}

	s := sym6To9(sIso)
	s[0] += pVol
	s[4] += pVol
	s[8] += pVol

	isoGrad, err := isoStrainGradient(f1)
	if err != nil {
		return nil, nil, err
	}
	f1inv, err := tensor.Inv3(f1)
	if err != nil {
		return nil, nil, err
	}
	f1invT := tensor.Transpose9(f1inv)
	volGrad := tensor.Dyad(tensor.Identity9(), f1invT)

	dSdF1 := make([]float64, 81)
	for i := range dSdF1 {
		dSdF1[i] = keffIso*isoGrad[i] + keffVol*volGrad[i]
	}

	return tensor.PushForwardGradient(f1, s, dSdF1)
}

// branchIncrements gathers everything Residual/Jacobian/CurrentStateVariables
// share: every branch's previous carried value, the WLF-shifted reduced
// time increment, and the volumetric/isochoric strain increments since the
// previous converged step.
func (m *Module) branchIncrements(ctx residual.Context) (own []float64, dLnJ float64, dEIso [6]float64, dtr float64, err error) {
	f1, err := ctx.Configuration(1)
	if err != nil {
		return nil, 0, dEIso, 0, err
	}
	f1Prev, err := ctx.PreviousConfiguration(1)
	if err != nil {
		return nil, 0, dEIso, 0, err
	}
	t, _ := ctx.Temperature()
	dt := ctx.TimeIncrement()
	aT := wlf.Shift(t, m.Tref, m.C1, m.C2)
	dtr = dt * aT

	prevCarried := ctx.PreviousCarriedState()
	own = prevCarried[m.CarriedAt : m.CarriedAt+m.carriedLen()]

	dLnJ = math.Log(tensor.Det3(f1)) - math.Log(tensor.Det3(f1Prev))
	eIso := isochoricStrain(f1)
	eIsoPrev := isochoricStrain(f1Prev)
	for i := range dEIso {
		dEIso[i] = eIso[i] - eIsoPrev[i]
	}
	return own, dLnJ, dEIso, dtr, nil
}

// branchEffModulus is ∂(branchUpdate)/∂(dE), the effective instantaneous
// modulus one branch contributes to the stress-carrier Jacobian.
func branchEffModulus(modulus, tau, alpha, dtr float64) float64 {
	if tau <= 0 {
		return modulus
	}
	ratio := dtr / tau
	return modulus / (1 + (1-alpha)*ratio)
}

// sym6To9 reassembles a flat symmetric 3x3 tensor from its 6 independent
// components (xx,yy,zz,xy,xz,yz), the inverse of sym9To6.
func sym6To9(c [6]float64) []float64 {
	return []float64{
		c[0], c[3], c[4],
		c[3], c[1], c[5],
		c[4], c[5], c[2],
	}
}

// isoStrainGradient computes ∂E_iso/∂F1 (flat 9x9), E_iso the symmetric,
// volume-corrected deviatoric Green-Lagrange strain tensor isochoricStrain
// extracts to 6 components: with F̂=J^-1/3*F1 and C=F1ᵀF1,
// E_iso = J^-2/3*(E0 - tr(E0)/3*I), E0 the unscaled Green-Lagrange strain,
// so ∂E_iso/∂F1 = J^-2/3*(∂E0/∂F1 - (1/3)*C⊗∂lnJ/∂F1) deviatoric-projected.
func isoStrainGradient(f1 []float64) ([]float64, error) {
	j := tensor.Det3(f1)
	s2 := math.Pow(j, -2.0/3.0)
	c := tensor.MatMul9(tensor.Transpose9(f1), f1)
	g := tensor.GreenLagrangeGradient(f1)
	f1inv, err := tensor.Inv3(f1)
	if err != nil {
		return nil, err
	}
	f1invT := tensor.Transpose9(f1inv)

	full := make([]float64, 81)
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			full[row*9+col] = s2 * (g[row*9+col] - c[row]*f1invT[col]/3.0)
		}
	}
	trGrad := make([]float64, 9)
	for col := 0; col < 9; col++ {
		trGrad[col] = full[0*9+col] + full[4*9+col] + full[8*9+col]
	}
	for _, row := range [3]int{0, 4, 8} {
		for col := 0; col < 9; col++ {
			full[row*9+col] -= trGrad[col] / 3.0
		}
	}
	return full, nil
}

func (m *Module) Residual(ctx residual.Context) ([]float64, error) {
	sigmaHat, _, err := m.stressAndTangent(ctx)
	if err != nil {
		return nil, ctx.Fail(failure.InvalidKinematics, "prony-viscoelasticity: Residual: %v", err)
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
	_, dSigmaDF1, err := m.stressAndTangent(ctx)
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
	_, dSigmaDF1, err := m.stressAndTangent(ctx)
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

// DRdT returns zero: the stress-carrier residual's only direct T-dependence
// runs through the WLF shift folded into dtr, and that tangent is
// deliberately not threaded through (see stressAndTangent's doc comment).
func (m *Module) DRdT(ctx residual.Context) ([]float64, error) {
	return make([]float64, 9), nil
}

func (m *Module) CauchyStress(ctx residual.Context) ([]float64, error) {
	return ctx.CurrentStress(), nil
}

func (m *Module) PreviousCauchyStress(ctx residual.Context) ([]float64, error) {
	return ctx.PreviousStress(), nil
}

// sym9To6 extracts the 6 independent components (xx,yy,zz,xy,xz,yz) of a
// flat symmetric 3x3 tensor.
func sym9To6(t []float64) [6]float64 {
	return [6]float64{t[0], t[4], t[8], t[1], t[2], t[5]}
}

// isochoricStrain returns the deviatoric (isochoric) part of the
// Green-Lagrange strain of f, via the volume-preserving F̂=J^-1/3*F split.
func isochoricStrain(f []float64) [6]float64 {
	j := tensor.Det3(f)
	scale := math.Pow(j, -1.0/3.0)
	fHat := make([]float64, 9)
	for i := range fHat {
		fHat[i] = scale * f[i]
	}
	e := tensor.GreenLagrange(fHat)
	tr := (e[0] + e[4] + e[8]) / 3
	e[0] -= tr
	e[4] -= tr
	e[8] -= tr
	return sym9To6(e)
}

// CurrentStateVariables updates every Maxwell branch by the generalized-
// midpoint recursion (spec.md §4.5): for tau*Ṡ+S=g*Ė,
// S^{n+1} = [S^n*(1-α*Δtr/tau) + g*ΔE] / (1+(1-α)*Δtr/tau), Δtr the WLF-
// shifted reduced time increment.
func (m *Module) CurrentStateVariables(ctx residual.Context) ([]float64, error) {
	own, dLnJ, dEIso, dtr, err := m.branchIncrements(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]float64, m.carriedLen())
	nVol := len(m.VolModuli)
	for i := 0; i < nVol; i++ {
		out[i] = branchUpdate(own[i], m.VolModuli[i], m.VolTaus[i], dLnJ, m.Alpha, dtr)
	}
	for i := 0; i < len(m.IsoModuli); i++ {
		base := nVol + 6*i
		for c := 0; c < 6; c++ {
			out[base+c] = branchUpdate(own[base+c], m.IsoModuli[i], m.IsoTaus[i], dEIso[c], m.Alpha, dtr)
		}
	}
	return out, nil
}

func branchUpdate(sPrev, modulus, tau, dE, alpha, dtr float64) float64 {
	if tau <= 0 {
		return sPrev + modulus*dE
	}
	ratio := dtr / tau
	return (sPrev*(1-alpha*ratio) + modulus*dE) / (1 + (1-alpha)*ratio)
}

var _ residual.StressCarrier = (*Module)(nil)
