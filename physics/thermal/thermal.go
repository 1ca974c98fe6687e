// Package thermal implements the quadratic thermal-expansion kinematic
// module of spec.md §4.5: F_θ is the unique symmetric positive-definite
// tensor with F_θᵀF_θ = 2E_θ+I, E_θ = A(T−Tref) + B(T−Tref)² for symmetric
// parameter tensors A, B.
package thermal

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/residual"
	"github.com/cpmech/gomat/tensor"
)

// Module is the thermal-expansion ResidualModule. Slot is the 1-indexed
// configuration index this module owns within the chain (2..n), set at
// construction since a module is not told its own slot by the solver.
type Module struct {
	Slot int
	Tref float64
	A, B [6]float64 // symmetric-tensor components: xx, yy, zz, xy, xz, yz
}

// New parses {tref, axx, ayy, azz, axy, axz, ayz, bxx, byy, bzz, bxy, bxz, byz}.
func New(slot int, prms fun.Prms) (*Module, error) {
	m := &Module{Slot: slot}
	for _, p := range prms {
		switch p.N {
		case "tref":
			m.Tref = p.V
		case "axx":
			m.A[0] = p.V
		case "ayy":
			m.A[1] = p.V
		case "azz":
			m.A[2] = p.V
		case "axy":
			m.A[3] = p.V
		case "axz":
			m.A[4] = p.V
		case "ayz":
			m.A[5] = p.V
		case "bxx":
			m.B[0] = p.V
		case "byy":
			m.B[1] = p.V
		case "bzz":
			m.B[2] = p.V
		case "bxy":
			m.B[3] = p.V
		case "bxz":
			m.B[4] = p.V
		case "byz":
			m.B[5] = p.V
		default:
			return nil, chk.Err("thermal: parameter named %q is incorrect", p.N)
		}
	}
	return m, nil
}

func (m *Module) GetPrms() fun.Prms {
	return fun.Prms{
		&fun.Prm{N: "tref", V: 296},
		&fun.Prm{N: "axx", V: 1e-5}, &fun.Prm{N: "ayy", V: 1e-5}, &fun.Prm{N: "azz", V: 1e-5},
		&fun.Prm{N: "axy", V: 0}, &fun.Prm{N: "axz", V: 0}, &fun.Prm{N: "ayz", V: 0},
		&fun.Prm{N: "bxx", V: 0}, &fun.Prm{N: "byy", V: 0}, &fun.Prm{N: "bzz", V: 0},
		&fun.Prm{N: "bxy", V: 0}, &fun.Prm{N: "bxz", V: 0}, &fun.Prm{N: "byz", V: 0},
	}
}

func (m *Module) Name() string { return "quadratic-thermal-expansion" }

func (m *Module) Role() residual.Role { return residual.RoleKinematic }

func (m *Module) NumEquations() int { return 9 }

func (m *Module) Ownership() residual.StateOwnership { return residual.StateOwnership{} }

// symFlat builds a flat 9-component symmetric tensor from the 6 independent
// components.
func symFlat(c [6]float64) []float64 {
	return []float64{
		c[0], c[3], c[4],
		c[3], c[1], c[5],
		c[4], c[5], c[2],
	}
}

// eOfT computes E_θ(T) = A(T-Tref) + B(T-Tref)^2 and its T-derivative.
func (m *Module) eOfT(t float64) (e, dEdT []float64) {
	dT := t - m.Tref
	a := symFlat(m.A)
	b := symFlat(m.B)
	e = make([]float64, 9)
	dEdT = make([]float64, 9)
	for i := range e {
		e[i] = a[i]*dT + b[i]*dT*dT
		dEdT[i] = a[i] + 2*b[i]*dT
	}
	return
}

// fThetaAndTangent returns F_θ(T) and dF_θ/dT, the symmetric PD square root
// of C=2E_θ+I and its Fréchet derivative along dC/dT.
func (m *Module) fThetaAndTangent(t float64) (fTheta, dFdT []float64, err error) {
	e, dEdT := m.eOfT(t)
	c := make([]float64, 9)
	dCdT := make([]float64, 9)
	for i := range c {
		c[i] = 2 * e[i]
		dCdT[i] = 2 * dEdT[i]
	}
	c[0] += 1
	c[4] += 1
	c[8] += 1

	vals, vecs, err := symEigen(c)
	if err != nil {
		return nil, nil, err
	}
	sqrtVals := [3]float64{}
	for i := 0; i < 3; i++ {
		if vals[i] <= 0 {
			return nil, nil, chk.Err("thermal: 2*E_theta+I is not positive-definite: eigenvalue %d = %v", i, vals[i])
		}
		sqrtVals[i] = math.Sqrt(vals[i])
	}
	fTheta = reconstructSym(vecs, sqrtVals)
	dFdT = frechetSqrt(dCdT, vecs, sqrtVals)
	return fTheta, dFdT, nil
}

// symEigen returns the eigenvalues and the row-major flattened eigenvector
// matrix (columns are eigenvectors) of a flat symmetric 3x3 tensor.
func symEigen(a []float64) (vals [3]float64, vecs []float64, err error) {
	sym := mat.NewSymDense(3, []float64{
		a[0], a[1], a[2],
		a[3], a[4], a[5],
		a[6], a[7], a[8],
	})
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return vals, nil, chk.Err("thermal: symmetric eigendecomposition failed")
	}
	ev := es.Values(nil)
	copy(vals[:], ev)
	var vecDense mat.Dense
	es.VectorsTo(&vecDense)
	vecs = make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vecs[3*i+j] = vecDense.At(i, j)
		}
	}
	return vals, vecs, nil
}

// reconstructSym builds V * diag(d) * Vᵀ from a flat eigenvector matrix V
// (columns are eigenvectors) and eigenvalues d.
func reconstructSym(vecs []float64, d [3]float64) []float64 {
	vd := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vd[3*i+j] = vecs[3*i+j] * d[j]
		}
	}
	return tensor.MatMul9(vd, tensor.Transpose9(vecs))
}

// frechetSqrt applies the Fréchet derivative of the symmetric matrix square
// root at C (eigenpairs vecs/sqrtVals) along direction dC: transform dC into
// the eigenbasis, scale entry (i,j) by 1/(sqrtVals_i+sqrtVals_j), transform
// back. Standard result for the derivative of a symmetric matrix function.
func frechetSqrt(dC []float64, vecs []float64, sqrtVals [3]float64) []float64 {
	vt := tensor.Transpose9(vecs)
	dcPrime := tensor.MatMul9(vt, tensor.MatMul9(dC, vecs))
	scaled := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			scaled[3*i+j] = dcPrime[3*i+j] / (sqrtVals[i] + sqrtVals[j])
		}
	}
	return tensor.MatMul9(vecs, tensor.MatMul9(scaled, vt))
}

func (m *Module) Residual(ctx residual.Context) ([]float64, error) {
	fk, err := ctx.Configuration(m.Slot)
	if err != nil {
		return nil, err
	}
	t, _ := ctx.Temperature()
	fTheta, _, err := m.fThetaAndTangent(t)
	if err != nil {
		return nil, ctx.Fail(failure.InvalidKinematics, "thermal: Residual: %v", err)
	}
	r := make([]float64, 9)
	for i := range r {
		r[i] = fk[i] - fTheta[i]
	}
	return r, nil
}

func (m *Module) Jacobian(ctx residual.Context) ([]float64, error) {
	n := ctx.UnknownSize()
	jac := make([]float64, 9*n)
	colOff := 9 * (m.Slot - 1)
	for i := 0; i < 9; i++ {
		jac[i*n+colOff+i] = 1
	}
	return jac, nil
}

func (m *Module) DRdF(ctx residual.Context) ([]float64, error) {
	return make([]float64, 81), nil
}

func (m *Module) DRdT(ctx residual.Context) ([]float64, error) {
	t, _ := ctx.Temperature()
	_, dFdT, err := m.fThetaAndTangent(t)
	if err != nil {
		return nil, ctx.Fail(failure.InvalidKinematics, "thermal: DRdT: %v", err)
	}
	r := make([]float64, 9)
	for i := range r {
		r[i] = -dFdT[i]
	}
	return r, nil
}

func (m *Module) CurrentStateVariables(ctx residual.Context) ([]float64, error) {
	return nil, nil
}

var _ residual.Module = (*Module)(nil)
