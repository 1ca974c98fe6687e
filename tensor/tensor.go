// Package tensor implements the fixed-layout small-tensor arithmetic the
// framework needs to slice and recompose deformation gradients: determinant,
// inverse, Green-Lagrange strain, integration of a velocity-gradient
// increment into a deformation gradient update, dyadic products, and
// pull-back/push-forward between configurations.
//
// Every second-order tensor is a flat, row-major 9-element []float64 with
// index layout 00,01,02,10,11,12,20,21,22 (component (i,j) lives at 3*i+j).
// Every derivative of a second-order tensor with respect to a second-order
// tensor is a flat 9x9 []float64 with the same index ordering on both axes.
// This layout is part of the external contract and must not change.
package tensor

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
)

// Dim is the fixed layout size of a second-order 3D tensor.
const Dim = 9

// at returns the flat index of tensor component (i,j).
func at(i, j int) int { return 3*i + j }

// Identity9 returns a fresh copy of the 3x3 identity tensor.
func Identity9() []float64 {
	return []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Zero9 returns a fresh zero tensor.
func Zero9() []float64 { return make([]float64, Dim) }

// Copy9 copies src into a freshly allocated tensor.
func Copy9(src []float64) []float64 {
	dst := make([]float64, Dim)
	copy(dst, src)
	return dst
}

// Transpose9 returns Aᵀ.
func Transpose9(a []float64) []float64 {
	t := make([]float64, Dim)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[at(i, j)] = a[at(j, i)]
		}
	}
	return t
}

// MatMul9 returns A*B for two flat 3x3 tensors.
func MatMul9(a, b []float64) []float64 {
	c := make([]float64, Dim)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[at(i, k)] * b[at(k, j)]
			}
			c[at(i, j)] = s
		}
	}
	return c
}

// MatMulMany9 returns the left-to-right product of a chain of flat 3x3
// tensors; an empty chain returns the identity.
func MatMulMany9(ts ...[]float64) []float64 {
	if len(ts) == 0 {
		return Identity9()
	}
	out := Copy9(ts[0])
	for _, t := range ts[1:] {
		out = MatMul9(out, t)
	}
	return out
}

// Det3 computes the determinant of a flat 3x3 tensor.
func Det3(a []float64) float64 {
	return a[0]*(a[4]*a[8]-a[5]*a[7]) -
		a[1]*(a[3]*a[8]-a[5]*a[6]) +
		a[2]*(a[3]*a[7]-a[4]*a[6])
}

// Inv3 computes the inverse of a flat 3x3 tensor. Returns a chk.Err error
// (rather than panicking) when det(a) is not strictly positive, matching
// the configuration-chain invariant of spec.md §3: "det(F_k) > 0 for all k
// at all times; a non-positive determinant is a hard failure."
func Inv3(a []float64) (inv []float64, err error) {
	det := Det3(a)
	if det <= 0 {
		return nil, chk.Err("tensor: Inv3: determinant is non-positive: det=%v", det)
	}
	cof := la.MatAlloc(3, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			i1, i2 := (i+1)%3, (i+2)%3
			j1, j2 := (j+1)%3, (j+2)%3
			cof[j][i] = (a[at(i1, j1)]*a[at(i2, j2)] - a[at(i1, j2)]*a[at(i2, j1)]) / det
		}
	}
	inv = make([]float64, Dim)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv[at(i, j)] = cof[i][j]
		}
	}
	return inv, nil
}

// Dyad returns the dyadic (outer) product a⊗b flattened to a 9x9 matrix
// (row-major, both axes in the fixed 9-layout): (a⊗b)_{IJ} = a_I * b_J
// where I, J each range over the 9 flat tensor components.
func Dyad(a, b []float64) []float64 {
	out := make([]float64, Dim*Dim)
	for i := 0; i < Dim; i++ {
		for j := 0; j < Dim; j++ {
			out[i*Dim+j] = a[i] * b[j]
		}
	}
	return out
}

// GreenLagrange computes the Green-Lagrange strain tensor E = 1/2(FᵀF - I)
// of a deformation gradient F.
func GreenLagrange(f []float64) []float64 {
	ft := Transpose9(f)
	c := MatMul9(ft, f)
	e := make([]float64, Dim)
	for i := 0; i < Dim; i++ {
		e[i] = 0.5 * c[i]
	}
	e[0] -= 0.5
	e[4] -= 0.5
	e[8] -= 0.5
	return e
}

// GreenLagrangeGradient computes ∂E/∂F (flat 9x9), E the Green-Lagrange
// strain of F: ∂E_{ij}/∂F_{kl} = 0.5*(δ_il*F_{kj} + δ_jl*F_{ki}).
func GreenLagrangeGradient(f []float64) []float64 {
	grad := make([]float64, Dim*Dim)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			row := at(i, j)
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					col := at(k, l)
					var v float64
					if i == l {
						v += f[at(k, j)]
					}
					if j == l {
						v += f[at(k, i)]
					}
					grad[row*Dim+col] = 0.5 * v
				}
			}
		}
	}
	return grad
}

// transposeColumnIndex swaps the (k,l) column-index pair of a flat 9x9
// fourth-order-tensor block, converting a derivative with respect to Aᵀ
// into the equivalent derivative with respect to A.
func transposeColumnIndex(block []float64) []float64 {
	out := make([]float64, Dim*Dim)
	for row := 0; row < Dim; row++ {
		for k := 0; k < 3; k++ {
			for l := 0; l < 3; l++ {
				out[row*Dim+at(k, l)] = block[row*Dim+at(l, k)]
			}
		}
	}
	return out
}

// PushForwardGradient computes both σ = F·S·Fᵀ/det(F) and its derivative
// ∂σ/∂F, given a reference-configuration second-order tensor S(F) and its
// already-computed derivative dSdF (flat 9x9, ∂S/∂F). The three product-rule
// occurrences of F in F·S·Fᵀ (left factor, through S, transposed right
// factor) are assembled via SubproductGradient; the 1/det(F) factor
// contributes its own gradient term.
func PushForwardGradient(f, s, dSdF []float64) (sigma, dSigmaDF []float64, err error) {
	j := Det3(f)
	fs := MatMul9(f, s)
	t := MatMul9(fs, Transpose9(f))
	sigma = make([]float64, Dim)
	for i := range t {
		sigma[i] = t[i] / j
	}

	id := Identity9()
	sFt := MatMul9(s, Transpose9(f))
	term1 := SubproductGradient(id, sFt) // d(F)/dF occurrence, S held fixed

	leftRight := SubproductGradient(f, Transpose9(f))
	term2 := MulSquare(Dim, leftRight, dSdF) // d(S(F))/dF occurrence

	term3T := SubproductGradient(fs, id) // d/d(Fᵀ), needs transpose of column index
	term3 := transposeColumnIndex(term3T)

	dTdF := make([]float64, Dim*Dim)
	for i := range dTdF {
		dTdF[i] = term1[i] + term2[i] + term3[i]
	}

	finv, invErr := Inv3(f)
	if invErr != nil {
		return nil, nil, invErr
	}
	finvT := Transpose9(finv)
	dInvJdF := make([]float64, Dim)
	for i := range dInvJdF {
		dInvJdF[i] = -finvT[i] / j
	}

	outer := Dyad(t, dInvJdF)
	dSigmaDF = make([]float64, Dim*Dim)
	for i := range dSigmaDF {
		dSigmaDF[i] = dTdF[i]/j + outer[i]
	}
	return sigma, dSigmaDF, nil
}

// PushForward pulls a reference (Lagrangian) second-order tensor S forward
// to the current configuration through deformation gradient F:
// σ = (1/det F) · F · S · Fᵀ.
func PushForward(f, s []float64) []float64 {
	j := Det3(f)
	fs := MatMul9(f, s)
	out := MatMul9(fs, Transpose9(f))
	for i := range out {
		out[i] /= j
	}
	return out
}

// PullBack pulls a spatial (Eulerian) second-order tensor σ back to the
// reference configuration through deformation gradient F:
// S = det(F) · F⁻¹ · σ · F⁻ᵀ.
func PullBack(f, sigma []float64) (out []float64, err error) {
	finv, err := Inv3(f)
	if err != nil {
		return nil, err
	}
	j := Det3(f)
	tmp := MatMul9(finv, sigma)
	out = MatMul9(tmp, Transpose9(finv))
	for i := range out {
		out[i] *= j
	}
	return out, nil
}

// ExpVelocityGradient integrates a velocity-gradient increment into a
// multiplicative deformation-gradient update: returns exp(dt*L). Uses a
// scaling-and-squaring strategy with a third-order Padé approximant to
// exp, which is numerically stable for the modest-norm velocity-gradient
// increments a single host time step produces (spec.md §4.5's plastic
// F_p update: F_p^{t+Δt} = exp(Δt·L_p) · F_p^{prev}).
func ExpVelocityGradient(l []float64, dt float64) []float64 {
	x := make([]float64, Dim)
	for i := range x {
		x[i] = dt * l[i]
	}

	// scale down until the infinity norm (largest absolute row sum) is at
	// most 0.5, where the Padé(3) approximant is accurate, then square back up.
	norm := infNorm9(x)
	scale := 0
	for norm > 0.5 {
		norm /= 2
		scale++
	}
	factor := math.Pow(2, float64(scale))
	for i := range x {
		x[i] /= factor
	}

	result := pade3Exp(x)
	for k := 0; k < scale; k++ {
		result = MatMul9(result, result)
	}
	return result
}

// pade3Exp evaluates the [3/3] Padé approximant to exp(x) for a small flat
// 3x3 tensor x: (I - x/2 + x^2/10 - x^3/120)^-1 * (I + x/2 + x^2/10 + x^3/120).
func pade3Exp(x []float64) []float64 {
	x2 := MatMul9(x, x)
	x3 := MatMul9(x2, x)
	id := Identity9()

	num := make([]float64, Dim)
	den := make([]float64, Dim)
	for i := 0; i < Dim; i++ {
		num[i] = id[i] + 0.5*x[i] + x2[i]/10.0 + x3[i]/120.0
		den[i] = id[i] - 0.5*x[i] + x2[i]/10.0 - x3[i]/120.0
	}
	denInv, err := Inv3(den)
	if err != nil {
		// den is I plus a small perturbation for the scaled x used here;
		// a non-positive determinant indicates a pathological (not just
		// large) velocity gradient increment from the host, which is a
		// hard kinematic failure rather than something to recover from.
		chk.Panic("tensor: ExpVelocityGradient: Padé denominator is singular: %v", err)
	}
	return MatMul9(denInv, num)
}

func infNorm9(a []float64) (m float64) {
	for i := 0; i < 3; i++ {
		var rowSum float64
		for j := 0; j < 3; j++ {
			rowSum += math.Abs(a[at(i, j)])
		}
		if rowSum > m {
			m = rowSum
		}
	}
	return
}

// InverseGradient computes ∂(A⁻¹)/∂A, flattened to a 9x9 block, given the
// already-computed inverse ainv: ∂(A⁻¹)_{ij}/∂A_{kl} = -A⁻¹_{ik}·A⁻¹_{lj}.
func InverseGradient(ainv []float64) []float64 {
	grad := make([]float64, Dim*Dim)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			row := at(i, j)
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					col := at(k, l)
					grad[row*Dim+col] = -ainv[at(i, k)] * ainv[at(l, j)]
				}
			}
		}
	}
	return grad
}

// MulSquare multiplies two flat row-major n x n matrices, used to compose
// fourth-order-tensor derivative blocks (9x9, or |X|x|X| in the solver) by
// ordinary matrix multiplication of their flattened representations.
func MulSquare(n int, a, b []float64) []float64 {
	c := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a[i*n+k]
			if aik == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				c[i*n+j] += aik * b[k*n+j]
			}
		}
	}
	return c
}

// SubproductGradient computes ∂(F_a·F_{a+1}·...·F_{b-1})/∂F_k for a single
// k in [a,b), returned as a flat 9x9 block: ∂(product)_{IJ}/∂(F_k)_{KL},
// laid out row-major with I,J forming the outer (9-component) row index and
// K,L forming the inner (9-component) column index, via the product rule
// P = (F_a...F_{k-1}) · I_kron · (F_{k+1}...F_{b-1}) where I_kron is the
// fourth-order identity acting between the left and right partial products.
func SubproductGradient(left, right []float64) []float64 {
	// d(left * X * right)/dX, evaluated at X = F_k, is the fourth-order
	// tensor (left ⊗ᵢ right) with components
	// d(out_{ij})/d(X_{kl}) = left_{ik} * right_{lj}.
	grad := make([]float64, Dim*Dim)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			row := at(i, j)
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					col := at(k, l)
					grad[row*Dim+col] = left[at(i, k)] * right[at(l, j)]
				}
			}
		}
	}
	return grad
}
