package elastic

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/gomat/tensor"
)

func Test_elastic01(tst *testing.T) {

	chk.PrintTitle("elastic01: stress vanishes at F1=I")

	m := &Module{Lambda: 100000, Mu: 40000}
	sigma, _, err := m.stressAndTangent(tensor.Identity9())
	if err != nil {
		tst.Fatalf("stressAndTangent failed: %v", err)
	}
	for i, v := range sigma {
		if math.Abs(v) > 1e-9 {
			tst.Errorf("sigma[%d] should be 0 at F1=I, got %v", i, v)
		}
	}
}

func Test_elastic02(tst *testing.T) {

	chk.PrintTitle("elastic02: tangent at F1=I matches the small-strain isotropic elasticity tensor")

	m := &Module{Lambda: 100000, Mu: 40000}
	_, dSigmaDF1, err := m.stressAndTangent(tensor.Identity9())
	if err != nil {
		tst.Fatalf("stressAndTangent failed: %v", err)
	}

	// C_ijkl = λ δij δkl + μ (δik δjl + δil δjk); at F1=I the Cauchy-stress
	// tangent collapses to this because push-forward/pull-back are identity.
	delta := func(a, b int) float64 {
		if a == b {
			return 1
		}
		return 0
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			row := 3*i + j
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					col := 3*k + l
					want := m.Lambda*delta(i, j)*delta(k, l) + m.Mu*(delta(i, k)*delta(j, l)+delta(i, l)*delta(j, k))
					got := dSigmaDF1[row*9+col]
					if math.Abs(got-want) > 1e-6 {
						tst.Errorf("dSigma/dF1[%d,%d,%d,%d]: want %v got %v", i, j, k, l, want, got)
					}
				}
			}
		}
	}
}

func Test_elastic03(tst *testing.T) {

	chk.PrintTitle("elastic03: analytic tangent matches central difference at a finite-strain F1")

	m := &Module{Lambda: 100000, Mu: 40000}
	f1 := []float64{
		1.05, 0.02, 0.0,
		0.01, 0.97, 0.03,
		0.0, 0.0, 1.02,
	}
	_, dSigmaDF1, err := m.stressAndTangent(f1)
	if err != nil {
		tst.Fatalf("stressAndTangent failed: %v", err)
	}

	h := 1e-6
	for col := 0; col < 9; col++ {
		plus := tensor.Copy9(f1)
		minus := tensor.Copy9(f1)
		plus[col] += h
		minus[col] -= h
		sp, _, err := m.stressAndTangent(plus)
		if err != nil {
			tst.Fatalf("stressAndTangent(plus) failed: %v", err)
		}
		sm, _, err := m.stressAndTangent(minus)
		if err != nil {
			tst.Fatalf("stressAndTangent(minus) failed: %v", err)
		}
		for row := 0; row < 9; row++ {
			fd := (sp[row] - sm[row]) / (2 * h)
			an := dSigmaDF1[row*9+col]
			if math.Abs(fd-an) > 1e-4*math.Max(1, math.Abs(an)) {
				tst.Errorf("dSigma/dF1[row=%d,col=%d]: analytic=%v finite-diff=%v", row, col, an, fd)
			}
		}
	}
}
