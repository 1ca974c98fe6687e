package chain

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/gomat/tensor"
)

func Test_chain01(tst *testing.T) {

	chk.PrintTitle("chain01: two-slot chain reproduces host F")

	f := tensor.Identity9()
	prevTail := map[int][]float64{2: tensor.Identity9()}
	c, err := New(2, f, f, prevTail, 0)
	if err != nil {
		tst.Fatalf("New failed: %v", err)
	}
	full, err := c.GetSubproduct(1, 3)
	if err != nil {
		tst.Fatalf("GetSubproduct failed: %v", err)
	}
	chk.Vector(tst, "F1*F2", 1e-12, full, f)
}

func Test_chain02(tst *testing.T) {

	chk.PrintTitle("chain02: setting F_2 updates F_1 to preserve the chain invariant")

	f := []float64{
		1.05, 0.0, 0.0,
		0.0, 1.02, 0.0,
		0.0, 0.0, 0.99,
	}
	prevTail := map[int][]float64{2: tensor.Identity9()}
	c, err := New(2, f, f, prevTail, 1e-9)
	if err != nil {
		tst.Fatalf("New failed: %v", err)
	}

	f2 := []float64{
		1.01, 0.0, 0.0,
		0.0, 1.0, 0.0,
		0.0, 0.0, 1.0,
	}
	if err := c.SetConfiguration(2, f2); err != nil {
		tst.Fatalf("SetConfiguration failed: %v", err)
	}
	if err := c.CheckInvariant(); err != nil {
		tst.Errorf("invariant check failed: %v", err)
	}
	full, err := c.GetSubproduct(1, 3)
	if err != nil {
		tst.Fatalf("GetSubproduct failed: %v", err)
	}
	chk.Vector(tst, "F1*F2 after update", 1e-10, full, f)
}

func Test_chain03(tst *testing.T) {

	chk.PrintTitle("chain03: subproduct gradient matches central difference")

	prevTail := map[int][]float64{
		2: []float64{1.01, 0, 0, 0, 1.0, 0, 0, 0, 1.0},
		3: []float64{1.0, 0, 0, 0, 1.02, 0, 0, 0, 1.0},
	}
	total := tensor.MatMulMany9(tensor.Identity9(), prevTail[2], prevTail[3])
	c, err := New(3, total, total, prevTail, 1e-9)
	if err != nil {
		tst.Fatalf("New failed: %v", err)
	}

	grad, err := c.GetSubproductGradient(2, 4)
	if err != nil {
		tst.Fatalf("GetSubproductGradient failed: %v", err)
	}

	h := 1e-6
	width := 2
	for idx, k := 0, 2; k < 4; idx, k = idx+1, k+1 {
		for comp := 0; comp < tensor.Dim; comp++ {
			perturbed := tensor.Copy9(prevTail[k])
			perturbed[comp] += h
			var plus, minus []float64
			if k == 2 {
				plus = tensor.MatMul9(perturbed, prevTail[3])
				minus2 := tensor.Copy9(prevTail[k])
				minus2[comp] -= h
				minus = tensor.MatMul9(minus2, prevTail[3])
			} else {
				plus = tensor.MatMul9(prevTail[2], perturbed)
				minus2 := tensor.Copy9(prevTail[k])
				minus2[comp] -= h
				minus = tensor.MatMul9(prevTail[2], minus2)
			}
			for row := 0; row < tensor.Dim; row++ {
				cd := (plus[row] - minus[row]) / (2 * h)
				analytic := grad[row*tensor.Dim*width+idx*tensor.Dim+comp]
				if absf(cd-analytic) > 1e-6 {
					tst.Errorf("gradient mismatch at row=%d k=%d comp=%d: cd=%v analytic=%v", row, k, comp, cd, analytic)
				}
			}
		}
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
