package thermal

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_thermal01(tst *testing.T) {

	chk.PrintTitle("thermal01: F_theta is the identity at T=Tref")

	m := &Module{Slot: 2, Tref: 296, A: [6]float64{1e-5, 1e-5, 1e-5, 0, 0, 0}}
	fTheta, _, err := m.fThetaAndTangent(296)
	if err != nil {
		tst.Fatalf("fThetaAndTangent failed: %v", err)
	}
	for i, v := range fTheta {
		want := 0.0
		if i == 0 || i == 4 || i == 8 {
			want = 1
		}
		if math.Abs(v-want) > 1e-10 {
			tst.Errorf("F_theta[%d] at Tref: want %v got %v", i, want, v)
		}
	}
}

func Test_thermal02(tst *testing.T) {

	chk.PrintTitle("thermal02: F_theta*F_theta matches 2*E_theta+I")

	m := &Module{
		Slot: 2, Tref: 296,
		A: [6]float64{1e-5, 2e-5, 1.5e-5, 1e-6, 0, 2e-6},
		B: [6]float64{1e-8, 0, 5e-9, 0, 0, 0},
	}
	fTheta, _, err := m.fThetaAndTangent(350)
	if err != nil {
		tst.Fatalf("fThetaAndTangent failed: %v", err)
	}
	e, _ := m.eOfT(350)
	c := make([]float64, 9)
	for i := range c {
		c[i] = 2 * e[i]
	}
	c[0] += 1
	c[4] += 1
	c[8] += 1

	f2 := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += fTheta[3*i+k] * fTheta[3*k+j]
			}
			f2[3*i+j] = s
		}
	}
	for i := range c {
		if math.Abs(f2[i]-c[i]) > 1e-8 {
			tst.Errorf("F_theta^2[%d]: want %v got %v", i, c[i], f2[i])
		}
	}
}

func Test_thermal03(tst *testing.T) {

	chk.PrintTitle("thermal03: dF_theta/dT matches central difference")

	m := &Module{
		Slot: 2, Tref: 296,
		A: [6]float64{1e-5, 2e-5, 1.5e-5, 1e-6, 0, 2e-6},
		B: [6]float64{1e-8, 0, 5e-9, 0, 0, 0},
	}
	t0 := 340.0
	h := 1e-3
	_, dFdT, err := m.fThetaAndTangent(t0)
	if err != nil {
		tst.Fatalf("fThetaAndTangent failed: %v", err)
	}
	fp, _, err := m.fThetaAndTangent(t0 + h)
	if err != nil {
		tst.Fatalf("fThetaAndTangent(t0+h) failed: %v", err)
	}
	fm, _, err := m.fThetaAndTangent(t0 - h)
	if err != nil {
		tst.Fatalf("fThetaAndTangent(t0-h) failed: %v", err)
	}
	for i := range dFdT {
		fd := (fp[i] - fm[i]) / (2 * h)
		if math.Abs(fd-dFdT[i]) > 1e-5 {
			tst.Errorf("dF_theta/dT[%d]: analytic=%v finite-diff=%v", i, dFdT[i], fd)
		}
	}
}
