package viscoelastic

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_viscoelastic01(tst *testing.T) {

	chk.PrintTitle("viscoelastic01: a branch with zero strain increment decays in magnitude")

	s := branchUpdate(7.5, 1000, 5, 0, 0, 2.0)
	if s <= 0 || s >= 7.5 {
		tst.Errorf("branch state with zero strain increment should decay toward 0 but stay positive, got %v", s)
	}
}

func Test_viscoelastic02(tst *testing.T) {

	chk.PrintTitle("viscoelastic02: branch fully relaxes as reduced time -> infinity")

	s := branchUpdate(10.0, 1000, 1, 0, 0, 1e6)
	if math.Abs(s) > 1e-3 {
		tst.Errorf("branch state should relax to ~0 for huge dtr/tau, got %v", s)
	}
}

func Test_viscoelastic03(tst *testing.T) {

	chk.PrintTitle("viscoelastic03: instantaneous (tau=0) branch behaves like an elastic spring")

	s := branchUpdate(3.0, 500, 0, 0.01, 0.5, 2.0)
	want := 3.0 + 500*0.01
	if math.Abs(s-want) > 1e-9 {
		tst.Errorf("tau=0 branch should add g*dE directly: want %v got %v", want, s)
	}
}

func Test_viscoelastic04(tst *testing.T) {

	chk.PrintTitle("viscoelastic04: isochoric strain of an identity deformation gradient is zero")

	e := isochoricStrain([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	for i, v := range e {
		if math.Abs(v) > 1e-12 {
			tst.Errorf("isochoric strain[%d] of F=I should be 0, got %v", i, v)
		}
	}
}
