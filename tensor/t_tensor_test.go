package tensor

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_tensor01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("tensor01: identity round-trips")

	f := Identity9()
	if Det3(f) != 1 {
		tst.Errorf("det(I) should be 1, got %v", Det3(f))
	}

	finv, err := Inv3(f)
	if err != nil {
		tst.Errorf("Inv3(I) failed: %v", err)
	}
	chk.Vector(tst, "inv(I)", 1e-15, finv, f)

	e := GreenLagrange(f)
	chk.Vector(tst, "E(I)", 1e-15, e, Zero9())
}

func Test_tensor02(tst *testing.T) {

	chk.PrintTitle("tensor02: non-trivial inverse and determinant")

	f := []float64{
		1.05, 0.01, 0.00,
		0.00, 1.02, 0.00,
		0.00, 0.00, 0.98,
	}
	finv, err := Inv3(f)
	if err != nil {
		tst.Fatalf("Inv3 failed: %v", err)
	}
	prod := MatMul9(f, finv)
	chk.Vector(tst, "F*Finv", 1e-13, prod, Identity9())

	_, err = Inv3([]float64{0, 0, 0, 0, 0, 0, 0, 0, 0})
	if err == nil {
		tst.Errorf("Inv3 of singular tensor should fail")
	}
}

func Test_tensor03(tst *testing.T) {

	chk.PrintTitle("tensor03: pull-back / push-forward are inverse operations")

	f := []float64{
		1.1, 0.02, 0.0,
		0.0, 0.95, 0.01,
		0.0, 0.0, 1.05,
	}
	sigma := []float64{10, 1, 0, 1, 8, 0, 0, 0, 5}
	s, err := PullBack(f, sigma)
	if err != nil {
		tst.Fatalf("PullBack failed: %v", err)
	}
	back := PushForward(f, s)
	chk.Vector(tst, "push(pull(σ))", 1e-10, back, sigma)
}

func Test_tensor04(tst *testing.T) {

	chk.PrintTitle("tensor04: exp of a zero velocity gradient is identity")

	l := Zero9()
	out := ExpVelocityGradient(l, 1.0)
	chk.Vector(tst, "exp(0)", 1e-14, out, Identity9())
}

func Test_tensor05(tst *testing.T) {

	chk.PrintTitle("tensor05: exp of a diagonal velocity gradient matches scalar exp")

	l := []float64{0.1, 0, 0, 0, -0.05, 0, 0, 0, 0.2}
	dt := 0.5
	out := ExpVelocityGradient(l, dt)
	expected := []float64{
		expf(0.1 * dt), 0, 0,
		0, expf(-0.05 * dt), 0,
		0, 0, expf(0.2 * dt),
	}
	chk.Vector(tst, "exp(diag)", 1e-10, out, expected)
}

func expf(x float64) float64 {
	// local helper to avoid importing math twice under the same name in
	// a test file that otherwise has no other use for it
	y := 1.0
	term := 1.0
	for n := 1; n < 30; n++ {
		term *= x / float64(n)
		y += term
	}
	return y
}
