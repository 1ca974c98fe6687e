package wlf

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_wlf01(tst *testing.T) {

	chk.PrintTitle("wlf01: shift factor is 1 at the reference temperature")

	aT := Shift(296.0, 296.0, 17.44, 51.6)
	if aT != 1 {
		tst.Errorf("a_T at Tref should be 1, got %v", aT)
	}
}

func Test_wlf02(tst *testing.T) {

	chk.PrintTitle("wlf02: shift factor decreases with increasing temperature above Tref")

	tref, c1, c2 := 296.0, 17.44, 51.6
	aLow := Shift(tref, tref, c1, c2)
	aHigh := Shift(tref+20, tref, c1, c2)
	if aHigh >= aLow {
		tst.Errorf("a_T should decrease above Tref: a(Tref)=%v a(Tref+20)=%v", aLow, aHigh)
	}
}
