package viscoplastic

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_viscoplastic01(tst *testing.T) {

	chk.PrintTitle("viscoplastic01: zero plastic rate below the yield surface")

	m := &Module{Y: 50, A: 0.3, Q0: 10, Q1: 1, Nexp: 1, B: 0.1, Tref: 296, C1: 17.44, C2: 51.6}
	sigmaTilde := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1} // hydrostatic, eq=0 < Y -> f<0
	ds := m.evaluate(sigmaTilde, 0, 296)
	if ds.f >= 0 {
		tst.Errorf("expected f < 0 below yield, got %v", ds.f)
	}
	if ds.gammaDot != 0 {
		tst.Errorf("expected zero plastic rate below yield, got %v", ds.gammaDot)
	}
}

func Test_viscoplastic02(tst *testing.T) {

	chk.PrintTitle("viscoplastic02: positive plastic rate above the yield surface")

	m := &Module{Y: 1, A: 0.3, Q0: 10, Q1: 1, Nexp: 1, B: 0.1, Tref: 296, C1: 17.44, C2: 51.6}
	sigmaTilde := []float64{100, 0, 0, 0, 0, 0, 0, 0, 0} // strongly deviatoric
	ds := m.evaluate(sigmaTilde, 0, 296)
	if ds.f <= 0 {
		tst.Errorf("expected f > 0 above yield, got %v", ds.f)
	}
	if ds.gammaDot <= 0 {
		tst.Errorf("expected positive plastic rate above yield, got %v", ds.gammaDot)
	}
}

func Test_viscoplastic03(tst *testing.T) {

	chk.PrintTitle("viscoplastic03: apex branch engages at zero deviatoric stress")

	m := &Module{Y: 1, A: 0.3, Q0: 10, Q1: 1, Nexp: 1, B: 0.2, Tref: 296, C1: 17.44, C2: 51.6}
	ds := m.evaluate([]float64{5, 0, 0, 0, 5, 0, 0, 0, 5}, 0, 296)
	if !ds.apex {
		tst.Fatalf("expected apex branch for purely hydrostatic stress")
	}
	for i, v := range ds.nHat {
		want := 0.0
		if i == 0 || i == 4 || i == 8 {
			want = m.B
		}
		if math.Abs(v-want) > 1e-12 {
			tst.Errorf("nHat[%d] at apex: want %v got %v", i, want, v)
		}
	}
}

func Test_viscoplastic04(tst *testing.T) {

	chk.PrintTitle("viscoplastic04: drag stress increases with hardening, reducing overstress ratio")

	m := &Module{Y: 1, A: 0.3, Q0: 10, Q1: 5, Nexp: 1, B: 0.1, Tref: 296, C1: 17.44, C2: 51.6}
	sigmaTilde := []float64{100, 0, 0, 0, 0, 0, 0, 0, 0}
	dsLow := m.evaluate(sigmaTilde, 0, 296)
	dsHigh := m.evaluate(sigmaTilde, 2, 296)
	if dsHigh.gammaDot >= dsLow.gammaDot {
		tst.Errorf("higher hardening Xi should reduce plastic rate: low=%v high=%v", dsLow.gammaDot, dsHigh.gammaDot)
	}
}
