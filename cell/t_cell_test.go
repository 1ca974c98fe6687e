package cell

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_cell01(tst *testing.T) {

	chk.PrintTitle("cell01: lazy evaluation happens once")

	calls := 0
	var c Cell[float64]
	setter := func() (float64, error) {
		calls++
		return 42, nil
	}

	v, err := c.Get(setter)
	if err != nil || v != 42 {
		tst.Fatalf("unexpected Get result: v=%v err=%v", v, err)
	}
	v, err = c.Get(setter)
	if err != nil || v != 42 {
		tst.Fatalf("unexpected second Get result: v=%v err=%v", v, err)
	}
	if calls != 1 {
		tst.Errorf("setter should run exactly once, ran %d times", calls)
	}
}

func Test_cell02(tst *testing.T) {

	chk.PrintTitle("cell02: clear resets evaluated flag and value")

	var c Cell[[]float64]
	_, err := c.Get(func() ([]float64, error) { return []float64{1, 2, 3}, nil })
	if err != nil {
		tst.Fatalf("Get failed: %v", err)
	}
	if !c.Evaluated() {
		tst.Errorf("cell should be evaluated")
	}
	c.Clear()
	if c.Evaluated() {
		tst.Errorf("cell should not be evaluated after Clear")
	}
	if c.value != nil {
		tst.Errorf("cell value should be reset to nil slice, got %v", c.value)
	}
}

func Test_cell03(tst *testing.T) {

	chk.PrintTitle("cell03: registry clears iteration cells but not persistent ones")

	reg := NewRegistry()

	var iterCell, persistCell Cell[int]
	reg.RegisterIteration(&iterCell)
	reg.RegisterPersistent(&persistCell)

	iterCell.Get(func() (int, error) { return 1, nil })
	persistCell.Get(func() (int, error) { return 2, nil })

	reg.ClearIteration()
	if iterCell.Evaluated() {
		tst.Errorf("iteration cell should be cleared")
	}
	if !persistCell.Evaluated() {
		tst.Errorf("persistent cell should survive ClearIteration")
	}

	reg.ClearAll()
	if persistCell.Evaluated() {
		tst.Errorf("persistent cell should be cleared by ClearAll")
	}
}
