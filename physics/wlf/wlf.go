// Package wlf implements the Williams-Landel-Ferry temperature-shift
// factor shared by the Prony-series viscoelastic and Perzyna viscoplastic
// modules (spec.md §4.5), factored out once per SPEC_FULL §4 rather than
// duplicated in each module as the original tardigrade-hydra sources do.
package wlf

import "math"

// Shift computes the WLF shift factor log10(a_T) = -C1*(T-Tref)/(C2+(T-Tref))
// and returns a_T = 10^log10(a_T). a_T=1 when T=Tref.
func Shift(temperature, tref, c1, c2 float64) float64 {
	dT := temperature - tref
	denom := c2 + dT
	if denom == 0 {
		return 1
	}
	log10aT := -c1 * dT / denom
	return math.Pow(10, log10aT)
}
