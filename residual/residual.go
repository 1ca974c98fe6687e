// Package residual defines the ResidualModule contract (spec.md §4.3): the
// interface every physical sub-model (elasticity, thermal expansion,
// viscoelasticity, viscoplasticity) implements so the solver can compose an
// arbitrary chain of them into one residual vector and one Jacobian.
package residual

import "github.com/cpmech/gomat/failure"

// Role classifies which kind of residual-equation contribution a module
// makes, per spec.md §4.3's three conventions (a combined module reports
// RoleKinematicState and contributes both blocks).
type Role int

const (
	// RoleStressCarrier: slot 1, contributes 9 equations
	// σ - σ̂(F₁, T, ...) = 0. Exactly one module in a chain has this role.
	RoleStressCarrier Role = iota
	// RoleKinematic: slot k>1, contributes 9 equations
	// F_k - F̂_k(σ, T, Ξ, previous state) = 0.
	RoleKinematic
	// RoleStateVariable: contributes |Ξ_s^own| equations
	// Ξ_s^own - Ξ̂(σ, T, F_chain, previous Ξ) = 0.
	RoleStateVariable
	// RoleKinematicState: a module combining RoleKinematic and
	// RoleStateVariable, declaring NumEquations = 9 + |Ξ_s^own|.
	RoleKinematicState
)

// StateOwnership declares the index ranges, within the flat state-variable
// vector Ξ, that a module owns — disjoint for solve-coupled Ξ_s (appears in
// the Newton unknown X) versus carried Ξ_c (updated only post-convergence),
// per spec.md §3.
type StateOwnership struct {
	SolveStart, SolveLen   int // range within Ξ_s this module owns
	CarriedStart, CarriedLen int // range within Ξ_c this module owns
}

// Module is the contract a physical sub-model implements against the core.
// All methods operate on the current Newton iterate; the chain and cache
// plumbing supplying that iterate are owned by the Driver, not the module
// (spec.md §9's "back-pointer from module to owning driver" note — a
// Module is handed a Context on every call rather than holding its own
// reference to the chain).
type Module interface {
	// Name identifies the module for diagnostics and error context.
	Name() string

	// Role reports this module's contribution shape.
	Role() Role

	// NumEquations is the number of residual rows this module contributes:
	// 9 for RoleStressCarrier/RoleKinematic, |Ξ_s^own| for
	// RoleStateVariable, 9+|Ξ_s^own| for RoleKinematicState.
	NumEquations() int

	// Ownership reports which Ξ_s/Ξ_c index ranges this module owns.
	Ownership() StateOwnership

	// Residual computes this module's residual block for the current
	// iterate exposed through ctx.
	Residual(ctx Context) ([]float64, error)

	// Jacobian computes this module's NumEquations() x |X| dense block,
	// |X| = ctx.UnknownSize().
	Jacobian(ctx Context) ([]float64, error)

	// DRdF computes this module's NumEquations() x 9 block ∂R/∂F.
	DRdF(ctx Context) ([]float64, error)

	// DRdT computes this module's length-NumEquations() vector ∂R/∂T.
	DRdT(ctx Context) ([]float64, error)

	// CurrentStateVariables returns this module's updated Ξ_c
	// contribution. Only meaningful post-convergence.
	CurrentStateVariables(ctx Context) ([]float64, error)
}

// StressCarrier is implemented additionally by the one module with
// Role()==RoleStressCarrier: it alone exports a constitutive Cauchy stress
// into the reference (unsplit) frame (spec.md §4.3).
type StressCarrier interface {
	Module
	CauchyStress(ctx Context) ([]float64, error)
	PreviousCauchyStress(ctx Context) ([]float64, error)
}

// AdditionalDerivativesProvider is an optional capability (SPEC_FULL §4,
// carried forward from the original's setAdditionalDerivatives) for cross-
// module derivative terms beyond dR/dF and dR/dT — e.g. a module whose
// residual depends explicitly on the time increment Δt. No module in this
// repository implements it, and NonlinearSolver never calls it.
type AdditionalDerivativesProvider interface {
	AdditionalDerivatives(ctx Context) (map[string][]float64, error)
}

// Context is the read-only view of the current Newton iterate and chain
// state a Module needs to evaluate its residual and Jacobian blocks. The
// Driver implements Context; a Module holds no reference to it beyond the
// lifetime of a single call (spec.md §9's non-owning-reference note).
type Context interface {
	// UnknownSize returns |X|.
	UnknownSize() int

	// CurrentStress returns the current iterate's σ (the first 9 entries
	// of X).
	CurrentStress() []float64

	// PreviousStress returns the previous converged σ.
	PreviousStress() []float64

	// Configuration returns the current F_k for slot k (1-indexed,
	// matching spec.md's F_1..F_n numbering); k=1 is computed
	// algebraically by the chain, not stored directly in X.
	Configuration(k int) ([]float64, error)

	// PreviousConfiguration returns the previous converged F_k.
	PreviousConfiguration(k int) ([]float64, error)

	// Preceding returns P_i = F_1*...*F_{i-1}.
	Preceding(i int) ([]float64, error)

	// Following returns S_i = F_{i+1}*...*F_n.
	Following(i int) ([]float64, error)

	// TotalDeformationGradient returns the host-provided total F.
	TotalDeformationGradient() []float64

	// Temperature returns the current and previous temperature.
	Temperature() (current, previous float64)

	// TimeIncrement returns Δt.
	TimeIncrement() float64

	// SolveCoupledState returns the current iterate's Ξ_s (the trailing
	// block of X).
	SolveCoupledState() []float64

	// PreviousState returns the full previous-step state vector Ξ
	// (Ξ_s then Ξ_c as owned by modules in declared order).
	PreviousState() []float64

	// PreviousCarriedState returns only the Ξ_c partition of the previous
	// state vector, so a carried-state-only module (e.g. Prony-series
	// viscoelasticity) can locate its own CarriedStart/CarriedLen slice
	// without needing to know |Ξ_s| itself.
	PreviousCarriedState() []float64

	// Fail is a convenience for modules to build a properly-kinded,
	// context-tagged error.
	Fail(kind failure.Kind, format string, args ...any) error

	// F1Gradients exposes ∂F1/∂F (9x9) and ∂F1/∂F_k for k=2..n (each 9x9),
	// since F_1 = F·(F_2·...·F_n)^-1 is not itself a component of X. Only
	// the stress-carrier module (which alone reads F1) needs this; every
	// other module's residual does not depend on F1 and can ignore it.
	F1Gradients() (dF1dF []float64, dF1dFk map[int][]float64, err error)
}
