// Package driver implements the per-call orchestrator of spec.md §2's data-
// flow paragraph and §3's "Lifecycle": built once per quadrature-point-
// per-host-increment from a Config (module chain + solver tolerances), it
// wires that chain into a solver.NonlinearSolver, runs it to convergence,
// and extracts the Cauchy stress, updated state vector, and tangents the
// host adapter needs. A Driver holds only its Config: every Run builds a
// fresh solver, so nothing carries over from one Run to the next.
package driver

import (
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/gomat/chain"
	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/residual"
	"github.com/cpmech/gomat/solver"
)

// Config bundles everything a Driver needs at construction (SPEC_FULL §2:
// a Driver is built programmatically from this struct):
// modules in declared order (modules[0] must be the stress carrier, per
// solver.New's contract), the Newton/line-search tolerances, and the
// configuration_tol gate on the chain invariant.
type Config struct {
	Modules          []residual.Module
	Solver           solver.Config
	ConfigurationTol float64 // default chain.DefaultTolerance if zero
	Verbose          bool
}

// Driver runs one material-point call to convergence and exposes its
// outputs.
type Driver struct {
	cfg Config
}

// New validates cfg and returns a Driver ready for Run. Modules are not
// instantiated here — the caller builds them (each physics package's New
// takes fun.Prms) and passes the finished chain in; hostadapter.Call is
// handed an already-built Driver.
func New(cfg Config) (*Driver, error) {
	if len(cfg.Modules) == 0 {
		return nil, failure.New(failure.ModuleNotImplemented, "driver: at least one module is required")
	}
	if cfg.Modules[0].Role() != residual.RoleStressCarrier {
		return nil, failure.New(failure.ModuleNotImplemented, "driver: modules[0] must declare Role()==RoleStressCarrier")
	}
	if cfg.ConfigurationTol <= 0 {
		cfg.ConfigurationTol = chain.DefaultTolerance
	}
	if cfg.Verbose {
		cfg.Solver.Verbose = true
	}
	return &Driver{cfg: cfg}, nil
}

// Modules returns the driver's module chain, for a caller (the host
// adapter) that needs to size the state-vector layout before Run.
func (d *Driver) Modules() []residual.Module { return d.cfg.Modules }

// Result is everything the host needs back from one Run (spec.md §6).
// PNewDt is graded by solver.NonlinearSolver.PNewDtSuggestion on a
// non-error Run (1.0 for a clean Newton solve, down toward 0.5 for one that
// needed heavy line-search backtracking); the host adapter derives the 0
// case itself from the error kind a failed Run returns (spec.md §7's
// propagation policy: no partial outputs on failure, so a failed Run
// yields no Result at all).
type Result struct {
	Stress   []float64 // updated Cauchy stress (9), symmetrized
	State    []float64 // updated [F2..Fn, Xi_s, Xi_c] state vector, input layout
	DSigmaDF []float64 // 9x9 material tangent
	DSigmaDT []float64 // length-9 temperature sensitivity
	PNewDt   float64
}

// Run executes one Newton solve to convergence (solver.NonlinearSolver.Run,
// spec.md §4.4 steps 1-7) and extracts the host-facing outputs. On error,
// the caller must leave its previous outputs untouched (spec.md §7); Run
// itself never returns a partial Result alongside an error.
func (d *Driver) Run(in solver.Inputs) (*Result, error) {
	ns, err := solver.New(d.cfg.Solver, d.cfg.Modules, in, d.cfg.ConfigurationTol)
	if err != nil {
		return nil, err
	}

	if err := ns.Run(); err != nil {
		return nil, err
	}

	stress, err := ns.Stress()
	if err != nil {
		return nil, err
	}
	state, err := ns.UpdatedState()
	if err != nil {
		return nil, err
	}
	dSigmadF, dSigmadT, err := ns.Tangents()
	if err != nil {
		return nil, err
	}

	if d.cfg.Verbose {
		io.Pfcyan("driver: converged, sigma_00=%.6e\n", stress[0])
	}

	return &Result{
		Stress:   stress,
		State:    state,
		DSigmaDF: dSigmadF,
		DSigmaDT: dSigmadT,
		PNewDt:   ns.PNewDtSuggestion(),
	}, nil
}
