// Package solver implements the global Newton-Raphson driver (spec.md
// §4.4): it composes the modules' residual and Jacobian blocks into one
// unknown vector X, runs a damped Newton iteration with an Armijo line
// search, and once converged computes the tangents ∂σ/∂F and ∂σ/∂T by
// implicit differentiation of R(X*)=0.
package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/gosl/io"

	"github.com/cpmech/gomat/cell"
	"github.com/cpmech/gomat/chain"
	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/residual"
	"github.com/cpmech/gomat/tensor"
)

// Config bundles the Newton/line-search parameters of spec.md §4.4, all
// with the spec's defaults.
type Config struct {
	MaxIter int     // default 20
	MaxLS   int     // default 5
	Alpha   float64 // Armijo parameter, default 1e-4
	TolAbs  float64 // absolute component tolerance
	TolRel  float64 // relative component tolerance
	Verbose bool
}

// DefaultConfig returns spec.md §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		MaxIter: 20,
		MaxLS:   5,
		Alpha:   1e-4,
		TolAbs:  1e-8,
		TolRel:  1e-6,
	}
}

// Inputs bundles everything the solver needs from the host for a single
// material-point call (spec.md §6).
type Inputs struct {
	TotalF, PreviousTotalF         []float64
	T, PreviousT                   float64
	Dt                             float64
	PreviousStress                 []float64
	PreviousTail                   map[int][]float64 // previous F_2..F_n
	PreviousState                  []float64          // full previous Ξ (Ξ_s then Ξ_c, module order)
	InitialSolveCoupledState       []float64          // previous Ξ_s, used as the Newton initial guess
}

// NonlinearSolver owns the unknown vector X, the configuration chain, and
// the ordered module list for one Driver call.
type NonlinearSolver struct {
	cfg     Config
	chain   *chain.ConfigurationChain
	modules []residual.Module
	carrier residual.StressCarrier

	n           int // number of configurations
	nEq         int // |X|
	nStateSolve int // |Ξ_s|

	unitScales []float64

	totalF, prevTotalF []float64
	t, tPrev           float64
	dt                 float64

	prevStress []float64
	prevState  []float64

	x []float64 // current iterate

	lastJ []float64 // Jacobian assembled at the converged iterate, refactorized by Tangents

	maxBacktracks int // largest per-iteration line-search backtrack count seen by a converged Run

	// registry and its cells give the chain-query results (configuration,
	// preceding/following products, F1 gradients) the DataCell discipline
	// of spec.md §4.1: evaluated once per Newton iteration, cleared before
	// the next one starts (spec.md §4.4 step 1), so the several modules
	// that read the same slot within one iteration share one evaluation.
	registry       *cell.Registry
	configCells    map[int]*cell.Cell[[]float64]
	precedingCells map[int]*cell.Cell[[]float64]
	followingCells map[int]*cell.Cell[[]float64]
	f1GradCell     *cell.Cell[f1Gradients]
}

// f1Gradients bundles chain.GetF1Gradients' two return values so they fit
// a single-valued Cell.
type f1Gradients struct {
	dF1dF  []float64
	dF1dFk map[int][]float64
}

// New builds a solver for the given module chain and inputs. Modules must
// be supplied in declared order with modules[0] the stress carrier.
func New(cfg Config, modules []residual.Module, in Inputs, tol float64) (*NonlinearSolver, error) {
	if len(modules) == 0 {
		return nil, failure.New(failure.ModuleNotImplemented, "solver: at least one module (the stress carrier) is required")
	}
	carrier, ok := modules[0].(residual.StressCarrier)
	if !ok || modules[0].Role() != residual.RoleStressCarrier {
		return nil, failure.New(failure.ModuleNotImplemented, "solver: modules[0] must be the stress-carrier module")
	}

	n, nStateSolve, _, nEq := ChainSize(modules)
	if nEq != 9*n+nStateSolve {
		return nil, failure.New(failure.ModuleNotImplemented, "solver: module equation count %d does not match |X|=%d (n=%d configurations, %d solve-coupled state vars)", nEq, 9*n+nStateSolve, n, nStateSolve)
	}

	c, err := chain.New(n, in.TotalF, in.PreviousTotalF, in.PreviousTail, tol)
	if err != nil {
		return nil, err
	}

	s := &NonlinearSolver{
		cfg:         cfg,
		chain:       c,
		modules:     modules,
		carrier:     carrier,
		n:           n,
		nEq:         nEq,
		nStateSolve: nStateSolve,
		totalF:      tensor.Copy9(in.TotalF),
		prevTotalF:  tensor.Copy9(in.PreviousTotalF),
		t:           in.T,
		tPrev:       in.PreviousT,
		dt:          in.Dt,
		prevStress:  tensor.Copy9(in.PreviousStress),
		prevState:   append([]float64(nil), in.PreviousState...),
	}
	s.unitScales = s.buildUnitScales()

	s.registry = cell.NewRegistry()
	s.configCells = make(map[int]*cell.Cell[[]float64], n+1)
	s.precedingCells = make(map[int]*cell.Cell[[]float64], n+1)
	s.followingCells = make(map[int]*cell.Cell[[]float64], n+1)
	for k := 1; k <= n; k++ {
		cc := &cell.Cell[[]float64]{}
		s.registry.RegisterIteration(cc)
		s.configCells[k] = cc

		pc := &cell.Cell[[]float64]{}
		s.registry.RegisterIteration(pc)
		s.precedingCells[k] = pc

		fc := &cell.Cell[[]float64]{}
		s.registry.RegisterIteration(fc)
		s.followingCells[k] = fc
	}
	s.f1GradCell = &cell.Cell[f1Gradients]{}
	s.registry.RegisterIteration(s.f1GradCell)

	// initial guess: previous stress, previous F_2..F_n, previous solve-
	// coupled state (spec.md §4.4 "Unknown assembly").
	x := make([]float64, nEq)
	copy(x[0:9], in.PreviousStress)
	for k := 2; k <= n; k++ {
		off := 9 * (k - 1)
		copy(x[off:off+9], in.PreviousTail[k])
	}
	copy(x[9*n:], in.InitialSolveCoupledState)
	s.x = x

	return s, nil
}

// ChainSize derives the number of configurations n, the solve-coupled state
// size |Ξ_s|, the carried state size |Ξ_c|, and the total equation count a
// module list implies, without constructing a solver. The host adapter
// uses this to size the [F2..Fn, Ξ_s, Ξ_c] state-vector layout before a
// solve runs.
func ChainSize(modules []residual.Module) (n, nStateSolve, nCarried, nEq int) {
	n = 1
	for _, m := range modules {
		nEq += m.NumEquations()
		own := m.Ownership()
		if own.SolveLen > 0 {
			nStateSolve = maxInt(nStateSolve, own.SolveStart+own.SolveLen)
		}
		if own.CarriedLen > 0 {
			nCarried = maxInt(nCarried, own.CarriedStart+own.CarriedLen)
		}
		if m.Role() == residual.RoleKinematic || m.Role() == residual.RoleKinematicState {
			n++
		}
	}
	return n, nStateSolve, nCarried, nEq
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// buildUnitScales assigns tol_i = tol_abs + tol_rel*scale_i per equation:
// the stress scale (‖previous σ‖, at least 1) for stress equations and 1 for
// F-block equations. State-variable equations also get 1; no module supplies
// its own scale.
func (s *NonlinearSolver) buildUnitScales() []float64 {
	scales := make([]float64, s.nEq)
	row := 0
	stressScale := l2Norm(s.prevStress)
	if stressScale < 1 {
		stressScale = 1
	}
	for _, m := range s.modules {
		neq := m.NumEquations()
		switch m.Role() {
		case residual.RoleStressCarrier:
			for i := 0; i < neq; i++ {
				scales[row+i] = stressScale
			}
		case residual.RoleKinematic:
			for i := 0; i < neq; i++ {
				scales[row+i] = 1.0
			}
		case residual.RoleStateVariable:
			for i := 0; i < neq; i++ {
				scales[row+i] = 1.0
			}
		case residual.RoleKinematicState:
			for i := 0; i < 9 && i < neq; i++ {
				scales[row+i] = 1.0
			}
			for i := 9; i < neq; i++ {
				scales[row+i] = 1.0
			}
		}
		row += neq
	}
	return scales
}

func l2Norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// decompose materializes the chain and local iterate views from x.
func (s *NonlinearSolver) decompose(x []float64) error {
	for k := 2; k <= s.n; k++ {
		off := 9 * (k - 1)
		if err := s.chain.SetConfiguration(k, x[off:off+9]); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the damped Newton iteration of spec.md §4.4 steps 1-7.
func (s *NonlinearSolver) Run() error {
	for iter := 0; iter < s.cfg.MaxIter; iter++ {
		s.registry.ClearIteration()
		if err := s.decompose(s.x); err != nil {
			return err
		}
		r, j, err := s.assemble(s.x)
		if err != nil {
			return err
		}
		if s.converged(r) {
			if s.cfg.Verbose {
				io.Pfcyan("solver: converged in %d iterations, ||R||=%.3e\n", iter, l2Norm(r))
			}
			s.lastJ = j
			return nil
		}

		neg := make([]float64, s.nEq)
		for i := range r {
			neg[i] = -r[i]
		}
		dx, err := solveLU(s.nEq, j, neg)
		if err != nil {
			return err
		}

		accepted, xTrial, backtracks, err := s.lineSearch(s.x, dx, r)
		if err != nil {
			return err
		}
		if !accepted {
			return failure.New(failure.NotConverged, "solver: line search exhausted %d backtracks at iteration %d", s.cfg.MaxLS, iter)
		}
		if backtracks > s.maxBacktracks {
			s.maxBacktracks = backtracks
		}
		s.x = xTrial
		if err := s.decompose(s.x); err != nil {
			return err
		}
		if err := s.chain.CheckInvariant(); err != nil {
			return err
		}
	}
	return failure.New(failure.NotConverged, "solver: exceeded %d Newton iterations", s.cfg.MaxIter)
}

// lineSearch implements spec.md §4.4 step 6: start λ=1, halve on rejection,
// accept when ‖R(X+λΔX)‖ ≤ (1-α·λ)·‖R(X)‖. backtracks reports how many
// halvings were needed before acceptance (0 means the full Newton step was
// taken), the signal driver.Result.PNewDt grades down from 1.0.
func (s *NonlinearSolver) lineSearch(x, dx, r0 []float64) (accepted bool, xTrial []float64, backtracks int, err error) {
	r0norm := l2Norm(r0)
	lambda := 1.0
	for ls := 0; ls < s.cfg.MaxLS; ls++ {
		trial := make([]float64, len(x))
		for i := range x {
			trial[i] = x[i] + lambda*dx[i]
		}
		s.registry.ClearIteration()
		if err := s.decompose(trial); err != nil {
			lambda /= 2
			continue
		}
		rTrial, _, err := s.assemble(trial)
		if err != nil {
			lambda /= 2
			continue
		}
		if l2Norm(rTrial) <= (1-s.cfg.Alpha*lambda)*r0norm {
			return true, trial, ls, nil
		}
		lambda /= 2
	}
	return false, nil, s.cfg.MaxLS, nil
}

// PNewDtSuggestion grades the host-facing pnewdt signal (spec.md §6) by how
// hard the converged Run had to work: 1.0 if every iteration accepted the
// full Newton step, scaling down toward 0.5 as the worst iteration's
// backtrack count approaches MaxLS (heavy line-searching, spec.md §6's
// "approaching instability" case).
func (s *NonlinearSolver) PNewDtSuggestion() float64 {
	if s.cfg.MaxLS <= 0 || s.maxBacktracks == 0 {
		return 1.0
	}
	frac := float64(s.maxBacktracks) / float64(s.cfg.MaxLS)
	pnewdt := 1.0 - 0.5*frac
	if pnewdt < 0.5 {
		pnewdt = 0.5
	}
	return pnewdt
}

// converged reports whether every residual component satisfies
// |R_i| <= tol_abs + tol_rel*scale_i.
func (s *NonlinearSolver) converged(r []float64) bool {
	for i, ri := range r {
		tol := s.cfg.TolAbs + s.cfg.TolRel*s.unitScales[i]
		if math.Abs(ri) > tol {
			return false
		}
	}
	return true
}

// assemble concatenates every module's residual and Jacobian block for
// iterate x, which must already have been decomposed into the chain.
func (s *NonlinearSolver) assemble(x []float64) (r, j []float64, err error) {
	r = make([]float64, s.nEq)
	j = make([]float64, s.nEq*s.nEq)
	ctx := &context{s: s, x: x}

	row := 0
	for _, m := range s.modules {
		neq := m.NumEquations()
		rb, err := m.Residual(ctx)
		if err != nil {
			return nil, nil, failure.WithContext(err, "module "+m.Name()+": Residual")
		}
		if len(rb) != neq {
			return nil, nil, failure.New(failure.ModuleNotImplemented, "module %s: Residual returned %d rows, want %d", m.Name(), len(rb), neq)
		}
		copy(r[row:row+neq], rb)

		jb, err := m.Jacobian(ctx)
		if err != nil {
			return nil, nil, failure.WithContext(err, "module "+m.Name()+": Jacobian")
		}
		if len(jb) != neq*s.nEq {
			return nil, nil, failure.New(failure.ModuleNotImplemented, "module %s: Jacobian returned %d entries, want %d", m.Name(), len(jb), neq*s.nEq)
		}
		for rr := 0; rr < neq; rr++ {
			copy(j[(row+rr)*s.nEq:(row+rr)*s.nEq+s.nEq], jb[rr*s.nEq:rr*s.nEq+s.nEq])
		}
		row += neq
	}
	return r, j, nil
}

// Tangents computes ∂σ/∂F (9x9) and ∂σ/∂T (length 9) at the converged X*
// by implicit differentiation of R=0: ∂X*/∂F = -J⁻¹·∂R/∂F,
// ∂X*/∂T = -J⁻¹·∂R/∂T, taking the first 9 rows (spec.md §4.4).
func (s *NonlinearSolver) Tangents() (dSigmadF []float64, dSigmadT []float64, err error) {
	if s.lastJ == nil {
		return nil, nil, failure.New(failure.ModuleNotImplemented, "solver: Tangents called before a converged Run")
	}
	s.registry.ClearIteration()
	if err := s.decompose(s.x); err != nil {
		return nil, nil, err
	}
	ctx := &context{s: s, x: s.x}

	dRdF := make([]float64, s.nEq*9)
	dRdT := make([]float64, s.nEq)
	row := 0
	for _, m := range s.modules {
		neq := m.NumEquations()
		fb, err := m.DRdF(ctx)
		if err != nil {
			return nil, nil, failure.WithContext(err, "module "+m.Name()+": DRdF")
		}
		if len(fb) != neq*9 {
			return nil, nil, failure.New(failure.ModuleNotImplemented, "module %s: DRdF returned %d entries, want %d", m.Name(), len(fb), neq*9)
		}
		for rr := 0; rr < neq; rr++ {
			copy(dRdF[(row+rr)*9:(row+rr)*9+9], fb[rr*9:rr*9+9])
		}
		tb, err := m.DRdT(ctx)
		if err != nil {
			return nil, nil, failure.WithContext(err, "module "+m.Name()+": DRdT")
		}
		if len(tb) != neq {
			return nil, nil, failure.New(failure.ModuleNotImplemented, "module %s: DRdT returned %d entries, want %d", m.Name(), len(tb), neq)
		}
		copy(dRdT[row:row+neq], tb)
		row += neq
	}

	negDRdF := make([]float64, len(dRdF))
	for i, v := range dRdF {
		negDRdF[i] = -v
	}
	negDRdT := make([]float64, len(dRdT))
	for i, v := range dRdT {
		negDRdT[i] = -v
	}

	dXdF, err := solveLUMulti(s.nEq, s.lastJ, negDRdF, 9)
	if err != nil {
		return nil, nil, err
	}
	dXdT, err := solveLU(s.nEq, s.lastJ, negDRdT)
	if err != nil {
		return nil, nil, err
	}

	dSigmadF = make([]float64, 9*9)
	for r := 0; r < 9; r++ {
		copy(dSigmadF[r*9:r*9+9], dXdF[r*9:r*9+9])
	}
	dSigmadT = dXdT[0:9]
	return dSigmadF, dSigmadT, nil
}

// X returns the converged unknown vector.
func (s *NonlinearSolver) X() []float64 { return s.x }

// Chain returns the solver's configuration chain, for the Driver to read
// converged configurations/inverses back out of after Run.
func (s *NonlinearSolver) Chain() *chain.ConfigurationChain { return s.chain }

// Stress returns the converged Cauchy stress from the stress-carrier
// module, numerically symmetrized (spec.md §6: "symmetric — enforced
// numerically by averaging").
func (s *NonlinearSolver) Stress() ([]float64, error) {
	ctx := &context{s: s, x: s.x}
	sigma, err := s.carrier.CauchyStress(ctx)
	if err != nil {
		return nil, failure.WithContext(err, "module "+s.carrier.Name()+": CauchyStress")
	}
	return symmetrize9(sigma), nil
}

func symmetrize9(t []float64) []float64 {
	out := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = 0.5 * (t[3*i+j] + t[3*j+i])
		}
	}
	return out
}

// UpdatedState assembles the post-convergence state vector in the same
// [F2..Fn, Xi_s, Xi_c] layout as the host-provided PreviousState (spec.md
// §6): Xi_s is read straight off the converged X's trailing block; Xi_c is
// assembled by asking each module with CarriedLen>0 for its
// CurrentStateVariables and placing the result at its declared
// CarriedStart.
func (s *NonlinearSolver) UpdatedState() ([]float64, error) {
	ctx := &context{s: s, x: s.x}
	carriedLen := len(s.prevState) - s.nStateSolve

	out := make([]float64, 9*(s.n-1)+s.nStateSolve+carriedLen)
	for k := 2; k <= s.n; k++ {
		fk, err := s.chain.GetConfiguration(k)
		if err != nil {
			return nil, err
		}
		copy(out[9*(k-2):9*(k-2)+9], fk)
	}

	stateOff := 9 * (s.n - 1)
	copy(out[stateOff:stateOff+s.nStateSolve], s.x[9*s.n:9*s.n+s.nStateSolve])

	carriedOff := stateOff + s.nStateSolve
	for _, m := range s.modules {
		own := m.Ownership()
		if own.CarriedLen == 0 {
			continue
		}
		cv, err := m.CurrentStateVariables(ctx)
		if err != nil {
			return nil, failure.WithContext(err, "module "+m.Name()+": CurrentStateVariables")
		}
		if len(cv) != own.CarriedLen {
			return nil, failure.New(failure.ModuleNotImplemented, "module %s: CurrentStateVariables returned %d entries, want %d", m.Name(), len(cv), own.CarriedLen)
		}
		copy(out[carriedOff+own.CarriedStart:carriedOff+own.CarriedStart+own.CarriedLen], cv)
	}
	return out, nil
}

func solveLU(n int, jFlat, rhs []float64) (x []float64, err error) {
	res, err := solveLUMulti(n, jFlat, rhs, 1)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func solveLUMulti(n int, jFlat, rhsFlat []float64, ncols int) (x []float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = failure.New(failure.SingularJacobian, "solver: LU solve panicked: %v", rec)
		}
	}()

	a := mat.NewDense(n, n, append([]float64(nil), jFlat...))
	b := mat.NewDense(n, ncols, append([]float64(nil), rhsFlat...))

	var lu mat.LU
	lu.Factorize(a)
	if cond := lu.Cond(); math.IsInf(cond, 1) || cond > 1e14 {
		return nil, failure.New(failure.SingularJacobian, "solver: Jacobian is numerically singular (cond=%.3e)", cond)
	}

	dst := mat.NewDense(n, ncols, make([]float64, n*ncols))
	if err := lu.SolveTo(dst, false, b); err != nil {
		return nil, failure.Wrap(failure.SingularJacobian, "solver: LU solve failed", err)
	}

	x = make([]float64, n*ncols)
	for i := 0; i < n; i++ {
		for c := 0; c < ncols; c++ {
			x[i*ncols+c] = dst.At(i, c)
		}
	}
	return x, nil
}
