// Package hostadapter implements the UMAT-shaped entry point of spec.md
// §6: it transposes the host's column-major 3×3 arrays into the
// framework's row-major tensors (and back), encodes/decodes the
// version-tagged state-variable vector, and maps a Driver failure to the
// host's three-way exit code (spec.md §7). Nothing here performs
// constitutive computation; it is pure marshaling at the boundary.
package hostadapter

import (
	"math"

	"github.com/cpmech/gosl/fun"

	"github.com/cpmech/gomat/driver"
	"github.com/cpmech/gomat/failure"
	"github.com/cpmech/gomat/solver"
	"github.com/cpmech/gomat/tensor"
)

// StateVectorMagic versions the state-variable vector's on-the-wire layout
// (SPEC_FULL §7's Open Question resolution): a host-held history buffer is
// prefixed with this value, bit-cast to a float64, ahead of the
// [F2..Fn, Ξ_s, Ξ_c] layout spec.md §6 names. A mismatch is a fatal
// parameter_mismatch rather than a silent misread of an incompatible
// layout.
const StateVectorMagic uint32 = 0x476f4d31 // "GoM1"

func magicFloat() float64 {
	return math.Float64frombits(uint64(StateVectorMagic))
}

// EncodeState prepends the version tag to a framework-layout state vector,
// for the host to store between calls.
func EncodeState(moduleState []float64) []float64 {
	out := make([]float64, len(moduleState)+1)
	out[0] = magicFloat()
	copy(out[1:], moduleState)
	return out
}

// DecodeState strips and validates the version tag, returning the
// framework-layout [F2..Fn, Ξ_s, Ξ_c] vector. A zero-length raw vector (the
// host's very first call for a material point, with no history yet) is
// accepted as "no previous state" and decodes to a zero-filled vector of
// the given size — EncodeState was never called for it.
func DecodeState(raw []float64, expectedLen int) ([]float64, error) {
	if len(raw) == 0 {
		return make([]float64, expectedLen), nil
	}
	if len(raw) != expectedLen+1 {
		return nil, failure.New(failure.ParameterMismatch, "hostadapter: state vector has %d entries, want %d (magic prefix + %d)", len(raw), expectedLen+1, expectedLen)
	}
	if math.Float64bits(raw[0]) != uint64(StateVectorMagic) {
		return nil, failure.New(failure.ParameterMismatch, "hostadapter: state vector magic mismatch, got %#x want %#x", math.Float64bits(raw[0]), uint64(StateVectorMagic))
	}
	out := make([]float64, expectedLen)
	copy(out, raw[1:])
	return out, nil
}

// ColumnMajorToRowMajor transposes a flat 3x3 tensor from the host's
// Fortran-style column-major storage to the framework's row-major layout
// (spec.md §6). Transposition is its own inverse, so the same function
// also converts back on the way out; RowMajorToColumnMajor is kept as a
// distinct name purely so call sites read as "entering"/"leaving".
func ColumnMajorToRowMajor(a []float64) []float64 { return tensor.Transpose9(a) }

// RowMajorToColumnMajor is ColumnMajorToRowMajor's inverse.
func RowMajorToColumnMajor(a []float64) []float64 { return tensor.Transpose9(a) }

// ParamsFromFlat pairs the host's flat parameter array with the positional
// names a physics module's GetPrms() documents, building the fun.Prms a
// module's New expects (spec.md §6: "per-model layout documented by each
// physics module").
func ParamsFromFlat(names []string, flat []float64) (fun.Prms, error) {
	if len(names) != len(flat) {
		return nil, failure.New(failure.ParameterMismatch, "hostadapter: parameter vector has %d entries, module declares %d", len(flat), len(names))
	}
	prms := make(fun.Prms, len(names))
	for i, n := range names {
		prms[i] = &fun.Prm{N: n, V: flat[i]}
	}
	return prms, nil
}

// Exit codes, per spec.md §6: "Adapter returns 0 on success, 1 on
// recoverable non-convergence (host should cut timestep), 2 on fatal error
// (invalid input, singular system)."
const (
	ExitSuccess     = 0
	ExitRecoverable = 1
	ExitFatal       = 2
)

// ExitCode maps a Driver/solver error to the host's three-way exit code
// (spec.md §7's propagation policy): nil maps to success, a recoverable
// failure.Kind (not_converged only) to 1, everything else, singular_jacobian
// included, to 2.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if failure.KindOf(err).Recoverable() {
		return ExitRecoverable
	}
	return ExitFatal
}

// pNewDtForError grades the failure-path pnewdt (spec.md §6's "0 on hard
// failure" case, refined by the recoverable/fatal split spec.md §7 draws):
// a recoverable failure still tells the host a smaller time step might
// succeed, a fatal one tells it not to retry at all.
func pNewDtForError(err error) float64 {
	if failure.KindOf(err).Recoverable() {
		return 0.5
	}
	return 0
}

// Inputs mirrors spec.md §6's entry-point arguments, plus the previous
// Cauchy stress: real UMAT subroutines pass stress as an in/out array
// (old stress on entry, updated stress on exit) rather than recomputing it
// from history, and this framework's solver needs it both as the Newton
// initial guess and as the stress-carrier module's PreviousCauchyStress —
// an adapter-level addition to spec.md's entry-point list, not a change to
// the state-vector layout it names.
type Inputs struct {
	CurrentF, PreviousF  []float64 // column-major 3x3
	CurrentT, PreviousT  float64
	Dt, Time             float64
	PreviousStress       []float64 // column-major 3x3 (UMAT's STRESS array, in)
	PreviousStateRaw     []float64 // magic-prefixed, or empty on first call
	ParameterNames       []string
	ParameterValues      []float64
	CharacteristicLength float64 // advisory
	ElementID, IntPtID   int     // advisory, diagnostics only
}

// Outputs mirrors spec.md §6's return values. On a non-zero ExitCode,
// Stress and StateRaw are left nil: the caller must leave its own output
// buffers untouched (spec.md §7's "no partial outputs on failure").
type Outputs struct {
	Stress   []float64 // column-major 3x3, symmetric
	StateRaw []float64 // magic-prefixed, framework layout
	DSigmaDF []float64 // 9x9, framework's fixed flat layout (not host-native)
	DSigmaDT []float64 // length 9
	PNewDt   float64
	ExitCode int
}

// Call wraps a Driver with the state/parameter decoding its entry point
// needs, and exposes Run, the actual UMAT-shaped call.
type Call struct {
	Drv *driver.Driver
}

// Run performs one material-point call. Parameters are taken to already
// be baked into Drv's modules (the host constructs them once per element
// type, not per call); ParameterNames/ParameterValues are still decoded
// and validated here so a parameter-count mismatch is caught as the fatal
// parameter_mismatch spec.md §7 names, even though this framework does not
// reconstruct modules per call.
func (c *Call) Run(in Inputs) Outputs {
	modules := c.Drv.Modules()
	n, nStateSolve, nCarried, _ := solver.ChainSize(modules)
	stateLen := 9*(n-1) + nStateSolve + nCarried

	if _, err := ParamsFromFlat(in.ParameterNames, in.ParameterValues); err != nil {
		return Outputs{ExitCode: ExitCode(err), PNewDt: pNewDtForError(err)}
	}

	prevState, err := DecodeState(in.PreviousStateRaw, stateLen)
	if err != nil {
		return Outputs{ExitCode: ExitCode(err), PNewDt: pNewDtForError(err)}
	}

	prevTail := make(map[int][]float64, n-1)
	for k := 2; k <= n; k++ {
		off := 9 * (k - 2)
		prevTail[k] = prevState[off : off+9]
	}
	stateOff := 9 * (n - 1)

	solverIn := solver.Inputs{
		TotalF:                   ColumnMajorToRowMajor(in.CurrentF),
		PreviousTotalF:           ColumnMajorToRowMajor(in.PreviousF),
		T:                        in.CurrentT,
		PreviousT:                in.PreviousT,
		Dt:                       in.Dt,
		PreviousStress:           ColumnMajorToRowMajor(in.PreviousStress),
		PreviousTail:             prevTail,
		PreviousState:            prevState[stateOff:],
		InitialSolveCoupledState: append([]float64(nil), prevState[stateOff:stateOff+nStateSolve]...),
	}

	res, err := c.Drv.Run(solverIn)
	if err != nil {
		return Outputs{ExitCode: ExitCode(err), PNewDt: pNewDtForError(err)}
	}

	return Outputs{
		Stress:   RowMajorToColumnMajor(res.Stress),
		StateRaw: EncodeState(res.State),
		DSigmaDF: res.DSigmaDF,
		DSigmaDT: res.DSigmaDT,
		PNewDt:   res.PNewDt,
		ExitCode: ExitSuccess,
	}
}
