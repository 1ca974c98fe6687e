// Package failure defines the error kinds the framework surfaces across
// module/cell/solver boundaries (spec.md §7). Propagation is by ordinary Go
// error values, not exceptions: setters return an error, cell getters pass
// it on unchanged, the solver wraps a module's error with the module and
// method name (WithContext), and the host adapter maps the wrapped error's
// Kind to an exit code (spec.md §6).
package failure

import "fmt"

// Kind identifies which of the five failure categories spec.md §7 names an
// Error belongs to.
type Kind int

const (
	// ParameterMismatch: parameter vector length inconsistent with module
	// declarations. Fatal.
	ParameterMismatch Kind = iota
	// InvalidKinematics: non-positive configuration determinant, or a
	// non-invertible sub-product. Fatal.
	InvalidKinematics
	// NotConverged: Newton or line search exhausted iterations.
	// Recoverable; the host should cut the time step.
	NotConverged
	// SingularJacobian: LU factorization failed. Fatal — spec.md's own
	// worked example (scenario 6: "Expect exit code 2") overrides the more
	// generic "recoverable as not_converged" line elsewhere in spec.md §7;
	// a singular tangent at the current iterate is not a timestep-size
	// problem the host can fix by cutting Δt.
	SingularJacobian
	// ModuleNotImplemented: a required ResidualModule method is
	// unimplemented. Programmer error, fatal.
	ModuleNotImplemented
)

func (k Kind) String() string {
	switch k {
	case ParameterMismatch:
		return "parameter_mismatch"
	case InvalidKinematics:
		return "invalid_kinematics"
	case NotConverged:
		return "not_converged"
	case SingularJacobian:
		return "singular_jacobian"
	case ModuleNotImplemented:
		return "module_not_implemented"
	default:
		return "unknown"
	}
}

// Recoverable reports whether the host should be told to cut the time step
// (true) or treat the call as fatally invalid (false), per spec.md §7/§6.
// SingularJacobian is fatal, not recoverable: spec.md's scenario 6 worked
// example maps it to exit code 2.
func (k Kind) Recoverable() bool {
	return k == NotConverged
}

// Error is the context-carrying error type returned across cell, module,
// and solver boundaries. Context is a call-site record (the name of the
// cell or module that failed), never file-scoped mutable state (spec.md §9
// "Global filename state" note).
type Error struct {
	Kind    Kind
	Context string // e.g. the cell or module name that raised the failure
	Cause   error  // wrapped underlying error, if any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with a formatted context
// message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind, naming the context (e.g. the
// cell that failed to evaluate) and wrapping the underlying cause.
func Wrap(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// WithContext returns a copy of err reporting an additional context frame
// (e.g. the getter that propagated a setter's failure), matching spec.md
// §7's "getters propagate with a contextual message naming the cell that
// failed" policy.
func WithContext(err error, context string) error {
	var fe *Error
	if asError(err, &fe) {
		return &Error{Kind: fe.Kind, Context: context + ": " + fe.Context, Cause: fe.Cause}
	}
	return &Error{Kind: ModuleNotImplemented, Context: context, Cause: err}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, defaulting
// to ModuleNotImplemented when the error carries no Kind — this is treated
// as a programmer error because every path within the framework that can
// legitimately fail is expected to already return a typed *Error.
func KindOf(err error) Kind {
	var fe *Error
	if asError(err, &fe) {
		return fe.Kind
	}
	return ModuleNotImplemented
}
