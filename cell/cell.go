// Package cell implements the single-assignment memoization cell the
// framework uses for every derived quantity (stress, strain, yield
// function, Jacobian blocks, ...), and the two-list registry that lets the
// solver clear all iteration-scoped cells in one call between Newton
// iterations, per spec.md §3 ("Lifecycle") and §4.1.
package cell

// Clearer is the narrow interface a Registry needs to bulk-clear cells
// without knowing their value type.
type Clearer interface {
	Clear()
}

// Setter computes the value of a Cell on demand. A Setter must never read
// its own cell (spec.md §4.1); it may read any other cell, and the
// resulting evaluation order forms a DAG — a setter that (directly or
// transitively) depends on its own cell is a programming error the cache
// cannot detect and does not attempt to.
type Setter[T any] func() (T, error)

// Cell is a lazy, single-assignment cache cell. A read goes through Get:
// if the cell has not yet been evaluated, Get invokes the given setter,
// stores the result, and marks the cell evaluated; subsequent Gets return
// the cached value without recomputation until the next Clear.
type Cell[T any] struct {
	evaluated bool
	value     T
}

// Get returns the cached value, computing it via setter on first access.
func (c *Cell[T]) Get(setter Setter[T]) (T, error) {
	if c.evaluated {
		return c.value, nil
	}
	v, err := setter()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.evaluated = true
	return c.value, nil
}

// Evaluated reports whether the cell currently holds a computed value.
func (c *Cell[T]) Evaluated() bool { return c.evaluated }

// Clear resets the cell to "not evaluated" and resets its stored value to
// T's zero value, so a composite-typed cell (a slice, say) does not hold
// onto stale backing memory between iterations (spec.md §4.1).
func (c *Cell[T]) Clear() {
	c.evaluated = false
	var zero T
	c.value = zero
}

// Registry tracks which Cells are iteration-scoped (cleared at the start
// of every Newton iteration) and which are persistent (cleared only when
// the owning Driver is done with them, i.e. parameter cells and
// previous-step cells per spec.md §3).
type Registry struct {
	iteration []Clearer
	persistent []Clearer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterIteration adds c to the iteration-scoped list. Call this once,
// at the point the cell is constructed — not on every Get.
func (r *Registry) RegisterIteration(c Clearer) {
	r.iteration = append(r.iteration, c)
}

// RegisterPersistent adds c to the persistent list.
func (r *Registry) RegisterPersistent(c Clearer) {
	r.persistent = append(r.persistent, c)
}

// ClearIteration clears every iteration-scoped cell. The solver calls this
// on entry to each Newton iteration, before any setter runs in the new
// iteration (spec.md §5's ordering requirement).
func (r *Registry) ClearIteration() {
	for _, c := range r.iteration {
		c.Clear()
	}
}

// ClearAll clears every registered cell, iteration-scoped and persistent
// alike. The solver does not call it: its registry holds only
// iteration-scoped cells and is dropped together with the solver.
func (r *Registry) ClearAll() {
	r.ClearIteration()
	for _, c := range r.persistent {
		c.Clear()
	}
}
