package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is the terminal result of a cursor whose alternatives
	// have all been tried. It is not a fault: it simply means no further
	// solutions exist.
	ErrExhausted = errors.New("vm: evaluation exhausted")

	// ErrNoMatch is returned by grounded functions that do not apply to
	// their arguments. It drives the Fail transition (falling back to
	// rule rewriting) instead of surfacing to the caller.
	ErrNoMatch = errors.New("vm: grounded function does not match")
)

// RuntimeFault reports a defect in compiled code or the machine itself:
// an unbound variable, a stack underflow, a malformed operand. Unlike a
// match failure it aborts the evaluation instead of backtracking.
type RuntimeFault struct {
	Op  Opcode
	Pos int
	Msg string
}

func (f *RuntimeFault) Error() string {
	return fmt.Sprintf("vm: runtime fault at %04d %s: %s", f.Pos, f.Op, f.Msg)
}

// BudgetError reports that an evaluation exceeded its step budget or
// wall-clock bound. Solutions yielded before the budget ran out remain
// valid.
type BudgetError struct {
	Steps    uint64 // instructions dispatched before the abort
	Deadline bool   // true when the wall-clock bound tripped, not the step budget
}

func (e *BudgetError) Error() string {
	if e.Deadline {
		return fmt.Sprintf("vm: wall-clock budget exceeded after %d instructions", e.Steps)
	}
	return fmt.Sprintf("vm: step budget exhausted after %d instructions", e.Steps)
}

// CompileError reports a malformed source expression, such as a special
// form with the wrong number of arguments.
type CompileError struct {
	Expr string
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("vm: cannot compile %s: %s", e.Expr, e.Msg)
}
