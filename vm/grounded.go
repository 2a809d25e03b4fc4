package vm

import (
	"github.com/chazu/weft/value"
)

// GroundedFunc is a built-in operation invoked by (symbol, arity). It
// returns the result value, or ErrNoMatch when it does not apply to the
// given arguments — which sends the query on to rule rewriting instead of
// failing the evaluation.
type GroundedFunc func(args []value.Value) (value.Value, error)

type groundedKey struct {
	name  string
	arity int
}

// Registry maps (symbol, arity) to grounded functions. A nil Registry is
// valid and empty. Registries are populated at construction time and read
// concurrently afterwards; Register must not race with evaluation.
type Registry struct {
	funcs map[groundedKey]GroundedFunc
}

// NewRegistry creates an empty grounded-function registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[groundedKey]GroundedFunc)}
}

// Register binds a grounded function to a head symbol and arity.
func (r *Registry) Register(name string, arity int, fn GroundedFunc) {
	r.funcs[groundedKey{name: name, arity: arity}] = fn
}

// Lookup returns the grounded function for (name, arity), if registered.
func (r *Registry) Lookup(name string, arity int) (GroundedFunc, bool) {
	if r == nil {
		return nil, false
	}
	fn, ok := r.funcs[groundedKey{name: name, arity: arity}]
	return fn, ok
}

// ---------------------------------------------------------------------------
// Built-in grounded functions
// ---------------------------------------------------------------------------

// DefaultRegistry returns a registry with the standard arithmetic,
// comparison, boolean, and expression-manipulation builtins.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("add", 2, arith(func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }))
	r.Register("sub", 2, arith(func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }))
	r.Register("mul", 2, arith(func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }))
	r.Register("div", 2, divide)
	r.Register("mod", 2, modulo)

	r.Register("lt", 2, compare(func(a, b float64) bool { return a < b }))
	r.Register("gt", 2, compare(func(a, b float64) bool { return a > b }))
	r.Register("le", 2, compare(func(a, b float64) bool { return a <= b }))
	r.Register("ge", 2, compare(func(a, b float64) bool { return a >= b }))
	r.Register("eq", 2, func(args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Equal(args[1])), nil
	})

	r.Register("not", 1, func(args []value.Value) (value.Value, error) {
		b, ok := args[0].(value.Bool)
		if !ok {
			return nil, ErrNoMatch
		}
		return value.Bool(!b), nil
	})
	r.Register("and", 2, boolOp(func(a, b bool) bool { return a && b }))
	r.Register("or", 2, boolOp(func(a, b bool) bool { return a || b }))

	r.Register("cons-atom", 2, func(args []value.Value) (value.Value, error) {
		tail, ok := args[1].(value.Expr)
		if !ok {
			return nil, ErrNoMatch
		}
		out := make(value.Expr, 0, len(tail)+1)
		out = append(out, args[0])
		return append(out, tail...), nil
	})
	r.Register("car-atom", 1, func(args []value.Value) (value.Value, error) {
		e, ok := args[0].(value.Expr)
		if !ok || len(e) == 0 {
			return nil, ErrNoMatch
		}
		return e[0], nil
	})
	r.Register("cdr-atom", 1, func(args []value.Value) (value.Value, error) {
		e, ok := args[0].(value.Expr)
		if !ok || len(e) == 0 {
			return nil, ErrNoMatch
		}
		return e[1:], nil
	})
	r.Register("size-atom", 1, func(args []value.Value) (value.Value, error) {
		e, ok := args[0].(value.Expr)
		if !ok {
			return nil, ErrNoMatch
		}
		return value.Int(len(e)), nil
	})

	return r
}

// numeric extracts a numeric argument, reporting whether it was a float.
func numeric(v value.Value) (int64, float64, bool, bool) {
	switch n := v.(type) {
	case value.Int:
		return int64(n), float64(n), false, true
	case value.Float:
		return 0, float64(n), true, true
	}
	return 0, 0, false, false
}

// arith builds a binary numeric function preserving integer arithmetic
// when both arguments are integers.
func arith(ints func(a, b int64) int64, floats func(a, b float64) float64) GroundedFunc {
	return func(args []value.Value) (value.Value, error) {
		ai, af, aIsFloat, aok := numeric(args[0])
		bi, bf, bIsFloat, bok := numeric(args[1])
		if !aok || !bok {
			return nil, ErrNoMatch
		}
		if aIsFloat || bIsFloat {
			return value.Float(floats(af, bf)), nil
		}
		return value.Int(ints(ai, bi)), nil
	}
}

func divide(args []value.Value) (value.Value, error) {
	ai, af, aIsFloat, aok := numeric(args[0])
	bi, bf, bIsFloat, bok := numeric(args[1])
	if !aok || !bok {
		return nil, ErrNoMatch
	}
	if aIsFloat || bIsFloat {
		if bf == 0 {
			return nil, ErrNoMatch
		}
		return value.Float(af / bf), nil
	}
	if bi == 0 {
		return nil, ErrNoMatch
	}
	return value.Int(ai / bi), nil
}

func modulo(args []value.Value) (value.Value, error) {
	a, aok := args[0].(value.Int)
	b, bok := args[1].(value.Int)
	if !aok || !bok || b == 0 {
		return nil, ErrNoMatch
	}
	return value.Int(int64(a) % int64(b)), nil
}

func compare(cmp func(a, b float64) bool) GroundedFunc {
	return func(args []value.Value) (value.Value, error) {
		_, af, _, aok := numeric(args[0])
		_, bf, _, bok := numeric(args[1])
		if !aok || !bok {
			return nil, ErrNoMatch
		}
		return value.Bool(cmp(af, bf)), nil
	}
}

func boolOp(op func(a, b bool) bool) GroundedFunc {
	return func(args []value.Value) (value.Value, error) {
		a, aok := args[0].(value.Bool)
		b, bok := args[1].(value.Bool)
		if !aok || !bok {
			return nil, ErrNoMatch
		}
		return value.Bool(op(bool(a), bool(b))), nil
	}
}
