// Package value defines the expression values the engine stores, matches,
// and evaluates. Values form a small algebraic type: atoms (symbols,
// numbers, booleans, strings), pattern variables, and ordered expressions.
// Values are immutable once constructed and may be freely shared.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindSymbol Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindVariable
	KindExpr
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "Symbol"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindVariable:
		return "Variable"
	case KindExpr:
		return "Expr"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is the sum type over all expression variants. Implementations are
// Symbol, Int, Float, Bool, String, Variable, and Expr; no other types
// satisfy the interface.
type Value interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Equal reports structural equality. It is recursive and
	// order-sensitive for expressions.
	Equal(other Value) bool
	// String renders the value in surface syntax.
	String() string
}

// ---------------------------------------------------------------------------
// Atom variants
// ---------------------------------------------------------------------------

// Symbol is a concrete identifier such as an operator or fact head.
type Symbol string

func (s Symbol) Kind() Kind { return KindSymbol }

func (s Symbol) Equal(other Value) bool {
	o, ok := other.(Symbol)
	return ok && o == s
}

func (s Symbol) String() string { return string(s) }

// Int is a 64-bit signed integer literal.
type Int int64

func (i Int) Kind() Kind { return KindInt }

func (i Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && o == i
}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a 64-bit floating point literal.
type Float float64

func (f Float) Kind() Kind { return KindFloat }

func (f Float) Equal(other Value) bool {
	o, ok := other.(Float)
	return ok && o == f
}

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Bool is a boolean literal.
type Bool bool

func (b Bool) Kind() Kind { return KindBool }

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o == b
}

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// String is a string literal.
type String string

func (s String) Kind() Kind { return KindString }

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && o == s
}

func (s String) String() string { return strconv.Quote(string(s)) }

// ---------------------------------------------------------------------------
// Variables and expressions
// ---------------------------------------------------------------------------

// Variable is a pattern variable. The name excludes the surface "$" sigil:
// the source text "$x" parses to Variable("x").
type Variable string

func (v Variable) Kind() Kind { return KindVariable }

func (v Variable) Equal(other Value) bool {
	o, ok := other.(Variable)
	return ok && o == v
}

func (v Variable) String() string { return "$" + string(v) }

// Name returns the variable name without the sigil.
func (v Variable) Name() string { return string(v) }

// Expr is an ordered sequence of values. The element slice must not be
// mutated after construction.
type Expr []Value

func (e Expr) Kind() Kind { return KindExpr }

func (e Expr) Equal(other Value) bool {
	o, ok := other.(Expr)
	if !ok || len(o) != len(e) {
		return false
	}
	for i, el := range e {
		if !el.Equal(o[i]) {
			return false
		}
	}
	return true
}

func (e Expr) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, el := range e {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(el.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// NewExpr builds an expression from elements.
func NewExpr(elems ...Value) Expr { return Expr(elems) }

// ---------------------------------------------------------------------------
// Structural helpers
// ---------------------------------------------------------------------------

// Head returns the concrete head symbol of an expression, or ok=false when
// the value is not an expression or its first element is not a symbol.
func Head(v Value) (Symbol, bool) {
	e, ok := v.(Expr)
	if !ok || len(e) == 0 {
		return "", false
	}
	s, ok := e[0].(Symbol)
	return s, ok
}

// Arity returns the number of argument elements of an expression, excluding
// the head. Non-expressions and empty expressions have arity 0.
func Arity(v Value) int {
	e, ok := v.(Expr)
	if !ok || len(e) == 0 {
		return 0
	}
	return len(e) - 1
}

// HeadArity extracts the (head symbol, arity) index key of a value. ok is
// false for atoms, variables, empty expressions, and expressions whose head
// is a variable or nested expression.
func HeadArity(v Value) (head string, arity int, ok bool) {
	s, hok := Head(v)
	if !hok {
		return "", 0, false
	}
	return string(s), Arity(v), true
}

// IsGround reports whether the value contains no variables.
func IsGround(v Value) bool {
	switch t := v.(type) {
	case Variable:
		return false
	case Expr:
		for _, el := range t {
			if !IsGround(el) {
				return false
			}
		}
	}
	return true
}

// Vars appends the names of all variables occurring in v, in first-occurrence
// order, skipping duplicates already present in seen.
func Vars(v Value, seen map[string]bool, out []string) []string {
	switch t := v.(type) {
	case Variable:
		if !seen[t.Name()] {
			seen[t.Name()] = true
			out = append(out, t.Name())
		}
	case Expr:
		for _, el := range t {
			out = Vars(el, seen, out)
		}
	}
	return out
}
