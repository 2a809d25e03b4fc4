// Package unify implements structural pattern matching over values and the
// persistent variable environments that make backtracking cheap: binding
// never mutates an environment, it layers a new one over its parent, so a
// choice point can hold an environment and restore it exactly.
package unify

import (
	"github.com/chazu/weft/value"
)

// Env is a persistent mapping from variable names to values. Each Bind
// returns a child layer sharing the parent; existing layers are never
// mutated. The nil Env is the valid empty environment.
type Env struct {
	parent *Env
	name   string
	val    value.Value
}

// NewEnv returns the empty environment.
func NewEnv() *Env { return nil }

// Bind returns a new environment layering name=v over e.
func (e *Env) Bind(name string, v value.Value) *Env {
	return &Env{parent: e, name: name, val: v}
}

// Parent returns the environment without its innermost binding layer.
func (e *Env) Parent() *Env {
	if e == nil {
		return nil
	}
	return e.parent
}

// Lookup returns the innermost binding for name.
func (e *Env) Lookup(name string) (value.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.val, true
		}
	}
	return nil, false
}

// Len returns the number of binding layers, counting shadowed ones.
func (e *Env) Len() int {
	n := 0
	for cur := e; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// Resolve substitutes bound variables in v, recursively. Unbound variables
// are left in place.
func Resolve(v value.Value, env *Env) value.Value {
	switch t := v.(type) {
	case value.Variable:
		if bound, ok := env.Lookup(t.Name()); ok {
			return Resolve(bound, env)
		}
		return t
	case value.Expr:
		out := make(value.Expr, len(t))
		for i, el := range t {
			out[i] = Resolve(el, env)
		}
		return out
	default:
		return v
	}
}

// Unify matches pattern against query, extending env with variable bindings.
// Variables on either side bind to the first value encountered for their
// name and must agree, by structural equality, on every later occurrence.
// Expressions unify element-wise only when lengths are equal; an arity
// mismatch fails immediately with no partial bindings retained. Atoms unify
// by equality only.
//
// On failure the returned environment is nil and ok is false; env itself is
// never modified, so a failed attempt leaks nothing into the next one.
func Unify(pattern, query value.Value, env *Env) (*Env, bool) {
	// Pattern variable: bind or check agreement.
	if pv, ok := pattern.(value.Variable); ok {
		return bindOrAgree(pv, query, env)
	}
	// Query variable against a non-variable pattern: bind the other way.
	// This makes matching usable both for applying rule patterns to ground
	// queries and for matching variable-bearing queries against facts.
	if qv, ok := query.(value.Variable); ok {
		return bindOrAgree(qv, pattern, env)
	}

	switch p := pattern.(type) {
	case value.Expr:
		q, ok := query.(value.Expr)
		if !ok || len(q) != len(p) {
			return nil, false
		}
		for i := range p {
			env, ok = Unify(p[i], q[i], env)
			if !ok {
				return nil, false
			}
		}
		return env, true
	default:
		if pattern.Equal(query) {
			return env, true
		}
		return nil, false
	}
}

func bindOrAgree(v value.Variable, other value.Value, env *Env) (*Env, bool) {
	if bound, ok := env.Lookup(v.Name()); ok {
		return Unify(bound, other, env)
	}
	// Chase variable-to-variable links so a binding chain can never loop
	// back on itself; Resolve relies on chains terminating.
	for {
		ov, isVar := other.(value.Variable)
		if !isVar {
			break
		}
		if ov.Name() == v.Name() {
			// Binding a variable to itself is a no-op.
			return env, true
		}
		next, bound := env.Lookup(ov.Name())
		if !bound {
			break
		}
		other = next
	}
	return env.Bind(v.Name(), other), true
}
