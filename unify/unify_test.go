package unify

import (
	"testing"

	"github.com/chazu/weft/value"
)

func sym(s string) value.Symbol { return value.Symbol(s) }

func v(name string) value.Variable { return value.Variable(name) }

func expr(e ...value.Value) value.Expr { return value.NewExpr(e...) }

func TestUnify(t *testing.T) {
	tests := []struct {
		name     string
		pattern  value.Value
		query    value.Value
		wantOK   bool
		bindings map[string]value.Value
	}{
		{
			name:    "equal atoms",
			pattern: sym("foo"),
			query:   sym("foo"),
			wantOK:  true,
		},
		{
			name:    "unequal atoms",
			pattern: sym("foo"),
			query:   sym("bar"),
			wantOK:  false,
		},
		{
			name:    "atom kind mismatch",
			pattern: sym("1"),
			query:   value.Int(1),
			wantOK:  false,
		},
		{
			name:     "pattern variable binds",
			pattern:  expr(sym("double"), v("x")),
			query:    expr(sym("double"), value.Int(21)),
			wantOK:   true,
			bindings: map[string]value.Value{"x": value.Int(21)},
		},
		{
			name:     "query variable binds",
			pattern:  expr(sym("color"), sym("car"), sym("red")),
			query:    expr(sym("color"), sym("car"), v("x")),
			wantOK:   true,
			bindings: map[string]value.Value{"x": sym("red")},
		},
		{
			name:    "repeated variable agrees",
			pattern: expr(sym("pair"), v("x"), v("x")),
			query:   expr(sym("pair"), value.Int(1), value.Int(1)),
			wantOK:  true,
		},
		{
			name:    "repeated variable disagrees",
			pattern: expr(sym("pair"), v("x"), v("x")),
			query:   expr(sym("pair"), value.Int(1), value.Int(2)),
			wantOK:  false,
		},
		{
			name:    "arity mismatch fails fast",
			pattern: expr(sym("f"), v("x"), v("y")),
			query:   expr(sym("f"), value.Int(1)),
			wantOK:  false,
		},
		{
			name:    "expr vs atom",
			pattern: expr(sym("f")),
			query:   sym("f"),
			wantOK:  false,
		},
		{
			name:     "nested binding",
			pattern:  expr(sym("f"), expr(sym("g"), v("x")), v("y")),
			query:    expr(sym("f"), expr(sym("g"), value.Int(3)), sym("ok")),
			wantOK:   true,
			bindings: map[string]value.Value{"x": value.Int(3), "y": sym("ok")},
		},
		{
			name:     "variable binds expression",
			pattern:  expr(sym("f"), v("x")),
			query:    expr(sym("f"), expr(sym("g"), value.Int(1))),
			wantOK:   true,
			bindings: map[string]value.Value{"x": expr(sym("g"), value.Int(1))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := Unify(tt.pattern, tt.query, NewEnv())
			if ok != tt.wantOK {
				t.Fatalf("Unify(%v, %v) ok = %v, want %v", tt.pattern, tt.query, ok, tt.wantOK)
			}
			if !ok {
				if env != nil {
					t.Error("failed unification returned a non-nil environment")
				}
				return
			}
			for name, want := range tt.bindings {
				got, bound := env.Lookup(name)
				if !bound {
					t.Errorf("variable %q not bound", name)
					continue
				}
				if !got.Equal(want) {
					t.Errorf("binding %q = %v, want %v", name, got, want)
				}
			}
		})
	}
}

func TestFailedUnifyLeaksNothing(t *testing.T) {
	base := NewEnv().Bind("z", value.Int(9))

	// First element binds x, second fails; base must be unaffected.
	pattern := expr(sym("f"), v("x"), sym("no"))
	query := expr(sym("f"), value.Int(1), sym("yes"))
	if _, ok := Unify(pattern, query, base); ok {
		t.Fatal("expected failure")
	}
	if _, bound := base.Lookup("x"); bound {
		t.Error("partial binding leaked into the caller's environment")
	}
	if got, _ := base.Lookup("z"); !got.Equal(value.Int(9)) {
		t.Error("pre-existing binding was disturbed")
	}
	if base.Len() != 1 {
		t.Errorf("base env Len() = %d, want 1", base.Len())
	}
}

func TestEnvLayering(t *testing.T) {
	e0 := NewEnv()
	e1 := e0.Bind("x", value.Int(1))
	e2 := e1.Bind("y", value.Int(2))
	e3 := e2.Bind("x", value.Int(3)) // shadows

	if got, _ := e3.Lookup("x"); !got.Equal(value.Int(3)) {
		t.Errorf("shadowed lookup = %v, want 3", got)
	}
	if got, _ := e2.Lookup("x"); !got.Equal(value.Int(1)) {
		t.Errorf("parent layer changed: x = %v, want 1", got)
	}
	if _, ok := e0.Lookup("x"); ok {
		t.Error("empty environment has bindings")
	}
}

func TestSelfBindingIsNoOp(t *testing.T) {
	env, ok := Unify(v("x"), v("x"), NewEnv())
	if !ok {
		t.Fatal("unifying a variable with itself failed")
	}
	if env.Len() != 0 {
		t.Errorf("self-unification added %d bindings, want 0", env.Len())
	}
	// Resolve must terminate and leave the variable in place.
	if got := Resolve(v("x"), env); !got.Equal(v("x")) {
		t.Errorf("Resolve($x) = %v, want $x", got)
	}
}

func TestSwappedVariablesTerminate(t *testing.T) {
	env, ok := Unify(expr(sym("f"), v("a"), v("b")), expr(sym("f"), v("b"), v("a")), NewEnv())
	if !ok {
		t.Fatal("swapped-variable unification failed")
	}
	// Resolving either variable must terminate; a -> b with the reverse
	// binding collapsed to a no-op.
	got := Resolve(expr(v("a"), v("b")), env)
	if _, isExpr := got.(value.Expr); !isExpr {
		t.Fatalf("Resolve returned %T, want an expression", got)
	}
}

func TestResolve(t *testing.T) {
	env := NewEnv().
		Bind("x", value.Int(21)).
		Bind("y", v("x")) // chained: y -> x -> 21

	tests := []struct {
		in   value.Value
		want value.Value
	}{
		{v("x"), value.Int(21)},
		{v("y"), value.Int(21)},
		{v("unbound"), v("unbound")},
		{
			expr(sym("mul"), v("x"), value.Int(2)),
			expr(sym("mul"), value.Int(21), value.Int(2)),
		},
		{sym("atom"), sym("atom")},
	}
	for _, tt := range tests {
		if got := Resolve(tt.in, env); !got.Equal(tt.want) {
			t.Errorf("Resolve(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
