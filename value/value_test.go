package value

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same symbol", Symbol("foo"), Symbol("foo"), true},
		{"different symbol", Symbol("foo"), Symbol("bar"), false},
		{"symbol vs string", Symbol("foo"), String("foo"), false},
		{"same int", Int(42), Int(42), true},
		{"different int", Int(42), Int(43), false},
		{"int vs float", Int(1), Float(1), false},
		{"same float", Float(2.5), Float(2.5), true},
		{"bools", Bool(true), Bool(true), true},
		{"bool mismatch", Bool(true), Bool(false), false},
		{"same string", String("a b"), String("a b"), true},
		{"same variable", Variable("x"), Variable("x"), true},
		{"different variable", Variable("x"), Variable("y"), false},
		{"variable vs symbol", Variable("x"), Symbol("x"), false},
		{"empty exprs", Expr{}, Expr{}, true},
		{
			"equal exprs",
			NewExpr(Symbol("color"), Symbol("car"), Symbol("red")),
			NewExpr(Symbol("color"), Symbol("car"), Symbol("red")),
			true,
		},
		{
			"order sensitive",
			NewExpr(Symbol("a"), Symbol("b")),
			NewExpr(Symbol("b"), Symbol("a")),
			false,
		},
		{
			"length mismatch",
			NewExpr(Symbol("a"), Symbol("b")),
			NewExpr(Symbol("a")),
			false,
		},
		{
			"nested",
			NewExpr(Symbol("f"), NewExpr(Symbol("g"), Int(1))),
			NewExpr(Symbol("f"), NewExpr(Symbol("g"), Int(1))),
			true,
		},
		{
			"nested mismatch",
			NewExpr(Symbol("f"), NewExpr(Symbol("g"), Int(1))),
			NewExpr(Symbol("f"), NewExpr(Symbol("g"), Int(2))),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Equality is symmetric
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestHeadArity(t *testing.T) {
	tests := []struct {
		name      string
		v         Value
		wantHead  string
		wantArity int
		wantOK    bool
	}{
		{"headed expr", NewExpr(Symbol("double"), Variable("x")), "double", 1, true},
		{"nullary expr", NewExpr(Symbol("loop")), "loop", 0, true},
		{"variable head", NewExpr(Variable("f"), Int(1)), "", 0, false},
		{"expr head", NewExpr(NewExpr(Symbol("g")), Int(1)), "", 0, false},
		{"empty expr", Expr{}, "", 0, false},
		{"bare symbol", Symbol("foo"), "", 0, false},
		{"int", Int(1), "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, arity, ok := HeadArity(tt.v)
			if head != tt.wantHead || arity != tt.wantArity || ok != tt.wantOK {
				t.Errorf("HeadArity(%v) = (%q, %d, %v), want (%q, %d, %v)",
					tt.v, head, arity, ok, tt.wantHead, tt.wantArity, tt.wantOK)
			}
		})
	}
}

func TestIsGround(t *testing.T) {
	if !IsGround(NewExpr(Symbol("color"), Symbol("car"), Symbol("red"))) {
		t.Error("ground expression reported as non-ground")
	}
	if IsGround(NewExpr(Symbol("color"), Symbol("car"), Variable("x"))) {
		t.Error("expression with variable reported as ground")
	}
	if IsGround(NewExpr(Symbol("f"), NewExpr(Symbol("g"), Variable("y")))) {
		t.Error("nested variable not detected")
	}
	if !IsGround(Int(7)) {
		t.Error("atom reported as non-ground")
	}
}

func TestVars(t *testing.T) {
	expr := NewExpr(Symbol("f"), Variable("x"), NewExpr(Symbol("g"), Variable("y"), Variable("x")))
	got := Vars(expr, map[string]bool{}, nil)
	want := []string{"x", "y"}
	if len(got) != len(want) {
		t.Fatalf("Vars = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Vars[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStringRendering(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Symbol("foo"), "foo"},
		{Int(-3), "-3"},
		{Float(2.5), "2.5"},
		{Bool(true), "true"},
		{String("hi"), `"hi"`},
		{Variable("x"), "$x"},
		{NewExpr(Symbol("mul"), Variable("x"), Int(2)), "(mul $x 2)"},
		{Expr{}, "()"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
