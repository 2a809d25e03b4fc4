package sexpr

import (
	"testing"

	"github.com/chazu/weft/value"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  value.Value
	}{
		{"foo", value.Symbol("foo")},
		{"add-2", value.Symbol("add-2")},
		{"-", value.Symbol("-")},
		{"=", value.Symbol("=")},
		{"42", value.Int(42)},
		{"-7", value.Int(-7)},
		{"2.5", value.Float(2.5)},
		{"-0.5", value.Float(-0.5)},
		{"1e3", value.Float(1000)},
		{"true", value.Bool(true)},
		{"false", value.Bool(false)},
		{`"hello"`, value.String("hello")},
		{`"a\"b\\c\n"`, value.String("a\"b\\c\n")},
		{"$x", value.Variable("x")},
		{"()", value.Expr{}},
		{"(color car red)", value.NewExpr(value.Symbol("color"), value.Symbol("car"), value.Symbol("red"))},
		{"(= (double $x) (mul $x 2))", value.NewExpr(
			value.Symbol("="),
			value.NewExpr(value.Symbol("double"), value.Variable("x")),
			value.NewExpr(value.Symbol("mul"), value.Variable("x"), value.Int(2)))},
		{"( nested ( deeply ( 1 ) ) )", value.NewExpr(
			value.Symbol("nested"),
			value.NewExpr(value.Symbol("deeply"), value.NewExpr(value.Int(1))))},
		{"; comment\nfoo ; trailing", value.Symbol("foo")},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"(unterminated",
		")",
		`"unterminated`,
		"$",
		`"bad \q escape"`,
	}
	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestParseAll(t *testing.T) {
	input := `
; knowledge base
(color car red)
(= (double $x) (mul $x 2))
42
`
	got, err := ParseAll(input)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ParseAll returned %d values, want 3", len(got))
	}
	if !got[2].Equal(value.Int(42)) {
		t.Errorf("third value = %s, want 42", got[2])
	}
}

func TestPrintReadIdentity(t *testing.T) {
	inputs := []string{
		"(color car red)",
		"(= (double $x) (mul $x 2))",
		"(mixed 1 2.5 true \"str\" $v ())",
	}
	for _, input := range inputs {
		v, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		back, err := Parse(Print(v))
		if err != nil {
			t.Fatalf("reparse of %q: %v", Print(v), err)
		}
		if !back.Equal(v) {
			t.Errorf("print/read of %q produced %s", input, back)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("(a b\n   $)")
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("error line = %d, want 2", pe.Line)
	}
}
