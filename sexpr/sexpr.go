// Package sexpr reads and prints the surface syntax of expressions:
// parenthesized lists of symbols, numbers, booleans, quoted strings, and
// $-sigiled variables, with ; line comments.
package sexpr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/weft/value"
)

// ParseError reports a syntax error with its position in the input.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sexpr: %d:%d: %s", e.Line, e.Column, e.Msg)
}

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

// Reader scans expressions from an input string. A reader is single-use.
type Reader struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewReader creates a reader over the input.
func NewReader(input string) *Reader {
	r := &Reader{input: input, line: 1, col: 0}
	r.readChar()
	return r
}

// Parse reads a single expression from the input.
func Parse(input string) (value.Value, error) {
	r := NewReader(input)
	v, err := r.Read()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, r.errorf("empty input")
	}
	return v, nil
}

// ParseAll reads every expression from the input.
func ParseAll(input string) ([]value.Value, error) {
	r := NewReader(input)
	var out []value.Value
	for {
		v, err := r.Read()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		out = append(out, v)
	}
}

// Read returns the next expression, or (nil, nil) at end of input.
func (r *Reader) Read() (value.Value, error) {
	r.skipSpace()
	switch {
	case r.ch == 0:
		return nil, nil
	case r.ch == '(':
		return r.readList()
	case r.ch == ')':
		return nil, r.errorf("unexpected )")
	case r.ch == '"':
		return r.readString()
	case r.ch == '$':
		return r.readVariable()
	default:
		return r.readAtom()
	}
}

func (r *Reader) readChar() {
	if r.readPos >= len(r.input) {
		r.ch = 0
		r.pos = r.readPos
		return
	}
	ch, size := utf8.DecodeRuneInString(r.input[r.readPos:])
	r.ch = ch
	r.pos = r.readPos
	r.readPos += size
	if ch == '\n' {
		r.line++
		r.col = 0
	} else {
		r.col++
	}
}

func (r *Reader) errorf(format string, args ...interface{}) error {
	return &ParseError{Line: r.line, Column: r.col, Msg: fmt.Sprintf(format, args...)}
}

// skipSpace consumes whitespace and ; line comments.
func (r *Reader) skipSpace() {
	for {
		for r.ch != 0 && unicode.IsSpace(r.ch) {
			r.readChar()
		}
		if r.ch != ';' {
			return
		}
		for r.ch != 0 && r.ch != '\n' {
			r.readChar()
		}
	}
}

func (r *Reader) readList() (value.Value, error) {
	r.readChar() // consume (
	elems := value.Expr{}
	for {
		r.skipSpace()
		if r.ch == 0 {
			return nil, r.errorf("unterminated list")
		}
		if r.ch == ')' {
			r.readChar()
			return elems, nil
		}
		el, err := r.Read()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
}

func (r *Reader) readString() (value.Value, error) {
	r.readChar() // consume opening quote
	var sb strings.Builder
	for {
		switch r.ch {
		case 0, '\n':
			return nil, r.errorf("unterminated string")
		case '"':
			r.readChar()
			return value.String(sb.String()), nil
		case '\\':
			r.readChar()
			switch r.ch {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return nil, r.errorf("unknown escape \\%c", r.ch)
			}
			r.readChar()
		default:
			sb.WriteRune(r.ch)
			r.readChar()
		}
	}
}

func (r *Reader) readVariable() (value.Value, error) {
	r.readChar() // consume $
	name := r.readToken()
	if name == "" {
		return nil, r.errorf("$ must be followed by a variable name")
	}
	return value.Variable(name), nil
}

// readAtom scans a token and classifies it as a number, boolean, or symbol.
func (r *Reader) readAtom() (value.Value, error) {
	tok := r.readToken()
	if tok == "" {
		return nil, r.errorf("unexpected character %q", r.ch)
	}
	switch tok {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return value.Int(i), nil
	}
	if looksNumeric(tok) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, r.errorf("malformed number %q", tok)
		}
		return value.Float(f), nil
	}
	return value.Symbol(tok), nil
}

// looksNumeric reports whether a token that failed integer parsing should
// still be treated as a number rather than a symbol. Symbols like "add-2"
// or "-" stay symbols; "2.5", "-0.5", and "1e9" are numbers.
func looksNumeric(tok string) bool {
	i := 0
	if tok[0] == '+' || tok[0] == '-' {
		i = 1
	}
	return i < len(tok) && tok[i] >= '0' && tok[i] <= '9'
}

func (r *Reader) readToken() string {
	start := r.pos
	for r.ch != 0 && !unicode.IsSpace(r.ch) && r.ch != '(' && r.ch != ')' && r.ch != '"' && r.ch != ';' {
		r.readChar()
	}
	return r.input[start:r.pos]
}

// ---------------------------------------------------------------------------
// Printer
// ---------------------------------------------------------------------------

// Print renders a value in surface syntax. Reading the result back yields a
// structurally equal value.
func Print(v value.Value) string {
	return v.String()
}

// PrintAll renders values one per line.
func PrintAll(vs []value.Value) string {
	lines := make([]string, len(vs))
	for i, v := range vs {
		lines[i] = Print(v)
	}
	return strings.Join(lines, "\n")
}
