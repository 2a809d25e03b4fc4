package vm

import (
	"fmt"

	"github.com/chazu/weft/value"
)

// Special form head symbols recognized by the compiler.
const (
	formIf        = "if"
	formLet       = "let"
	formQuote     = "quote"
	formSuperpose = "superpose"
	formCollapse  = "collapse"
	formMatch     = "match"
	formAddAtom   = "add-atom"
	formRemAtom   = "remove-atom"
)

// Compile translates an expression into a chunk. Compilation walks the
// expression once, has no side effects, and produces the same chunk for
// structurally equal inputs, so results are safe to cache.
func Compile(expr value.Value) (*Chunk, error) {
	c := &compiler{chunk: NewChunk(), b: NewBytecodeBuilder(), scope: map[string]int{}}
	if err := c.term(expr); err != nil {
		return nil, err
	}
	c.b.Emit(OpReturn)
	c.chunk.Code = c.b.Bytes()
	return c.chunk, nil
}

type compiler struct {
	chunk *Chunk
	b     *BytecodeBuilder
	// scope counts lexically visible let bindings per variable name, so
	// a variable compiles to a binding load only where one can exist.
	scope map[string]int
}

func (c *compiler) errf(expr value.Value, format string, args ...interface{}) error {
	return &CompileError{Expr: expr.String(), Msg: fmt.Sprintf(format, args...)}
}

// term compiles any value: atoms and out-of-scope variables load as
// constants, in-scope variables load their binding, expressions evaluate.
func (c *compiler) term(v value.Value) error {
	switch t := v.(type) {
	case value.Variable:
		if c.scope[t.Name()] > 0 {
			c.b.EmitUint16(OpLoadVar, c.chunk.AddConstant(t))
			return nil
		}
		c.b.EmitUint16(OpPushConst, c.chunk.AddConstant(t))
		return nil
	case value.Expr:
		return c.expr(t)
	default:
		c.b.EmitUint16(OpPushConst, c.chunk.AddConstant(v))
		return nil
	}
}

func (c *compiler) expr(e value.Expr) error {
	if head, ok := value.Head(e); ok {
		switch string(head) {
		case formIf:
			return c.ifForm(e)
		case formLet:
			return c.letForm(e)
		case formQuote:
			return c.quoteForm(e)
		case formSuperpose:
			return c.superposeForm(e)
		case formCollapse:
			return c.unaryConstForm(e, OpCollapse)
		case formMatch:
			return c.matchForm(e)
		case formAddAtom:
			return c.unaryConstForm(e, OpAssert)
		case formRemAtom:
			return c.unaryConstForm(e, OpRetract)
		}
	}

	// Plain application: evaluate every element, assemble the expression,
	// and dispatch it against grounded functions, rules, and facts.
	if len(e) > 255 {
		return c.errf(e, "expression has %d elements; limit is 255", len(e))
	}
	for _, el := range e {
		if err := c.term(el); err != nil {
			return err
		}
	}
	c.b.EmitByte(OpMakeExpr, byte(len(e)))
	c.b.Emit(OpEval)
	return nil
}

// (if cond then else) — both branches compiled, only one executed.
func (c *compiler) ifForm(e value.Expr) error {
	if len(e) != 4 {
		return c.errf(e, "if takes 3 arguments, got %d", len(e)-1)
	}
	if err := c.term(e[1]); err != nil {
		return err
	}
	elseLabel := c.b.NewLabel()
	endLabel := c.b.NewLabel()
	c.b.EmitJump(OpJumpIfFalse, elseLabel)
	if err := c.term(e[2]); err != nil {
		return err
	}
	c.b.EmitJump(OpJump, endLabel)
	c.b.Mark(elseLabel)
	if err := c.term(e[3]); err != nil {
		return err
	}
	c.b.Mark(endLabel)
	return nil
}

// (let $x val body) — evaluates val, binds it for the extent of body.
func (c *compiler) letForm(e value.Expr) error {
	if len(e) != 4 {
		return c.errf(e, "let takes 3 arguments, got %d", len(e)-1)
	}
	v, ok := e[1].(value.Variable)
	if !ok {
		return c.errf(e, "let binds a variable, got %s", e[1])
	}
	if err := c.term(e[2]); err != nil {
		return err
	}
	c.b.EmitUint16(OpBindVar, c.chunk.AddConstant(v))
	c.scope[v.Name()]++
	err := c.term(e[3])
	c.scope[v.Name()]--
	if err != nil {
		return err
	}
	c.b.Emit(OpUnbindVar)
	return nil
}

// (quote x) — pushes x unevaluated.
func (c *compiler) quoteForm(e value.Expr) error {
	if len(e) != 2 {
		return c.errf(e, "quote takes 1 argument, got %d", len(e)-1)
	}
	c.b.EmitUint16(OpPushConst, c.chunk.AddConstant(e[1]))
	return nil
}

// (superpose (a b ...)) — forks over the alternatives, each evaluated
// lazily when its branch is taken. An empty alternative list always fails.
func (c *compiler) superposeForm(e value.Expr) error {
	if len(e) != 2 {
		return c.errf(e, "superpose takes 1 argument, got %d", len(e)-1)
	}
	alts, ok := e[1].(value.Expr)
	if !ok {
		return c.errf(e, "superpose takes an expression of alternatives, got %s", e[1])
	}
	if len(alts) == 0 {
		c.b.Emit(OpFail)
		return nil
	}
	c.b.EmitUint16(OpFork, c.chunk.AddConstant(alts))
	return nil
}

// (match pattern template) — unifies pattern against the store and forks
// over the instantiated templates.
func (c *compiler) matchForm(e value.Expr) error {
	if len(e) != 3 {
		return c.errf(e, "match takes 2 arguments, got %d", len(e)-1)
	}
	c.b.EmitUint16x2(OpMatch, c.chunk.AddConstant(e[1]), c.chunk.AddConstant(e[2]))
	return nil
}

// unaryConstForm compiles the single-argument store forms: the argument is
// passed unevaluated (quoted) and resolved against the active bindings at
// run time.
func (c *compiler) unaryConstForm(e value.Expr, op Opcode) error {
	if len(e) != 2 {
		return c.errf(e, "%s takes 1 argument, got %d", e[0], len(e)-1)
	}
	c.b.EmitUint16(op, c.chunk.AddConstant(e[1]))
	return nil
}
