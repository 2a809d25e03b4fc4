package vm

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/weft/space"
	"github.com/chazu/weft/unify"
	"github.com/chazu/weft/value"
)

var log = commonlog.GetLogger("weft.vm")

// ---------------------------------------------------------------------------
// Engine: shared evaluation context
// ---------------------------------------------------------------------------

// Engine holds the pieces shared by every evaluation: the space, the
// grounded-function registry, and the chunk cache. Engines are safe for
// concurrent use; each Evaluate call gets its own machine with private
// stacks, and concurrent evaluations contend only on the space lock.
type Engine struct {
	space    *space.Space
	registry *Registry
	cache    *ChunkCache
	maxSteps uint64
	timeout  time.Duration
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStepBudget bounds every evaluation to n dispatched instructions.
// Zero means unbounded.
func WithStepBudget(n uint64) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithTimeout bounds every evaluation's wall-clock time. The deadline is
// checked every 1024 dispatched instructions.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRegistry replaces the default grounded-function registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithMaxDepth bounds the call stack. Zero means bounded only by memory.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// NewEngine creates an engine over a space.
func NewEngine(sp *space.Space, opts ...Option) *Engine {
	e := &Engine{
		space:    sp,
		registry: DefaultRegistry(),
		cache:    NewChunkCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Space returns the engine's store.
func (e *Engine) Space() *space.Space { return e.space }

// Cache returns the engine's chunk cache.
func (e *Engine) Cache() *ChunkCache { return e.cache }

// Compile returns the chunk for an expression, reusing the cache.
func (e *Engine) Compile(expr value.Value) (*Chunk, error) {
	if chunk, ok := e.cache.Get(expr); ok {
		return chunk, nil
	}
	chunk, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	e.cache.Put(expr, chunk)
	return chunk, nil
}

// Evaluate compiles an expression and returns a cursor over its solutions.
func (e *Engine) Evaluate(expr value.Value) (*Cursor, error) {
	chunk, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	cur := &Cursor{ID: uuid.New(), m: newMachine(e, chunk, e.maxSteps)}
	log.Debugf("evaluate %s (cursor %s)", expr, cur.ID)
	return cur, nil
}

// EvaluateChunk returns a cursor over the solutions of an already-compiled
// chunk, so repeated evaluation can skip compilation entirely.
func (e *Engine) EvaluateChunk(chunk *Chunk) *Cursor {
	return &Cursor{ID: uuid.New(), m: newMachine(e, chunk, e.maxSteps)}
}

// EvalAll drains an evaluation, returning every solution in order. On a
// fault or exceeded budget the solutions yielded so far are returned along
// with the error.
func (e *Engine) EvalAll(expr value.Value) ([]value.Value, error) {
	cur, err := e.Evaluate(expr)
	if err != nil {
		return nil, err
	}
	return drain(cur.m)
}

// evalAllBudget runs a complete sub-evaluation with an explicit step bound
// (0 = unbounded) and deadline, reporting the steps it consumed.
func (e *Engine) evalAllBudget(expr value.Value, budget uint64, deadline time.Time) ([]value.Value, uint64, error) {
	chunk, err := e.Compile(expr)
	if err != nil {
		return nil, 0, err
	}
	m := newMachine(e, chunk, budget)
	m.deadline = deadline
	results, err := drain(m)
	return results, m.steps, err
}

func drain(m *machine) ([]value.Value, error) {
	var results []value.Value
	for {
		v, err := m.run()
		if err != nil {
			if errors.Is(err, ErrExhausted) {
				return results, nil
			}
			return results, err
		}
		results = append(results, v)
	}
}

// ---------------------------------------------------------------------------
// Cursor: resumable evaluation
// ---------------------------------------------------------------------------

// Cursor produces the lazy sequence of solutions of one evaluation. Each
// Next call resumes the machine until it yields the next solution or
// terminates; a cursor is not restartable. Cursors must not be shared
// between goroutines.
type Cursor struct {
	ID uuid.UUID
	m  *machine
}

// Next returns the next solution, ErrExhausted when none remain, or a
// fault/budget error. Terminal errors are sticky.
func (c *Cursor) Next() (value.Value, error) {
	return c.m.run()
}

// Steps returns the number of instructions dispatched so far.
func (c *Cursor) Steps() uint64 { return c.m.steps }

// ---------------------------------------------------------------------------
// Machine: stacks, choice points, dispatch loop
// ---------------------------------------------------------------------------

// frame is one logical call: where to resume, where this call's operands
// start, and the bindings to restore on return.
type frame struct {
	retChunk  *Chunk
	retIP     int
	valueBase int
	env       *unify.Env
}

// alternative is one branch of a choice point: either a finished value or
// an expression still to evaluate.
type alternative struct {
	val    value.Value
	eval   value.Value
	isEval bool
}

// choicePoint snapshots enough machine state to restore execution exactly
// at the fork and try the next alternative. The value and call stacks are
// copied, not recorded as heights: execution after the fork legitimately
// pops below the fork height (OpMakeExpr consumes saved operands, OpReturn
// truncates to a frame base) and then overwrites those slots, so a height
// alone cannot recover the operands the next alternative needs.
type choicePoint struct {
	vstack []value.Value // value stack contents at the fork
	frames []frame       // call stack contents at the fork
	env    *unify.Env
	chunk  *Chunk
	ip     int
	alts   []alternative
	next   int
}

// machine executes one evaluation. The dispatch loop is strictly
// single-threaded; sub-expressions are never evaluated on other
// goroutines.
type machine struct {
	eng *Engine

	chunk *Chunk
	ip    int

	vstack []value.Value // operands and results
	frames []frame       // call stack; replaces native recursion
	env    *unify.Env    // active bindings (top of the bindings stack)
	cps    []choicePoint // choice-point stack

	steps    uint64
	budget   uint64 // 0 = unbounded
	deadline time.Time
	fresh    uint64 // counter for renaming rule variables apart

	yielded bool  // last run call yielded; next run must backtrack first
	err     error // sticky terminal error
}

func newMachine(e *Engine, chunk *Chunk, budget uint64) *machine {
	m := &machine{eng: e, chunk: chunk, budget: budget}
	if e.timeout > 0 {
		m.deadline = time.Now().Add(e.timeout)
	}
	return m
}

func (m *machine) push(v value.Value) {
	m.vstack = append(m.vstack, v)
}

func (m *machine) pop(op Opcode, pos int) (value.Value, bool) {
	if len(m.vstack) == 0 {
		m.fault(op, pos, "value stack underflow")
		return nil, false
	}
	v := m.vstack[len(m.vstack)-1]
	m.vstack = m.vstack[:len(m.vstack)-1]
	return v, true
}

func (m *machine) fault(op Opcode, pos int, msg string) {
	m.err = &RuntimeFault{Op: op, Pos: pos, Msg: msg}
}

// readU16 reads a little-endian operand, faulting on truncated bytecode.
func (m *machine) readU16(op Opcode, pos int) (uint16, bool) {
	code := m.chunk.Code
	if m.ip+2 > len(code) {
		m.fault(op, pos, "truncated operand")
		return 0, false
	}
	v := uint16(code[m.ip]) | uint16(code[m.ip+1])<<8
	m.ip += 2
	return v, true
}

// constant fetches a pool entry operand, faulting when out of range.
func (m *machine) constant(op Opcode, pos int) (value.Value, bool) {
	idx, ok := m.readU16(op, pos)
	if !ok {
		return nil, false
	}
	v, ok := m.chunk.Constant(idx)
	if !ok {
		m.fault(op, pos, "constant index out of range")
		return nil, false
	}
	return v, true
}

// run resumes execution until the next solution, termination, or fault.
func (m *machine) run() (value.Value, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.yielded {
		// Resuming after a yield continues as if that branch had failed.
		m.yielded = false
		if !m.backtrack() {
			m.err = ErrExhausted
			return nil, m.err
		}
		if m.err != nil {
			return nil, m.err
		}
	}

	for {
		if m.budget > 0 && m.steps >= m.budget {
			m.err = &BudgetError{Steps: m.steps}
			return nil, m.err
		}
		if !m.deadline.IsZero() && m.steps%1024 == 0 && time.Now().After(m.deadline) {
			m.err = &BudgetError{Steps: m.steps, Deadline: true}
			return nil, m.err
		}

		code := m.chunk.Code
		if m.ip >= len(code) {
			m.fault(OpNop, m.ip, "instruction pointer out of bounds")
			return nil, m.err
		}
		pos := m.ip
		op := Opcode(code[m.ip])
		m.ip++
		m.steps++

		switch op {
		case OpNop:

		case OpPop:
			if _, ok := m.pop(op, pos); !ok {
				return nil, m.err
			}

		case OpDup:
			if len(m.vstack) == 0 {
				m.fault(op, pos, "value stack underflow")
				return nil, m.err
			}
			m.push(m.vstack[len(m.vstack)-1])

		case OpPushConst:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			m.push(v)

		case OpMakeExpr:
			if m.ip >= len(code) {
				m.fault(op, pos, "truncated operand")
				return nil, m.err
			}
			n := int(code[m.ip])
			m.ip++
			if len(m.vstack) < n {
				m.fault(op, pos, "value stack underflow")
				return nil, m.err
			}
			elems := make(value.Expr, n)
			copy(elems, m.vstack[len(m.vstack)-n:])
			m.vstack = m.vstack[:len(m.vstack)-n]
			m.push(elems)

		case OpLoadVar:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			vv, isVar := v.(value.Variable)
			if !isVar {
				m.fault(op, pos, "operand is not a variable: "+v.String())
				return nil, m.err
			}
			bound, found := m.env.Lookup(vv.Name())
			if !found {
				m.fault(op, pos, "unbound variable "+vv.String())
				return nil, m.err
			}
			m.push(bound)

		case OpBindVar:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			vv, isVar := v.(value.Variable)
			if !isVar {
				m.fault(op, pos, "operand is not a variable: "+v.String())
				return nil, m.err
			}
			bound, ok := m.pop(op, pos)
			if !ok {
				return nil, m.err
			}
			m.env = m.env.Bind(vv.Name(), bound)

		case OpUnbindVar:
			if m.env == nil {
				m.fault(op, pos, "bindings stack underflow")
				return nil, m.err
			}
			m.env = m.env.Parent()

		case OpEval:
			query, ok := m.pop(op, pos)
			if !ok {
				return nil, m.err
			}
			if done, result := m.dispatch(op, pos, query); done {
				return result, m.err
			}

		case OpMatch:
			if done, result := m.matchOp(op, pos); done {
				return result, m.err
			}

		case OpFork:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			elems, isExpr := v.(value.Expr)
			if !isExpr {
				m.fault(op, pos, "operand is not an expression: "+v.String())
				return nil, m.err
			}
			alts := make([]alternative, len(elems))
			for i, el := range elems {
				alts[i] = alternative{eval: unify.Resolve(el, m.env), isEval: true}
			}
			if done, result := m.branch(alts); done {
				return result, m.err
			}

		case OpCollapse:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			var remaining uint64
			if m.budget > 0 {
				remaining = m.budget - m.steps
				if remaining == 0 {
					remaining = 1 // force the sub-evaluation to trip immediately
				}
			}
			results, used, err := m.eng.evalAllBudget(unify.Resolve(v, m.env), remaining, m.deadline)
			m.steps += used
			if err != nil {
				m.err = err
				return nil, m.err
			}
			m.push(value.Expr(results))

		case OpFail:
			if !m.backtrack() {
				m.err = ErrExhausted
				return nil, m.err
			}
			if m.err != nil {
				return nil, m.err
			}

		case OpAssert:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			if err := m.eng.space.Assert(unify.Resolve(v, m.env)); err != nil {
				m.err = err
				return nil, m.err
			}
			m.push(value.Expr{})

		case OpRetract:
			v, ok := m.constant(op, pos)
			if !ok {
				return nil, m.err
			}
			present, err := m.eng.space.Retract(unify.Resolve(v, m.env))
			if err != nil {
				m.err = err
				return nil, m.err
			}
			m.push(value.Bool(present))

		case OpJump:
			off, ok := m.readU16(op, pos)
			if !ok {
				return nil, m.err
			}
			m.ip += int(int16(off))

		case OpJumpIfFalse:
			off, ok := m.readU16(op, pos)
			if !ok {
				return nil, m.err
			}
			cond, ok := m.pop(op, pos)
			if !ok {
				return nil, m.err
			}
			b, isBool := cond.(value.Bool)
			if !isBool {
				m.fault(op, pos, "condition is not a boolean: "+cond.String())
				return nil, m.err
			}
			if !b {
				m.ip += int(int16(off))
			}

		case OpReturn:
			result, ok := m.pop(op, pos)
			if !ok {
				return nil, m.err
			}
			if len(m.frames) == 0 {
				// Depth zero: this branch is complete. Yield the solution.
				m.yielded = true
				return result, nil
			}
			f := m.frames[len(m.frames)-1]
			m.frames = m.frames[:len(m.frames)-1]
			m.vstack = m.vstack[:f.valueBase]
			m.push(result)
			m.chunk, m.ip, m.env = f.retChunk, f.retIP, f.env

		default:
			m.fault(op, pos, "unknown opcode")
			return nil, m.err
		}
	}
}

// ---------------------------------------------------------------------------
// Dispatch, forking, backtracking
// ---------------------------------------------------------------------------

// dispatch resolves an evaluated query expression against grounded
// functions, then indexed rules, then stored facts, and branches over the
// resulting alternatives. It returns done=true when run must return
// (exhaustion or fault).
func (m *machine) dispatch(op Opcode, pos int, query value.Value) (bool, value.Value) {
	q, isExpr := query.(value.Expr)
	if !isExpr {
		// Atoms evaluate to themselves.
		m.push(query)
		return false, nil
	}

	var alts []alternative
	head, arity, hok := value.HeadArity(q)

	if hok {
		if fn, found := m.eng.registry.Lookup(head, arity); found {
			result, err := fn(q[1:])
			switch {
			case err == nil:
				alts = append(alts, alternative{val: result})
			case errors.Is(err, ErrNoMatch):
				// Fall through to rule rewriting.
			default:
				m.err = err
				return true, nil
			}
		}
	}

	if len(alts) == 0 {
		indexHead := head
		if !hok {
			indexHead = ""
		}
		// Rule variables are renamed apart before unifying so a query
		// variable can never alias a rule variable of the same name and
		// produce a cyclic binding.
		id := m.freshID(q)
		for _, rule := range m.eng.space.Candidates(indexHead, arity) {
			pattern := renameApart(rule.Pattern, id)
			if env, ok := unify.Unify(pattern, q, unify.NewEnv()); ok {
				template := renameApart(rule.Template, id)
				alts = append(alts, alternative{eval: unify.Resolve(template, env), isEval: true})
			}
		}
	}

	if len(alts) == 0 {
		for _, mr := range m.eng.space.Match(q) {
			alts = append(alts, alternative{val: mr.Fact})
		}
	}

	return m.branch(alts)
}

// freshID returns a rename counter no variable of the query already
// carries as a suffix, so renaming a rule apart can never capture a query
// variable.
func (m *machine) freshID(q value.Value) uint64 {
	seen := map[string]bool{}
	value.Vars(q, seen, nil)
	for {
		id := m.fresh
		m.fresh++
		suffix := "~" + strconv.FormatUint(id, 10)
		taken := false
		for name := range seen {
			if strings.HasSuffix(name, suffix) {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

// renameApart rewrites every variable in a rule's pattern or template with
// a name carrying a per-dispatch counter. Renamed names cannot collide with
// the variables of the query being unified against.
func renameApart(v value.Value, id uint64) value.Value {
	switch t := v.(type) {
	case value.Variable:
		return value.Variable(t.Name() + "~" + strconv.FormatUint(id, 10))
	case value.Expr:
		out := make(value.Expr, len(t))
		for i, el := range t {
			out[i] = renameApart(el, id)
		}
		return out
	default:
		return v
	}
}

// matchOp executes OpMatch: unify the pattern constant against the store
// and branch over the instantiated templates.
func (m *machine) matchOp(op Opcode, pos int) (bool, value.Value) {
	pattern, ok := m.constant(op, pos)
	if !ok {
		return true, nil
	}
	template, ok := m.constant(op, pos)
	if !ok {
		return true, nil
	}

	pattern = unify.Resolve(pattern, m.env)
	results := m.eng.space.Match(pattern)
	alts := make([]alternative, 0, len(results))
	for _, mr := range results {
		instantiated := unify.Resolve(unify.Resolve(template, mr.Env), m.env)
		alts = append(alts, alternative{val: instantiated})
	}
	return m.branch(alts)
}

// branch continues with the first alternative, saving the rest in a choice
// point. Zero alternatives fail; a single alternative needs no choice
// point. Returns done=true when run must return.
func (m *machine) branch(alts []alternative) (bool, value.Value) {
	switch len(alts) {
	case 0:
		if !m.backtrack() {
			m.err = ErrExhausted
			return true, nil
		}
	case 1:
		m.apply(alts[0])
	default:
		m.cps = append(m.cps, choicePoint{
			vstack: append([]value.Value(nil), m.vstack...),
			frames: append([]frame(nil), m.frames...),
			env:    m.env,
			chunk:  m.chunk,
			ip:     m.ip,
			alts:   alts,
			next:   1,
		})
		m.apply(alts[0])
	}
	return m.err != nil, nil
}

// apply starts an alternative: a finished value is pushed directly, an
// expression alternative enters its compiled chunk through a new frame.
func (m *machine) apply(alt alternative) {
	if !alt.isEval {
		m.push(alt.val)
		return
	}
	chunk, err := m.eng.Compile(alt.eval)
	if err != nil {
		m.err = err
		return
	}
	if m.eng.maxDepth > 0 && len(m.frames) >= m.eng.maxDepth {
		m.fault(OpEval, m.ip, "call stack overflow")
		return
	}
	m.frames = append(m.frames, frame{
		retChunk:  m.chunk,
		retIP:     m.ip,
		valueBase: len(m.vstack),
		env:       m.env,
	})
	m.env = nil
	m.chunk = chunk
	m.ip = 0
}

// backtrack unwinds to the nearest choice point with an untried
// alternative and resumes there. It returns false when the choice-point
// stack is exhausted.
func (m *machine) backtrack() bool {
	for len(m.cps) > 0 {
		cp := &m.cps[len(m.cps)-1]
		if cp.next >= len(cp.alts) {
			m.cps = m.cps[:len(m.cps)-1]
			continue
		}
		alt := cp.alts[cp.next]
		cp.next++

		// Restore from the snapshots; the copies stay intact for any
		// alternatives still untried.
		m.vstack = append(m.vstack[:0], cp.vstack...)
		m.frames = append(m.frames[:0], cp.frames...)
		m.env = cp.env
		m.chunk = cp.chunk
		m.ip = cp.ip
		m.apply(alt)
		return true
	}
	return false
}
