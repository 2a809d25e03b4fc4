package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack operations
const (
	OpNop Opcode = 0x00 // no operation
	OpPop Opcode = 0x01 // discard top of stack
	OpDup Opcode = 0x02 // duplicate top of stack
)

// Value construction
const (
	OpPushConst Opcode = 0x10 // push constant from pool (16-bit index)
	OpMakeExpr  Opcode = 0x11 // build expression from top N values (8-bit count)
)

// Variable operations
const (
	OpLoadVar   Opcode = 0x18 // push binding of variable constant (16-bit index); unbound is a fault
	OpBindVar   Opcode = 0x19 // pop value, layer a binding for variable constant (16-bit index)
	OpUnbindVar Opcode = 0x1A // drop the innermost binding layer
)

// Evaluation and nondeterminism
const (
	OpEval     Opcode = 0x20 // pop expression, dispatch grounded/rules/facts; no match fails
	OpMatch    Opcode = 0x21 // match pattern constant against the store, yield template constant (2 x 16-bit index)
	OpFork     Opcode = 0x22 // fork over elements of expression constant (16-bit index)
	OpCollapse Opcode = 0x23 // evaluate expression constant to completion, push result expression (16-bit index)
	OpFail     Opcode = 0x24 // force backtracking
)

// Store mutation
const (
	OpAssert  Opcode = 0x30 // assert resolved constant into the space (16-bit index)
	OpRetract Opcode = 0x31 // retract resolved constant from the space (16-bit index)
)

// Control flow
const (
	OpJump        Opcode = 0x40 // unconditional jump (16-bit signed offset)
	OpJumpIfFalse Opcode = 0x41 // pop boolean, jump if false (16-bit signed offset)
	OpReturn      Opcode = 0x50 // return top of stack; at depth zero this yields a solution
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string
	OperandBytes int
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:         {"NOP", 0},
	OpPop:         {"POP", 0},
	OpDup:         {"DUP", 0},
	OpPushConst:   {"PUSH_CONST", 2},
	OpMakeExpr:    {"MAKE_EXPR", 1},
	OpLoadVar:     {"LOAD_VAR", 2},
	OpBindVar:     {"BIND_VAR", 2},
	OpUnbindVar:   {"UNBIND_VAR", 0},
	OpEval:        {"EVAL", 0},
	OpMatch:       {"MATCH", 4},
	OpFork:        {"FORK", 2},
	OpCollapse:    {"COLLAPSE", 2},
	OpFail:        {"FAIL", 0},
	OpAssert:      {"ASSERT", 2},
	OpRetract:     {"RETRACT", 2},
	OpJump:        {"JUMP", 2},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 2},
	OpReturn:      {"RETURN", 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{bytes: make([]byte, 0, 64)}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte { return b.bytes }

// Len returns the current length.
func (b *BytecodeBuilder) Len() int { return len(b.bytes) }

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitUint16x2 appends an opcode with two 16-bit operands (little-endian).
func (b *BytecodeBuilder) EmitUint16x2(op Opcode, first, second uint16) {
	b.bytes = append(b.bytes, byte(op),
		byte(first), byte(first>>8),
		byte(second), byte(second>>8))
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a forward reference in bytecode.
type Label struct {
	resolved bool
	position int
	refs     []int // operand positions awaiting a patch
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches forward
// references.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a jump instruction targeting a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// ---------------------------------------------------------------------------
// Bytecode reader for disassembly
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int { return r.pos }

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool { return r.pos < len(r.bytes) }

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	op := Opcode(r.bytes[r.pos])
	r.pos++
	return op
}

// ReadByte reads a single byte operand.
func (r *BytecodeReader) ReadByte() byte {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt16 reads a signed 16-bit operand (little-endian).
func (r *BytecodeReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// Skip advances the position by n bytes.
func (r *BytecodeReader) Skip(n int) { r.pos += n }

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader.
func DisassembleInstruction(r *BytecodeReader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch op {
	case OpNop, OpPop, OpDup, OpUnbindVar, OpEval, OpFail, OpReturn:
		return fmt.Sprintf("%04d  %s", pos, info.Name)

	case OpMakeExpr:
		n := r.ReadByte()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, n)

	case OpPushConst, OpLoadVar, OpBindVar, OpFork, OpCollapse, OpAssert, OpRetract:
		idx := r.ReadUint16()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpMatch:
		pat := r.ReadUint16()
		tpl := r.ReadUint16()
		return fmt.Sprintf("%04d  %s pattern=%d template=%d", pos, info.Name, pat, tpl)

	case OpJump, OpJumpIfFalse:
		offset := r.ReadInt16()
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, target)

	default:
		r.Skip(info.OperandBytes)
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

// Disassemble returns a full disassembly of bytecode.
func Disassemble(bc []byte) string {
	r := NewBytecodeReader(bc)
	var lines []string
	for r.HasMore() {
		lines = append(lines, DisassembleInstruction(r))
	}
	return strings.Join(lines, "\n")
}
