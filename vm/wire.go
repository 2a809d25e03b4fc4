package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/weft/value"
)

// cborEncMode is the canonical CBOR encoding mode, so structurally equal
// chunks and values always marshal to identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireValue is the transport form of a value. Exactly one payload field is
// meaningful per kind; Elems recurses for expressions.
type wireValue struct {
	Kind  uint8       `cbor:"k"`
	Sym   string      `cbor:"s,omitempty"`
	Int   int64       `cbor:"i,omitempty"`
	Float float64     `cbor:"f,omitempty"`
	Bool  bool        `cbor:"b,omitempty"`
	Str   string      `cbor:"t,omitempty"`
	Var   string      `cbor:"v,omitempty"`
	Elems []wireValue `cbor:"e,omitempty"`
}

func toWire(v value.Value) wireValue {
	switch t := v.(type) {
	case value.Symbol:
		return wireValue{Kind: uint8(value.KindSymbol), Sym: string(t)}
	case value.Int:
		return wireValue{Kind: uint8(value.KindInt), Int: int64(t)}
	case value.Float:
		return wireValue{Kind: uint8(value.KindFloat), Float: float64(t)}
	case value.Bool:
		return wireValue{Kind: uint8(value.KindBool), Bool: bool(t)}
	case value.String:
		return wireValue{Kind: uint8(value.KindString), Str: string(t)}
	case value.Variable:
		return wireValue{Kind: uint8(value.KindVariable), Var: t.Name()}
	case value.Expr:
		elems := make([]wireValue, len(t))
		for i, el := range t {
			elems[i] = toWire(el)
		}
		return wireValue{Kind: uint8(value.KindExpr), Elems: elems}
	}
	panic(fmt.Sprintf("vm: unknown value kind %T", v))
}

func fromWire(w wireValue) (value.Value, error) {
	switch value.Kind(w.Kind) {
	case value.KindSymbol:
		return value.Symbol(w.Sym), nil
	case value.KindInt:
		return value.Int(w.Int), nil
	case value.KindFloat:
		return value.Float(w.Float), nil
	case value.KindBool:
		return value.Bool(w.Bool), nil
	case value.KindString:
		return value.String(w.Str), nil
	case value.KindVariable:
		return value.Variable(w.Var), nil
	case value.KindExpr:
		elems := make(value.Expr, len(w.Elems))
		for i, el := range w.Elems {
			v, err := fromWire(el)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil
	}
	return nil, fmt.Errorf("vm: unknown wire kind %d", w.Kind)
}

// wireChunk is the transport form of a compiled chunk.
type wireChunk struct {
	Code      []byte      `cbor:"c"`
	Constants []wireValue `cbor:"p,omitempty"`
}

// MarshalChunk serializes a chunk to canonical CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	w := wireChunk{Code: c.Code, Constants: make([]wireValue, len(c.Constants))}
	for i, v := range c.Constants {
		w.Constants[i] = toWire(v)
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalChunk deserializes a chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var w wireChunk
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal chunk: %w", err)
	}
	c := &Chunk{Code: w.Code, Constants: make([]value.Value, len(w.Constants))}
	for i, wv := range w.Constants {
		v, err := fromWire(wv)
		if err != nil {
			return nil, fmt.Errorf("vm: unmarshal chunk: %w", err)
		}
		c.Constants[i] = v
	}
	return c, nil
}

// MarshalValue serializes a value to canonical CBOR bytes.
func MarshalValue(v value.Value) ([]byte, error) {
	w := toWire(v)
	return cborEncMode.Marshal(&w)
}

// UnmarshalValue deserializes a value from CBOR bytes.
func UnmarshalValue(data []byte) (value.Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal value: %w", err)
	}
	v, err := fromWire(w)
	if err != nil {
		return nil, fmt.Errorf("vm: unmarshal value: %w", err)
	}
	return v, nil
}
