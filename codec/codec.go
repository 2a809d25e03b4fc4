// Package codec implements the canonical byte encoding of values used as
// trie keys. The encoding is deterministic (the same value always produces
// the same bytes) and structurally injective (distinct values never share an
// encoding), and round-trips losslessly through Decode.
//
// Encoding conventions:
//   - First byte: Version (0x01)
//   - Tag byte per node, then payload
//   - Integers: big-endian fixed-width int64 (8 bytes)
//   - Floats: IEEE 754 big-endian (8 bytes)
//   - Strings/symbols/variables: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Expressions: uint32 big-endian element count + elements inline
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/weft/value"
)

// Version is the leading byte of every encoded value.
const Version byte = 0x01

// Node tags. Values are stable: they participate in stored trie keys.
const (
	TagSymbol   byte = 0x01
	TagInt      byte = 0x02
	TagFloat    byte = 0x03
	TagBool     byte = 0x04
	TagString   byte = 0x05
	TagVariable byte = 0x06
	TagExpr     byte = 0x07
)

// Encode produces the canonical byte encoding of a value.
func Encode(v value.Value) []byte {
	e := &encoder{buf: make([]byte, 0, 64)}
	e.buf = append(e.buf, Version)
	e.encodeNode(v)
	return e.buf
}

// AppendPrefix appends the encoding prefix shared by every expression with
// the given element count and head symbol: version, expression tag, count,
// and the encoded head. Facts sharing a head collide on this prefix, which
// is what makes head-directed trie scans cheap.
func AppendPrefix(dst []byte, head string, elems int) []byte {
	e := &encoder{buf: dst}
	e.buf = append(e.buf, Version, TagExpr)
	e.writeUint32(uint32(elems))
	e.buf = append(e.buf, TagSymbol)
	e.writeString(head)
	return e.buf
}

type encoder struct {
	buf []byte
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeString(v string) {
	e.writeUint32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) encodeNode(v value.Value) {
	switch t := v.(type) {
	case value.Symbol:
		e.buf = append(e.buf, TagSymbol)
		e.writeString(string(t))

	case value.Int:
		e.buf = append(e.buf, TagInt)
		e.writeInt64(int64(t))

	case value.Float:
		e.buf = append(e.buf, TagFloat)
		e.writeFloat64(float64(t))

	case value.Bool:
		e.buf = append(e.buf, TagBool)
		if t {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}

	case value.String:
		e.buf = append(e.buf, TagString)
		e.writeString(string(t))

	case value.Variable:
		e.buf = append(e.buf, TagVariable)
		e.writeString(t.Name())

	case value.Expr:
		e.buf = append(e.buf, TagExpr)
		e.writeUint32(uint32(len(t)))
		for _, el := range t {
			e.encodeNode(el)
		}

	default:
		panic(fmt.Sprintf("codec: unknown value kind %v", v.Kind()))
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode reconstructs a value from its canonical encoding. It rejects
// unknown versions and tags, truncated input, and trailing bytes.
func Decode(b []byte) (value.Value, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("codec: empty input")
	}
	if b[0] != Version {
		return nil, fmt.Errorf("codec: unsupported version 0x%02x", b[0])
	}
	d := &decoder{buf: b, pos: 1}
	v, err := d.decodeNode()
	if err != nil {
		return nil, err
	}
	if d.pos != len(b) {
		return nil, fmt.Errorf("codec: %d trailing bytes after value", len(b)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, fmt.Errorf("codec: truncated input at offset %d", d.pos)
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("codec: truncated input at offset %d", d.pos)
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) readUint64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, fmt.Errorf("codec: truncated input at offset %d", d.pos)
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint32()
	if err != nil {
		return "", err
	}
	if d.pos+int(n) > len(d.buf) {
		return "", fmt.Errorf("codec: truncated string at offset %d", d.pos)
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *decoder) decodeNode() (value.Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagSymbol:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return value.Symbol(s), nil

	case TagInt:
		v, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		return value.Int(int64(v)), nil

	case TagFloat:
		v, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		return value.Float(math.Float64frombits(v)), nil

	case TagBool:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return value.Bool(false), nil
		case 1:
			return value.Bool(true), nil
		}
		return nil, fmt.Errorf("codec: invalid boolean byte 0x%02x", b)

	case TagString:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return value.String(s), nil

	case TagVariable:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return value.Variable(s), nil

	case TagExpr:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		elems := make(value.Expr, 0, n)
		for i := uint32(0); i < n; i++ {
			el, err := d.decodeNode()
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
		}
		return elems, nil
	}

	return nil, fmt.Errorf("codec: unknown tag 0x%02x at offset %d", tag, d.pos-1)
}
