package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/weft/codec"
	"github.com/chazu/weft/value"
)

// Chunk is a compiled instruction sequence plus its constant pool. A chunk
// is a pure function of its source expression: compiling the same value
// always produces the same chunk, which is what makes caching by structural
// identity safe.
type Chunk struct {
	Code      []byte
	Constants []value.Value

	constIndex map[string]uint16 // canonical encoding -> pool index
}

// NewChunk creates an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{constIndex: make(map[string]uint16)}
}

// AddConstant interns a value in the constant pool, deduplicating by
// structural identity, and returns its index.
func (c *Chunk) AddConstant(v value.Value) uint16 {
	if c.constIndex == nil {
		c.constIndex = make(map[string]uint16)
		for i, existing := range c.Constants {
			c.constIndex[string(codec.Encode(existing))] = uint16(i)
		}
	}
	key := string(codec.Encode(v))
	if idx, ok := c.constIndex[key]; ok {
		return idx
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, v)
	c.constIndex[key] = idx
	return idx
}

// Constant returns the pool entry at idx, or ok=false when out of range.
func (c *Chunk) Constant(idx uint16) (value.Value, bool) {
	if int(idx) >= len(c.Constants) {
		return nil, false
	}
	return c.Constants[idx], true
}

// Disassemble renders the chunk's code and constant pool for debugging.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(Disassemble(c.Code))
	if len(c.Constants) > 0 {
		sb.WriteString("\nconstants:")
		for i, v := range c.Constants {
			sb.WriteString(fmt.Sprintf("\n  %04d  %s", i, v))
		}
	}
	return sb.String()
}
