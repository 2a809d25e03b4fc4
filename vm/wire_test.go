package vm

import (
	"bytes"
	"testing"

	"github.com/chazu/weft/value"
)

func TestChunkWireRoundTrip(t *testing.T) {
	chunk, err := Compile(ex(sym("let"), vr("x"), num(5),
		ex(sym("if"), ex(sym("lt"), vr("x"), value.Float(9.5)), value.String("low"), sym("high"))))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data, err := MarshalChunk(chunk)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	got, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatalf("UnmarshalChunk: %v", err)
	}

	if !bytes.Equal(got.Code, chunk.Code) {
		t.Error("code changed across the wire")
	}
	if len(got.Constants) != len(chunk.Constants) {
		t.Fatalf("constant pool size = %d, want %d", len(got.Constants), len(chunk.Constants))
	}
	for i := range chunk.Constants {
		if !got.Constants[i].Equal(chunk.Constants[i]) {
			t.Errorf("constant %d = %s, want %s", i, got.Constants[i], chunk.Constants[i])
		}
	}
}

func TestUnmarshaledChunkRuns(t *testing.T) {
	eng := testEngine(t)
	chunk, err := eng.Compile(ex(sym("add"), num(20), num(22)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	data, err := MarshalChunk(chunk)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	restored, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatalf("UnmarshalChunk: %v", err)
	}

	v, err := eng.EvaluateChunk(restored).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !v.Equal(num(42)) {
		t.Fatalf("result = %s, want 42", v)
	}
}

func TestValueWireRoundTrip(t *testing.T) {
	values := []value.Value{
		sym("color"),
		num(-7),
		value.Float(2.5),
		value.Bool(true),
		value.Bool(false),
		value.String("with \"quotes\""),
		vr("x"),
		ex(),
		ex(sym("color"), ex(sym("nested"), vr("y")), num(0)),
	}
	for _, v := range values {
		data, err := MarshalValue(v)
		if err != nil {
			t.Fatalf("MarshalValue(%s): %v", v, err)
		}
		got, err := UnmarshalValue(data)
		if err != nil {
			t.Fatalf("UnmarshalValue(%s): %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("round trip of %s produced %s", v, got)
		}
	}
}

func TestValueWireDeterministic(t *testing.T) {
	v := ex(sym("color"), sym("car"), sym("red"))
	a, err := MarshalValue(v)
	if err != nil {
		t.Fatalf("MarshalValue: %v", err)
	}
	b, err := MarshalValue(v)
	if err != nil {
		t.Fatalf("MarshalValue: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding is not deterministic")
	}
}

func TestUnmarshalValueBadKind(t *testing.T) {
	data, err := cborEncMode.Marshal(&wireValue{Kind: 99})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := UnmarshalValue(data); err == nil {
		t.Fatal("unknown kind decoded without error")
	}
}
