package ir

import (
	"bytes"
	"testing"
)

func TestCanonicalIgnoresDeclarationOrder(t *testing.T) {
	a := &Node{
		Kind: KindObject,
		Fields: []Field{
			{Name: "name", Node: &Node{Kind: KindString, MinLen: IntPtr(1)}},
			{Name: "age", Node: &Node{Kind: KindNumber}},
		},
		Required: []string{"name", "age"},
		Unknown:  UnknownStrip,
	}
	b := &Node{
		Kind: KindObject,
		Fields: []Field{
			{Name: "age", Node: &Node{Kind: KindNumber}},
			{Name: "name", Node: &Node{Kind: KindString, MinLen: IntPtr(1)}},
		},
		Required: []string{"age", "name"},
		Unknown:  UnknownStrip,
	}
	if !bytes.Equal(a.Canonical(), b.Canonical()) {
		t.Fatalf("field order changed canonical form:\n%s\n%s", a.Canonical(), b.Canonical())
	}
}

func TestCanonicalSeparatesConstraints(t *testing.T) {
	base := &Node{Kind: KindString}
	minned := &Node{Kind: KindString, MinLen: IntPtr(1)}
	coerced := &Node{Kind: KindString, Coerce: true}
	if bytes.Equal(base.Canonical(), minned.Canonical()) {
		t.Fatalf("minLen did not alter canonical form")
	}
	if bytes.Equal(base.Canonical(), coerced.Canonical()) {
		t.Fatalf("coerce did not alter canonical form")
	}

	num := &Node{Kind: KindNumber}
	bounded := &Node{Kind: KindNumber, Min: FloatPtr(0)}
	if bytes.Equal(num.Canonical(), bounded.Canonical()) {
		t.Fatalf("min bound did not alter canonical form")
	}
}

func TestCanonicalLeavesReceiverUntouched(t *testing.T) {
	n := &Node{
		Kind: KindObject,
		Fields: []Field{
			{Name: "b", Node: &Node{Kind: KindBool}},
			{Name: "a", Node: &Node{Kind: KindString}},
		},
		Required: []string{"b", "a"},
	}
	_ = n.Canonical()
	if n.Fields[0].Name != "b" || n.Required[0] != "b" {
		t.Fatalf("Canonical mutated the receiver: %+v", n)
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := &Node{
		Kind:     KindArray,
		MinItems: IntPtr(1),
		Elem:     &Node{Kind: KindString, Enum: []string{"a", "b"}},
	}
	c := n.Clone()
	*c.MinItems = 9
	c.Elem.Enum[0] = "z"
	if *n.MinItems != 1 || n.Elem.Enum[0] != "a" {
		t.Fatalf("Clone shares memory with original: %+v", n)
	}
}
