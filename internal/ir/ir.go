// Package ir holds the canonical structural form of a schema. Schema
// identity (fingerprinting) is defined over the canonical encoding of these
// nodes, so two declarations of the same shape collapse to identical bytes
// no matter how or where they were built. This package is internal and not
// part of the public API.
package ir

import (
	"sort"

	gojson "github.com/goccy/go-json"
)

// Kind names follow the wire vocabulary rather than Go types.
const (
	KindString   = "string"
	KindNumber   = "number"
	KindBool     = "bool"
	KindTime     = "time"
	KindObject   = "object"
	KindArray    = "array"
	KindNullable = "nullable"
	KindAny      = "any"
)

// Unknown-key policies for object nodes.
const (
	UnknownStrip       = "strip"
	UnknownReject      = "reject"
	UnknownPassthrough = "passthrough"
)

// Node describes one schema node. Optional constraints are pointers so the
// canonical encoding distinguishes "absent" from zero values.
type Node struct {
	Kind string `json:"kind"`

	// String constraints.
	MinLen  *int     `json:"minLen,omitempty"`
	MaxLen  *int     `json:"maxLen,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Enum    []string `json:"enum,omitempty"`

	// Number constraints. Int restricts to integral values.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	Int bool     `json:"int,omitempty"`

	// Coerce opts the node into lenient decoding. It participates in
	// identity: a coercing schema is a different contract from a strict one.
	Coerce bool `json:"coerce,omitempty"`

	// Object shape.
	Fields   []Field  `json:"fields,omitempty"`
	Required []string `json:"required,omitempty"`
	Unknown  string   `json:"unknown,omitempty"`

	// Array and nullable shape.
	Elem     *Node `json:"elem,omitempty"`
	MinItems *int  `json:"minItems,omitempty"`
	MaxItems *int  `json:"maxItems,omitempty"`

	// Ext embeds the fingerprint of a schema whose structure this package
	// cannot see (wrapped external implementations). Identity of the parent
	// then covers the child by reference.
	Ext string `json:"ext,omitempty"`
}

// Field is a named object member. Default holds the wire-shaped default
// value, if any; callers must not mutate it after handing it over.
type Field struct {
	Name    string `json:"name"`
	Node    *Node  `json:"node"`
	Default any    `json:"default,omitempty"`
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.MinLen = cloneIntPtr(n.MinLen)
	c.MaxLen = cloneIntPtr(n.MaxLen)
	c.Min = cloneFloatPtr(n.Min)
	c.Max = cloneFloatPtr(n.Max)
	c.MinItems = cloneIntPtr(n.MinItems)
	c.MaxItems = cloneIntPtr(n.MaxItems)
	if n.Enum != nil {
		c.Enum = append([]string(nil), n.Enum...)
	}
	if n.Required != nil {
		c.Required = append([]string(nil), n.Required...)
	}
	if n.Fields != nil {
		c.Fields = make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			c.Fields[i] = Field{Name: f.Name, Node: f.Node.Clone(), Default: f.Default}
		}
	}
	c.Elem = n.Elem.Clone()
	return &c
}

// Normalize sorts every order-insensitive collection in place. Field order,
// required order and enum order carry no meaning, so the canonical form fixes
// them alphabetically.
func (n *Node) Normalize() {
	if n == nil {
		return
	}
	sort.Strings(n.Enum)
	sort.Strings(n.Required)
	sort.Slice(n.Fields, func(i, j int) bool { return n.Fields[i].Name < n.Fields[j].Name })
	for i := range n.Fields {
		n.Fields[i].Node.Normalize()
	}
	n.Elem.Normalize()
}

// Canonical returns the canonical encoding of n: normalized, then marshaled
// with fixed key order. The receiver is not modified.
func (n *Node) Canonical() []byte {
	c := n.Clone()
	c.Normalize()
	b, err := gojson.Marshal(c)
	if err != nil {
		// Marshal of a plain struct tree cannot fail.
		panic("ir: canonical encoding failed: " + err.Error())
	}
	return b
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr and FloatPtr are small helpers for builders assembling nodes.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
