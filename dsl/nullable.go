package dsl

import (
	"context"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/internal/ir"
	js "github.com/reoring/treaty/jsonschema"
)

// Nullable wraps a schema so JSON null becomes a nil pointer instead of a
// type error.
func Nullable[E any](inner treaty.Schema[E]) *NullableSchema[E] {
	n := &NullableSchema[E]{inner: inner}
	if inner == nil {
		n.defErr = defErrf("nullable with nil inner schema")
		return n
	}
	n.defErr = defErrorOf(inner)
	return n
}

// NullableOf is Nullable for a type-erased inner schema.
func NullableOf(inner AnyAdapter) *NullableSchema[any] {
	if inner == nil {
		return &NullableSchema[any]{defErr: defErrf("nullable with nil inner schema")}
	}
	core := inner.adapt()
	return &NullableSchema[any]{inner: core.schema, innerNode: core.node, defErr: core.defErr}
}

type NullableSchema[E any] struct {
	inner     treaty.Schema[E]
	innerNode *ir.Node
	defErr    *treaty.DefinitionError
}

func (n *NullableSchema[E]) Parse(ctx context.Context, v any) (*E, error) {
	if v == nil {
		return nil, nil
	}
	ev, err := n.inner.Parse(ctx, v)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (n *NullableSchema[E]) Validate(ctx context.Context, v any) error {
	if v == nil {
		return nil
	}
	return n.inner.Validate(ctx, v)
}

func (n *NullableSchema[E]) ValidateValue(ctx context.Context, v *E) error {
	if v == nil {
		return nil
	}
	return n.inner.ValidateValue(ctx, *v)
}

func (n *NullableSchema[E]) JSONSchema() (*js.Schema, error) {
	inner, err := n.inner.JSONSchema()
	if err != nil {
		return nil, err
	}
	return &js.Schema{OneOf: []*js.Schema{{Type: "null"}, inner}}, nil
}

func (n *NullableSchema[E]) Fingerprint() treaty.Fingerprint {
	return treaty.NewFingerprint(n.irNode().Canonical())
}

func (n *NullableSchema[E]) DefError() *treaty.DefinitionError { return n.defErr }

func (n *NullableSchema[E]) irNode() *ir.Node {
	elem := n.innerNode
	if elem == nil {
		elem = nodeOf(n.inner)
	}
	return &ir.Node{Kind: ir.KindNullable, Elem: elem}
}

func (n *NullableSchema[E]) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[*E](n), node: n.irNode(), defErr: n.defErr}
}
