package dsl

import (
	"context"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/i18n"
	"github.com/reoring/treaty/internal/ir"
	js "github.com/reoring/treaty/jsonschema"
)

// Array returns a schema for arrays whose elements all satisfy elem.
func Array[E any](elem treaty.Schema[E]) *ArraySchema[E] {
	a := &ArraySchema[E]{elem: elem}
	if elem == nil {
		a.defErr = defErrf("array with nil element schema")
		return a
	}
	a.defErr = defErrorOf(elem)
	return a
}

// ArrayOf is Array for a type-erased element. The element keeps its
// structural identity, so a composition built dynamically (for example from
// a contract file) fingerprints the same as its typed equivalent.
func ArrayOf(elem AnyAdapter) *ArraySchema[any] {
	if elem == nil {
		return &ArraySchema[any]{defErr: defErrf("array with nil element schema")}
	}
	core := elem.adapt()
	return &ArraySchema[any]{elem: core.schema, elemNode: core.node, defErr: core.defErr}
}

type ArraySchema[E any] struct {
	elem               treaty.Schema[E]
	elemNode           *ir.Node
	minItems, maxItems *int
	defErr             *treaty.DefinitionError
}

// MinItems requires at least n elements.
func (a *ArraySchema[E]) MinItems(n int) *ArraySchema[E] {
	if n < 0 {
		return a.fail("array MinItems(%d): negative bound", n)
	}
	a.minItems = &n
	return a.checkBounds()
}

// MaxItems allows at most n elements.
func (a *ArraySchema[E]) MaxItems(n int) *ArraySchema[E] {
	if n < 0 {
		return a.fail("array MaxItems(%d): negative bound", n)
	}
	a.maxItems = &n
	return a.checkBounds()
}

func (a *ArraySchema[E]) checkBounds() *ArraySchema[E] {
	if a.minItems != nil && a.maxItems != nil && *a.minItems > *a.maxItems {
		return a.fail("array bounds inverted: MinItems(%d) > MaxItems(%d)", *a.minItems, *a.maxItems)
	}
	return a
}

func (a *ArraySchema[E]) Parse(ctx context.Context, v any) ([]E, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, typeIssue("array", v)
	}
	failFast := treaty.IsFailFast(ctx)
	var iss treaty.Issues
	if lenIss := a.checkLen(len(arr)); lenIss != nil {
		if failFast {
			return nil, lenIss
		}
		iss = treaty.AppendIssues(iss, lenIss...)
	}
	out := make([]E, 0, len(arr))
	for i, item := range arr {
		ev, err := a.elem.Parse(ctx, item)
		if err != nil {
			iss = treaty.AppendIssues(iss, rebase(treaty.PathIndex("", i), err)...)
			if failFast {
				return nil, iss
			}
			continue
		}
		out = append(out, ev)
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

func (a *ArraySchema[E]) Validate(ctx context.Context, v any) error {
	arr, ok := v.([]any)
	if !ok {
		return typeIssue("array", v)
	}
	iss := a.checkLen(len(arr))
	for i, item := range arr {
		if err := a.elem.Validate(ctx, item); err != nil {
			iss = treaty.AppendIssues(iss, rebase(treaty.PathIndex("", i), err)...)
		}
	}
	if len(iss) > 0 {
		return iss
	}
	return nil
}

func (a *ArraySchema[E]) ValidateValue(ctx context.Context, v []E) error {
	iss := a.checkLen(len(v))
	for i, item := range v {
		if err := a.elem.ValidateValue(ctx, item); err != nil {
			iss = treaty.AppendIssues(iss, rebase(treaty.PathIndex("", i), err)...)
		}
	}
	if len(iss) > 0 {
		return iss
	}
	return nil
}

func (a *ArraySchema[E]) checkLen(n int) treaty.Issues {
	var iss treaty.Issues
	if a.minItems != nil && n < *a.minItems {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeTooShort, Message: i18n.T(treaty.CodeTooShort, nil),
			Params: map[string]any{"min": *a.minItems, "got": n},
		})
	}
	if a.maxItems != nil && n > *a.maxItems {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeTooLong, Message: i18n.T(treaty.CodeTooLong, nil),
			Params: map[string]any{"max": *a.maxItems, "got": n},
		})
	}
	return iss
}

func (a *ArraySchema[E]) JSONSchema() (*js.Schema, error) {
	items, err := a.elem.JSONSchema()
	if err != nil {
		return nil, err
	}
	return &js.Schema{
		Type:     "array",
		Items:    items,
		MinItems: cloneInt(a.minItems),
		MaxItems: cloneInt(a.maxItems),
	}, nil
}

func (a *ArraySchema[E]) Fingerprint() treaty.Fingerprint {
	return treaty.NewFingerprint(a.irNode().Canonical())
}

func (a *ArraySchema[E]) DefError() *treaty.DefinitionError { return a.defErr }

func (a *ArraySchema[E]) irNode() *ir.Node {
	elem := a.elemNode
	if elem == nil {
		elem = nodeOf(a.elem)
	}
	return &ir.Node{
		Kind:     ir.KindArray,
		Elem:     elem,
		MinItems: cloneInt(a.minItems),
		MaxItems: cloneInt(a.maxItems),
	}
}

func (a *ArraySchema[E]) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[[]E](a), node: a.irNode(), defErr: a.defErr}
}

func (a *ArraySchema[E]) fail(format string, args ...any) *ArraySchema[E] {
	if a.defErr == nil {
		a.defErr = defErrf(format, args...)
	}
	return a
}
