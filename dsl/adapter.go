package dsl

import (
	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/internal/ir"
)

// AnyAdapter is what Object().Field accepts: any schema built by this
// package, or an external treaty.Schema wrapped with Of/OfAny. It exposes the
// erased validation surface together with the canonical node used for
// fingerprinting.
type AnyAdapter interface {
	adapt() fieldCore
}

// fieldCore is the package-internal view of a field's schema.
type fieldCore struct {
	schema treaty.AnySchema
	node   *ir.Node
	defErr *treaty.DefinitionError
}

// Of wraps an arbitrary typed schema for use as an object field or array
// element. Schemas built outside this package contribute their fingerprint
// (not their structure) to the parent's identity.
func Of[T any](s treaty.Schema[T]) AnyAdapter {
	return extAdapter{schema: treaty.SchemaOf(s)}
}

// OfAny is Of for an already-erased schema.
func OfAny(s treaty.AnySchema) AnyAdapter {
	return extAdapter{schema: s}
}

// Erased returns the type-erased schema behind any Field-accepted value.
// Callers composing schemas across kinds (the contract file loader among
// them) use it to hand a finished schema to the registry.
func Erased(a AnyAdapter) treaty.AnySchema {
	if a == nil {
		return nil
	}
	return a.adapt().schema
}

type extAdapter struct{ schema treaty.AnySchema }

func (a extAdapter) adapt() fieldCore {
	if a.schema == nil {
		return fieldCore{defErr: &treaty.DefinitionError{Detail: "nil schema"}}
	}
	return fieldCore{
		schema: a.schema,
		node:   nodeOf(a.schema),
		defErr: defErrorOf(a.schema),
	}
}

// nodeOf recovers the canonical node from schemas of this package and falls
// back to a by-reference leaf for external implementations.
func nodeOf(s any) *ir.Node {
	if n, ok := s.(interface{ irNode() *ir.Node }); ok {
		return n.irNode()
	}
	if fp, ok := s.(interface{ Fingerprint() treaty.Fingerprint }); ok {
		return &ir.Node{Kind: ir.KindAny, Ext: fp.Fingerprint().String()}
	}
	return &ir.Node{Kind: ir.KindAny}
}

func defErrorOf(s any) *treaty.DefinitionError {
	if d, ok := s.(interface{ DefError() *treaty.DefinitionError }); ok {
		return d.DefError()
	}
	return nil
}

// rebase prefixes child-relative issue paths with the parent pointer.
func rebase(base string, err error) treaty.Issues {
	iss, ok := treaty.AsIssues(err)
	if !ok {
		return treaty.AppendIssues(nil, treaty.Issue{
			Path: base, Code: treaty.CodeParseError, Message: err.Error(), Cause: err,
		})
	}
	out := make(treaty.Issues, 0, len(iss))
	for _, it := range iss {
		it.Path = treaty.JoinPath(base, it.Path)
		out = append(out, it)
	}
	return out
}
