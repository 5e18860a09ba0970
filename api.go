package treaty

import (
	"context"

	js "github.com/reoring/treaty/jsonschema"
)

// Schema is the typed validation surface a contract wraps. Implementations
// live in dsl/; the registry stores them erased as AnySchema.
type Schema[T any] interface {
	// Parse transforms an unknown wire-shaped input into T. On failure the
	// returned error is Issues carrying every violation, not just the first.
	Parse(ctx context.Context, v any) (T, error)

	// Validate checks a wire-shaped value without converting it. It returns
	// nil or Issues and never stops at the first violation.
	Validate(ctx context.Context, v any) error

	// ValidateValue verifies a value already typed as T without conversion
	// (the response self-check path).
	ValidateValue(ctx context.Context, v T) error

	// JSONSchema projects the schema into a JSON Schema representation.
	JSONSchema() (*js.Schema, error)

	// Fingerprint returns the schema's identity hash. Two schemas with equal
	// fingerprints validate identically: structure, constraints, unknown-key
	// policy, and coercion mode all participate.
	Fingerprint() Fingerprint
}

// AnySchema is the type-erased form of Schema[T] stored by contracts and the
// registry. Obtain one with SchemaOf.
type AnySchema interface {
	Parse(ctx context.Context, v any) (any, error)
	Validate(ctx context.Context, v any) error
	ValidateValue(ctx context.Context, v any) error
	JSONSchema() (*js.Schema, error)
	Fingerprint() Fingerprint
}

// SchemaOf erases Schema[T] into an AnySchema.
func SchemaOf[T any](s Schema[T]) AnySchema {
	if s == nil {
		return nil
	}
	return anySchema[T]{inner: s}
}

type anySchema[T any] struct{ inner Schema[T] }

func (a anySchema[T]) Parse(ctx context.Context, v any) (any, error) {
	out, err := a.inner.Parse(ctx, v)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a anySchema[T]) Validate(ctx context.Context, v any) error {
	return a.inner.Validate(ctx, v)
}

// ValidateValue checks the typed path when v is a T. Values constructed in Go
// often hold wire-equivalent shapes instead (an int where T is float64, a
// []any where T is []string); those fall back to Validate, which accepts the
// wire equivalents.
func (a anySchema[T]) ValidateValue(ctx context.Context, v any) error {
	if tv, ok := v.(T); ok {
		return a.inner.ValidateValue(ctx, tv)
	}
	return a.inner.Validate(ctx, v)
}

func (a anySchema[T]) JSONSchema() (*js.Schema, error) { return a.inner.JSONSchema() }
func (a anySchema[T]) Fingerprint() Fingerprint        { return a.inner.Fingerprint() }

// DefError forwards a definition fault recorded by the inner schema, if any.
// The registry refuses to register schemas carrying one.
func (a anySchema[T]) DefError() *DefinitionError {
	if d, ok := any(a.inner).(interface{ DefError() *DefinitionError }); ok {
		return d.DefError()
	}
	return nil
}

// SafeParse parses v into T, returning (zero, false) on validation error.
func SafeParse[T any](ctx context.Context, s Schema[T], v any) (T, bool) {
	val, err := s.Parse(ctx, v)
	if err != nil {
		var zero T
		return zero, false
	}
	return val, true
}

// Is reports whether v conforms to the schema s.
func Is[T any](ctx context.Context, s Schema[T], v any) bool {
	return s.Validate(ctx, v) == nil
}

// ---- Parse-time context options (internal wiring, exported for subpackages) ----

type contextKey int

const _ctxKeyFailFast contextKey = iota

// WithFailFast returns a child context that marks fail-fast parsing behavior.
// This is set by ParseFrom based on ParseOpt and consumed by schema
// implementations; Validate ignores it and always collects every issue.
func WithFailFast(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, _ctxKeyFailFast, enabled)
}

// IsFailFast reports whether the current parse should stop on the first issue.
func IsFailFast(ctx context.Context) bool {
	v := ctx.Value(_ctxKeyFailFast)
	b, _ := v.(bool)
	return b
}
