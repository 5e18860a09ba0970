package dsl

import (
	"context"
	"sort"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/i18n"
	"github.com/reoring/treaty/internal/ir"
	js "github.com/reoring/treaty/jsonschema"
)

// Object starts an object schema definition. Unknown keys are rejected
// unless UnknownStrip or UnknownPassthrough is chosen.
func Object() *ObjectBuilder {
	return &ObjectBuilder{
		fields:   map[string]fieldCore{},
		defaults: map[string]any{},
		required: map[string]struct{}{},
		unknown:  treaty.UnknownStrict,
	}
}

type ObjectBuilder struct {
	fields   map[string]fieldCore
	defaults map[string]any
	required map[string]struct{}
	unknown  treaty.UnknownPolicy
	defErr   *treaty.DefinitionError
}

// Field declares a member. Declaring the same name twice is a definition
// error.
func (b *ObjectBuilder) Field(name string, a AnyAdapter) *ObjectBuilder {
	if name == "" {
		return b.fail("object field with empty name")
	}
	if _, dup := b.fields[name]; dup {
		return b.fail("object field %q declared twice", name)
	}
	if a == nil {
		return b.fail("object field %q has nil schema", name)
	}
	b.fields[name] = a.adapt()
	return b
}

// Require marks fields as mandatory. Names must be declared with Field by
// the time Build runs.
func (b *ObjectBuilder) Require(names ...string) *ObjectBuilder {
	for _, n := range names {
		b.required[n] = struct{}{}
	}
	return b
}

// Default supplies a wire-shaped value used when the field is absent from
// the input. The value must satisfy the field's schema.
func (b *ObjectBuilder) Default(name string, v any) *ObjectBuilder {
	if _, dup := b.defaults[name]; dup {
		return b.fail("object field %q has two defaults", name)
	}
	b.defaults[name] = v
	return b
}

// UnknownStrict rejects unknown keys (the default).
func (b *ObjectBuilder) UnknownStrict() *ObjectBuilder {
	b.unknown = treaty.UnknownStrict
	return b
}

// UnknownStrip silently drops unknown keys.
func (b *ObjectBuilder) UnknownStrip() *ObjectBuilder {
	b.unknown = treaty.UnknownStrip
	return b
}

// UnknownPassthrough keeps unknown keys in the parsed output.
func (b *ObjectBuilder) UnknownPassthrough() *ObjectBuilder {
	b.unknown = treaty.UnknownPassthrough
	return b
}

// Build finalizes the schema. All definition faults recorded on the builder
// or its children surface here.
func (b *ObjectBuilder) Build() (*ObjectSchema, error) {
	if b.defErr != nil {
		return nil, b.defErr
	}
	for name, fc := range b.fields {
		if fc.defErr != nil {
			return nil, defErrf("object field %q: %s", name, fc.defErr.Detail)
		}
	}
	for name := range b.required {
		if _, ok := b.fields[name]; !ok {
			return nil, defErrf("required field %q is not declared", name)
		}
	}
	for name, def := range b.defaults {
		fc, ok := b.fields[name]
		if !ok {
			return nil, defErrf("default for undeclared field %q", name)
		}
		if err := fc.schema.Validate(context.Background(), def); err != nil {
			return nil, defErrf("default for field %q fails its schema: %v", name, err)
		}
	}

	s := &ObjectSchema{
		fields:   make(map[string]fieldCore, len(b.fields)),
		defaults: make(map[string]any, len(b.defaults)),
		required: make(map[string]struct{}, len(b.required)),
		unknown:  b.unknown,
	}
	for k, v := range b.fields {
		s.fields[k] = v
		s.known = append(s.known, k)
	}
	sort.Strings(s.known)
	for k, v := range b.defaults {
		s.defaults[k] = v
	}
	for k := range b.required {
		s.required[k] = struct{}{}
	}
	s.node = s.buildNode()
	s.fp = treaty.NewFingerprint(s.node.Canonical())
	return s, nil
}

// MustBuild is Build that panics on definition errors. Intended for
// package-level schema declarations.
func (b *ObjectBuilder) MustBuild() *ObjectSchema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *ObjectBuilder) fail(format string, args ...any) *ObjectBuilder {
	if b.defErr == nil {
		b.defErr = defErrf(format, args...)
	}
	return b
}

// ObjectSchema validates map[string]any wire objects. Values are immutable
// once built.
type ObjectSchema struct {
	fields   map[string]fieldCore
	known    []string // sorted field names; fixes issue ordering
	defaults map[string]any
	required map[string]struct{}
	unknown  treaty.UnknownPolicy
	node     *ir.Node
	fp       treaty.Fingerprint
}

func (o *ObjectSchema) Parse(ctx context.Context, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeIssue("object", v)
	}
	failFast := treaty.IsFailFast(ctx)
	out := make(map[string]any, len(m))
	var iss treaty.Issues

	for _, name := range o.known {
		fc := o.fields[name]
		raw, present := m[name]
		if !present {
			if def, hasDef := o.defaults[name]; hasDef {
				dv, derr := fc.schema.Parse(ctx, def)
				if derr != nil {
					// Defaults were validated at Build; a failure here means
					// the caller mutated the default value afterwards.
					iss = treaty.AppendIssues(iss, rebase(treaty.PathField("", name), derr)...)
					if failFast {
						return nil, iss
					}
					continue
				}
				out[name] = dv
				continue
			}
			if _, req := o.required[name]; req {
				iss = treaty.AppendIssues(iss, treaty.Issue{
					Path: treaty.PathField("", name), Code: treaty.CodeRequired,
					Message: i18n.T(treaty.CodeRequired, nil),
				})
				if failFast {
					return nil, iss
				}
			}
			continue
		}
		cv, cerr := fc.schema.Parse(ctx, raw)
		if cerr != nil {
			iss = treaty.AppendIssues(iss, rebase(treaty.PathField("", name), cerr)...)
			if failFast {
				return nil, iss
			}
			continue
		}
		out[name] = cv
	}

	if unknownIss := o.checkUnknown(m, out, failFast); len(unknownIss) > 0 {
		iss = treaty.AppendIssues(iss, unknownIss...)
		if failFast {
			return nil, iss
		}
	}

	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

func (o *ObjectSchema) Validate(ctx context.Context, v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return typeIssue("object", v)
	}
	var iss treaty.Issues
	for _, name := range o.known {
		fc := o.fields[name]
		raw, present := m[name]
		if !present {
			_, hasDef := o.defaults[name]
			if _, req := o.required[name]; req && !hasDef {
				iss = treaty.AppendIssues(iss, treaty.Issue{
					Path: treaty.PathField("", name), Code: treaty.CodeRequired,
					Message: i18n.T(treaty.CodeRequired, nil),
				})
			}
			continue
		}
		if cerr := fc.schema.Validate(ctx, raw); cerr != nil {
			iss = treaty.AppendIssues(iss, rebase(treaty.PathField("", name), cerr)...)
		}
	}
	iss = treaty.AppendIssues(iss, o.checkUnknown(m, nil, false)...)
	if len(iss) > 0 {
		return iss
	}
	return nil
}

func (o *ObjectSchema) ValidateValue(ctx context.Context, v map[string]any) error {
	return o.Validate(ctx, v)
}

// checkUnknown applies the unknown-key policy. Under passthrough the keys are
// copied into out when it is non-nil; under strict each unknown key becomes
// an issue, reported in sorted order.
func (o *ObjectSchema) checkUnknown(m, out map[string]any, failFast bool) treaty.Issues {
	var unknown []string
	for k := range m {
		if _, known := o.fields[k]; known {
			continue
		}
		switch o.unknown {
		case treaty.UnknownStrip:
			// dropped
		case treaty.UnknownPassthrough:
			if out != nil {
				out[k] = m[k]
			}
		default:
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	if failFast {
		unknown = unknown[:1]
	}
	iss := make(treaty.Issues, 0, len(unknown))
	for _, k := range unknown {
		iss = append(iss, treaty.Issue{
			Path: treaty.PathField("", k), Code: treaty.CodeUnknownKey,
			Message: i18n.T(treaty.CodeUnknownKey, nil),
			Params:  map[string]any{"key": k},
		})
	}
	return iss
}

func (o *ObjectSchema) JSONSchema() (*js.Schema, error) {
	out := &js.Schema{Type: "object"}
	if len(o.fields) > 0 {
		out.Properties = make(map[string]*js.Schema, len(o.fields))
	}
	for _, name := range o.known {
		child, err := o.fields[name].schema.JSONSchema()
		if err != nil {
			return nil, err
		}
		if def, ok := o.defaults[name]; ok {
			child.Default = def
		}
		out.Properties[name] = child
	}
	for name := range o.required {
		out.Required = append(out.Required, name)
	}
	sort.Strings(out.Required)
	// Strip and passthrough both accept unknown input; only strict rejects.
	out.AdditionalProperties = o.unknown != treaty.UnknownStrict
	return out, nil
}

func (o *ObjectSchema) Fingerprint() treaty.Fingerprint { return o.fp }

func (o *ObjectSchema) DefError() *treaty.DefinitionError { return nil }

func (o *ObjectSchema) irNode() *ir.Node { return o.node }

func (o *ObjectSchema) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[map[string]any](o), node: o.node}
}

func (o *ObjectSchema) buildNode() *ir.Node {
	n := &ir.Node{Kind: ir.KindObject, Unknown: unknownName(o.unknown)}
	for _, name := range o.known {
		n.Fields = append(n.Fields, ir.Field{
			Name:    name,
			Node:    o.fields[name].node,
			Default: o.defaults[name],
		})
	}
	for name := range o.required {
		n.Required = append(n.Required, name)
	}
	sort.Strings(n.Required)
	return n
}

func unknownName(p treaty.UnknownPolicy) string {
	switch p {
	case treaty.UnknownStrip:
		return ir.UnknownStrip
	case treaty.UnknownPassthrough:
		return ir.UnknownPassthrough
	default:
		return ir.UnknownReject
	}
}
