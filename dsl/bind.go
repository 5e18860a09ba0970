package dsl

import (
	"context"
	"reflect"
	"strings"

	gojson "github.com/goccy/go-json"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/i18n"
	"github.com/reoring/treaty/internal/ir"
	js "github.com/reoring/treaty/jsonschema"
)

// Bind finalizes the builder and projects the object onto struct type T.
// Wire keys resolve to struct fields through json tags; every declared
// schema field must land on an exported field of T, checked once here
// rather than on every parse.
func Bind[T any](b *ObjectBuilder) (treaty.Schema[T], error) {
	obj, err := b.Build()
	if err != nil {
		return nil, err
	}
	return BindObject[T](obj)
}

// MustBind is Bind that panics on definition errors.
func MustBind[T any](b *ObjectBuilder) treaty.Schema[T] {
	s, err := Bind[T](b)
	if err != nil {
		panic(err)
	}
	return s
}

// BindObject projects an already-built object schema onto T.
func BindObject[T any](obj *ObjectSchema) (treaty.Schema[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, defErrf("bind target %s is not a struct", rt)
	}
	keys := map[string]struct{}{}
	collectStructKeys(rt, keys)
	for _, name := range obj.known {
		if _, ok := keys[name]; !ok {
			return nil, defErrf("bind target %s has no field for key %q", rt, name)
		}
	}
	return &boundSchema[T]{obj: obj}, nil
}

type boundSchema[T any] struct {
	obj *ObjectSchema
}

func (s *boundSchema[T]) Parse(ctx context.Context, v any) (T, error) {
	var zero T
	m, err := s.obj.Parse(ctx, v)
	if err != nil {
		return zero, err
	}
	raw, merr := gojson.Marshal(m)
	if merr != nil {
		return zero, treaty.Issues{{
			Path: "/", Code: treaty.CodeParseError, Message: merr.Error(), Cause: merr,
		}}
	}
	var out T
	if uerr := gojson.Unmarshal(raw, &out); uerr != nil {
		return zero, treaty.Issues{{
			Path: "/", Code: treaty.CodeInvalidType, Message: i18n.T(treaty.CodeInvalidType, nil),
			Hint: "value does not fit the bound struct", Cause: uerr,
		}}
	}
	return out, nil
}

func (s *boundSchema[T]) Validate(ctx context.Context, v any) error {
	return s.obj.Validate(ctx, v)
}

// ValidateValue re-encodes the struct into its wire shape and validates
// that, so required/unknown policies and constraints apply to what would
// actually be sent.
func (s *boundSchema[T]) ValidateValue(ctx context.Context, v T) error {
	raw, err := gojson.Marshal(v)
	if err != nil {
		return treaty.Issues{{
			Path: "/", Code: treaty.CodeParseError, Message: err.Error(), Cause: err,
		}}
	}
	var m map[string]any
	if err := gojson.Unmarshal(raw, &m); err != nil {
		return treaty.Issues{{
			Path: "/", Code: treaty.CodeInvalidType, Message: i18n.T(treaty.CodeInvalidType, nil),
			Cause: err,
		}}
	}
	return s.obj.Validate(ctx, m)
}

func (s *boundSchema[T]) JSONSchema() (*js.Schema, error) { return s.obj.JSONSchema() }

// Fingerprint matches the underlying object schema: binding changes the Go
// projection, not the wire contract.
func (s *boundSchema[T]) Fingerprint() treaty.Fingerprint { return s.obj.Fingerprint() }

func (s *boundSchema[T]) DefError() *treaty.DefinitionError { return nil }

func (s *boundSchema[T]) irNode() *ir.Node { return s.obj.irNode() }

func (s *boundSchema[T]) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[T](s), node: s.obj.irNode()}
}

// collectStructKeys gathers the wire keys reachable on rt, following
// anonymous embedded structs the way encoding/json does.
func collectStructKeys(rt reflect.Type, out map[string]struct{}) {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.Anonymous {
			ft := sf.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && sf.Tag.Get("json") == "" {
				collectStructKeys(ft, out)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		key := resolveFieldKey(sf)
		if key == "-" {
			continue
		}
		out[key] = struct{}{}
	}
}

// resolveFieldKey resolves a struct field's wire key: json tag name when
// present, field name otherwise; "-" disables the field.
func resolveFieldKey(sf reflect.StructField) string {
	jt := sf.Tag.Get("json")
	if jt == "" {
		return sf.Name
	}
	if jt == "-" {
		return "-"
	}
	name := jt
	if i := strings.IndexByte(jt, ','); i >= 0 {
		name = jt[:i]
	}
	if name == "" {
		return sf.Name
	}
	return name
}
