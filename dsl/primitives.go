package dsl

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/codec"
	"github.com/reoring/treaty/i18n"
	"github.com/reoring/treaty/internal/ir"
	js "github.com/reoring/treaty/jsonschema"
)

// String returns a string schema. Constraint methods mutate and return the
// receiver; treat the value as frozen once it is used or registered.
func String() *StringSchema { return &StringSchema{} }

type StringSchema struct {
	minLen, maxLen *int
	patternSrc     string
	pattern        *regexp.Regexp
	enum           []string
	defErr         *treaty.DefinitionError
}

// MinLen requires at least n runes.
func (s *StringSchema) MinLen(n int) *StringSchema {
	if n < 0 {
		return s.fail("string MinLen(%d): negative bound", n)
	}
	s.minLen = &n
	return s.checkBounds()
}

// MaxLen allows at most n runes.
func (s *StringSchema) MaxLen(n int) *StringSchema {
	if n < 0 {
		return s.fail("string MaxLen(%d): negative bound", n)
	}
	s.maxLen = &n
	return s.checkBounds()
}

// Pattern requires the value to match the RE2 expression expr.
func (s *StringSchema) Pattern(expr string) *StringSchema {
	re, err := regexp.Compile(expr)
	if err != nil {
		return s.fail("string Pattern(%q): %v", expr, err)
	}
	s.patternSrc, s.pattern = expr, re
	return s
}

// Enum restricts the value to the given set.
func (s *StringSchema) Enum(vals ...string) *StringSchema {
	if len(vals) == 0 {
		return s.fail("string Enum: empty set")
	}
	s.enum = append([]string(nil), vals...)
	return s
}

func (s *StringSchema) checkBounds() *StringSchema {
	if s.minLen != nil && s.maxLen != nil && *s.minLen > *s.maxLen {
		return s.fail("string bounds inverted: MinLen(%d) > MaxLen(%d)", *s.minLen, *s.maxLen)
	}
	return s
}

func (s *StringSchema) Parse(ctx context.Context, v any) (string, error) {
	str, ok := v.(string)
	if !ok {
		return "", typeIssue("string", v)
	}
	if iss := s.check(str, treaty.IsFailFast(ctx)); len(iss) > 0 {
		return "", iss
	}
	return str, nil
}

func (s *StringSchema) Validate(ctx context.Context, v any) error {
	str, ok := v.(string)
	if !ok {
		return typeIssue("string", v)
	}
	return s.ValidateValue(ctx, str)
}

func (s *StringSchema) ValidateValue(ctx context.Context, v string) error {
	if iss := s.check(v, false); len(iss) > 0 {
		return iss
	}
	return nil
}

func (s *StringSchema) check(str string, failFast bool) treaty.Issues {
	var iss treaty.Issues
	n := utf8.RuneCountInString(str)
	if s.minLen != nil && n < *s.minLen {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeTooShort, Message: i18n.T(treaty.CodeTooShort, nil),
			Params: map[string]any{"min": *s.minLen, "got": n},
		})
		if failFast {
			return iss
		}
	}
	if s.maxLen != nil && n > *s.maxLen {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeTooLong, Message: i18n.T(treaty.CodeTooLong, nil),
			Params: map[string]any{"max": *s.maxLen, "got": n},
		})
		if failFast {
			return iss
		}
	}
	if s.pattern != nil && !s.pattern.MatchString(str) {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodePattern, Message: i18n.T(treaty.CodePattern, nil),
			Params: map[string]any{"pattern": s.patternSrc},
		})
		if failFast {
			return iss
		}
	}
	if len(s.enum) > 0 {
		found := false
		for _, e := range s.enum {
			if e == str {
				found = true
				break
			}
		}
		if !found {
			iss = treaty.AppendIssues(iss, treaty.Issue{
				Path: "/", Code: treaty.CodeInvalidEnum, Message: i18n.T(treaty.CodeInvalidEnum, nil),
				Params: map[string]any{"allowed": append([]string(nil), s.enum...), "got": str},
			})
		}
	}
	return iss
}

func (s *StringSchema) JSONSchema() (*js.Schema, error) {
	out := &js.Schema{Type: "string", Pattern: s.patternSrc}
	out.MinLength = cloneInt(s.minLen)
	out.MaxLength = cloneInt(s.maxLen)
	if len(s.enum) > 0 {
		out.Enum = append([]string(nil), s.enum...)
	}
	return out, nil
}

func (s *StringSchema) Fingerprint() treaty.Fingerprint {
	return treaty.NewFingerprint(s.irNode().Canonical())
}

func (s *StringSchema) DefError() *treaty.DefinitionError { return s.defErr }

func (s *StringSchema) irNode() *ir.Node {
	n := &ir.Node{Kind: ir.KindString, Pattern: s.patternSrc}
	n.MinLen = cloneInt(s.minLen)
	n.MaxLen = cloneInt(s.maxLen)
	if len(s.enum) > 0 {
		n.Enum = append([]string(nil), s.enum...)
	}
	return n
}

func (s *StringSchema) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[string](s), node: s.irNode(), defErr: s.defErr}
}

func (s *StringSchema) fail(format string, args ...any) *StringSchema {
	if s.defErr == nil {
		s.defErr = defErrf(format, args...)
	}
	return s
}

// Number returns a number schema for float64 wire numbers.
func Number() *NumberSchema { return &NumberSchema{} }

type NumberSchema struct {
	min, max *float64
	integer  bool
	coerce   bool
	defErr   *treaty.DefinitionError
}

// Min requires the value to be >= v.
func (n *NumberSchema) Min(v float64) *NumberSchema {
	n.min = &v
	return n.checkBounds()
}

// Max requires the value to be <= v.
func (n *NumberSchema) Max(v float64) *NumberSchema {
	n.max = &v
	return n.checkBounds()
}

// Int restricts the value to integral numbers.
func (n *NumberSchema) Int() *NumberSchema {
	n.integer = true
	return n
}

// Coerce accepts numeric strings in addition to numbers. Booleans are never
// coerced. The lenient mode is part of the schema's identity.
func (n *NumberSchema) Coerce() *NumberSchema {
	n.coerce = true
	return n
}

func (n *NumberSchema) checkBounds() *NumberSchema {
	if n.min != nil && n.max != nil && *n.min > *n.max {
		return n.fail("number bounds inverted: Min(%v) > Max(%v)", *n.min, *n.max)
	}
	return n
}

func (n *NumberSchema) Parse(ctx context.Context, v any) (float64, error) {
	f, iss := n.toFloat(v)
	if iss != nil {
		return 0, iss
	}
	if iss := n.check(f, treaty.IsFailFast(ctx)); len(iss) > 0 {
		return 0, iss
	}
	return f, nil
}

func (n *NumberSchema) Validate(ctx context.Context, v any) error {
	f, iss := n.toFloat(v)
	if iss != nil {
		return iss
	}
	return n.ValidateValue(ctx, f)
}

func (n *NumberSchema) ValidateValue(ctx context.Context, v float64) error {
	if iss := n.check(v, false); len(iss) > 0 {
		return iss
	}
	return nil
}

// toFloat maps wire and in-memory representations onto float64. Booleans are
// rejected unconditionally; strings only pass under Coerce.
func (n *NumberSchema) toFloat(v any) (float64, treaty.Issues) {
	switch x := v.(type) {
	case json.Number:
		return parseNumberText(string(x), false)
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		if !n.coerce {
			return 0, typeIssue("number", v)
		}
		return parseNumberText(x, true)
	case bool:
		return 0, treaty.Issues{{
			Path: "/", Code: treaty.CodeInvalidType, Message: i18n.T(treaty.CodeInvalidType, nil),
			Hint: "booleans are never coerced to numbers",
			Params: map[string]any{"expected": "number", "got": "bool"},
		}}
	default:
		return 0, typeIssue("number", v)
	}
}

func (n *NumberSchema) check(f float64, failFast bool) treaty.Issues {
	var iss treaty.Issues
	if n.integer && math.Trunc(f) != f {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeInvalidType, Message: i18n.T(treaty.CodeInvalidType, nil),
			Params: map[string]any{"expected": "integer", "got": f},
		})
		if failFast {
			return iss
		}
	}
	if n.min != nil && f < *n.min {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeTooSmall, Message: i18n.T(treaty.CodeTooSmall, nil),
			Params: map[string]any{"min": *n.min, "got": f},
		})
		if failFast {
			return iss
		}
	}
	if n.max != nil && f > *n.max {
		iss = treaty.AppendIssues(iss, treaty.Issue{
			Path: "/", Code: treaty.CodeTooBig, Message: i18n.T(treaty.CodeTooBig, nil),
			Params: map[string]any{"max": *n.max, "got": f},
		})
	}
	return iss
}

func (n *NumberSchema) JSONSchema() (*js.Schema, error) {
	typ := "number"
	if n.integer {
		typ = "integer"
	}
	return &js.Schema{
		Type:    typ,
		Minimum: cloneFloat(n.min),
		Maximum: cloneFloat(n.max),
		XCoerce: n.coerce,
	}, nil
}

func (n *NumberSchema) Fingerprint() treaty.Fingerprint {
	return treaty.NewFingerprint(n.irNode().Canonical())
}

func (n *NumberSchema) DefError() *treaty.DefinitionError { return n.defErr }

func (n *NumberSchema) irNode() *ir.Node {
	return &ir.Node{
		Kind:   ir.KindNumber,
		Min:    cloneFloat(n.min),
		Max:    cloneFloat(n.max),
		Int:    n.integer,
		Coerce: n.coerce,
	}
}

func (n *NumberSchema) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[float64](n), node: n.irNode(), defErr: n.defErr}
}

func (n *NumberSchema) fail(format string, args ...any) *NumberSchema {
	if n.defErr == nil {
		n.defErr = defErrf(format, args...)
	}
	return n
}

// Bool returns a bool schema. Bools neither coerce nor get coerced.
func Bool() *BoolSchema { return &BoolSchema{} }

type BoolSchema struct{}

func (b *BoolSchema) Parse(ctx context.Context, v any) (bool, error) {
	x, ok := v.(bool)
	if !ok {
		return false, typeIssue("bool", v)
	}
	return x, nil
}

func (b *BoolSchema) Validate(ctx context.Context, v any) error {
	if _, ok := v.(bool); !ok {
		return typeIssue("bool", v)
	}
	return nil
}

func (b *BoolSchema) ValidateValue(ctx context.Context, v bool) error { return nil }

func (b *BoolSchema) JSONSchema() (*js.Schema, error) {
	return &js.Schema{Type: "boolean"}, nil
}

func (b *BoolSchema) Fingerprint() treaty.Fingerprint {
	return treaty.NewFingerprint(b.irNode().Canonical())
}

func (b *BoolSchema) DefError() *treaty.DefinitionError { return nil }

func (b *BoolSchema) irNode() *ir.Node { return &ir.Node{Kind: ir.KindBool} }

func (b *BoolSchema) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[bool](b), node: b.irNode()}
}

// Time returns a timestamp schema. The wire form is an RFC 3339 string;
// Coerce additionally accepts epoch seconds as a number.
func Time() *TimeSchema { return &TimeSchema{} }

type TimeSchema struct {
	coerce bool
}

// Coerce accepts numeric epoch seconds in addition to RFC 3339 text.
func (t *TimeSchema) Coerce() *TimeSchema {
	t.coerce = true
	return t
}

func (t *TimeSchema) Parse(ctx context.Context, v any) (time.Time, error) {
	switch x := v.(type) {
	case string:
		tm, err := codec.ParseRFC3339(x)
		if err != nil {
			return time.Time{}, treaty.Issues{{
				Path: "/", Code: treaty.CodeInvalidFormat, Message: i18n.T(treaty.CodeInvalidFormat, nil),
				Hint: "RFC 3339", Cause: err,
				Params: map[string]any{"got": x},
			}}
		}
		return tm, nil
	case json.Number:
		if !t.coerce {
			return time.Time{}, typeIssue("RFC 3339 string", v)
		}
		f, iss := parseNumberText(string(x), false)
		if iss != nil {
			return time.Time{}, iss
		}
		return codec.FromEpochSeconds(f), nil
	case float64:
		if !t.coerce {
			return time.Time{}, typeIssue("RFC 3339 string", v)
		}
		return codec.FromEpochSeconds(x), nil
	case time.Time:
		return x, nil
	default:
		return time.Time{}, typeIssue("RFC 3339 string", v)
	}
}

func (t *TimeSchema) Validate(ctx context.Context, v any) error {
	_, err := t.Parse(ctx, v)
	return err
}

func (t *TimeSchema) ValidateValue(ctx context.Context, v time.Time) error { return nil }

func (t *TimeSchema) JSONSchema() (*js.Schema, error) {
	return &js.Schema{Type: "string", Format: "date-time", XCoerce: t.coerce}, nil
}

func (t *TimeSchema) Fingerprint() treaty.Fingerprint {
	return treaty.NewFingerprint(t.irNode().Canonical())
}

func (t *TimeSchema) DefError() *treaty.DefinitionError { return nil }

func (t *TimeSchema) irNode() *ir.Node {
	return &ir.Node{Kind: ir.KindTime, Coerce: t.coerce}
}

func (t *TimeSchema) adapt() fieldCore {
	return fieldCore{schema: treaty.SchemaOf[time.Time](t), node: t.irNode()}
}

// ---- shared helpers ----

func typeIssue(expected string, got any) treaty.Issues {
	return treaty.Issues{{
		Path: "/", Code: treaty.CodeInvalidType, Message: i18n.T(treaty.CodeInvalidType, nil),
		Params: map[string]any{"expected": expected, "got": typeName(got)},
	}}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unknown"
	}
}

// parseNumberText converts numeric text to float64, distinguishing range
// overflow from malformed text. coerced marks string-typed input so the
// failure reads as a type problem, not a syntax problem.
func parseNumberText(s string, coerced bool) (float64, treaty.Issues) {
	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f, nil
	}
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return 0, treaty.Issues{{
			Path: "/", Code: treaty.CodeOverflow, Message: i18n.T(treaty.CodeOverflow, nil),
			Params: map[string]any{"got": s},
		}}
	}
	if coerced {
		return 0, treaty.Issues{{
			Path: "/", Code: treaty.CodeInvalidType, Message: i18n.T(treaty.CodeInvalidType, nil),
			Hint: "string is not numeric", Cause: err,
			Params: map[string]any{"expected": "number", "got": s},
		}}
	}
	return 0, treaty.Issues{{
		Path: "/", Code: treaty.CodeParseError, Message: i18n.T(treaty.CodeParseError, nil),
		Cause: err,
		Params: map[string]any{"got": s},
	}}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func defErrf(format string, args ...any) *treaty.DefinitionError {
	return &treaty.DefinitionError{Detail: fmt.Sprintf(format, args...)}
}
