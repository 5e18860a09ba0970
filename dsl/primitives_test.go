package dsl_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	treaty "github.com/reoring/treaty"
	g "github.com/reoring/treaty/dsl"
)

func TestStringConstraintsCollectAllIssues(t *testing.T) {
	ctx := context.Background()
	s := g.String().MinLen(5).Pattern(`^[a-z]+$`)

	_, err := s.Parse(ctx, "A1")
	iss, ok := treaty.AsIssues(err)
	if !ok {
		t.Fatalf("expected Issues, got %v", err)
	}
	if len(iss) != 2 {
		t.Fatalf("expected both violations reported, got %v", iss)
	}
	codes := map[string]bool{}
	for _, it := range iss {
		codes[it.Code] = true
	}
	if !codes[treaty.CodeTooShort] || !codes[treaty.CodePattern] {
		t.Fatalf("unexpected codes: %v", iss)
	}
}

func TestStringEnum(t *testing.T) {
	ctx := context.Background()
	s := g.String().Enum("pending", "active", "closed")
	if _, err := s.Parse(ctx, "active"); err != nil {
		t.Fatalf("enum member rejected: %v", err)
	}
	_, err := s.Parse(ctx, "deleted")
	iss, _ := treaty.AsIssues(err)
	if len(iss) != 1 || iss[0].Code != treaty.CodeInvalidEnum {
		t.Fatalf("expected invalid_enum, got %v", err)
	}
}

func TestStringLengthCountsRunes(t *testing.T) {
	ctx := context.Background()
	s := g.String().MaxLen(3)
	if _, err := s.Parse(ctx, "日本語"); err != nil {
		t.Fatalf("3 runes should satisfy MaxLen(3): %v", err)
	}
	if _, err := s.Parse(ctx, "日本語!"); err == nil {
		t.Fatalf("4 runes must violate MaxLen(3)")
	}
}

func TestNumberStrictRejectsStringsAndBools(t *testing.T) {
	ctx := context.Background()
	n := g.Number()
	if _, err := n.Parse(ctx, json.Number("42")); err != nil {
		t.Fatalf("json.Number rejected: %v", err)
	}
	if _, err := n.Parse(ctx, 42.5); err != nil {
		t.Fatalf("float64 rejected: %v", err)
	}
	if _, err := n.Parse(ctx, "42"); err == nil {
		t.Fatalf("strict number accepted a string")
	}
	_, err := n.Parse(ctx, true)
	iss, _ := treaty.AsIssues(err)
	if len(iss) != 1 || iss[0].Code != treaty.CodeInvalidType {
		t.Fatalf("expected invalid_type for bool, got %v", err)
	}
}

func TestNumberCoerceAcceptsNumericStringsOnly(t *testing.T) {
	ctx := context.Background()
	n := g.Number().Coerce()
	v, err := n.Parse(ctx, "42.5")
	if err != nil || v != 42.5 {
		t.Fatalf("coerce from numeric string failed: v=%v err=%v", v, err)
	}
	if _, err := n.Parse(ctx, "forty-two"); err == nil {
		t.Fatalf("coerce accepted non-numeric text")
	}
	// Booleans stay rejected even under coercion.
	if _, err := n.Parse(ctx, true); err == nil {
		t.Fatalf("coerce accepted a bool")
	}
}

func TestNumberBoundsAndInt(t *testing.T) {
	ctx := context.Background()
	n := g.Number().Int().Min(0).Max(150)

	_, err := n.Parse(ctx, json.Number("-3.5"))
	iss, _ := treaty.AsIssues(err)
	if len(iss) != 2 {
		t.Fatalf("expected integer+min violations together, got %v", err)
	}
	if _, err := n.Parse(ctx, json.Number("200")); err == nil {
		t.Fatalf("max bound not enforced")
	}
	if v, err := n.Parse(ctx, json.Number("30")); err != nil || v != 30 {
		t.Fatalf("valid integer rejected: v=%v err=%v", v, err)
	}
}

func TestNumberOverflow(t *testing.T) {
	ctx := context.Background()
	_, err := g.Number().Parse(ctx, json.Number("1e400"))
	iss, _ := treaty.AsIssues(err)
	if len(iss) != 1 || iss[0].Code != treaty.CodeOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestTimeStrictWantsRFC3339String(t *testing.T) {
	ctx := context.Background()
	ts := g.Time()
	v, err := ts.Parse(ctx, "2026-01-02T03:04:05Z")
	if err != nil {
		t.Fatalf("RFC3339 rejected: %v", err)
	}
	if !v.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("wrong instant: %v", v)
	}
	_, err = ts.Parse(ctx, "tomorrow")
	iss, _ := treaty.AsIssues(err)
	if len(iss) != 1 || iss[0].Code != treaty.CodeInvalidFormat {
		t.Fatalf("expected invalid_format, got %v", err)
	}
	if _, err := ts.Parse(ctx, json.Number("1767322800")); err == nil {
		t.Fatalf("strict time accepted epoch number")
	}
}

func TestTimeCoerceAcceptsEpochSeconds(t *testing.T) {
	ctx := context.Background()
	ts := g.Time().Coerce()
	v, err := ts.Parse(ctx, json.Number("1767322800"))
	if err != nil {
		t.Fatalf("epoch seconds rejected under coerce: %v", err)
	}
	if !v.Equal(time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong instant from epoch: %v", v)
	}
}

func TestDefinitionErrorsSurfaceLazily(t *testing.T) {
	s := g.String().Pattern("(")
	if s.DefError() == nil {
		t.Fatalf("bad pattern should record a definition error")
	}
	n := g.Number().Min(10).Max(1)
	if n.DefError() == nil {
		t.Fatalf("inverted bounds should record a definition error")
	}
	if _, err := g.Object().Field("x", s).Build(); err == nil {
		t.Fatalf("Build must propagate the child definition error")
	}
}
