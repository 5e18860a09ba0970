package dsl_test

import (
	"context"
	"testing"
	"time"

	treaty "github.com/reoring/treaty"
	g "github.com/reoring/treaty/dsl"
)

type bindUser struct {
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"created_at"`
	Note      *string   `json:"note"`
}

func bindUserBuilder() *g.ObjectBuilder {
	return g.Object().
		Field("name", g.String().MinLen(1)).
		Field("age", g.Number().Int().Min(0)).
		Field("created_at", g.Time()).
		Field("note", g.Nullable[string](g.String())).
		Require("name", "age", "created_at")
}

func TestBindParsesIntoStruct(t *testing.T) {
	ctx := context.Background()
	s := g.MustBind[bindUser](bindUserBuilder())

	u, err := s.Parse(ctx, map[string]any{
		"name":       "Reo",
		"age":        30.0,
		"created_at": "2026-01-02T03:04:05Z",
		"note":       nil,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.Name != "Reo" || u.Age != 30 {
		t.Fatalf("unexpected struct: %+v", u)
	}
	if !u.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("time not bound: %v", u.CreatedAt)
	}
	if u.Note != nil {
		t.Fatalf("null note should bind to nil pointer")
	}
}

func TestBindRejectsKeysWithoutStructFields(t *testing.T) {
	type narrow struct {
		Name string `json:"name"`
	}
	_, err := g.Bind[narrow](bindUserBuilder())
	if err == nil {
		t.Fatalf("bind must fail when the struct cannot hold a declared key")
	}
}

func TestBindRejectsNonStructTarget(t *testing.T) {
	_, err := g.Bind[int](g.Object().Field("a", g.String()))
	if err == nil {
		t.Fatalf("bind to non-struct must fail")
	}
}

func TestBindValidateValueChecksWireShape(t *testing.T) {
	ctx := context.Background()
	s := g.MustBind[bindUser](bindUserBuilder())

	ok := bindUser{Name: "x", Age: 1, CreatedAt: time.Now()}
	if err := s.ValidateValue(ctx, ok); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}
	bad := bindUser{Name: "", Age: -1, CreatedAt: time.Now()}
	err := s.ValidateValue(ctx, bad)
	iss, _ := treaty.AsIssues(err)
	if len(iss) < 2 {
		t.Fatalf("expected name+age violations on re-encoded value, got %v", err)
	}
}

func TestBindSharesFingerprintWithObject(t *testing.T) {
	obj := bindUserBuilder().MustBuild()
	bound := g.MustBind[bindUser](bindUserBuilder())
	if obj.Fingerprint() != bound.Fingerprint() {
		t.Fatalf("binding must not change the wire identity")
	}
}
