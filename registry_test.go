package treaty_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	treaty "github.com/reoring/treaty"
	g "github.com/reoring/treaty/dsl"
)

func userV1() treaty.AnySchema {
	return treaty.SchemaOf[map[string]any](g.Object().
		Field("name", g.String().MinLen(1)).
		Field("age", g.Number().Int().Min(0)).
		Require("name").
		MustBuild())
}

func userV2() treaty.AnySchema {
	return treaty.SchemaOf[map[string]any](g.Object().
		Field("name", g.String().MinLen(1)).
		Field("age", g.Number().Int().Min(0)).
		Field("email", g.String().Pattern(`@`)).
		Require("name", "email").
		MustBuild())
}

func TestRegisterAndGet(t *testing.T) {
	r := treaty.NewRegistry()
	c, err := r.Register("user.v1", "CreateUserRequest", userV1())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if c.Version() != 1 || c.Group() != "user.v1" || c.Name() != "CreateUserRequest" {
		t.Fatalf("unexpected contract: %v", c)
	}
	got, err := r.Get("user.v1", "CreateUserRequest")
	if err != nil || got != c {
		t.Fatalf("get: %v %v", got, err)
	}
}

func TestRegisterIdempotentOnEqualFingerprint(t *testing.T) {
	r := treaty.NewRegistry()
	first, err := r.Register("user.v1", "CreateUserRequest", userV1())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// A structurally equal schema built independently carries the same
	// fingerprint, so re-registration is a no-op.
	again, err := r.Register("user.v1", "CreateUserRequest", userV1())
	if err != nil {
		t.Fatalf("idempotent register: %v", err)
	}
	if again != first {
		t.Fatalf("idempotent register returned a different contract")
	}
	if r.Len() != 1 {
		t.Fatalf("registry size changed on idempotent register: %d", r.Len())
	}
}

func TestRegisterConflictingSchemaFails(t *testing.T) {
	r := treaty.NewRegistry()
	if _, err := r.Register("user.v1", "CreateUserRequest", userV1()); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := r.Register("user.v1", "CreateUserRequest", userV2())
	var dup *treaty.DuplicateContractError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateContractError, got %v", err)
	}
	if dup.Group != "user.v1" || dup.Name != "CreateUserRequest" {
		t.Fatalf("error misidentifies the contract: %+v", dup)
	}
	if r.Len() != 1 {
		t.Fatalf("failed registration changed the registry")
	}
}

func TestRegisterNewVersionIsMonotonic(t *testing.T) {
	r := treaty.NewRegistry()
	v1, _ := r.Register("user.v1", "CreateUserRequest", userV1())
	v2, err := r.RegisterNewVersion("user.v1", "CreateUserRequest", userV2())
	if err != nil {
		t.Fatalf("new version: %v", err)
	}
	if v2.Version() != 2 {
		t.Fatalf("expected version 2, got %d", v2.Version())
	}

	// Latest resolves to v2; v1 stays reachable.
	latest, _ := r.Get("user.v1", "CreateUserRequest")
	if latest != v2 {
		t.Fatalf("latest is not v2")
	}
	old, err := r.GetVersion("user.v1", "CreateUserRequest", 1)
	if err != nil || old != v1 {
		t.Fatalf("v1 unreachable: %v %v", old, err)
	}

	// Same schema again: idempotent, no v3.
	again, err := r.RegisterNewVersion("user.v1", "CreateUserRequest", userV2())
	if err != nil || again != v2 {
		t.Fatalf("idempotent new version: %v %v", again, err)
	}
	vs, _ := r.Versions("user.v1", "CreateUserRequest")
	if len(vs) != 2 || vs[0].Version() != 1 || vs[1].Version() != 2 {
		t.Fatalf("version chain wrong: %v", vs)
	}
}

func TestRegisterNewVersionRequiresExistingName(t *testing.T) {
	r := treaty.NewRegistry()
	_, err := r.RegisterNewVersion("user.v1", "Ghost", userV1())
	var nf *treaty.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGetVersionBounds(t *testing.T) {
	r := treaty.NewRegistry()
	r.MustRegister("user.v1", "CreateUserRequest", userV1())
	for _, v := range []int{0, -1, 2, 99} {
		if _, err := r.GetVersion("user.v1", "CreateUserRequest", v); err == nil {
			t.Fatalf("version %d should not resolve", v)
		}
	}
}

func TestMustRegisterPanicsOnConflict(t *testing.T) {
	r := treaty.NewRegistry()
	r.MustRegister("user.v1", "X", userV1())
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	r.MustRegister("user.v1", "X", userV2())
}

func TestRegisterRejectsDefinitionErrors(t *testing.T) {
	r := treaty.NewRegistry()
	bad := treaty.SchemaOf[string](g.String().Pattern("("))
	_, err := r.Register("user.v1", "Bad", bad)
	var de *treaty.DefinitionError
	if !errors.As(err, &de) {
		t.Fatalf("expected DefinitionError, got %v", err)
	}
}

func TestGroupsAndList(t *testing.T) {
	r := treaty.NewRegistry()
	r.MustRegister("user.v1", "B", userV1())
	r.MustRegister("user.v1", "A", userV1())
	r.MustRegister("billing.v1", "Invoice", userV1())

	groups := r.Groups()
	if len(groups) != 2 || groups[0] != "billing.v1" || groups[1] != "user.v1" {
		t.Fatalf("groups not sorted: %v", groups)
	}
	list, err := r.List("user.v1")
	if err != nil || len(list) != 2 || list[0].Name() != "A" || list[1].Name() != "B" {
		t.Fatalf("list wrong: %v %v", list, err)
	}
	if _, err := r.List("nope"); err == nil {
		t.Fatalf("missing group should not list")
	}
}

func TestMergeDeduplicatesByFingerprint(t *testing.T) {
	r := treaty.NewRegistry()
	r.MustRegister("a", "Shared", userV1())
	r.MustRegister("a", "OnlyA", userV1())
	r.MustRegister("b", "Shared", userV1())
	r.MustRegister("b", "OnlyB", userV2())

	m, err := r.Merge("a", "b")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 names after dedupe, got %d (%v)", m.Len(), m.Names())
	}
	if m.Name() != "a+b" {
		t.Fatalf("merged name: %s", m.Name())
	}
}

func TestMergeConflictAcrossRegistries(t *testing.T) {
	ra := treaty.NewRegistry()
	rb := treaty.NewRegistry()
	ra.MustRegister("a", "X", userV1())
	rb.MustRegister("b", "X", userV2())

	ga, _ := ra.Group("a")
	gb, _ := rb.Group("b")
	_, err := treaty.MergeGroups(ga, gb)
	var mc *treaty.MergeConflictError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MergeConflictError, got %v", err)
	}
	if mc.Name != "X" {
		t.Fatalf("conflict misidentifies contract: %+v", mc)
	}
}

func TestMergeConflictWithinOneRegistry(t *testing.T) {
	r := treaty.NewRegistry()
	r.MustRegister("a", "X", userV1())
	r.MustRegister("b", "X", userV2())
	_, err := r.Merge("a", "b")
	var mc *treaty.MergeConflictError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MergeConflictError, got %v", err)
	}
}

// Readers must always observe a complete snapshot while writers append
// versions concurrently.
func TestConcurrentReadsDuringWrites(t *testing.T) {
	r := treaty.NewRegistry()
	r.MustRegister("g", "C", userV1())

	const writers = 50
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		for i := 0; i < writers; i++ {
			s := treaty.SchemaOf[map[string]any](g.Object().
				Field("name", g.String().MinLen(i + 1)).
				MustBuild())
			if _, err := r.RegisterNewVersion("g", "C", s); err != nil {
				t.Errorf("writer: %v", err)
				return
			}
		}
	}()

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c, err := r.Get("g", "C")
				if err != nil || c == nil {
					t.Errorf("reader: %v", err)
					return
				}
				if v := c.Version(); v < 1 || v > writers+1 {
					t.Errorf("impossible version %d", v)
					return
				}
			}
		}()
	}
	wg.Wait()

	final, _ := r.Get("g", "C")
	if final.Version() != writers+1 {
		t.Fatalf("expected final version %d, got %d", writers+1, final.Version())
	}
	if r.Len() != writers+1 {
		t.Fatalf("registry total wrong: %d", r.Len())
	}
}

func TestContractStringForm(t *testing.T) {
	r := treaty.NewRegistry()
	c := r.MustRegister("user.v1", "CreateUserRequest", userV1())
	want := fmt.Sprintf("user.v1/CreateUserRequest@v%d", c.Version())
	if c.String() != want {
		t.Fatalf("String() = %q, want %q", c.String(), want)
	}
}
