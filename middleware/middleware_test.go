package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/dsl"
	"github.com/reoring/treaty/middleware"
)

func userRegistry(t *testing.T) *treaty.Registry {
	t.Helper()
	reg := treaty.NewRegistry()

	v1 := dsl.Object().
		Field("name", dsl.String().MinLen(1)).
		Field("email", dsl.String().Pattern(`^[^@\s]+@[^@\s]+$`)).
		Require("name", "email").
		MustBuild()
	reg.MustRegister("user", "create", treaty.SchemaOf[map[string]any](v1))

	v2 := dsl.Object().
		Field("name", dsl.String().MinLen(1)).
		Field("email", dsl.String().Pattern(`^[^@\s]+@[^@\s]+$`)).
		Field("age", dsl.Number().Int().Min(0)).
		Require("name", "email", "age").
		MustBuild()
	if _, err := reg.RegisterNewVersion("user", "create", treaty.SchemaOf[map[string]any](v2)); err != nil {
		t.Fatalf("register v2: %v", err)
	}
	return reg
}

func postJSON(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorPayload {
	t.Helper()
	var p middleware.ErrorPayload
	if err := gojson.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode error payload: %v (body %q)", err, rec.Body.String())
	}
	return p
}

func TestRequestsPassesValidBody(t *testing.T) {
	reg := userRegistry(t)

	var got map[string]any
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := middleware.Decode[map[string]any](r)
		if !ok {
			t.Error("decoded value missing from context")
		}
		got = m
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	middleware.Requests(reg, "user", "create")(next).
		ServeHTTP(rec, postJSON(`{"name":"ada","email":"ada@lovelace.dev","age":36}`))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}
	if got["name"] != "ada" || got["age"] != float64(36) {
		t.Errorf("decoded = %v, want cast name/age", got)
	}
}

func TestRequestsRejectsInvalidBody(t *testing.T) {
	reg := userRegistry(t)

	ran := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = true })

	rec := httptest.NewRecorder()
	middleware.Requests(reg, "user", "create")(next).
		ServeHTTP(rec, postJSON(`{"name":"","email":"not-an-email"}`))

	if ran {
		t.Error("handler ran despite invalid body")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	p := decodePayload(t, rec)
	if p.Error != middleware.ErrValidationFailed {
		t.Errorf("payload error = %q, want %q", p.Error, middleware.ErrValidationFailed)
	}
	if p.ErrorID == "" {
		t.Error("payload has no error id")
	}
	if p.Group != "user" || p.Contract != "create" || p.Version != 2 {
		t.Errorf("payload identifies %s/%s@v%d, want user/create@v2", p.Group, p.Contract, p.Version)
	}
	codes := map[string]string{}
	for _, iss := range p.Issues {
		codes[iss.Path] = iss.Code
	}
	if codes["/name"] != "too_short" {
		t.Errorf("issue at /name = %q, want too_short", codes["/name"])
	}
	if codes["/email"] != "pattern" {
		t.Errorf("issue at /email = %q, want pattern", codes["/email"])
	}
	if codes["/age"] != "required" {
		t.Errorf("issue at /age = %q, want required", codes["/age"])
	}
}

func TestRequestsNegotiatesVersion(t *testing.T) {
	reg := userRegistry(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := middleware.Requests(reg, "user", "create")(next)

	// v1 has no age field; the body satisfies only v1.
	body := `{"name":"ada","email":"ada@lovelace.dev"}`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("latest (v2) accepted a v1 body: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := postJSON(body)
	req.Header.Set(middleware.VersionHeader, "1")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("header-selected v1 rejected its own shape: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/users?contractVersion=1", strings.NewReader(body))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("query-selected v1 rejected its own shape: %d %s", rec.Code, rec.Body.String())
	}

	// Header wins over query.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/users?contractVersion=2", strings.NewReader(body))
	req.Header.Set(middleware.VersionHeader, "1")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("header did not take precedence: %d", rec.Code)
	}
}

func TestRequestsRejectsUnknownVersion(t *testing.T) {
	reg := userRegistry(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without a resolvable contract")
	})
	h := middleware.Requests(reg, "user", "create")(next)

	for _, raw := range []string{"99", "0", "-1", "abc"} {
		rec := httptest.NewRecorder()
		req := postJSON(`{}`)
		req.Header.Set(middleware.VersionHeader, raw)
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("version %q: status = %d, want 400", raw, rec.Code)
			continue
		}
		if p := decodePayload(t, rec); p.Error != middleware.ErrUnknownVersion {
			t.Errorf("version %q: payload error = %q, want %q", raw, p.Error, middleware.ErrUnknownVersion)
		}
	}
}

func TestRequestsRejectsDuplicateKeys(t *testing.T) {
	reg := userRegistry(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran on a duplicate-key body")
	})

	rec := httptest.NewRecorder()
	middleware.Requests(reg, "user", "create")(next).
		ServeHTTP(rec, postJSON(`{"name":"a","name":"b","email":"a@b.c","age":1}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	p := decodePayload(t, rec)
	if len(p.Issues) == 0 || p.Issues[0].Code != "duplicate_key" {
		t.Errorf("issues = %+v, want a duplicate_key issue", p.Issues)
	}
}

func TestRequestsOnChiRouter(t *testing.T) {
	reg := userRegistry(t)

	r := chi.NewRouter()
	r.With(middleware.Requests(reg, "user", "create")).Post("/users", func(w http.ResponseWriter, req *http.Request) {
		m, _ := middleware.Decode[map[string]any](req)
		middleware.WriteValidated(w, req, reg, "user", "create", http.StatusCreated, m)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, postJSON(`{"name":"ada","email":"ada@lovelace.dev","age":36}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := gojson.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["name"] != "ada" {
		t.Errorf("response body = %v, want the validated value", out)
	}
}

func TestWriteValidatedRejectsViolatingResponse(t *testing.T) {
	reg := userRegistry(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	err := middleware.WriteValidated(rec, req, reg, "user", "create", http.StatusOK,
		map[string]any{"name": "ada"})

	if err == nil {
		t.Fatal("WriteValidated returned nil for a violating value")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	p := decodePayload(t, rec)
	if p.Error != middleware.ErrInternalContractViolation {
		t.Errorf("payload error = %q, want %q", p.Error, middleware.ErrInternalContractViolation)
	}
	if len(p.Issues) != 0 {
		t.Error("issue list leaked to the client on a server-side violation")
	}
	if p.ErrorID == "" {
		t.Error("payload has no error id for correlation")
	}
}

func TestDecodeTypedThroughBoundContract(t *testing.T) {
	type createUser struct {
		Name  string  `json:"name"`
		Email string  `json:"email"`
		Age   float64 `json:"age"`
	}

	reg := treaty.NewRegistry()
	bound := dsl.MustBind[createUser](dsl.Object().
		Field("name", dsl.String().MinLen(1)).
		Field("email", dsl.String()).
		Field("age", dsl.Number().Int().Min(0)).
		Require("name", "email", "age"))
	reg.MustRegister("user", "create", treaty.SchemaOf[createUser](bound))

	var got createUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := middleware.Decode[createUser](r)
		if !ok {
			t.Error("typed decode failed")
		}
		got = u
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	middleware.Requests(reg, "user", "create")(next).
		ServeHTTP(rec, postJSON(`{"name":"ada","email":"ada@lovelace.dev","age":36}`))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}
	if got.Name != "ada" || got.Age != 36 {
		t.Errorf("decoded struct = %+v", got)
	}
}
