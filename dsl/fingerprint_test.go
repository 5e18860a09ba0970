package dsl_test

import (
	"testing"

	g "github.com/reoring/treaty/dsl"
)

// Fingerprints must be insensitive to declaration order and sensitive to
// anything that changes validation behavior.

func TestFingerprintIgnoresFieldOrder(t *testing.T) {
	a := g.Object().
		Field("name", g.String().MinLen(1)).
		Field("age", g.Number().Int()).
		Require("name", "age").
		MustBuild()
	b := g.Object().
		Field("age", g.Number().Int()).
		Field("name", g.String().MinLen(1)).
		Require("age", "name").
		MustBuild()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("field order changed fingerprint:\n%s\n%s", a.Fingerprint(), b.Fingerprint())
	}
}

func TestFingerprintCoversConstraints(t *testing.T) {
	base := g.Object().Field("name", g.String()).MustBuild()
	constrained := g.Object().Field("name", g.String().MinLen(1)).MustBuild()
	if base.Fingerprint() == constrained.Fingerprint() {
		t.Fatalf("constraint change did not change fingerprint")
	}
}

func TestFingerprintCoversUnknownPolicy(t *testing.T) {
	strict := g.Object().Field("a", g.String()).MustBuild()
	strip := g.Object().Field("a", g.String()).UnknownStrip().MustBuild()
	if strict.Fingerprint() == strip.Fingerprint() {
		t.Fatalf("unknown policy did not change fingerprint")
	}
}

func TestFingerprintCoversCoerceMode(t *testing.T) {
	strict := g.Object().Field("n", g.Number()).MustBuild()
	coerce := g.Object().Field("n", g.Number().Coerce()).MustBuild()
	if strict.Fingerprint() == coerce.Fingerprint() {
		t.Fatalf("coerce mode did not change fingerprint")
	}
}

func TestFingerprintCoversDefaults(t *testing.T) {
	plain := g.Object().Field("role", g.String()).MustBuild()
	defaulted := g.Object().Field("role", g.String()).Default("role", "user").MustBuild()
	if plain.Fingerprint() == defaulted.Fingerprint() {
		t.Fatalf("default did not change fingerprint")
	}
}

func TestFingerprintCoversRequiredSet(t *testing.T) {
	optional := g.Object().Field("a", g.String()).MustBuild()
	required := g.Object().Field("a", g.String()).Require("a").MustBuild()
	if optional.Fingerprint() == required.Fingerprint() {
		t.Fatalf("required set did not change fingerprint")
	}
}

func TestFingerprintStableAcrossRebuilds(t *testing.T) {
	build := func() string {
		return g.Object().
			Field("items", g.Array(g.Number().Min(0)).MinItems(1)).
			Field("when", g.Time().Coerce()).
			Require("items").
			MustBuild().
			Fingerprint().String()
	}
	first := build()
	for i := 0; i < 5; i++ {
		if got := build(); got != first {
			t.Fatalf("fingerprint not stable: %s vs %s", got, first)
		}
	}
}
