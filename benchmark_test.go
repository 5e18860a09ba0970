package treaty_test

import (
	"context"
	"fmt"
	"testing"

	treaty "github.com/reoring/treaty"
	g "github.com/reoring/treaty/dsl"
)

func benchSchema(tb testing.TB) treaty.Schema[map[string]any] {
	tb.Helper()
	return g.Object().
		Field("id", g.String().MinLen(1)).
		Field("name", g.String().MinLen(1)).
		Field("age", g.Number().Int().Min(0)).
		Require("id", "name").
		UnknownStrict().
		MustBuild()
}

func benchJSON() []byte {
	return []byte(`{"id":"u_1","name":"alice","age":30}`)
}

func Benchmark_ParseFrom_Object_Small(b *testing.B) {
	ctx := context.Background()
	s := benchSchema(b)
	data := benchJSON()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		if _, err := treaty.ParseFrom(ctx, s, treaty.JSONBytes(data)); err != nil {
			b.Fatalf("parse failed: %v", err)
		}
	}
}

func Benchmark_Validate_Object_Small(b *testing.B) {
	ctx := context.Background()
	s := benchSchema(b)
	v := map[string]any{"id": "u_1", "name": "alice", "age": 30.0}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := s.Validate(ctx, v); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func Benchmark_Registry_Get_Parallel(b *testing.B) {
	reg := treaty.NewRegistry()
	for i := 0; i < 100; i++ {
		reg.MustRegister("bench", fmt.Sprintf("contract-%d", i), treaty.SchemaOf[map[string]any](benchSchema(b)))
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := reg.Get("bench", "contract-42"); err != nil {
				b.Errorf("get failed: %v", err)
			}
		}
	})
}

func Benchmark_Fingerprint_Object(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := g.Object().
			Field("id", g.String().MinLen(1)).
			Field("age", g.Number().Int()).
			Require("id").
			MustBuild()
		_ = s.Fingerprint()
	}
}
