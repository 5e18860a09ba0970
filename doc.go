package treaty

// Package treaty provides:
//
// - A schema DSL with construction-time definition errors (see dsl/)
// - Dual-API validation: Validate reports every violation as a value,
//   Parse casts to the typed form or fails with the same issue set
// - A stable error model via Issues (JSON Pointer, code, message)
// - A concurrency-safe contract registry with idempotent registration,
//   monotonic versioning, group export, and merge
// - JSON decoding with duplicate-key/depth/size enforcement
//
// Design policy:
// - Keep only public APIs in the root package; put detailed implementations under internal/.
// - Place the DSL under dsl/, codecs under codec/, contract files under loader/,
//   HTTP helpers under middleware/, and the CLI under cmd/treaty.
// - Registries are explicit values wired through constructors, never globals.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	s := dsl.Object().
//		Field("name", dsl.String().MinLen(1)).
//		Field("age", dsl.Number()).
//		Require("name", "age").
//		MustBuild()
//
//	reg := treaty.NewRegistry()
//	c := reg.MustRegister("user.v1", "CreateUserRequest",
//		treaty.SchemaOf[map[string]any](s))
//
//	v, err := c.ParseFrom(ctx, treaty.JSONBytes(data))
//
// Coercion is a property of the schema, never of the call site: a contract
// built with dsl.Number().Coerce() accepts "29" everywhere it is used, and a
// strict one rejects it everywhere.
