// Package dsl provides the schema construction surface: chainable builders
// for primitives, objects, arrays and nullables that produce immutable
// treaty.Schema values.
//
// Typical shape:
//
//	user := dsl.Object().
//		Field("name", dsl.String().MinLen(1)).
//		Field("age", dsl.Number().Int().Min(0)).
//		Require("name").
//		MustBuild()
//
// Schemas validate strictly by default: wrong wire types are rejected, and
// objects reject unknown keys unless UnknownStrip or UnknownPassthrough is
// selected. Number and Time schemas additionally offer Coerce, which opts
// that node into lenient decoding (numeric strings, epoch seconds). The
// coercion choice is part of the schema, never of the call site, and it
// participates in the schema's fingerprint.
//
// Definition faults (a pattern that does not compile, inverted bounds, a
// Require of an undeclared field) are not panics at declaration time: they
// are recorded and surface as *treaty.DefinitionError from Build, Bind, or
// registration, so module-level declarations stay safe.
package dsl
