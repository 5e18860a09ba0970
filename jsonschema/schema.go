// Package jsonschema holds the JSON Schema projection of contract schemas.
// The struct covers the subset the DSL can express; encoders emit map keys
// in sorted order, so the serialized form is deterministic.
package jsonschema

// Schema is a JSON Schema document or subschema.
type Schema struct {
	// Core
	Type    string   `json:"type,omitempty"`
	Format  string   `json:"format,omitempty"`
	Default any      `json:"default,omitempty"`
	Enum    []string `json:"enum,omitempty"`

	// String
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	// Number
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// Object
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`

	// Array
	Items    *Schema `json:"items,omitempty"`
	MinItems *int    `json:"minItems,omitempty"`
	MaxItems *int    `json:"maxItems,omitempty"`

	// Union
	OneOf []*Schema `json:"oneOf,omitempty"`

	// XCoerce marks schemas that decode leniently (numeric strings, epoch
	// seconds). It is an extension keyword; standard validators ignore it.
	XCoerce bool `json:"x-coerce,omitempty"`
}
