package treaty

import (
	"context"
	"fmt"

	js "github.com/reoring/treaty/jsonschema"
)

// Contract is an immutable, versioned binding of a name to a schema inside a
// group. Contracts are created by Registry.Register and never change; new
// behavior means a new version.
type Contract struct {
	group   string
	name    string
	version int
	schema  AnySchema
	fp      Fingerprint
}

// Group returns the export group the contract was registered under.
func (c *Contract) Group() string { return c.group }

// Name returns the contract name, unique within its group.
func (c *Contract) Name() string { return c.name }

// Version returns the 1-based version number.
func (c *Contract) Version() int { return c.version }

// Fingerprint returns the identity of the underlying schema.
func (c *Contract) Fingerprint() Fingerprint { return c.fp }

// Schema returns the type-erased schema backing this contract.
func (c *Contract) Schema() AnySchema { return c.schema }

// String renders "group/name@vN", the form used in logs and error payloads.
func (c *Contract) String() string {
	return fmt.Sprintf("%s/%s@v%d", c.group, c.name, c.version)
}

// Validate checks a wire-shaped value against the contract, collecting every
// issue.
func (c *Contract) Validate(ctx context.Context, v any) error {
	return c.schema.Validate(ctx, v)
}

// Parse converts a wire-shaped value through the contract's schema.
func (c *Contract) Parse(ctx context.Context, v any) (any, error) {
	return c.schema.Parse(ctx, v)
}

// ValidateValue checks an already-typed value, the response self-check path.
func (c *Contract) ValidateValue(ctx context.Context, v any) error {
	return c.schema.ValidateValue(ctx, v)
}

// ParseFrom decodes and validates a payload directly from a Source.
func (c *Contract) ParseFrom(ctx context.Context, src Source, opts ...ParseOpt) (any, error) {
	return ParseAny(ctx, c.schema, src, opts...)
}

// ValidateFrom decodes a payload from a Source and validates it without
// conversion.
func (c *Contract) ValidateFrom(ctx context.Context, src Source, opts ...ParseOpt) error {
	return ValidateFrom(ctx, c.schema, src, opts...)
}

// JSONSchema exports the contract's schema as JSON Schema.
func (c *Contract) JSONSchema() (*js.Schema, error) {
	return c.schema.JSONSchema()
}
