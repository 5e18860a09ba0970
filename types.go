package treaty

// UnknownPolicy controls how unknown keys are handled.
type UnknownPolicy int

const (
	UnknownStrict      UnknownPolicy = iota // Reject unknown keys with an error.
	UnknownStrip                            // Drop unknown keys.
	UnknownPassthrough                      // Preserve unknown keys (the "open" object).
)

// Severity expresses the severity level for issues.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

// Strictness configures enforcement for duplicate keys in the input.
type Strictness struct {
	OnDuplicateKey Severity // Warn or Error (duplicate JSON keys).
}

// ParseOpt bundles decoding options for ParseFrom/ValidateFrom.
// Zero values disable each enforcement.
type ParseOpt struct {
	Strictness Strictness
	MaxDepth   int
	MaxBytes   int64
	FailFast   bool
}
