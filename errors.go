package treaty

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType   = "invalid_type"
	CodeRequired      = "required"
	CodeUnknownKey    = "unknown_key"
	CodeDuplicateKey  = "duplicate_key"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodePattern       = "pattern"
	CodeInvalidEnum   = "invalid_enum"
	CodeInvalidFormat = "invalid_format"
	CodeParseError    = "parse_error"
	CodeOverflow      = "overflow"
	CodeTruncated     = "truncated"
)

// Issue represents a single validation entry.
type Issue struct {
	Path    string // JSON Pointer (for example: /items/2/price).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints, format names, etc.
	Cause   error  // Optional: underlying error.
	Offset  int64  // Byte offset in the input source (-1 when unknown).
	// Params carries structured parameters (e.g., {"min":1, "max":10, "got":42})
	// for i18n and observability.
	Params map[string]any
}

// Issues is a collection of validation errors that implements error.
// Validate and Parse report data problems exclusively through it; malformed
// input never panics and never surfaces as an untyped error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. invalid_type at /path
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// DefinitionError reports an invalid schema or contract definition: a
// required key without a field, a pattern that does not compile, an empty
// enum, inverted bounds, a default that fails its own schema. Definition
// errors are programming faults; surface them at startup. MustBuild and
// MustRegister panic with one.
type DefinitionError struct {
	Detail string
}

func (e *DefinitionError) Error() string { return "schema definition: " + e.Detail }

func defErrf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Detail: fmt.Sprintf(format, args...)}
}

// DuplicateContractError reports an attempt to register a name whose schema
// differs from every version already recorded for it.
type DuplicateContractError struct {
	Group    string
	Name     string
	Existing Fingerprint
	Incoming Fingerprint
}

func (e *DuplicateContractError) Error() string {
	return fmt.Sprintf("contract %s/%s already registered with a different schema (existing %s, incoming %s)",
		e.Group, e.Name, e.Existing, e.Incoming)
}

// NotFoundError reports a missing group, contract, or version.
type NotFoundError struct {
	Group   string
	Name    string
	Version int // 0 means "latest"
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Name == "":
		return fmt.Sprintf("group %q not found", e.Group)
	case e.Version > 0:
		return fmt.Sprintf("contract %s/%s@v%d not found", e.Group, e.Name, e.Version)
	default:
		return fmt.Sprintf("contract %s/%s not found", e.Group, e.Name)
	}
}

// MergeConflictError reports a contract name claimed by two merged groups
// with diverging schemas.
type MergeConflictError struct {
	Name         string
	Groups       [2]string
	Fingerprints [2]Fingerprint
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on contract %q: group %s has %s, group %s has %s",
		e.Name, e.Groups[0], e.Fingerprints[0], e.Groups[1], e.Fingerprints[1])
}
