package treaty

import (
	"context"
	"errors"

	eng "github.com/reoring/treaty/internal/engine"
)

// ParseFrom is the primary decode entry point. It consumes tokens from the
// Source under enforcement (duplicate keys, depth, size), builds an any
// value, and delegates the cast to the Schema.
func ParseFrom[T any](ctx context.Context, s Schema[T], src Source, opts ...ParseOpt) (T, error) {
	var zero T
	if s == nil {
		return zero, singleIssue(CodeParseError, "nil schema")
	}
	opt := lastOpt(opts)
	if opt.FailFast {
		ctx = WithFailFast(ctx, true)
	}
	v, warns, err := decodeAnyFromSource(src, opt)
	if err != nil {
		return zero, toIssues(err)
	}
	out, perr := s.Parse(ctx, v)
	if perr != nil {
		if iss, ok := AsIssues(perr); ok {
			return zero, AppendIssues(warns, iss...)
		}
		return zero, perr
	}
	// Warn-severity issues are advisory: a successful parse tolerates them.
	return out, nil
}

// ParseAny is ParseFrom for an erased schema; contracts use it.
func ParseAny(ctx context.Context, s AnySchema, src Source, opts ...ParseOpt) (any, error) {
	if s == nil {
		return nil, singleIssue(CodeParseError, "nil schema")
	}
	opt := lastOpt(opts)
	if opt.FailFast {
		ctx = WithFailFast(ctx, true)
	}
	v, warns, err := decodeAnyFromSource(src, opt)
	if err != nil {
		return nil, toIssues(err)
	}
	out, perr := s.Parse(ctx, v)
	if perr != nil {
		if iss, ok := AsIssues(perr); ok {
			return nil, AppendIssues(warns, iss...)
		}
		return nil, perr
	}
	return out, nil
}

// ValidateFrom decodes the Source under enforcement and validates the result,
// collecting engine issues and schema issues together.
func ValidateFrom(ctx context.Context, s AnySchema, src Source, opts ...ParseOpt) error {
	if s == nil {
		return singleIssue(CodeParseError, "nil schema")
	}
	opt := lastOpt(opts)
	v, warns, err := decodeAnyFromSource(src, opt)
	if err != nil {
		return toIssues(err)
	}
	verr := s.Validate(ctx, v)
	if verr != nil {
		if iss, ok := AsIssues(verr); ok {
			return AppendIssues(warns, iss...)
		}
		return verr
	}
	return nil
}

// ---- helpers (parse options, decode, error mapping) ----

func lastOpt(opts []ParseOpt) ParseOpt {
	var opt ParseOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	return opt
}

// decodeAnyFromSource builds the any value, returning collect-mode issues
// (for example duplicate keys under Warn severity) separately from fatal
// decode errors.
func decodeAnyFromSource(src Source, opt ParseOpt) (any, Issues, error) {
	var warns Issues
	sink := func(ri eng.RawIssue) {
		warns = AppendIssues(warns, Issue{Code: ri.Code, Path: ri.Path, Message: ri.Message, Offset: src.Location()})
	}
	enforced := eng.Enforce(engineTokenSource(src), eng.Limits{
		OnDuplicate: toEngineDup(opt.Strictness.OnDuplicateKey),
		MaxDepth:    opt.MaxDepth,
		MaxBytes:    opt.MaxBytes,
		Sink:        sink,
		FailFast:    opt.FailFast,
	})
	v, err := eng.DecodeAny(enforced)
	if err != nil {
		return nil, nil, err
	}
	// Fatal sink entries (duplicate keys under Error) abort the decode and
	// arrive via err; anything left in warns is advisory.
	return v, warns, nil
}

func toIssues(err error) Issues {
	if err == nil {
		return nil
	}
	if ii, ok := AsIssues(err); ok {
		return ii
	}
	var re eng.RawError
	if errors.As(err, &re) {
		return AppendIssues(nil, Issue{Code: re.Code, Path: re.Path, Message: re.Message})
	}
	return AppendIssues(nil, Issue{Code: CodeParseError, Path: "/", Message: err.Error(), Cause: err})
}

func singleIssue(code, msg string) Issues {
	return AppendIssues(nil, Issue{Path: "/", Code: code, Message: msg})
}

func toEngineDup(s Severity) eng.DupPolicy {
	switch s {
	case Error:
		return eng.DupError
	case Warn:
		return eng.DupWarn
	default:
		return eng.DupIgnore
	}
}
