package engine

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

// DupPolicy controls what a repeated object key does to the stream.
type DupPolicy int

const (
	DupIgnore DupPolicy = iota
	DupWarn
	DupError
)

// RawIssue is the engine's lightweight issue form. The public layer lifts it
// into the full Issue type with offsets attached.
type RawIssue struct {
	Code    string
	Path    string
	Message string
}

// RawError makes a RawIssue fatal.
type RawError struct{ RawIssue }

func (e RawError) Error() string { return e.Message }

// Limits configures stream enforcement. Zero values disable the depth and
// byte caps; Sink, when set, receives every issue including fatal ones.
type Limits struct {
	OnDuplicate DupPolicy
	MaxDepth    int
	MaxBytes    int64
	Sink        func(RawIssue)
	FailFast    bool
}

// Enforce wraps inner so that duplicate keys, depth, and size are checked as
// tokens stream past. Depth and size violations are always fatal; duplicate
// keys are fatal under DupError or FailFast and advisory under DupWarn.
func Enforce(inner TokenSource, lim Limits) TokenSource {
	return &guard{inner: inner, lim: lim}
}

// guard walks the container structure alongside the token stream. Each level
// remembers its JSON Pointer, the keys seen so far (objects), and where the
// next member lands.
type guard struct {
	inner TokenSource
	lim   Limits
	stack []level
}

type level struct {
	kind  containerKind
	keys  map[string]struct{}
	path  string
	key   string // pending object member key, "" between members
	index int    // next array element index
}

func (g *guard) Location() int64 { return g.inner.Location() }

func (g *guard) NextToken() (Token, error) {
	tok, err := g.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	at := "/"
	switch tok.Kind {
	case KindKey:
		top := g.top()
		if top != nil && top.kind == kindObject {
			at = pointer(top.path, tok.String)
			if _, dup := top.keys[tok.String]; dup && g.lim.OnDuplicate != DupIgnore {
				ri := RawIssue{Code: "duplicate_key", Path: at, Message: "key " + strconv.Quote(tok.String) + " duplicated"}
				g.emit(ri)
				if g.lim.OnDuplicate == DupError || g.lim.FailFast {
					return Token{}, RawError{ri}
				}
			}
			top.keys[tok.String] = struct{}{}
			top.key = tok.String
		}

	case KindBeginObject, KindBeginArray:
		at = orRoot(g.memberPath())
		lv := level{kind: kindArray, path: g.memberPath()}
		if tok.Kind == KindBeginObject {
			lv.kind = kindObject
			lv.keys = make(map[string]struct{})
		}
		g.stack = append(g.stack, lv)
		if g.lim.MaxDepth > 0 && len(g.stack) > g.lim.MaxDepth {
			ri := RawIssue{Code: "parse_error", Path: at, Message: "max depth exceeded"}
			g.emit(ri)
			return Token{}, RawError{ri}
		}

	case KindEndObject, KindEndArray:
		if top := g.top(); top != nil {
			at = orRoot(top.path)
			g.stack = g.stack[:len(g.stack)-1]
		}
		g.closeMember()

	default: // scalar values
		at = orRoot(g.memberPath())
		g.closeMember()
	}

	if g.lim.MaxBytes > 0 {
		if off := g.inner.Location(); off > g.lim.MaxBytes {
			ri := RawIssue{Code: "truncated", Path: at, Message: "max bytes exceeded"}
			g.emit(ri)
			return Token{}, RawError{ri}
		}
	}
	return tok, nil
}

func (g *guard) top() *level {
	if n := len(g.stack); n > 0 {
		return &g.stack[n-1]
	}
	return nil
}

// memberPath is the pointer of the value about to start at the current top.
func (g *guard) memberPath() string {
	top := g.top()
	if top == nil {
		return ""
	}
	if top.kind == kindArray {
		return pointer(top.path, strconv.Itoa(top.index))
	}
	return pointer(top.path, top.key)
}

// closeMember records that a complete value just finished at the current top.
func (g *guard) closeMember() {
	top := g.top()
	if top == nil {
		return
	}
	if top.kind == kindArray {
		top.index++
	} else {
		top.key = ""
	}
}

func (g *guard) emit(ri RawIssue) {
	if g.lim.Sink != nil {
		g.lim.Sink(ri)
	}
}

var ptrEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func pointer(base, token string) string {
	return base + "/" + ptrEscaper.Replace(token)
}

func orRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// DetectDuplicateKeys drains src and collects duplicate-key findings without
// building a value. Under DupError detection stops at the first duplicate.
// maxIssues 0 disables collection, negative means unlimited; when the limit
// is reached a trailing truncated marker is appended. Malformed input is
// reported as a parse_error finding, not an error.
func DetectDuplicateKeys(src TokenSource, mode DupPolicy, maxIssues int) []RawIssue {
	if mode == DupIgnore || maxIssues == 0 {
		return nil
	}
	var out []RawIssue
	full := func() bool { return maxIssues > 0 && len(out) > maxIssues }
	enforced := Enforce(src, Limits{OnDuplicate: mode, Sink: func(ri RawIssue) {
		if full() {
			return
		}
		out = append(out, ri)
		if maxIssues > 0 && len(out) == maxIssues {
			out = append(out, RawIssue{Code: "truncated", Path: "/", Message: "max issues reached"})
		}
	}})
	for {
		_, err := enforced.NextToken()
		if err == nil {
			if full() {
				return out
			}
			continue
		}
		if err == io.EOF {
			return out
		}
		var re RawError
		if errors.As(err, &re) {
			// The sink has already recorded it.
			return out
		}
		return append(out, RawIssue{Code: "parse_error", Path: "/", Message: err.Error()})
	}
}

// DetectDupBytes runs duplicate-key detection over a byte slice.
func DetectDupBytes(data []byte, mode DupPolicy, maxIssues int) []RawIssue {
	return DetectDuplicateKeys(NewBytesTokenSource(data), mode, maxIssues)
}

// DetectDupReader runs duplicate-key detection over a reader, consuming it.
func DetectDupReader(r io.Reader, mode DupPolicy, maxIssues int) []RawIssue {
	return DetectDuplicateKeys(NewReaderTokenSource(r), mode, maxIssues)
}
