package treaty

import (
	"io"

	eng "github.com/reoring/treaty/internal/engine"
)

// tokenKind enumerates JSON token kinds.
type tokenKind int

const (
	_tokenBeginObject tokenKind = iota
	_tokenEndObject
	_tokenBeginArray
	_tokenEndArray
	_tokenKey
	_tokenString
	_tokenNumber
	_tokenBool
	_tokenNull
)

// Token describes a token in the input stream. Offset records the byte
// position when known (-1 otherwise).
type Token struct {
	Kind   tokenKind
	String string // Stored for key/string tokens.
	Number string // Stored as text; schemas interpret it.
	Bool   bool
	Offset int64
}

// Source abstracts over polymorphic input sources. JSONBytes and JSONReader
// construct sources backed by goccy/go-json tokenization.
type Source interface {
	NextToken() (Token, error)
	Location() int64 // byte offset consumed so far; -1 if unknown
}

// JSONReader wraps an io.Reader as a JSON Source.
func JSONReader(r io.Reader) Source {
	return &engineSourceAdapter{inner: eng.NewReaderTokenSource(r)}
}

// JSONBytes wraps a byte slice as a JSON Source.
func JSONBytes(b []byte) Source {
	return &engineSourceAdapter{inner: eng.NewBytesTokenSource(b)}
}

// ---- engine.TokenSource <-> Source adapters ----

type engineSourceAdapter struct {
	inner eng.TokenSource
}

func (s *engineSourceAdapter) NextToken() (Token, error) {
	t, err := s.inner.NextToken()
	if err != nil {
		return Token{}, err
	}
	return Token{Kind: fromEngineKind(t.Kind), String: t.String, Number: t.Number, Bool: t.Bool, Offset: t.Offset}, nil
}

func (s *engineSourceAdapter) Location() int64 { return s.inner.Location() }

type tokenSourceAdapter struct{ inner Source }

func (a *tokenSourceAdapter) NextToken() (eng.Token, error) {
	t, err := a.inner.NextToken()
	if err != nil {
		return eng.Token{}, err
	}
	return eng.Token{
		Kind:   toEngineKind(t.Kind),
		String: t.String,
		Number: t.Number,
		Bool:   t.Bool,
		Offset: t.Offset,
	}, nil
}

func (a *tokenSourceAdapter) Location() int64 { return a.inner.Location() }

// engineTokenSource exposes the engine view of a Source, unwrapping
// engine-backed sources to avoid adapter round-trips.
func engineTokenSource(s Source) eng.TokenSource {
	if ea, ok := s.(*engineSourceAdapter); ok {
		return ea.inner
	}
	return &tokenSourceAdapter{inner: s}
}

func fromEngineKind(k eng.Kind) tokenKind {
	switch k {
	case eng.KindBeginObject:
		return _tokenBeginObject
	case eng.KindEndObject:
		return _tokenEndObject
	case eng.KindBeginArray:
		return _tokenBeginArray
	case eng.KindEndArray:
		return _tokenEndArray
	case eng.KindKey:
		return _tokenKey
	case eng.KindString:
		return _tokenString
	case eng.KindNumber:
		return _tokenNumber
	case eng.KindBool:
		return _tokenBool
	case eng.KindNull:
		return _tokenNull
	default:
		return _tokenNull
	}
}

func toEngineKind(k tokenKind) eng.Kind {
	switch k {
	case _tokenBeginObject:
		return eng.KindBeginObject
	case _tokenEndObject:
		return eng.KindEndObject
	case _tokenBeginArray:
		return eng.KindBeginArray
	case _tokenEndArray:
		return eng.KindEndArray
	case _tokenKey:
		return eng.KindKey
	case _tokenString:
		return eng.KindString
	case _tokenNumber:
		return eng.KindNumber
	case _tokenBool:
		return eng.KindBool
	case _tokenNull:
		return eng.KindNull
	default:
		return eng.KindNull
	}
}
