package engine

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
)

// frame tracks whether the enclosing container is an object or an array so
// string tokens can be classified as keys or values.
type frame struct {
	kind         containerKind
	expectingKey bool
}

// jsonTokenSource adapts a go-json Decoder to the TokenSource interface.
// Numbers are surfaced as their literal text so callers decide the
// representation.
type jsonTokenSource struct {
	dec   *j.Decoder
	stack []frame
}

// NewReaderTokenSource tokenizes JSON from r using goccy/go-json.
func NewReaderTokenSource(r io.Reader) TokenSource {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &jsonTokenSource{dec: dec}
}

// NewBytesTokenSource tokenizes JSON held in b using goccy/go-json.
func NewBytesTokenSource(b []byte) TokenSource {
	return NewReaderTokenSource(bytes.NewReader(b))
}

func (s *jsonTokenSource) NextToken() (Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		if err == io.EOF {
			return Token{}, io.EOF
		}
		return Token{}, err
	}
	off := s.Location()
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, frame{kind: kindObject, expectingKey: true})
			return Token{Kind: KindBeginObject, Offset: off}, nil
		case '}':
			s.pop()
			s.noteValue()
			return Token{Kind: KindEndObject, Offset: off}, nil
		case '[':
			s.stack = append(s.stack, frame{kind: kindArray})
			return Token{Kind: KindBeginArray, Offset: off}, nil
		case ']':
			s.pop()
			s.noteValue()
			return Token{Kind: KindEndArray, Offset: off}, nil
		}
		return Token{}, fmt.Errorf("engine: unexpected delimiter %q", string(rune(v)))
	case string:
		if n := len(s.stack); n > 0 {
			top := &s.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				top.expectingKey = false
				return Token{Kind: KindKey, String: v, Offset: off}, nil
			}
		}
		s.noteValue()
		return Token{Kind: KindString, String: v, Offset: off}, nil
	case bool:
		s.noteValue()
		return Token{Kind: KindBool, Bool: v, Offset: off}, nil
	case j.Number:
		s.noteValue()
		return Token{Kind: KindNumber, Number: string(v), Offset: off}, nil
	case float64:
		// UseNumber makes this unreachable in practice; kept for decoder
		// implementations that ignore the hint.
		s.noteValue()
		return Token{Kind: KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: off}, nil
	case nil:
		s.noteValue()
		return Token{Kind: KindNull, Offset: off}, nil
	}
	return Token{}, fmt.Errorf("engine: unexpected token %T", tok)
}

// Location reports the byte offset consumed so far.
func (s *jsonTokenSource) Location() int64 { return s.dec.InputOffset() }

func (s *jsonTokenSource) pop() {
	if n := len(s.stack); n > 0 {
		s.stack = s.stack[:n-1]
	}
}

// noteValue marks that a complete value was consumed inside an object, so the
// next string token is a key again.
func (s *jsonTokenSource) noteValue() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}
