// Package engine tokenizes JSON input and enforces wire-level strictness
// while the value tree is built: duplicate object keys, nesting depth, and
// consumed bytes. Schemas never see raw input; they receive the any value
// this package produces. Internal and not part of the public API.
package engine

import (
	"encoding/json"
	"io"
)

// Kind classifies a token.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

// Token is one step of the input stream. Numbers stay textual so schemas
// decide the representation; Offset is the byte position when known.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource yields tokens and reports how many input bytes produced them.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// containerKind tells objects from arrays in walker stacks.
type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

// DecodeAny drains src into an any tree: map[string]any for objects, []any
// for arrays, json.Number for numbers.
func DecodeAny(src TokenSource) (any, error) {
	tok, err := src.NextToken()
	if err != nil {
		return nil, err
	}
	return decodeValue(src, tok)
}

func decodeValue(src TokenSource, tok Token) (any, error) {
	switch tok.Kind {
	case KindBeginObject:
		m := make(map[string]any)
		for {
			kt, err := src.NextToken()
			if err != nil {
				return nil, err
			}
			if kt.Kind == KindEndObject {
				return m, nil
			}
			if kt.Kind != KindKey {
				return nil, io.ErrUnexpectedEOF
			}
			vt, err := src.NextToken()
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(src, vt)
			if err != nil {
				return nil, err
			}
			m[kt.String] = v
		}
	case KindBeginArray:
		var arr []any
		for {
			et, err := src.NextToken()
			if err != nil {
				return nil, err
			}
			if et.Kind == KindEndArray {
				return arr, nil
			}
			v, err := decodeValue(src, et)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
	case KindString:
		return tok.String, nil
	case KindNumber:
		return json.Number(tok.Number), nil
	case KindBool:
		return tok.Bool, nil
	case KindNull:
		return nil, nil
	default:
		return nil, io.ErrUnexpectedEOF
	}
}
