package typed

import (
	"encoding/json"
	"fmt"
)

// ContentType constants reported by the adapters below. Each adapter
// reports one fixed content type; no adapter or content type is chosen
// automatically from a schema's Go type, so an Operation is always given
// its adapters explicitly.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeText        = "text/plain"
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeNone        = ""
)

// Adapter encodes a value of T to bytes and decodes bytes back to T. It is
// the Go counterpart of the reference implementation's TypeAdapter
// protocol, used by the typed layer for request, response, and error
// bodies alike.
type Adapter[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
	ContentType() string
}

// JSONAdapter marshals/unmarshals T as JSON. It suits any struct, map, or
// slice schema; it is not selected automatically.
type JSONAdapter[T any] struct{}

func (JSONAdapter[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONAdapter[T]) Decode(data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

func (JSONAdapter[T]) ContentType() string {
	return ContentTypeJSON
}

// RawAdapter passes a []byte payload through untouched.
type RawAdapter struct{}

func (RawAdapter) Encode(v []byte) ([]byte, error) {
	return v, nil
}

func (RawAdapter) Decode(data []byte) ([]byte, error) {
	return data, nil
}

func (RawAdapter) ContentType() string {
	return ContentTypeOctetStream
}

// TextAdapter encodes/decodes a string payload as plain text.
type TextAdapter struct{}

func (TextAdapter) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

func (TextAdapter) Decode(data []byte) (string, error) {
	return string(data), nil
}

func (TextAdapter) ContentType() string {
	return ContentTypeText
}

// NoneAdapter is used for an operation with no request, response, or error
// body: encoding always yields an empty payload and decoding ignores any
// data present.
type NoneAdapter struct{}

type None struct{}

func (NoneAdapter) Encode(None) ([]byte, error) {
	return nil, nil
}

func (NoneAdapter) Decode([]byte) (None, error) {
	return None{}, nil
}

func (NoneAdapter) ContentType() string {
	return ContentTypeNone
}

// errUnsupportedSchema builds the error for a schema type that has no
// adapter. Nothing in this package calls it: adapters are never looked up
// by type.
func errUnsupportedSchema(v any) error {
	return fmt.Errorf("typed: no adapter registered for type %T; supply one explicitly", v)
}
