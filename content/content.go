// Package content maintains the registries that turn message bodies into
// wire bytes and back: serialization formats keyed by content type and
// transfer encodings keyed by encoding name.
//
// The format and parse plugs resolve their functions here at pipeline build
// time, so an unknown content type fails a Build rather than a Run. Formats
// for text/plain and application/json and encodings identity, gzip, and
// base64 are registered on import.
package content

import (
	"fmt"
	"sync"
)

// FormatFunc serializes a body into bytes for the content type it is
// registered under.
type FormatFunc func(body any) ([]byte, error)

// ParseFunc deserializes bytes into a body.
type ParseFunc func(data []byte) (any, error)

// EncodeFunc applies a transfer encoding to serialized bytes.
type EncodeFunc func(data []byte) ([]byte, error)

// DecodeFunc reverses a transfer encoding.
type DecodeFunc func(data []byte) ([]byte, error)

// UnknownContentTypeError reports a content type with no registered format.
type UnknownContentTypeError struct {
	ContentType string
}

func (e *UnknownContentTypeError) Error() string {
	return fmt.Sprintf("content: unknown content type %q", e.ContentType)
}

// UnknownEncodingError reports an encoding name with no registered codec.
type UnknownEncodingError struct {
	Encoding string
}

func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("content: unknown encoding %q", e.Encoding)
}

type format struct {
	format FormatFunc
	parse  ParseFunc
}

type encoding struct {
	encode EncodeFunc
	decode DecodeFunc
}

var (
	mu        sync.RWMutex
	formats   = make(map[string]format)
	encodings = make(map[string]encoding)
)

// RegisterFormat adds a serialization format under a content type. It panics
// on an empty name, nil functions, or a duplicate registration.
func RegisterFormat(contentType string, formatFn FormatFunc, parseFn ParseFunc) {
	if contentType == "" {
		panic("content: RegisterFormat: empty content type")
	}
	if formatFn == nil || parseFn == nil {
		panic("content: RegisterFormat: nil function")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := formats[contentType]; dup {
		panic(fmt.Sprintf("content: RegisterFormat: duplicate content type %q", contentType))
	}
	formats[contentType] = format{format: formatFn, parse: parseFn}
}

// RegisterEncoding adds a transfer encoding under a name. It panics on an
// empty name, nil functions, or a duplicate registration.
func RegisterEncoding(name string, encodeFn EncodeFunc, decodeFn DecodeFunc) {
	if name == "" {
		panic("content: RegisterEncoding: empty name")
	}
	if encodeFn == nil || decodeFn == nil {
		panic("content: RegisterEncoding: nil function")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := encodings[name]; dup {
		panic(fmt.Sprintf("content: RegisterEncoding: duplicate encoding %q", name))
	}
	encodings[name] = encoding{encode: encodeFn, decode: decodeFn}
}

// LookupFormat returns the format and parse functions registered under the
// content type.
func LookupFormat(contentType string) (FormatFunc, ParseFunc, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := formats[contentType]
	if !ok {
		return nil, nil, &UnknownContentTypeError{ContentType: contentType}
	}
	return f.format, f.parse, nil
}

// LookupEncoding returns the encode and decode functions registered under
// the name.
func LookupEncoding(name string) (EncodeFunc, DecodeFunc, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := encodings[name]
	if !ok {
		return nil, nil, &UnknownEncodingError{Encoding: name}
	}
	return e.encode, e.decode, nil
}

// Format serializes body with the format registered under contentType.
func Format(contentType string, body any) ([]byte, error) {
	formatFn, _, err := LookupFormat(contentType)
	if err != nil {
		return nil, err
	}
	return formatFn(body)
}

// Parse deserializes data with the format registered under contentType.
func Parse(contentType string, data []byte) (any, error) {
	_, parseFn, err := LookupFormat(contentType)
	if err != nil {
		return nil, err
	}
	return parseFn(data)
}

// Encode applies the named transfer encoding to data.
func Encode(name string, data []byte) ([]byte, error) {
	encodeFn, _, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return encodeFn(data)
}

// Decode reverses the named transfer encoding on data.
func Decode(name string, data []byte) ([]byte, error) {
	_, decodeFn, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return decodeFn(data)
}
