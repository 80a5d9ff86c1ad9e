package content

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Content types with built-in formats.
const (
	TypeText = "text/plain"
	TypeJSON = "application/json"
)

// Transfer encodings with built-in codecs.
const (
	EncodingIdentity = "identity"
	EncodingGzip     = "gzip"
	EncodingBase64   = "base64"
)

func init() {
	RegisterFormat(TypeText, formatText, parseText)
	RegisterFormat(TypeJSON, formatJSON, parseJSON)
	RegisterEncoding(EncodingIdentity, encodeIdentity, encodeIdentity)
	RegisterEncoding(EncodingGzip, encodeGzip, decodeGzip)
	RegisterEncoding(EncodingBase64, encodeBase64, decodeBase64)
}

func formatText(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case fmt.Stringer:
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("content: cannot format %T as %s", body, TypeText)
	}
}

func parseText(data []byte) (any, error) {
	return string(data), nil
}

func formatJSON(body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("content: format %s: %w", TypeJSON, err)
	}
	return data, nil
}

func parseJSON(data []byte) (any, error) {
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("content: parse %s: %w", TypeJSON, err)
	}
	return body, nil
}

func encodeIdentity(data []byte) ([]byte, error) {
	return data, nil
}

func encodeGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("content: gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("content: gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("content: gunzip: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("content: gunzip: %w", err)
	}
	return out, nil
}

func encodeBase64(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}

func decodeBase64(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("content: base64: %w", err)
	}
	return out[:n], nil
}
