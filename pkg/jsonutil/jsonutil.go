// Package jsonutil wraps github.com/go-json-experiment/json behind an
// encoding/json-shaped API so callers don't depend on the experimental
// package directly.
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns the JSON encoding of v indented with indent.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent))
}

// MarshalWrite streams the JSON encoding of v to w, indented with indent
// when indent is non-empty, followed by a newline.
func MarshalWrite(w io.Writer, v any, indent string) error {
	var err error
	if indent != "" {
		err = json.MarshalWrite(w, v, jsontext.WithIndent(indent))
	} else {
		err = json.MarshalWrite(w, v)
	}
	if err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

// UnmarshalRead decodes one JSON value from r into v.
func UnmarshalRead(r io.Reader, v any) error {
	return json.UnmarshalRead(r, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}
