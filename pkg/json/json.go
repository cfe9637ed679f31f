// Package json wraps goccy/go-json for the record encoders.
package json

import (
	"bytes"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/streametl/pkg/pool"
)

// Marshal encodes v without HTML escaping.
func Marshal(v interface{}) ([]byte, error) {
	return encode(v, "", "")
}

// MarshalIndent is Marshal with indentation, also without HTML escaping.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return encode(v, prefix, indent)
}

func encode(v interface{}, prefix, indent string) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if prefix != "" || indent != "" {
		enc.SetIndent(prefix, indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Unmarshal is gojson.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// ArrayEncoder renders a sequence of values as the text of one JSON array,
// a chunk at a time. Compact output has no whitespace. Pretty output puts
// each element on its own line after eol, indented by two spaces.
type ArrayEncoder struct {
	pretty bool
	eol    string
	count  int
}

// NewArrayEncoder creates an encoder. eol is only used in pretty mode.
func NewArrayEncoder(pretty bool, eol string) *ArrayEncoder {
	return &ArrayEncoder{pretty: pretty, eol: eol}
}

// Encode returns the chunk for the next element, including the opening
// bracket or separator that precedes it.
func (e *ArrayEncoder) Encode(v interface{}) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	lead := byte(',')
	if e.count == 0 {
		lead = '['
	}
	buf.WriteByte(lead)

	var (
		data []byte
		err  error
	)
	if e.pretty {
		buf.WriteString(e.eol)
		buf.WriteString("  ")
		data, err = MarshalIndent(v, "", "  ")
		data = bytes.ReplaceAll(data, []byte("\n"), []byte("\n  "))
	} else {
		data, err = Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	buf.Write(data)
	e.count++

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Close returns the closing chunk. An encoder that saw no values yields
// "[]".
func (e *ArrayEncoder) Close() []byte {
	switch {
	case e.count == 0:
		return []byte("[]")
	case e.pretty:
		return []byte(e.eol + "]")
	default:
		return []byte("]")
	}
}

// Count returns the number of values encoded so far.
func (e *ArrayEncoder) Count() int {
	return e.count
}
