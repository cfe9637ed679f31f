// Package models defines the values that flow between pipeline stages.
//
// Two record shapes exist. Fields is a raw tabular row before it has been
// associated with a header. Entity is a keyed record whose keys keep the
// order of the header they were built from. Text-producing transforms emit
// []byte chunks, which only loaders understand.
package models

import (
	"bytes"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/streametl/pkg/json"
)

// Fields is an ordered list of raw string values for one tabular row.
type Fields []string

// Clone returns a copy of the row.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	copy(out, f)
	return out
}

// Entity is a keyed record. Keys are unique and iterate in insertion order.
type Entity struct {
	keys   []string
	values map[string]interface{}
}

// NewEntity creates an empty entity with room for n keys.
func NewEntity(n int) *Entity {
	return &Entity{
		keys:   make([]string, 0, n),
		values: make(map[string]interface{}, n),
	}
}

// EntityFromRow pairs header names with row values positionally. The caller
// guarantees len(header) == len(row).
func EntityFromRow(header []string, row []string) *Entity {
	e := NewEntity(len(header))
	for i, name := range header {
		e.Set(name, row[i])
	}
	return e
}

// Set stores value under key, appending the key if it is new.
func (e *Entity) Set(key string, value interface{}) {
	if e.values == nil {
		e.values = make(map[string]interface{})
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value stored under key.
func (e *Entity) Get(key string) (interface{}, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (e *Entity) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Values returns the values in key order.
func (e *Entity) Values() []interface{} {
	out := make([]interface{}, len(e.keys))
	for i, k := range e.keys {
		out[i] = e.values[k]
	}
	return out
}

// Len returns the number of keys.
func (e *Entity) Len() int {
	return len(e.keys)
}

// Map returns a copy of the entity as a plain map.
func (e *Entity) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(e.keys))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the entity as a JSON object in key order.
func (e *Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(e.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order of its keys.
// Nested values decode to the generic interface{} representation.
func (e *Entity) UnmarshalJSON(data []byte) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(gojson.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	e.keys = e.keys[:0]
	e.values = make(map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode field %q: %w", key, err)
		}
		e.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// String renders the entity for logs and test failures.
func (e *Entity) String() string {
	b, err := e.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Entity(%v)", e.keys)
	}
	return string(b)
}
