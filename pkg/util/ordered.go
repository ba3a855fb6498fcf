package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OrderedMap is a string-keyed map that remembers insertion order.
// It decodes from and encodes to a JSON object, keeping the key order of
// the source document. Setting an existing key replaces its value in place.
//
// The zero value is an empty map ready to use. Copies share their entries.
type OrderedMap[V any] struct {
	om *orderedmap.OrderedMap[string, V]
}

// Set adds or replaces the value for key.
func (m *OrderedMap[V]) Set(key string, value V) {
	if m.om == nil {
		m.om = orderedmap.New[string, V]()
	}
	m.om.Set(key, value)
}

// Get retrieves the value for key.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if m == nil || m.om == nil {
		var zero V
		return zero, false
	}
	return m.om.Get(key)
}

// Len returns the number of keys.
func (m *OrderedMap[V]) Len() int {
	if m == nil || m.om == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	if m.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, m.om.Len())
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// All iterates key/value pairs in insertion order.
func (m *OrderedMap[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		if m.Len() == 0 {
			return
		}
		for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	if m.om == nil {
		return []byte("{}"), nil
	}
	return m.om.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping its key order.
// Anything other than an object, including null, is rejected, and a value
// that does not decode as V is reported with its key.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	tok, err := json.NewDecoder(bytes.NewReader(data)).Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object, got %s", describeToken(tok))
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}

	om := orderedmap.New[string, V]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		var value V
		if err := json.Unmarshal(pair.Value, &value); err != nil {
			return fmt.Errorf("key %q: %w", pair.Key, err)
		}
		om.Set(pair.Key, value)
	}
	m.om = om
	return nil
}

func describeToken(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case json.Delim:
		return fmt.Sprintf("%q", v.String())
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
