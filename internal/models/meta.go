package models

import (
	"encoding/json"
	"fmt"
)

// Meta is a flat extension map for module-specific fields. Values must be
// scalars: string, bool, number or null.
type Meta map[string]any

func (m Meta) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		default:
			return fmt.Errorf("meta %q: value must be a scalar, got %T", k, v)
		}
	}
	return nil
}

func (m Meta) String(key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

func (m Meta) Bool(key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

func (m Meta) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Merge returns a copy of m overlaid with other.
func (m Meta) Merge(other Meta) Meta {
	out := make(Meta, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
