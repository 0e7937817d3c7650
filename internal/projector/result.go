package projector

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Result is an ordered mapping from output key to a scalar, a nested
// *Result, or a []*Result.
type Result struct {
	keys   []string
	values map[string]any
}

// NewResult creates an empty Result.
func NewResult() *Result {
	return &Result{values: map[string]any{}}
}

// Set assigns key. A key that is already present keeps its position.
func (r *Result) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}

	r.values[key] = value
}

// Get returns the value under key.
func (r *Result) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Result) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Nested returns the nested result under key, if it is one.
func (r *Result) Nested(key string) (*Result, bool) {
	v, ok := r.values[key].(*Result)
	return v, ok
}

// List returns the nested collection under key, if it is one.
func (r *Result) List(key string) ([]*Result, bool) {
	v, ok := r.values[key].([]*Result)
	return v, ok
}

// Keys returns the keys in output order.
func (r *Result) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)

	return out
}

// Len returns the number of keys.
func (r *Result) Len() int {
	return len(r.keys)
}

// Map converts the result into plain maps and slices.
func (r *Result) Map() map[string]any {
	if r == nil {
		return nil
	}

	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = plain(r.values[k])
	}

	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *Result:
		return t.Map()
	case []*Result:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e.Map()
		}

		return out
	default:
		return v
	}
}

// MarshalJSON encodes the result as a JSON object in key order.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
