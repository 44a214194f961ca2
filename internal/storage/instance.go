package storage

import (
	"maps"
	"time"
)

// Key identifies an instance across object types.
type Key struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// Instance is a stored object instance. Values handed out by the store are
// copies; mutating them has no effect on stored state.
type Instance struct {
	Type        string         `json:"type"`
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	Version     uint64         `json:"version"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Key returns the instance key.
func (i Instance) Key() Key {
	return Key{Type: i.Type, ID: i.ID}
}

// Get returns a field value.
func (i Instance) Get(field string) any {
	return i.Fields[field]
}

// Str returns a string field, or "" when absent or not a string.
func (i Instance) Str(field string) string {
	s, _ := i.Fields[field].(string)
	return s
}

// Number returns a numeric field, or 0 when absent or not numeric.
func (i Instance) Number(field string) float64 {
	f, _ := i.Fields[field].(float64)
	return f
}

// Bool returns a boolean field.
func (i Instance) Bool(field string) bool {
	b, _ := i.Fields[field].(bool)
	return b
}

// Strings returns an array field of strings.
func (i Instance) Strings(field string) []string {
	arr, _ := i.Fields[field].([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy.
func (i Instance) Clone() Instance {
	i.Fields = cloneFields(i.Fields)
	return i
}

func cloneFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := maps.Clone(val)
		for k, e := range out {
			out[k] = cloneValue(e)
		}
		return out
	}
	return v
}
