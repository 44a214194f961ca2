package function

import (
	"maps"
	"math"
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Inputs are conformed function inputs.
type Inputs map[string]any

func (in Inputs) Str(name string) string {
	s, _ := in[name].(string)
	return s
}

func (in Inputs) Float(name string) float64 {
	f, _ := dsl.ToFloat(in[name])
	return f
}

func (in Inputs) Int(name string) int {
	return int(in.Float(name))
}

func (in Inputs) Bool(name string) bool {
	b, _ := in[name].(bool)
	return b
}

func (in Inputs) Strings(name string) []string {
	arr, _ := in[name].([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (in Inputs) Object(name string) map[string]any {
	m, _ := in[name].(map[string]any)
	return m
}

// Numbers returns a map<number> input.
func (in Inputs) Numbers(name string) map[string]float64 {
	return numbers(in.Object(name))
}

func (in Inputs) Objects(name string) []map[string]any {
	arr, _ := in[name].([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func numbers(m map[string]any) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if f, ok := dsl.ToFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

// numberMap converts computed values to the map<number> output form.
func numberMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// all collects every instance of a type matching pred, ordered by id.
func all(r storage.Reader, typeName string, pred storage.Predicate) []storage.Instance {
	var out []storage.Instance
	for inst := range r.Query(typeName, pred) {
		out = append(out, inst)
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
