package dsl

import (
	"cmp"
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
)

// ConformOptions controls Conform.
type ConformOptions struct {
	// Partial skips required-field and default handling: only supplied fields are checked.
	Partial bool
	// AllowUnknown accepts fields that have no property definition.
	AllowUnknown bool
}

// Conform checks data against a property list and returns a normalized copy.
// Every problem is reported, not just the first.
func Conform(props []Property, data map[string]any, opts ConformOptions) (map[string]any, []apperr.Violation) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = Normalize(v)
	}

	var violations []apperr.Violation
	known := make(map[string]bool, len(props))
	for i := range props {
		prop := &props[i]
		known[prop.Name] = true

		value, exists := out[prop.Name]
		if !exists {
			if opts.Partial {
				continue
			}
			if prop.DefaultValue != nil {
				out[prop.Name] = Normalize(prop.DefaultValue)
				continue
			}
			if prop.Required {
				violations = append(violations, apperr.Violation{Field: prop.Name, Message: "required field is missing"})
			}
			continue
		}
		if value == nil && prop.Required && !prop.Nullable {
			violations = append(violations, apperr.Violation{Field: prop.Name, Message: "required field must not be null"})
			continue
		}
		if err := CheckValue(prop, value); err != nil {
			violations = append(violations, apperr.Violation{Field: prop.Name, Message: err.Error()})
		}
	}

	if !opts.AllowUnknown {
		for _, k := range sortedKeys(out) {
			if !known[k] {
				violations = append(violations, apperr.Violation{Field: k, Message: "unknown field"})
			}
		}
	}

	slices.SortStableFunc(violations, func(a, b apperr.Violation) int {
		return cmp.Compare(a.Field, b.Field)
	})
	return out, violations
}
