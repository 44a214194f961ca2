package service

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

// ParseFilter turns query parameters into typed field matches for an object
// type. Keys in reserved are skipped. Every other key must name a scalar
// property and its value must be valid for that property.
func ParseFilter(ot *dsl.ObjectType, q url.Values, reserved ...string) (map[string]any, error) {
	filter := make(map[string]any)
	var violations []apperr.Violation
	for _, key := range sortedQueryKeys(q) {
		if slices.Contains(reserved, key) {
			continue
		}
		prop, ok := ot.Property(key)
		if !ok {
			violations = append(violations, apperr.Violation{Field: key, Message: "unknown property"})
			continue
		}
		value, err := parseQueryValue(prop, q.Get(key))
		if err != nil {
			violations = append(violations, apperr.Violation{Field: key, Message: err.Error()})
			continue
		}
		filter[key] = value
	}
	if len(violations) > 0 {
		return nil, &apperr.ParameterValidationError{Operation: "query " + ot.Name, Violations: violations}
	}
	return filter, nil
}

// parseQueryValue converts the raw string to the property's type and checks it.
func parseQueryValue(prop *dsl.Property, raw string) (any, error) {
	dt, err := dsl.ParseDataType(prop.DataType)
	if err != nil {
		return nil, err
	}

	var value any
	switch dt.Kind {
	case dsl.KindNumber, dsl.KindInteger:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a number", raw)
		}
		value = f
	case dsl.KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a boolean", raw)
		}
		value = b
	case dsl.KindString, dsl.KindEnum, dsl.KindReference, dsl.KindDate, dsl.KindDateTime:
		value = raw
	default:
		return nil, fmt.Errorf("%s properties cannot be filtered", dt.Kind)
	}

	// Constraints are not applied to filter values.
	check := *prop
	check.Constraints = nil
	if err := dsl.CheckValue(&check, value); err != nil {
		return nil, err
	}
	return value, nil
}

func sortedQueryKeys(q url.Values) []string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
