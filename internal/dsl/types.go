package dsl

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Date layouts accepted by the date and datetime data types.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// Kind is the base of a data type.
type Kind string

// Data type kinds.
const (
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindInteger   Kind = "integer"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindDateTime  Kind = "datetime"
	KindEnum      Kind = "enum"
	KindReference Kind = "reference"
	KindJSON      Kind = "json"
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindMap       Kind = "map"
)

var scalarKinds = map[string]Kind{
	"string":    KindString,
	"number":    KindNumber,
	"integer":   KindInteger,
	"boolean":   KindBoolean,
	"date":      KindDate,
	"datetime":  KindDateTime,
	"enum":      KindEnum,
	"reference": KindReference,
	"json":      KindJSON,
	"object":    KindObject,
}

// DataType is a parsed data_type such as "number" or "map<array<string>>".
type DataType struct {
	Kind Kind
	Elem *DataType
}

func (dt DataType) String() string {
	if dt.Elem != nil {
		return fmt.Sprintf("%s<%s>", dt.Kind, dt.Elem)
	}
	return string(dt.Kind)
}

// ParseDataType parses the data_type grammar: scalar | array<T> | map<T>.
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	for _, container := range []Kind{KindArray, KindMap} {
		prefix := string(container) + "<"
		if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, ">") {
			inner, err := ParseDataType(s[len(prefix) : len(s)-1])
			if err != nil {
				return DataType{}, err
			}
			return DataType{Kind: container, Elem: &inner}, nil
		}
	}
	if k, ok := scalarKinds[s]; ok {
		return DataType{Kind: k}, nil
	}
	return DataType{}, fmt.Errorf("invalid data_type '%s'", s)
}

// IsValidDataType reports whether s parses as a data type.
func IsValidDataType(s string) bool {
	_, err := ParseDataType(s)
	return err == nil
}

// Normalize converts decoded YAML/JSON values to canonical form: numbers become
// float64, slices []any, maps map[string]any and timestamps ISO strings.
func Normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(DateLayout)
		}
		return val.UTC().Format(DateTimeLayout)
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	}
	return v
}

// ToFloat extracts a float64 from any numeric value.
func ToFloat(v any) (float64, bool) {
	switch n := Normalize(v).(type) {
	case float64:
		return n, true
	}
	return 0, false
}

// CheckValue checks a single non-nil value against a property definition.
func CheckValue(prop *Property, value any) error {
	dt, err := ParseDataType(prop.DataType)
	if err != nil {
		return err
	}
	value = Normalize(value)
	if value == nil {
		if prop.Nullable {
			return nil
		}
		return fmt.Errorf("must not be null")
	}
	if err := checkType(dt, prop, value); err != nil {
		return err
	}
	return checkConstraints(dt, prop, value)
}

func checkType(dt DataType, prop *Property, value any) error {
	switch dt.Kind {
	case KindString, KindReference:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected %s, got %T", dt.Kind, value)
		}
	case KindNumber:
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("expected finite number")
		}
	case KindInteger:
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("expected integer")
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case KindDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected date string")
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return fmt.Errorf("invalid date format, expected YYYY-MM-DD")
		}
	case KindDateTime:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected datetime string")
		}
		if _, err := time.Parse(DateTimeLayout, s); err != nil {
			return fmt.Errorf("invalid datetime format, expected RFC3339")
		}
	case KindEnum:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected enum string, got %T", value)
		}
		if prop != nil && !slices.Contains(prop.Values, s) {
			return fmt.Errorf("value '%s' must be one of: %s", s, strings.Join(prop.Values, ", "))
		}
	case KindJSON:
		return nil
	case KindObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		elemProp := elementProperty(prop, dt.Elem)
		for i, e := range arr {
			if e == nil {
				return fmt.Errorf("[%d]: must not be null", i)
			}
			if err := checkType(*dt.Elem, elemProp, e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case KindMap:
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected map, got %T", value)
		}
		elemProp := elementProperty(prop, dt.Elem)
		for _, k := range sortedKeys(m) {
			if m[k] == nil {
				continue
			}
			if err := checkType(*dt.Elem, elemProp, m[k]); err != nil {
				return fmt.Errorf("[%s]: %w", k, err)
			}
		}
	}
	return nil
}

// elementProperty carries enum values down to container elements.
func elementProperty(prop *Property, elem *DataType) *Property {
	if prop == nil {
		return nil
	}
	return &Property{Name: prop.Name, DataType: elem.String(), Values: prop.Values}
}

func checkConstraints(dt DataType, prop *Property, value any) error {
	c := prop.Constraints
	if len(c) == 0 {
		return nil
	}
	switch dt.Kind {
	case KindString, KindReference, KindEnum:
		str := value.(string)
		if minLen, ok := ToFloat(c["min_length"]); ok && float64(len([]rune(str))) < minLen {
			return fmt.Errorf("string length must be >= %d", int(minLen))
		}
		if maxLen, ok := ToFloat(c["max_length"]); ok && float64(len([]rune(str))) > maxLen {
			return fmt.Errorf("string length must be <= %d", int(maxLen))
		}
		if pattern, ok := c["pattern"].(string); ok {
			matched, err := regexp.MatchString(pattern, str)
			if err != nil {
				return fmt.Errorf("invalid regex pattern: %w", err)
			}
			if !matched {
				return fmt.Errorf("string does not match pattern %s", pattern)
			}
		}
	case KindNumber, KindInteger:
		f := value.(float64)
		if minVal, ok := ToFloat(c["min"]); ok && f < minVal {
			return fmt.Errorf("value must be >= %v", minVal)
		}
		if maxVal, ok := ToFloat(c["max"]); ok && f > maxVal {
			return fmt.Errorf("value must be <= %v", maxVal)
		}
		if exMin, ok := ToFloat(c["exclusive_min"]); ok && f <= exMin {
			return fmt.Errorf("value must be > %v", exMin)
		}
	case KindArray:
		arr := value.([]any)
		if minItems, ok := ToFloat(c["min_items"]); ok && float64(len(arr)) < minItems {
			return fmt.Errorf("must contain at least %d items", int(minItems))
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
