package dsl_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

func TestParseDataType(t *testing.T) {
	dt, err := dsl.ParseDataType("map<array<string>>")
	require.NoError(t, err)
	assert.Equal(t, dsl.KindMap, dt.Kind)
	assert.Equal(t, dsl.KindArray, dt.Elem.Kind)
	assert.Equal(t, dsl.KindString, dt.Elem.Elem.Kind)
	assert.Equal(t, "map<array<string>>", dt.String())

	for _, bad := range []string{"", "float", "array<>", "array<string", "map<widget>"} {
		assert.False(t, dsl.IsValidDataType(bad), bad)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 3.0, dsl.Normalize(3))
	assert.Equal(t, 3.0, dsl.Normalize(int64(3)))
	assert.Equal(t, []any{1.0, "a"}, dsl.Normalize([]any{1, "a"}))
	assert.Equal(t, map[string]any{"1": 2.0}, dsl.Normalize(map[any]any{1: 2}))
	assert.Equal(t, "2026-03-02", dsl.Normalize(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-02T08:30:00Z", dsl.Normalize(time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)))
}

func TestCheckValue(t *testing.T) {
	tests := []struct {
		name    string
		prop    dsl.Property
		value   any
		wantErr string
	}{
		{"integer", dsl.Property{DataType: "integer"}, 4, ""},
		{"fractional integer", dsl.Property{DataType: "integer"}, 4.5, "expected integer"},
		{"number from string", dsl.Property{DataType: "number"}, "4", "expected number"},
		{"date", dsl.Property{DataType: "date"}, "2026-03-02", ""},
		{"bad date", dsl.Property{DataType: "date"}, "03/02/2026", "YYYY-MM-DD"},
		{"datetime", dsl.Property{DataType: "datetime"}, "2026-03-02T08:00:00Z", ""},
		{"enum member", dsl.Property{DataType: "enum", Values: []string{"Open", "Closed"}}, "Open", ""},
		{"enum outsider", dsl.Property{DataType: "enum", Values: []string{"Open", "Closed"}}, "Pending", "must be one of: Open, Closed"},
		{"enum array", dsl.Property{DataType: "array<enum>", Values: []string{"A"}}, []any{"A", "B"}, "[1]: value 'B'"},
		{"map of numbers", dsl.Property{DataType: "map<number>"}, map[string]any{"x": 1, "y": "two"}, "[y]: expected number"},
		{"null not allowed", dsl.Property{DataType: "string"}, nil, "must not be null"},
		{"nullable", dsl.Property{DataType: "string", Nullable: true}, nil, ""},
		{"min length", dsl.Property{DataType: "string", Constraints: map[string]any{"min_length": 5}}, "abc", "string length must be >= 5"},
		{"pattern", dsl.Property{DataType: "string", Constraints: map[string]any{"pattern": "^SKU-[0-9]+$"}}, "SKU-x", "does not match"},
		{"max", dsl.Property{DataType: "number", Constraints: map[string]any{"max": 10}}, 11, "value must be <= 10"},
		{"exclusive min", dsl.Property{DataType: "number", Constraints: map[string]any{"exclusive_min": 0}}, 0, "value must be > 0"},
		{"min items", dsl.Property{DataType: "array<string>", Constraints: map[string]any{"min_items": 1}}, []any{}, "at least 1 items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dsl.CheckValue(&tt.prop, tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConformReportsEveryViolation(t *testing.T) {
	props := []dsl.Property{
		{Name: "sku_id", DataType: "string", Required: true},
		{Name: "quantity", DataType: "integer", Required: true},
		{Name: "status", DataType: "enum", Values: []string{"Open"}, DefaultValue: "Open"},
		{Name: "notes", DataType: "string"},
	}

	out, violations := dsl.Conform(props, map[string]any{"quantity": 2.5, "color": "red"}, dsl.ConformOptions{})
	assert.Equal(t, []apperr.Violation{
		{Field: "color", Message: "unknown field"},
		{Field: "quantity", Message: "expected integer"},
		{Field: "sku_id", Message: "required field is missing"},
	}, violations)
	assert.Equal(t, "Open", out["status"], "default applied")

	out, violations = dsl.Conform(props, map[string]any{"notes": "x"}, dsl.ConformOptions{Partial: true})
	assert.Empty(t, violations)
	assert.NotContains(t, out, "status", "partial skips defaults")

	_, violations = dsl.Conform(props, map[string]any{"sku_id": "S", "quantity": 1, "extra": 1}, dsl.ConformOptions{AllowUnknown: true})
	assert.Empty(t, violations)
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		in   any
		want dsl.Expr
	}{
		{"$target_id", dsl.Expr{Kind: dsl.ExprTargetID}},
		{"$param.quantity", dsl.Expr{Kind: dsl.ExprParam, Name: "quantity"}},
		{"$ref.source.quantity_available", dsl.Expr{Kind: dsl.ExprRef, Name: "source", Field: "quantity_available"}},
		{"$principal.role", dsl.Expr{Kind: dsl.ExprPrincipal, Name: "role"}},
		{"$now+48h", dsl.Expr{Kind: dsl.ExprNow, Offset: 48 * time.Hour}},
		{"$seq:MV-", dsl.Expr{Kind: dsl.ExprSeq, Name: "MV-"}},
		{"Scheduled", dsl.Expr{Kind: dsl.ExprLiteral, Literal: "Scheduled"}},
		{7, dsl.Expr{Kind: dsl.ExprLiteral, Literal: 7.0}},
	}
	for _, tt := range tests {
		got, err := dsl.ParseExpr(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if s, ok := tt.in.(string); ok && got.Offset == 0 {
			assert.Equal(t, s, got.String())
		}
	}

	for _, bad := range []string{"$ref.source", "$param.", "$principal.email", "$now+soon", "$whatever"} {
		_, err := dsl.ParseExpr(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoaderValidatesDocuments(t *testing.T) {
	valid := `version: "1.0"
namespace: demo
object_types:
  - name: Widget
    primary_key: widget_id
    properties:
      - {name: widget_id, data_type: string, required: true}
      - {name: size, data_type: number, constraints: {min: 1, max: 10}}
link_types:
  - {name: contains, from: Widget, to: Widget, cardinality: one-to-many}
`
	schema, err := dsl.NewBytesLoader("valid", []byte(valid)).Load()
	require.NoError(t, err)
	assert.Equal(t, "demo", schema.Namespace)
	ot := schema.ObjectTypes[0]
	prop, ok := ot.Property("size")
	require.True(t, ok)
	assert.Equal(t, "number", prop.DataType)
	_, ok = ot.Property("colour")
	assert.False(t, ok)

	tests := map[string]string{
		"missing version": `object_types: []`,
		"unknown key": `version: "1"
object_types:
  - name: Widget
    primary_key: widget_id
    colour: red
    properties:
      - {name: widget_id, data_type: string, required: true}`,
		"primary key not a property": `version: "1"
object_types:
  - name: Widget
    primary_key: id
    properties:
      - {name: widget_id, data_type: string, required: true}`,
		"bad data type": `version: "1"
object_types:
  - name: Widget
    primary_key: widget_id
    properties:
      - {name: widget_id, data_type: string, required: true}
      - {name: size, data_type: float}`,
		"enum without values": `version: "1"
object_types:
  - name: Widget
    primary_key: widget_id
    properties:
      - {name: widget_id, data_type: string, required: true}
      - {name: state, data_type: enum}`,
		"inverted range": `version: "1"
object_types:
  - name: Widget
    primary_key: widget_id
    properties:
      - {name: widget_id, data_type: string, required: true}
      - {name: size, data_type: number, constraints: {min: 10, max: 1}}`,
		"bad default": `version: "1"
object_types:
  - name: Widget
    primary_key: widget_id
    properties:
      - {name: widget_id, data_type: string, required: true}
      - {name: size, data_type: integer, default_value: big}`,
		"bad cardinality": `version: "1"
object_types:
  - name: Widget
    primary_key: widget_id
    properties:
      - {name: widget_id, data_type: string, required: true}
link_types:
  - {name: contains, from: Widget, to: Widget, cardinality: several}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := dsl.NewBytesLoader(name, []byte(doc)).Load()
			assert.Error(t, err)
		})
	}
}

func TestParseSeed(t *testing.T) {
	seed, err := dsl.ParseSeed([]byte(`instances:
  Widget:
    - {widget_id: W-1, size: 3}
links:
  - {link: contains, from: W-1, to: W-1}
`))
	require.NoError(t, err)
	require.Len(t, seed.Instances["Widget"], 1)
	assert.Equal(t, "W-1", seed.Instances["Widget"][0]["widget_id"])
	assert.Equal(t, "contains", seed.Links[0].Link)

	_, err = dsl.ReadSeed("does-not-exist.yaml")
	assert.Error(t, err)
}
