package dsl

import (
	"fmt"
	"regexp"
)

var namePattern = regexp.MustCompile(`^[\p{L}][\p{L}\p{N}_]*$`)

var validCardinalities = map[string]bool{
	OneToOne:   true,
	OneToMany:  true,
	ManyToOne:  true,
	ManyToMany: true,
}

// Validator checks the syntax of an ontology document. Cross references
// (link endpoints, action targets, rule refs) are checked by the registry.
type Validator struct {
	schema *OntologySchema
}

// NewValidator creates a validator for the document.
func NewValidator(schema *OntologySchema) *Validator {
	return &Validator{
		schema: schema,
	}
}

// Validate runs the syntax and constraint checks.
func (v *Validator) Validate() error {
	if err := v.validateSyntax(); err != nil {
		return err
	}
	return v.validateConstraints()
}

func (v *Validator) validateSyntax() error {
	if v.schema.Version == "" {
		return fmt.Errorf("version is required")
	}

	for i, ot := range v.schema.ObjectTypes {
		if !isValidName(ot.Name) {
			return fmt.Errorf("object_types[%d]: invalid name format '%s'", i, ot.Name)
		}
		if err := validateProperties("object_types["+ot.Name+"]", ot.Properties); err != nil {
			return err
		}
		if ot.PrimaryKey == "" {
			return fmt.Errorf("object_types[%s]: primary_key is required", ot.Name)
		}
		pk, ok := ot.Property(ot.PrimaryKey)
		if !ok {
			return fmt.Errorf("object_types[%s]: primary_key '%s' is not a property", ot.Name, ot.PrimaryKey)
		}
		if pk.DataType != string(KindString) || !pk.Required {
			return fmt.Errorf("object_types[%s]: primary_key '%s' must be a required string", ot.Name, ot.PrimaryKey)
		}
		if ot.TitleProperty != "" {
			if _, ok := ot.Property(ot.TitleProperty); !ok {
				return fmt.Errorf("object_types[%s]: title_property '%s' is not a property", ot.Name, ot.TitleProperty)
			}
		}
	}

	for i, lt := range v.schema.LinkTypes {
		if !isValidName(lt.Name) {
			return fmt.Errorf("link_types[%d]: invalid name format '%s'", i, lt.Name)
		}
		if lt.SourceType == "" {
			return fmt.Errorf("link_types[%s]: from is required", lt.Name)
		}
		if lt.TargetType == "" {
			return fmt.Errorf("link_types[%s]: to is required", lt.Name)
		}
		if !validCardinalities[lt.Cardinality] {
			return fmt.Errorf("link_types[%s]: invalid cardinality '%s'", lt.Name, lt.Cardinality)
		}
	}

	for i, a := range v.schema.Actions {
		if !isValidName(a.Name) {
			return fmt.Errorf("actions[%d]: invalid name format '%s'", i, a.Name)
		}
		if a.TargetObjectType == "" {
			return fmt.Errorf("actions[%s]: target_object_type is required", a.Name)
		}
		if err := validateProperties("actions["+a.Name+"].parameters", a.Parameters); err != nil {
			return err
		}
		if len(a.RequiredPermissions) == 0 {
			return fmt.Errorf("actions[%s]: required_permissions must not be empty", a.Name)
		}
	}

	for i, f := range v.schema.Functions {
		if !isValidName(f.Name) {
			return fmt.Errorf("functions[%d]: invalid name format '%s'", i, f.Name)
		}
		if err := validateProperties("functions["+f.Name+"].inputs", f.Inputs); err != nil {
			return err
		}
		if err := validateProperties("functions["+f.Name+"].outputs", f.Outputs); err != nil {
			return err
		}
	}

	return nil
}

func validateProperties(path string, props []Property) error {
	seen := make(map[string]bool, len(props))
	for j, prop := range props {
		if !isValidName(prop.Name) {
			return fmt.Errorf("%s[%d]: invalid name format '%s'", path, j, prop.Name)
		}
		if seen[prop.Name] {
			return fmt.Errorf("%s: duplicate property name '%s'", path, prop.Name)
		}
		seen[prop.Name] = true

		dt, err := ParseDataType(prop.DataType)
		if err != nil {
			return fmt.Errorf("%s[%s]: %w", path, prop.Name, err)
		}
		if enumBase(dt) && len(prop.Values) == 0 {
			return fmt.Errorf("%s[%s]: enum requires values", path, prop.Name)
		}
	}
	return nil
}

func enumBase(dt DataType) bool {
	for dt.Elem != nil {
		dt = *dt.Elem
	}
	return dt.Kind == KindEnum
}

func (v *Validator) validateConstraints() error {
	for _, ot := range v.schema.ObjectTypes {
		for _, prop := range ot.Properties {
			if err := validatePropertyConstraints(ot.Name, prop); err != nil {
				return err
			}
			if prop.DefaultValue != nil {
				if err := CheckValue(&prop, prop.DefaultValue); err != nil {
					return fmt.Errorf("object_type '%s'.property '%s': invalid default_value: %w", ot.Name, prop.Name, err)
				}
			}
		}
	}
	return nil
}

func validatePropertyConstraints(objectTypeName string, prop Property) error {
	c := prop.Constraints
	if c == nil {
		return nil
	}

	if minLen, ok := ToFloat(c["min_length"]); ok && minLen < 0 {
		return fmt.Errorf("object_type '%s'.property '%s': min_length must be >= 0", objectTypeName, prop.Name)
	}
	if maxLen, ok := ToFloat(c["max_length"]); ok && maxLen < 0 {
		return fmt.Errorf("object_type '%s'.property '%s': max_length must be >= 0", objectTypeName, prop.Name)
	}
	if minLen, ok1 := ToFloat(c["min_length"]); ok1 {
		if maxLen, ok2 := ToFloat(c["max_length"]); ok2 && maxLen < minLen {
			return fmt.Errorf("object_type '%s'.property '%s': max_length must be >= min_length", objectTypeName, prop.Name)
		}
	}
	if pattern, ok := c["pattern"].(string); ok {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("object_type '%s'.property '%s': invalid regex pattern: %w", objectTypeName, prop.Name, err)
		}
	}
	if minVal, ok := ToFloat(c["min"]); ok {
		if maxVal, ok2 := ToFloat(c["max"]); ok2 && maxVal < minVal {
			return fmt.Errorf("object_type '%s'.property '%s': max must be >= min", objectTypeName, prop.Name)
		}
	}
	return nil
}

// isValidName checks the name format: a letter followed by letters, digits or underscores.
func isValidName(name string) bool {
	return name != "" && namePattern.MatchString(name)
}
