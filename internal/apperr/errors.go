// Package apperr defines the error taxonomy shared by the ontology engine.
// Every typed error unwraps to a sentinel so callers can branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	ErrSchemaViolation        = errors.New("schema violation")
	ErrDuplicateIdentifier    = errors.New("duplicate identifier")
	ErrDuplicateDefinition    = errors.New("duplicate definition")
	ErrInvalidSchema          = errors.New("invalid schema")
	ErrNotFound               = errors.New("not found")
	ErrParameterValidation    = errors.New("parameter validation failed")
	ErrRuleViolation          = errors.New("rule violation")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrReferentialIntegrity   = errors.New("referential integrity violation")
	ErrCardinality            = errors.New("cardinality violation")
	ErrExecution              = errors.New("execution error")
)

// Violation is one field- or rule-level problem reported back to the caller.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	switch {
	case v.Field != "":
		return v.Field + ": " + v.Message
	case v.Rule != "":
		return v.Rule + ": " + v.Message
	}
	return v.Message
}

func joinViolations(vs []Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// SchemaViolationError reports instance data that does not conform to its ObjectType.
type SchemaViolationError struct {
	Type       string
	ID         string
	Violations []Violation
}

func (e *SchemaViolationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %q: %s", ErrSchemaViolation, e.Type, e.ID, joinViolations(e.Violations))
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchemaViolation, e.Type, joinViolations(e.Violations))
}

func (e *SchemaViolationError) Unwrap() error { return ErrSchemaViolation }

// DuplicateIdentifierError reports a primary key that already exists for a type.
type DuplicateIdentifierError struct {
	Type string
	ID   string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s: %s %q already exists", ErrDuplicateIdentifier, e.Type, e.ID)
}

func (e *DuplicateIdentifierError) Unwrap() error { return ErrDuplicateIdentifier }

// DuplicateDefinitionError reports a schema definition registered twice.
type DuplicateDefinitionError struct {
	Kind string // "object type", "link type", "action", "function"
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrDuplicateDefinition, e.Kind, e.Name)
}

func (e *DuplicateDefinitionError) Unwrap() error { return ErrDuplicateDefinition }

// InvalidSchemaError reports a definition that references something unknown or is malformed.
type InvalidSchemaError struct {
	Kind string
	Name string
	Msg  string
}

func (e *InvalidSchemaError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidSchema, e.Msg)
	}
	return fmt.Sprintf("%s: %s %q: %s", ErrInvalidSchema, e.Kind, e.Name, e.Msg)
}

func (e *InvalidSchemaError) Unwrap() error { return ErrInvalidSchema }

// NotFoundError reports an unknown type, instance, action or function.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Kind, e.Name, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for &NotFoundError{...}.
func NotFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// ParameterValidationError lists every malformed parameter of an invocation.
type ParameterValidationError struct {
	Operation  string
	Violations []Violation
}

func (e *ParameterValidationError) Error() string {
	return fmt.Sprintf("%s for %s: %s", ErrParameterValidation, e.Operation, joinViolations(e.Violations))
}

func (e *ParameterValidationError) Unwrap() error { return ErrParameterValidation }

// HasField reports whether the named parameter is among the violations.
func (e *ParameterValidationError) HasField(name string) bool {
	for _, v := range e.Violations {
		if v.Field == name {
			return true
		}
	}
	return false
}

// RuleViolationError lists every business rule that failed, with its original text.
type RuleViolationError struct {
	Action     string
	Violations []Violation
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("%s in %s: %s", ErrRuleViolation, e.Action, joinViolations(e.Violations))
}

func (e *RuleViolationError) Unwrap() error { return ErrRuleViolation }

// Messages returns the human-readable text of every failed rule.
func (e *RuleViolationError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Message
	}
	return out
}

// PermissionDeniedError reports a principal without any of the required permissions.
type PermissionDeniedError struct {
	Principal string
	Action    string
	Required  []string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: principal %q may not invoke %s (requires one of: %s)",
		ErrPermissionDenied, e.Principal, e.Action, strings.Join(e.Required, ", "))
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// ConcurrentModificationError reports state that changed between validation and commit.
type ConcurrentModificationError struct {
	Key string
	Msg string
}

func (e *ConcurrentModificationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", ErrConcurrentModification, e.Key)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConcurrentModification, e.Key, e.Msg)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// ReferentialIntegrityError reports a delete blocked by live relationship edges.
type ReferentialIntegrityError struct {
	Type  string
	ID    string
	Links []string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s: %s %q is referenced by %s", ErrReferentialIntegrity, e.Type, e.ID, strings.Join(e.Links, ", "))
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrReferentialIntegrity }

// CardinalityError reports an edge that would break a link type's cardinality.
type CardinalityError struct {
	Link string
	From string
	To   string
	Side string // "source" or "target"
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s: %s %s -> %s: %s already linked", ErrCardinality, e.Link, e.From, e.To, e.Side)
}

func (e *CardinalityError) Unwrap() error { return ErrCardinality }

// ExecutionError wraps an unexpected failure inside a write-back sequence.
// The invocation was rolled back when this is returned.
type ExecutionError struct {
	Action    string
	Operation string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: operation %s: %v", ErrExecution, e.Action, e.Operation, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Err} }

// IsCallerError reports whether err can be fixed by changing the request,
// as opposed to an execution failure inside the engine.
func IsCallerError(err error) bool {
	if err == nil || errors.Is(err, ErrExecution) {
		return false
	}
	for _, target := range []error{
		ErrSchemaViolation, ErrDuplicateIdentifier, ErrNotFound, ErrParameterValidation,
		ErrRuleViolation, ErrPermissionDenied, ErrConcurrentModification,
		ErrReferentialIntegrity, ErrCardinality,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
