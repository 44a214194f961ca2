// Package registry holds the ontology definitions: object types, link types,
// actions and functions. A Registry is built during bootstrap, sealed, and
// then shared read-only by the store, the validation engine and the evaluator.
package registry

import (
	"fmt"
	"sync"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

// Definition kinds used in errors.
const (
	KindObjectType = "object type"
	KindLinkType   = "link type"
	KindAction     = "action"
	KindFunction   = "function"
)

// Registry is the schema registry.
type Registry struct {
	mu sync.RWMutex

	version   string
	namespace string
	sealed    bool

	objectTypes map[string]*dsl.ObjectType
	linkTypes   map[string]*dsl.LinkType
	actions     map[string]*dsl.ActionType
	functions   map[string]*dsl.FunctionType
	domains     []dsl.DomainGrouping

	// registration order, used for listings
	objectOrder   []string
	linkOrder     []string
	actionOrder   []string
	functionOrder []string
}

// New creates an empty, unsealed registry.
func New(version, namespace string) *Registry {
	return &Registry{
		version:     version,
		namespace:   namespace,
		objectTypes: make(map[string]*dsl.ObjectType),
		linkTypes:   make(map[string]*dsl.LinkType),
		actions:     make(map[string]*dsl.ActionType),
		functions:   make(map[string]*dsl.FunctionType),
	}
}

// FromSchema registers every definition of a document in dependency order and
// seals the registry.
func FromSchema(schema *dsl.OntologySchema) (*Registry, error) {
	r := New(schema.Version, schema.Namespace)
	for _, ot := range schema.ObjectTypes {
		if err := r.RegisterObjectType(ot); err != nil {
			return nil, err
		}
	}
	for _, lt := range schema.LinkTypes {
		if err := r.RegisterLinkType(lt); err != nil {
			return nil, err
		}
	}
	for _, a := range schema.Actions {
		if err := r.RegisterAction(a); err != nil {
			return nil, err
		}
	}
	for _, f := range schema.Functions {
		if err := r.RegisterFunction(f); err != nil {
			return nil, err
		}
	}
	for _, d := range schema.Domains {
		if err := r.RegisterDomain(d); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// Namespace returns the ontology namespace.
func (r *Registry) Namespace() string { return r.namespace }

// Version returns the ontology version.
func (r *Registry) Version() string { return r.version }

// Seal freezes the registry. Later registrations fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *Registry) checkOpen(kind, name string) error {
	if r.sealed {
		return &apperr.InvalidSchemaError{Kind: kind, Name: name, Msg: "registry is sealed"}
	}
	return nil
}

// RegisterObjectType adds an object type definition.
func (r *Registry) RegisterObjectType(def dsl.ObjectType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(KindObjectType, def.Name); err != nil {
		return err
	}
	if _, exists := r.objectTypes[def.Name]; exists {
		return &apperr.DuplicateDefinitionError{Kind: KindObjectType, Name: def.Name}
	}
	if _, ok := def.Property(def.PrimaryKey); !ok {
		return &apperr.InvalidSchemaError{Kind: KindObjectType, Name: def.Name,
			Msg: fmt.Sprintf("primary_key '%s' is not a property", def.PrimaryKey)}
	}
	for _, prop := range def.Properties {
		if err := r.checkPropertyLocked(prop, def.Name); err != nil {
			return &apperr.InvalidSchemaError{Kind: KindObjectType, Name: def.Name, Msg: err.Error()}
		}
	}

	r.objectTypes[def.Name] = &def
	r.objectOrder = append(r.objectOrder, def.Name)
	return nil
}

// checkPropertyLocked validates a property's data type and reference target.
// self allows an object type to reference itself.
func (r *Registry) checkPropertyLocked(prop dsl.Property, self string) error {
	dt, err := dsl.ParseDataType(prop.DataType)
	if err != nil {
		return fmt.Errorf("property '%s': %w", prop.Name, err)
	}
	base := dt
	for base.Elem != nil {
		base = *base.Elem
	}
	if base.Kind == dsl.KindReference {
		if prop.RefType == "" {
			return fmt.Errorf("property '%s': reference requires ref_type", prop.Name)
		}
		if _, ok := r.objectTypes[prop.RefType]; !ok && prop.RefType != self {
			return fmt.Errorf("property '%s': unknown ref_type '%s'", prop.Name, prop.RefType)
		}
	}
	return nil
}

// RegisterLinkType adds a link type definition. Both endpoints must be registered.
func (r *Registry) RegisterLinkType(def dsl.LinkType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(KindLinkType, def.Name); err != nil {
		return err
	}
	if _, exists := r.linkTypes[def.Name]; exists {
		return &apperr.DuplicateDefinitionError{Kind: KindLinkType, Name: def.Name}
	}
	if _, ok := r.objectTypes[def.SourceType]; !ok {
		return &apperr.InvalidSchemaError{Kind: KindLinkType, Name: def.Name,
			Msg: fmt.Sprintf("source type '%s' does not exist", def.SourceType)}
	}
	if _, ok := r.objectTypes[def.TargetType]; !ok {
		return &apperr.InvalidSchemaError{Kind: KindLinkType, Name: def.Name,
			Msg: fmt.Sprintf("target type '%s' does not exist", def.TargetType)}
	}
	switch def.Cardinality {
	case dsl.OneToOne, dsl.OneToMany, dsl.ManyToOne, dsl.ManyToMany:
	default:
		return &apperr.InvalidSchemaError{Kind: KindLinkType, Name: def.Name,
			Msg: fmt.Sprintf("invalid cardinality '%s'", def.Cardinality)}
	}

	r.linkTypes[def.Name] = &def
	r.linkOrder = append(r.linkOrder, def.Name)
	return nil
}

// RegisterAction adds an action definition after checking every parameter,
// ref, rule and operation against the registered types and links.
func (r *Registry) RegisterAction(def dsl.ActionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(KindAction, def.Name); err != nil {
		return err
	}
	if _, exists := r.actions[def.Name]; exists {
		return &apperr.DuplicateDefinitionError{Kind: KindAction, Name: def.Name}
	}
	if err := r.checkActionLocked(&def); err != nil {
		return &apperr.InvalidSchemaError{Kind: KindAction, Name: def.Name, Msg: err.Error()}
	}

	r.actions[def.Name] = &def
	r.actionOrder = append(r.actionOrder, def.Name)
	return nil
}

// RegisterFunction adds a function definition.
func (r *Registry) RegisterFunction(def dsl.FunctionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(KindFunction, def.Name); err != nil {
		return err
	}
	if _, exists := r.functions[def.Name]; exists {
		return &apperr.DuplicateDefinitionError{Kind: KindFunction, Name: def.Name}
	}
	for _, group := range [][]dsl.Property{def.Inputs, def.Outputs} {
		for _, prop := range group {
			if err := r.checkPropertyLocked(prop, ""); err != nil {
				return &apperr.InvalidSchemaError{Kind: KindFunction, Name: def.Name, Msg: err.Error()}
			}
		}
	}

	r.functions[def.Name] = &def
	r.functionOrder = append(r.functionOrder, def.Name)
	return nil
}

// RegisterDomain adds an explorer grouping. Every member must be a registered object type.
func (r *Registry) RegisterDomain(d dsl.DomainGrouping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen("domain", d.Name); err != nil {
		return err
	}
	for _, name := range d.ObjectTypes {
		if _, ok := r.objectTypes[name]; !ok {
			return &apperr.InvalidSchemaError{Kind: "domain", Name: d.Name,
				Msg: fmt.Sprintf("unknown object type '%s'", name)}
		}
	}
	r.domains = append(r.domains, d)
	return nil
}

// GetObjectType returns an object type by name.
func (r *Registry) GetObjectType(name string) (*dsl.ObjectType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ot, ok := r.objectTypes[name]; ok {
		return ot, nil
	}
	return nil, apperr.NotFound(KindObjectType, name)
}

// GetLinkType returns a link type by name.
func (r *Registry) GetLinkType(name string) (*dsl.LinkType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if lt, ok := r.linkTypes[name]; ok {
		return lt, nil
	}
	return nil, apperr.NotFound(KindLinkType, name)
}

// GetAction returns an action by name.
func (r *Registry) GetAction(name string) (*dsl.ActionType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.actions[name]; ok {
		return a, nil
	}
	return nil, apperr.NotFound(KindAction, name)
}

// GetFunction returns a function by name.
func (r *Registry) GetFunction(name string) (*dsl.FunctionType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.functions[name]; ok {
		return f, nil
	}
	return nil, apperr.NotFound(KindFunction, name)
}

// ObjectTypes lists object types in registration order.
func (r *Registry) ObjectTypes() []dsl.ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dsl.ObjectType, len(r.objectOrder))
	for i, name := range r.objectOrder {
		out[i] = *r.objectTypes[name]
	}
	return out
}

// LinkTypes lists link types in registration order.
func (r *Registry) LinkTypes() []dsl.LinkType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dsl.LinkType, len(r.linkOrder))
	for i, name := range r.linkOrder {
		out[i] = *r.linkTypes[name]
	}
	return out
}

// Actions lists actions in registration order.
func (r *Registry) Actions() []dsl.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dsl.ActionType, len(r.actionOrder))
	for i, name := range r.actionOrder {
		out[i] = *r.actions[name]
	}
	return out
}

// Functions lists functions in registration order.
func (r *Registry) Functions() []dsl.FunctionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dsl.FunctionType, len(r.functionOrder))
	for i, name := range r.functionOrder {
		out[i] = *r.functions[name]
	}
	return out
}

// Domains lists the explorer groupings.
func (r *Registry) Domains() []dsl.DomainGrouping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dsl.DomainGrouping, len(r.domains))
	copy(out, r.domains)
	return out
}

// OutgoingLinks returns the link types whose source is the object type.
func (r *Registry) OutgoingLinks(objectTypeName string) []dsl.LinkType {
	var result []dsl.LinkType
	for _, lt := range r.LinkTypes() {
		if lt.SourceType == objectTypeName {
			result = append(result, lt)
		}
	}
	return result
}

// IncomingLinks returns the link types whose target is the object type.
func (r *Registry) IncomingLinks(objectTypeName string) []dsl.LinkType {
	var result []dsl.LinkType
	for _, lt := range r.LinkTypes() {
		if lt.TargetType == objectTypeName {
			result = append(result, lt)
		}
	}
	return result
}

// Dump returns the full registry as a document, for client introspection.
func (r *Registry) Dump() *dsl.OntologySchema {
	return &dsl.OntologySchema{
		Version:     r.version,
		Namespace:   r.namespace,
		ObjectTypes: r.ObjectTypes(),
		LinkTypes:   r.LinkTypes(),
		Actions:     r.Actions(),
		Functions:   r.Functions(),
		Domains:     r.Domains(),
	}
}
