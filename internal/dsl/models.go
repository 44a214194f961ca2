package dsl

// OntologySchema is a complete ontology document.
type OntologySchema struct {
	Version     string           `yaml:"version" json:"version"`
	Namespace   string           `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	ObjectTypes []ObjectType     `yaml:"object_types" json:"object_types"`
	LinkTypes   []LinkType       `yaml:"link_types" json:"link_types"`
	Actions     []ActionType     `yaml:"actions,omitempty" json:"actions"`
	Functions   []FunctionType   `yaml:"functions,omitempty" json:"functions"`
	Domains     []DomainGrouping `yaml:"domains,omitempty" json:"domains,omitempty"`
}

// DomainGrouping groups object types for the ontology explorer.
type DomainGrouping struct {
	Name        string   `yaml:"name" json:"name"`
	ObjectTypes []string `yaml:"object_types" json:"object_types"`
}

// ObjectType is an object type definition.
type ObjectType struct {
	Name          string     `yaml:"name" json:"name"`
	DisplayName   string     `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	Icon          string     `yaml:"icon,omitempty" json:"icon,omitempty"`
	Domain        string     `yaml:"domain,omitempty" json:"domain,omitempty"`
	PrimaryKey    string     `yaml:"primary_key" json:"primary_key"`
	TitleProperty string     `yaml:"title_property,omitempty" json:"title_property,omitempty"`
	Properties    []Property `yaml:"properties" json:"properties"`
}

// Property returns the named property definition.
func (ot *ObjectType) Property(name string) (*Property, bool) {
	for i := range ot.Properties {
		if ot.Properties[i].Name == name {
			return &ot.Properties[i], true
		}
	}
	return nil, false
}

// Property is a field definition shared by object types, action parameters
// and function inputs/outputs.
type Property struct {
	Name         string         `yaml:"name" json:"name"`
	DataType     string         `yaml:"data_type" json:"data_type"`
	Required     bool           `yaml:"required" json:"required"`
	Nullable     bool           `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Values       []string       `yaml:"values,omitempty" json:"values,omitempty"`
	RefType      string         `yaml:"ref_type,omitempty" json:"ref_type,omitempty"`
	DefaultValue any            `yaml:"default_value,omitempty" json:"default_value,omitempty"`
	Constraints  map[string]any `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// Cardinality values of a link type.
const (
	OneToOne   = "one-to-one"
	OneToMany  = "one-to-many"
	ManyToOne  = "many-to-one"
	ManyToMany = "many-to-many"
)

// LinkType is a relationship type definition.
type LinkType struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	SourceType  string `yaml:"from" json:"from"`
	TargetType  string `yaml:"to" json:"to"`
	Cardinality string `yaml:"cardinality" json:"cardinality"`
	InverseName string `yaml:"inverse_name,omitempty" json:"inverse_name,omitempty"`
}

// SourceUnique reports whether a target may be linked from at most one source.
func (lt *LinkType) SourceUnique() bool {
	return lt.Cardinality == OneToOne || lt.Cardinality == OneToMany
}

// TargetUnique reports whether a source may link to at most one target.
func (lt *LinkType) TargetUnique() bool {
	return lt.Cardinality == OneToOne || lt.Cardinality == ManyToOne
}

// ActionType is a governed mutation definition.
type ActionType struct {
	Name                string      `yaml:"name" json:"name"`
	Description         string      `yaml:"description,omitempty" json:"description,omitempty"`
	TargetObjectType    string      `yaml:"target_object_type" json:"target_object_type"`
	TargetParameter     string      `yaml:"target_parameter,omitempty" json:"target_parameter,omitempty"`
	Parameters          []Property  `yaml:"parameters" json:"parameters"`
	Refs                []ObjectRef `yaml:"refs,omitempty" json:"refs,omitempty"`
	ValidationRules     []Rule      `yaml:"validation_rules" json:"validation_rules"`
	WriteBackOperations []Operation `yaml:"write_back_operations" json:"write_back_operations"`
	RequiredPermissions []string    `yaml:"required_permissions" json:"required_permissions"`
}

// Parameter returns the named parameter definition.
func (a *ActionType) Parameter(name string) (*Property, bool) {
	for i := range a.Parameters {
		if a.Parameters[i].Name == name {
			return &a.Parameters[i], true
		}
	}
	return nil, false
}

// TargetRef is the alias under which the target instance is bound.
const TargetRef = "target"

// ObjectRef names an instance an action reads or writes. It is resolved either
// by primary key (ID) or by field equality (Match), in declaration order, so a
// later ref may use fields of an earlier one.
type ObjectRef struct {
	Name     string            `yaml:"name" json:"name"`
	Type     string            `yaml:"type" json:"type"`
	ID       string            `yaml:"id,omitempty" json:"id,omitempty"`
	Match    map[string]string `yaml:"match,omitempty" json:"match,omitempty"`
	Optional bool              `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Condition is a binary comparison between two value expressions.
type Condition struct {
	Left  any    `yaml:"left" json:"left"`
	Op    string `yaml:"op" json:"op"`
	Right any    `yaml:"right,omitempty" json:"right,omitempty"`
}

// Rule kinds.
const (
	RuleFieldComparison       = "field_comparison"
	RuleCrossObjectComparison = "cross_object_comparison"
	RuleStatusMembership      = "status_membership"
	RuleStringLength          = "string_length"
	RuleExists                = "exists"
	RuleCountMatching         = "count_matching"
	RuleCollectionContains    = "collection_contains"
	RuleLinkExists            = "link_exists"
	RuleElapsedSince          = "elapsed_since"
	RulePrincipalPermission   = "principal_permission"
	RulePrincipalScope        = "principal_scope"
	RuleAnyOf                 = "any_of"
)

// Rule is a validation predicate. Kind selects which of the remaining fields apply.
type Rule struct {
	Kind    string     `yaml:"kind" json:"kind"`
	Message string     `yaml:"message" json:"message"`
	When    *Condition `yaml:"when,omitempty" json:"when,omitempty"`

	// comparison kinds
	Left  any    `yaml:"left,omitempty" json:"left,omitempty"`
	Op    string `yaml:"op,omitempty" json:"op,omitempty"`
	Right any    `yaml:"right,omitempty" json:"right,omitempty"`

	// status_membership, collection_contains, principal_scope
	Value  any      `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
	Negate bool     `yaml:"negate,omitempty" json:"negate,omitempty"`
	In     any      `yaml:"in,omitempty" json:"in,omitempty"`

	// string_length
	Min *int `yaml:"min,omitempty" json:"min,omitempty"`
	Max *int `yaml:"max,omitempty" json:"max,omitempty"`

	// exists
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`

	// count_matching
	Type    string              `yaml:"type,omitempty" json:"type,omitempty"`
	Match   map[string]any      `yaml:"match,omitempty" json:"match,omitempty"`
	MatchIn map[string][]string `yaml:"match_in,omitempty" json:"match_in,omitempty"`

	// link_exists
	Link string `yaml:"link,omitempty" json:"link,omitempty"`
	From any    `yaml:"from,omitempty" json:"from,omitempty"`
	To   any    `yaml:"to,omitempty" json:"to,omitempty"`

	// elapsed_since
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`

	// principal_permission, principal_scope
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	Scope       string   `yaml:"scope,omitempty" json:"scope,omitempty"`

	// any_of
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Operation kinds.
const (
	OpSetField       = "set_field"
	OpAdjustField    = "adjust_field"
	OpCreateInstance = "create_instance"
	OpEnsureInstance = "ensure_instance"
	OpLink           = "link"
	OpUnlink         = "unlink"
	OpEmitEvent      = "emit_event"
)

// Operation is one write-back step of an action.
type Operation struct {
	Op          string     `yaml:"op" json:"op"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	When        *Condition `yaml:"when,omitempty" json:"when,omitempty"`

	// set_field, adjust_field
	Ref   string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
	// SkipNull leaves the field untouched when Value resolves to nil.
	SkipNull bool `yaml:"skip_null,omitempty" json:"skip_null,omitempty"`
	Delta    any  `yaml:"delta,omitempty" json:"delta,omitempty"`
	Negate   bool `yaml:"negate,omitempty" json:"negate,omitempty"`

	// create_instance, ensure_instance
	Type      string         `yaml:"type,omitempty" json:"type,omitempty"`
	Bind      string         `yaml:"bind,omitempty" json:"bind,omitempty"`
	ID        any            `yaml:"id,omitempty" json:"id,omitempty"`
	CloneFrom string         `yaml:"clone_from,omitempty" json:"clone_from,omitempty"`
	Fields    map[string]any `yaml:"fields,omitempty" json:"fields,omitempty"`

	// link, unlink
	Link string `yaml:"link,omitempty" json:"link,omitempty"`
	From any    `yaml:"from,omitempty" json:"from,omitempty"`
	To   any    `yaml:"to,omitempty" json:"to,omitempty"`

	// emit_event
	Topic   string         `yaml:"topic,omitempty" json:"topic,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// FunctionType is a pure analytical function definition.
type FunctionType struct {
	Name             string     `yaml:"name" json:"name"`
	Description      string     `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs           []Property `yaml:"inputs" json:"inputs"`
	Outputs          []Property `yaml:"outputs" json:"outputs"`
	LogicDescription string     `yaml:"logic_description,omitempty" json:"logic_description,omitempty"`
	ExampleUsage     string     `yaml:"example_usage,omitempty" json:"example_usage,omitempty"`
}

// Seed is a bulk-load document of instances and edges.
type Seed struct {
	Instances map[string][]map[string]any `yaml:"instances"`
	Links     []SeedLink                  `yaml:"links"`
}

// SeedLink is one edge in a seed document.
type SeedLink struct {
	Link string `yaml:"link"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}
