package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

var comparisonOps = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"present": true, "absent": true,
}

// scope tracks what an action's expressions may reference at a given point.
type scope struct {
	r      *Registry
	params map[string]bool
	refs   map[string]string // alias -> object type
}

// checkActionLocked verifies that every name an action mentions resolves.
func (r *Registry) checkActionLocked(a *dsl.ActionType) error {
	if _, ok := r.objectTypes[a.TargetObjectType]; !ok {
		return fmt.Errorf("target_object_type '%s' does not exist", a.TargetObjectType)
	}
	if len(a.RequiredPermissions) == 0 {
		return errors.New("required_permissions must not be empty")
	}

	sc := &scope{r: r, params: make(map[string]bool), refs: make(map[string]string)}
	for _, p := range a.Parameters {
		if err := r.checkPropertyLocked(p, ""); err != nil {
			return err
		}
		sc.params[p.Name] = true
	}
	if a.TargetParameter != "" && !sc.params[a.TargetParameter] {
		return fmt.Errorf("target_parameter '%s' is not a parameter", a.TargetParameter)
	}

	declaresTarget := false
	for _, ref := range a.Refs {
		if ref.Name == dsl.TargetRef {
			declaresTarget = true
			if ref.Type != a.TargetObjectType {
				return fmt.Errorf("ref 'target' must have type '%s'", a.TargetObjectType)
			}
		}
	}
	if !declaresTarget {
		sc.refs[dsl.TargetRef] = a.TargetObjectType
	}

	for _, ref := range a.Refs {
		if err := sc.checkRef(ref); err != nil {
			return fmt.Errorf("ref '%s': %w", ref.Name, err)
		}
	}
	for i, rule := range a.ValidationRules {
		if err := sc.checkRule(rule); err != nil {
			return fmt.Errorf("validation_rules[%d] (%s): %w", i, rule.Message, err)
		}
	}
	for i, op := range a.WriteBackOperations {
		if err := sc.checkOperation(op); err != nil {
			return fmt.Errorf("write_back_operations[%d] (%s): %w", i, op.Op, err)
		}
	}
	return nil
}

func (sc *scope) checkRef(ref dsl.ObjectRef) error {
	if ref.Name == "" {
		return errors.New("name is required")
	}
	if _, dup := sc.refs[ref.Name]; dup {
		return errors.New("duplicate ref name")
	}
	ot, ok := sc.r.objectTypes[ref.Type]
	if !ok {
		return fmt.Errorf("unknown type '%s'", ref.Type)
	}
	switch {
	case ref.ID != "" && len(ref.Match) > 0:
		return errors.New("id and match are mutually exclusive")
	case ref.ID != "":
		if err := sc.checkExpr(ref.ID); err != nil {
			return err
		}
	case len(ref.Match) > 0:
		for field, expr := range ref.Match {
			if _, ok := ot.Property(field); !ok {
				return fmt.Errorf("match field '%s' is not a property of %s", field, ref.Type)
			}
			if err := sc.checkExpr(expr); err != nil {
				return err
			}
		}
	default:
		return errors.New("one of id or match is required")
	}
	sc.refs[ref.Name] = ref.Type
	return nil
}

func (sc *scope) checkExpr(v any) error {
	e, err := dsl.ParseExpr(v)
	if err != nil {
		return err
	}
	switch e.Kind {
	case dsl.ExprParam:
		if !sc.params[e.Name] {
			return fmt.Errorf("unknown parameter '%s'", e.Name)
		}
	case dsl.ExprRef:
		typeName, ok := sc.refs[e.Name]
		if !ok {
			return fmt.Errorf("unknown ref '%s'", e.Name)
		}
		if e.Field == "id" {
			return nil
		}
		ot := sc.r.objectTypes[typeName]
		if _, ok := ot.Property(e.Field); !ok {
			return fmt.Errorf("'%s' is not a property of %s", e.Field, typeName)
		}
	}
	return nil
}

func (sc *scope) checkCondition(c *dsl.Condition) error {
	if c == nil {
		return nil
	}
	if !comparisonOps[c.Op] {
		return fmt.Errorf("invalid operator '%s'", c.Op)
	}
	if err := sc.checkExpr(c.Left); err != nil {
		return err
	}
	return sc.checkExpr(c.Right)
}

func (sc *scope) checkRefName(alias string) error {
	if _, ok := sc.refs[alias]; !ok {
		return fmt.Errorf("unknown ref '%s'", alias)
	}
	return nil
}

func (sc *scope) checkLink(name string) (*dsl.LinkType, error) {
	lt, ok := sc.r.linkTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown link type '%s'", name)
	}
	return lt, nil
}

func (sc *scope) checkRule(rule dsl.Rule) error {
	if rule.Message == "" && rule.Kind != dsl.RuleAnyOf {
		return errors.New("message is required")
	}
	if err := sc.checkCondition(rule.When); err != nil {
		return fmt.Errorf("when: %w", err)
	}

	switch rule.Kind {
	case dsl.RuleFieldComparison, dsl.RuleCrossObjectComparison:
		if !comparisonOps[rule.Op] {
			return fmt.Errorf("invalid operator '%s'", rule.Op)
		}
		if err := sc.checkExpr(rule.Left); err != nil {
			return err
		}
		if err := sc.checkExpr(rule.Right); err != nil {
			return err
		}
		if rule.Kind == dsl.RuleCrossObjectComparison {
			left, _ := dsl.ParseExpr(rule.Left)
			right, _ := dsl.ParseExpr(rule.Right)
			if left.Kind != dsl.ExprRef && right.Kind != dsl.ExprRef {
				return errors.New("cross_object_comparison needs a $ref operand")
			}
		}
	case dsl.RuleStatusMembership:
		if len(rule.Values) == 0 {
			return errors.New("values are required")
		}
		return sc.checkExpr(rule.Value)
	case dsl.RuleStringLength:
		if rule.Min == nil && rule.Max == nil {
			return errors.New("min or max is required")
		}
		return sc.checkExpr(rule.Value)
	case dsl.RuleExists:
		return sc.checkRefName(rule.Ref)
	case dsl.RuleCountMatching:
		ot, ok := sc.r.objectTypes[rule.Type]
		if !ok {
			return fmt.Errorf("unknown type '%s'", rule.Type)
		}
		for field, expr := range rule.Match {
			if _, ok := ot.Property(field); !ok {
				return fmt.Errorf("match field '%s' is not a property of %s", field, rule.Type)
			}
			if err := sc.checkExpr(expr); err != nil {
				return err
			}
		}
		for field := range rule.MatchIn {
			if _, ok := ot.Property(field); !ok {
				return fmt.Errorf("match_in field '%s' is not a property of %s", field, rule.Type)
			}
		}
		if !comparisonOps[rule.Op] {
			return fmt.Errorf("invalid operator '%s'", rule.Op)
		}
		return sc.checkExpr(rule.Right)
	case dsl.RuleCollectionContains:
		if err := sc.checkExpr(rule.Value); err != nil {
			return err
		}
		return sc.checkExpr(rule.In)
	case dsl.RuleLinkExists:
		if _, err := sc.checkLink(rule.Link); err != nil {
			return err
		}
		if err := sc.checkExpr(rule.From); err != nil {
			return err
		}
		return sc.checkExpr(rule.To)
	case dsl.RuleElapsedSince:
		if _, err := time.ParseDuration(rule.Duration); err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		return sc.checkExpr(rule.Value)
	case dsl.RulePrincipalPermission:
		if len(rule.Permissions) == 0 {
			return errors.New("permissions are required")
		}
	case dsl.RulePrincipalScope:
		if rule.Scope == "" {
			return errors.New("scope is required")
		}
		return sc.checkExpr(rule.Value)
	case dsl.RuleAnyOf:
		if len(rule.Rules) < 2 {
			return errors.New("any_of needs at least two rules")
		}
		for i, sub := range rule.Rules {
			if err := sc.checkRule(sub); err != nil {
				return fmt.Errorf("rules[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown rule kind '%s'", rule.Kind)
	}
	return nil
}

func (sc *scope) checkOperation(op dsl.Operation) error {
	if err := sc.checkCondition(op.When); err != nil {
		return fmt.Errorf("when: %w", err)
	}

	switch op.Op {
	case dsl.OpSetField, dsl.OpAdjustField:
		if err := sc.checkRefName(op.Ref); err != nil {
			return err
		}
		ot := sc.r.objectTypes[sc.refs[op.Ref]]
		prop, ok := ot.Property(op.Field)
		if !ok {
			return fmt.Errorf("'%s' is not a property of %s", op.Field, ot.Name)
		}
		if op.Field == ot.PrimaryKey {
			return errors.New("primary key is immutable")
		}
		if op.Op == dsl.OpAdjustField {
			if prop.DataType != string(dsl.KindNumber) && prop.DataType != string(dsl.KindInteger) {
				return fmt.Errorf("adjust_field needs a numeric field, '%s' is %s", op.Field, prop.DataType)
			}
			return sc.checkExpr(op.Delta)
		}
		return sc.checkExpr(op.Value)
	case dsl.OpCreateInstance, dsl.OpEnsureInstance:
		ot, ok := sc.r.objectTypes[op.Type]
		if !ok {
			return fmt.Errorf("unknown type '%s'", op.Type)
		}
		if op.Bind == "" {
			return errors.New("bind is required")
		}
		if op.ID == nil {
			return errors.New("id is required")
		}
		if err := sc.checkExpr(op.ID); err != nil {
			return err
		}
		if op.CloneFrom != "" {
			if err := sc.checkRefName(op.CloneFrom); err != nil {
				return err
			}
			if sc.refs[op.CloneFrom] != op.Type {
				return fmt.Errorf("clone_from '%s' is not of type %s", op.CloneFrom, op.Type)
			}
		}
		for field, expr := range op.Fields {
			if _, ok := ot.Property(field); !ok {
				return fmt.Errorf("'%s' is not a property of %s", field, op.Type)
			}
			if err := sc.checkExpr(expr); err != nil {
				return err
			}
		}
		if op.Op == dsl.OpEnsureInstance {
			if existing, ok := sc.refs[op.Bind]; ok && existing != op.Type {
				return fmt.Errorf("bind '%s' already refers to %s", op.Bind, existing)
			}
		} else if _, dup := sc.refs[op.Bind]; dup {
			return fmt.Errorf("bind '%s' is already in use", op.Bind)
		}
		sc.refs[op.Bind] = op.Type
	case dsl.OpLink, dsl.OpUnlink:
		if _, err := sc.checkLink(op.Link); err != nil {
			return err
		}
		if err := sc.checkExpr(op.From); err != nil {
			return err
		}
		if op.To == nil && op.Op == dsl.OpUnlink {
			return nil
		}
		return sc.checkExpr(op.To)
	case dsl.OpEmitEvent:
		if op.Topic == "" {
			return errors.New("topic is required")
		}
		for _, expr := range op.Payload {
			if err := sc.checkExpr(expr); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown operation '%s'", op.Op)
	}
	return nil
}
