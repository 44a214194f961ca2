package validation

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// CheckRules evaluates every validation rule of the bound action and
// collects all failures into one RuleViolationError.
func (e *Engine) CheckRules(r storage.Reader, env *Env) error {
	var violations []apperr.Violation
	for _, rule := range env.Action.ValidationRules {
		ok, err := evalRule(r, env, rule)
		if err != nil {
			return fmt.Errorf("evaluate rule %q: %w", rule.Message, err)
		}
		if !ok {
			violations = append(violations, apperr.Violation{Rule: rule.Kind, Message: ruleMessage(rule)})
		}
	}
	if len(violations) > 0 {
		return &apperr.RuleViolationError{Action: env.Action.Name, Violations: violations}
	}
	return nil
}

func ruleMessage(rule dsl.Rule) string {
	if rule.Message != "" || rule.Kind != dsl.RuleAnyOf {
		return rule.Message
	}
	msgs := make([]string, len(rule.Rules))
	for i, sub := range rule.Rules {
		msgs[i] = ruleMessage(sub)
	}
	return strings.Join(msgs, " or ")
}

// evalRule reports whether rule holds. A rule whose when guard does not hold
// is satisfied.
func evalRule(r storage.Reader, env *Env, rule dsl.Rule) (bool, error) {
	applies, err := env.Holds(rule.When)
	if err != nil || !applies {
		return true, err
	}

	switch rule.Kind {
	case dsl.RuleFieldComparison, dsl.RuleCrossObjectComparison:
		return env.Holds(&dsl.Condition{Left: rule.Left, Op: rule.Op, Right: rule.Right})

	case dsl.RuleStatusMembership:
		v, err := env.Resolve(rule.Value)
		if err != nil {
			return false, err
		}
		s, _ := v.(string)
		return slices.Contains(rule.Values, s) != rule.Negate, nil

	case dsl.RuleStringLength:
		s, err := env.ResolveString(rule.Value)
		if err != nil {
			return false, err
		}
		n := utf8.RuneCountInString(strings.TrimSpace(s))
		if rule.Min != nil && n < *rule.Min {
			return false, nil
		}
		return rule.Max == nil || n <= *rule.Max, nil

	case dsl.RuleExists:
		return (env.Ref(rule.Ref) != nil) != rule.Negate, nil

	case dsl.RuleCountMatching:
		n, err := countMatching(r, env, rule)
		if err != nil {
			return false, err
		}
		right, err := env.Resolve(rule.Right)
		if err != nil {
			return false, err
		}
		return Compare(float64(n), rule.Op, right), nil

	case dsl.RuleCollectionContains:
		v, err := env.Resolve(rule.Value)
		if err != nil {
			return false, err
		}
		coll, err := env.Resolve(rule.In)
		if err != nil {
			return false, err
		}
		items, _ := dsl.Normalize(coll).([]any)
		found := slices.ContainsFunc(items, func(item any) bool { return equal(item, v) })
		return found != rule.Negate, nil

	case dsl.RuleLinkExists:
		from, err := env.ResolveString(rule.From)
		if err != nil {
			return false, err
		}
		to, err := env.ResolveString(rule.To)
		if err != nil {
			return false, err
		}
		return r.HasEdge(rule.Link, from, to) != rule.Negate, nil

	case dsl.RuleElapsedSince:
		s, err := env.ResolveString(rule.Value)
		if err != nil {
			return false, err
		}
		if s == "" {
			return true, nil
		}
		since, err := ParseTime(s)
		if err != nil {
			return false, fmt.Errorf("elapsed_since: %w", err)
		}
		d, err := time.ParseDuration(rule.Duration)
		if err != nil {
			return false, err
		}
		return env.Now.Sub(since) >= d, nil

	case dsl.RulePrincipalPermission:
		return env.Principal.HasAny(rule.Permissions) != rule.Negate, nil

	case dsl.RulePrincipalScope:
		s, err := env.ResolveString(rule.Value)
		if err != nil {
			return false, err
		}
		return env.Principal.InScope(rule.Scope, s), nil

	case dsl.RuleAnyOf:
		for _, sub := range rule.Rules {
			ok, err := evalRule(r, env, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown rule kind '%s'", rule.Kind)
}

func countMatching(r storage.Reader, env *Env, rule dsl.Rule) (int, error) {
	match, err := env.ResolveMap(rule.Match)
	if err != nil {
		return 0, err
	}
	eq := storage.MatchFields(match)
	n := 0
	for inst := range r.Query(rule.Type, eq) {
		if matchesIn(inst, rule.MatchIn) {
			n++
		}
	}
	return n, nil
}

func matchesIn(inst storage.Instance, in map[string][]string) bool {
	for field, values := range in {
		s, _ := inst.Fields[field].(string)
		if !slices.Contains(values, s) {
			return false
		}
	}
	return true
}
