// Package validation checks action invocations against their definitions
// and the current store state. Nothing in this package writes to the store.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Env is the binding environment of one invocation: the parameters, the
// principal and every resolved ref. Absent optional refs are bound to nil.
type Env struct {
	Action    *dsl.ActionType
	TargetID  string
	Params    map[string]any
	Principal permission.Principal
	Refs      map[string]*storage.Instance
	Now       time.Time

	newID func() string
}

// Bind binds alias to inst, or marks it absent when inst is nil.
func (env *Env) Bind(alias string, inst *storage.Instance) {
	env.Refs[alias] = inst
}

// Ref returns the instance bound to alias, or nil.
func (env *Env) Ref(alias string) *storage.Instance {
	return env.Refs[alias]
}

// Target returns the target instance, or nil.
func (env *Env) Target() *storage.Instance {
	return env.Refs[dsl.TargetRef]
}

// NewID returns a fresh unique id.
func (env *Env) NewID() string {
	return env.newID()
}

// Resolve evaluates a value expression. References to absent refs or unset
// parameters resolve to nil.
func (env *Env) Resolve(v any) (any, error) {
	e, err := dsl.ParseExpr(v)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case dsl.ExprLiteral:
		return e.Literal, nil
	case dsl.ExprTargetID:
		return env.TargetID, nil
	case dsl.ExprParam:
		return env.Params[e.Name], nil
	case dsl.ExprRef:
		inst, bound := env.Refs[e.Name]
		if !bound {
			return nil, fmt.Errorf("ref '%s' is not bound", e.Name)
		}
		if inst == nil {
			return nil, nil
		}
		if e.Field == "id" {
			return inst.ID, nil
		}
		return inst.Fields[e.Field], nil
	case dsl.ExprPrincipal:
		switch e.Name {
		case "id":
			return env.Principal.ID, nil
		case "name":
			return env.Principal.Name, nil
		}
		return env.Principal.Role, nil
	case dsl.ExprNow:
		return env.Now.Add(e.Offset).Format(dsl.DateTimeLayout), nil
	case dsl.ExprToday:
		return env.Now.Format(dsl.DateLayout), nil
	case dsl.ExprUUID:
		return env.newID(), nil
	case dsl.ExprSeq:
		id := strings.ToUpper(strings.ReplaceAll(env.newID(), "-", ""))
		return e.Name + id[:min(len(id), 12)], nil
	}
	return nil, fmt.Errorf("unsupported expression %s", e)
}

// ResolveString evaluates an expression that must yield a string. nil
// resolves to "".
func (env *Env) ResolveString(v any) (string, error) {
	val, err := env.Resolve(v)
	if err != nil || val == nil {
		return "", err
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%v does not resolve to a string", v)
	}
	return s, nil
}

// ResolveMap evaluates every expression of m.
func (env *Env) ResolveMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		val, err := env.Resolve(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// Holds evaluates a condition. A nil condition holds.
func (env *Env) Holds(c *dsl.Condition) (bool, error) {
	if c == nil {
		return true, nil
	}
	left, err := env.Resolve(c.Left)
	if err != nil {
		return false, err
	}
	right, err := env.Resolve(c.Right)
	if err != nil {
		return false, err
	}
	return Compare(left, c.Op, right), nil
}
