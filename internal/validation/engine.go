package validation

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Invocation is a request to run an action.
type Invocation struct {
	Action    string
	TargetID  string
	Params    map[string]any
	Principal permission.Principal
}

// Token is the result of a successful validation: the bindings the rules were
// evaluated against and the instance versions they read.
type Token struct {
	Env *Env
	// Versions maps every instance key the refs resolved to (or, for absent
	// refs looked up by id, the key that must stay absent) to its version.
	Versions map[storage.Key]uint64
	// Locks lists the lock names covering the refs, sorted.
	Locks []string
}

// SameLocks reports whether two tokens cover the same lock set.
func (t *Token) SameLocks(other *Token) bool {
	return slices.Equal(t.Locks, other.Locks)
}

// Engine validates invocations.
type Engine struct {
	reg   *registry.Registry
	store *storage.Store
	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides the generator behind $uuid and $seq.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine.
func New(reg *registry.Registry, store *storage.Store, opts ...Option) *Engine {
	e := &Engine{
		reg:   reg,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks an invocation without changing anything: parameters first,
// then refs and rules against one consistent read of the store.
func (e *Engine) Validate(ctx context.Context, inv Invocation) (*Token, error) {
	env, err := e.Prepare(inv)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tok *Token
	err = e.store.View(func(r storage.Reader) error {
		t, err := e.Bind(r, env)
		if err != nil {
			return err
		}
		tok = t
		return e.CheckRules(r, env)
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Prepare resolves the action and checks every parameter. The target
// parameter is filled from the target id when absent; when both are given
// they must agree.
func (e *Engine) Prepare(inv Invocation) (*Env, error) {
	def, err := e.reg.GetAction(inv.Action)
	if err != nil {
		return nil, err
	}

	params := maps.Clone(inv.Params)
	if params == nil {
		params = make(map[string]any)
	}
	targetID := inv.TargetID
	var violations []apperr.Violation

	if tp := def.TargetParameter; tp != "" {
		switch v, ok := params[tp]; {
		case !ok || v == nil:
			if targetID != "" {
				params[tp] = targetID
			}
		case targetID == "":
			if s, ok := v.(string); ok {
				targetID = s
			}
		case v != targetID:
			violations = append(violations, apperr.Violation{
				Field:   tp,
				Message: fmt.Sprintf("does not match target id '%s'", targetID),
			})
		}
	}

	conformed, vs := dsl.Conform(def.Parameters, params, dsl.ConformOptions{})
	violations = append(violations, vs...)
	if len(violations) > 0 {
		return nil, &apperr.ParameterValidationError{Operation: def.Name, Violations: violations}
	}

	return &Env{
		Action:    def,
		TargetID:  targetID,
		Params:    conformed,
		Principal: inv.Principal,
		Refs:      make(map[string]*storage.Instance),
		Now:       e.now(),
		newID:     e.newID,
	}, nil
}

// Refs returns the refs of an action in resolution order, with the implicit
// target ref (looked up by $target_id) first when none is declared.
func Refs(def *dsl.ActionType) []dsl.ObjectRef {
	for _, ref := range def.Refs {
		if ref.Name == dsl.TargetRef {
			return def.Refs
		}
	}
	target := dsl.ObjectRef{Name: dsl.TargetRef, Type: def.TargetObjectType, ID: "$target_id"}
	return append([]dsl.ObjectRef{target}, def.Refs...)
}

// Bind resolves every ref of the action into env. A required ref that does
// not resolve fails with NotFoundError.
func (e *Engine) Bind(r storage.Reader, env *Env) (*Token, error) {
	tok := &Token{Env: env, Versions: make(map[storage.Key]uint64)}
	locks := make(map[string]bool)

	for _, ref := range Refs(env.Action) {
		res, err := e.resolveRef(r, env, ref)
		if err != nil {
			return nil, fmt.Errorf("ref '%s': %w", ref.Name, err)
		}
		if res.lock != "" {
			locks[res.lock] = true
		}
		if res.keyed {
			tok.Versions[res.key] = 0
		}
		if res.inst != nil {
			tok.Versions[res.key] = res.inst.Version
		}
		env.Bind(ref.Name, res.inst)
	}
	tok.Locks = slices.Sorted(maps.Keys(locks))
	return tok, nil
}

type resolution struct {
	inst  *storage.Instance // nil when absent
	lock  string
	key   storage.Key
	keyed bool // key is meaningful, even if inst is nil
}

func (e *Engine) resolveRef(r storage.Reader, env *Env, ref dsl.ObjectRef) (resolution, error) {
	if ref.ID != "" {
		id, err := env.ResolveString(ref.ID)
		if err != nil {
			return resolution{}, err
		}
		if id == "" {
			if ref.Optional {
				return resolution{}, nil
			}
			return resolution{}, apperr.NotFound(ref.Type, "")
		}
		key := storage.Key{Type: ref.Type, ID: id}
		inst, err := r.Get(ref.Type, id)
		switch {
		case err == nil:
			return resolution{inst: &inst, lock: key.String(), key: key, keyed: true}, nil
		case ref.Optional:
			return resolution{lock: key.String(), key: key, keyed: true}, nil
		}
		return resolution{}, err
	}

	match := make(map[string]any, len(ref.Match))
	for field, expr := range ref.Match {
		v, err := env.Resolve(expr)
		if err != nil {
			return resolution{}, err
		}
		match[field] = v
	}
	inst, found, err := r.Find(ref.Type, match)
	if err != nil {
		return resolution{}, err
	}
	if found {
		return resolution{inst: &inst, lock: inst.Key().String(), key: inst.Key(), keyed: true}, nil
	}
	selector := selectorName(ref.Type, match)
	if ref.Optional {
		return resolution{lock: selector}, nil
	}
	return resolution{}, apperr.NotFound(ref.Type, selector)
}

// selectorName names the lock of a field-match lookup that found nothing.
func selectorName(typeName string, match map[string]any) string {
	parts := make([]string, 0, len(match))
	for _, field := range slices.Sorted(maps.Keys(match)) {
		parts = append(parts, fmt.Sprintf("%s=%v", field, match[field]))
	}
	return typeName + "?" + strings.Join(parts, "&")
}
