// Package action runs governed mutations: authorize, validate, apply the
// write-back operations as one transaction, then audit and notify.
package action

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/metrics"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/validation"
)

// DefaultMaxAttempts bounds how often an invocation is attempted when it
// keeps losing to concurrent writers.
const DefaultMaxAttempts = 3

// Result describes a committed invocation.
type Result struct {
	AuditID string             `json:"audit_id"`
	Updated []storage.Instance `json:"updated"`
	Deleted []storage.Key      `json:"deleted,omitempty"`
	Events  []audit.Event      `json:"events,omitempty"`
}

// Executor runs actions.
type Executor struct {
	reg         *registry.Registry
	store       *storage.Store
	gate        *permission.Gate
	engine      *validation.Engine
	audit       audit.Log
	notifier    Notifier
	logger      *zap.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	newID       func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithAuditLog sets where successful invocations are recorded.
func WithAuditLog(l audit.Log) Option {
	return func(x *Executor) { x.audit = l }
}

// WithNotifier sets where emitted events are published.
func WithNotifier(n Notifier) Option {
	return func(x *Executor) { x.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Executor) { x.logger = l }
}

// WithMetrics records outcomes, latency and retries to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Executor) { x.metrics = m }
}

// WithMaxAttempts sets the attempt bound. Values below 1 mean 1.
func WithMaxAttempts(n int) Option {
	return func(x *Executor) { x.maxAttempts = max(n, 1) }
}

// NewExecutor creates an executor. Without options it audits to memory,
// logs nothing and publishes nowhere.
func NewExecutor(store *storage.Store, engine *validation.Engine, opts ...Option) *Executor {
	reg := store.Registry()
	x := &Executor{
		reg:         reg,
		store:       store,
		gate:        permission.NewGate(reg),
		engine:      engine,
		audit:       audit.NewMemory(),
		notifier:    Notifiers(nil),
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// AuditLog returns the log successful invocations are recorded in.
func (x *Executor) AuditLog() audit.Log { return x.audit }

// Execute authorizes, validates and applies an invocation. Nothing is
// changed unless every step succeeds.
func (x *Executor) Execute(ctx context.Context, inv validation.Invocation) (*Result, error) {
	start := time.Now()
	res, err := x.execute(ctx, inv)
	x.metrics.ObserveAction(inv.Action, outcomeOf(err), time.Since(start))
	return res, err
}

func (x *Executor) execute(ctx context.Context, inv validation.Invocation) (*Result, error) {
	log := x.logger.With(zap.String("action", inv.Action), zap.String("principal", inv.Principal.ID))

	if err := x.gate.Authorize(inv.Principal, inv.Action); err != nil {
		log.Warn("action denied", zap.Error(err))
		return nil, err
	}
	env, err := x.engine.Prepare(inv)
	if err != nil {
		log.Info("action rejected", zap.Error(err))
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := x.attempt(ctx, env)
		if err == nil {
			log.Info("action executed",
				zap.String("target_id", env.TargetID),
				zap.String("audit_id", res.AuditID),
				zap.Int("attempt", attempt),
			)
			return res, nil
		}

		var execErr *apperr.ExecutionError
		switch {
		case errors.As(err, &execErr):
			log.Error("action write-back failed", zap.Error(err), zap.Int("attempt", attempt))
			return nil, err
		case errors.Is(err, apperr.ErrConcurrentModification) && attempt < x.maxAttempts:
			x.metrics.ActionRetried(inv.Action)
			log.Debug("retrying after concurrent modification", zap.Error(err), zap.Int("attempt", attempt))
			continue
		}
		log.Info("action rejected", zap.Error(err), zap.Int("attempt", attempt))
		return nil, err
	}
}

// attempt runs one pass: resolve refs, lock what they resolved to, check
// the resolution did not move while locking, evaluate rules and commit.
func (x *Executor) attempt(ctx context.Context, env *validation.Env) (*Result, error) {
	clear(env.Refs)
	var first *validation.Token
	err := x.store.View(func(r storage.Reader) error {
		var err error
		first, err = x.engine.Bind(r, env)
		return err
	})
	if err != nil {
		return nil, err
	}

	unlock := x.store.LockNames(first.Locks...)
	defer unlock()

	clear(env.Refs)
	var tok *validation.Token
	err = x.store.View(func(r storage.Reader) error {
		var err error
		if tok, err = x.engine.Bind(r, env); err != nil {
			return err
		}
		if !first.SameLocks(tok) {
			return &apperr.ConcurrentModificationError{
				Key: env.Action.Name,
				Msg: "referenced instances changed while acquiring locks",
			}
		}
		return x.engine.CheckRules(r, env)
	})
	if err != nil {
		return nil, err
	}

	rec := audit.Record{
		ID:            x.newID(),
		Action:        env.Action.Name,
		TargetType:    env.Action.TargetObjectType,
		TargetID:      env.TargetID,
		Principal:     env.Principal.ID,
		PrincipalRole: env.Principal.Role,
		Timestamp:     env.Now,
		Parameters:    env.Params,
	}
	if t := env.Target(); t != nil {
		rec.TargetID = t.ID
	}

	// The audit record is appended once the journal holds the write-back, so
	// neither survives without the other.
	cs, err := x.store.Update(tok.Versions, func(tx *storage.Tx) error {
		w := &writeback{reg: x.reg, tx: tx, env: env}
		if err := w.run(); err != nil {
			return err
		}
		rec.Events = w.events
		for _, k := range tx.Touched() {
			rec.Changed = append(rec.Changed, k.String())
		}
		tx.OnCommit(func() error {
			if err := x.audit.Append(ctx, rec); err != nil {
				return &apperr.ExecutionError{Action: rec.Action, Operation: "audit", Err: err}
			}
			return nil
		})
		return nil
	})
	if err != nil {
		var execErr *apperr.ExecutionError
		if errors.Is(err, apperr.ErrConcurrentModification) || errors.As(err, &execErr) {
			return nil, err
		}
		return nil, &apperr.ExecutionError{Action: rec.Action, Operation: "commit", Err: err}
	}

	if err := x.notifier.Publish(ctx, rec); err != nil {
		x.logger.Error("failed to publish action events",
			zap.String("action", rec.Action),
			zap.String("audit_id", rec.ID),
			zap.Error(err),
		)
	}
	for _, k := range cs.Keys() {
		x.metrics.SetInstances(k.Type, x.store.Count(k.Type))
	}

	return &Result{AuditID: rec.ID, Updated: cs.Upserts, Deleted: cs.Deletes, Events: rec.Events}, nil
}

func outcomeOf(err error) string {
	var execErr *apperr.ExecutionError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &execErr):
		return metrics.OutcomeError
	case errors.Is(err, apperr.ErrPermissionDenied):
		return metrics.OutcomeDenied
	case errors.Is(err, apperr.ErrConcurrentModification):
		return metrics.OutcomeConflict
	case errors.Is(err, apperr.ErrParameterValidation),
		errors.Is(err, apperr.ErrRuleViolation),
		errors.Is(err, apperr.ErrNotFound):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
