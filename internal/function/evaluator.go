// Package function evaluates the analytical functions of the ontology.
// Functions read the store through a consistent snapshot and never write it;
// the same snapshot and inputs always give the same outputs.
package function

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/metrics"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Func computes the outputs of one function from conformed inputs.
type Func func(r storage.Reader, in Inputs) (map[string]any, error)

// Builtins returns the implementations shipped with the engine, by name.
func Builtins() map[string]Func {
	return map[string]Func{
		"calculateOptimalDistribution": calculateOptimalDistribution,
		"forecastDemand":               forecastDemand,
		"assessSupplierRisk":           assessSupplierRisk,
		"runScenarioSimulation":        runScenarioSimulation,
		"calculateServiceCapacity":     calculateServiceCapacity,
		"identifyAtRiskParts":          identifyAtRiskParts,
		"calculateBacklogHealth":       calculateBacklogHealth,
	}
}

// Evaluator runs functions registered in the schema.
type Evaluator struct {
	reg     *registry.Registry
	store   *storage.Store
	impls   map[string]Func
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithMetrics records evaluation outcomes and latency to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithFunc adds or replaces an implementation.
func WithFunc(name string, fn Func) Option {
	return func(e *Evaluator) { e.impls[name] = fn }
}

// NewEvaluator creates an evaluator with the builtin implementations.
func NewEvaluator(store *storage.Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		reg:    store.Registry(),
		store:  store,
		impls:  Builtins(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check reports registered functions without an implementation.
func (e *Evaluator) Check() error {
	for _, def := range e.reg.Functions() {
		if _, ok := e.impls[def.Name]; !ok {
			return fmt.Errorf("function '%s' has no implementation", def.Name)
		}
	}
	return nil
}

// Evaluate validates inputs, computes the function over one read snapshot
// and checks the outputs against their declared types.
func (e *Evaluator) Evaluate(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	start := time.Now()
	out, err := e.evaluate(ctx, name, inputs)
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case apperr.IsCallerError(err):
		outcome = metrics.OutcomeInvalid
	default:
		outcome = metrics.OutcomeError
		e.logger.Error("function evaluation failed", zap.String("function", name), zap.Error(err))
	}
	e.metrics.ObserveFunction(name, outcome, time.Since(start))
	return out, err
}

func (e *Evaluator) evaluate(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	def, err := e.reg.GetFunction(name)
	if err != nil {
		return nil, err
	}
	impl, ok := e.impls[name]
	if !ok {
		return nil, apperr.NotFound("function implementation", name)
	}

	if inputs == nil {
		inputs = map[string]any{}
	}
	conformed, violations := dsl.Conform(def.Inputs, inputs, dsl.ConformOptions{})
	if len(violations) > 0 {
		return nil, &apperr.ParameterValidationError{Operation: name, Violations: violations}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out map[string]any
	err = e.store.View(func(r storage.Reader) error {
		var err error
		out, err = impl(r, Inputs(conformed))
		return err
	})
	if err != nil {
		return nil, err
	}

	out, violations = dsl.Conform(def.Outputs, out, dsl.ConformOptions{})
	if len(violations) > 0 {
		return nil, &apperr.ExecutionError{
			Action:    name,
			Operation: "output",
			Err:       &apperr.SchemaViolationError{Type: name, Violations: violations},
		}
	}
	return out, nil
}

// invalid builds the error for an input that conforms to its type but not
// to what the computation needs.
func invalid(fn, field, format string, args ...any) error {
	return &apperr.ParameterValidationError{
		Operation:  fn,
		Violations: []apperr.Violation{{Field: field, Message: fmt.Sprintf(format, args...)}},
	}
}
