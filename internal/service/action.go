package service

import (
	"context"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/action"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/function"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/validation"
)

// ActionService invokes actions and reads their audit trail.
type ActionService struct {
	exec *action.Executor
}

// NewActionService creates an ActionService that runs actions through exec.
func NewActionService(exec *action.Executor) *ActionService {
	return &ActionService{exec: exec}
}

// Execute runs an action on behalf of principal.
func (s *ActionService) Execute(ctx context.Context, name, targetID string, params map[string]any, principal permission.Principal) (*action.Result, error) {
	if params == nil {
		params = map[string]any{}
	}
	return s.exec.Execute(ctx, validation.Invocation{
		Action:    name,
		TargetID:  targetID,
		Params:    params,
		Principal: principal,
	})
}

// ListAudit returns audit records newest first.
func (s *ActionService) ListAudit(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	return s.exec.AuditLog().List(ctx, f)
}

// FunctionService evaluates analytical functions.
type FunctionService struct {
	eval *function.Evaluator
}

// NewFunctionService creates a FunctionService backed by eval.
func NewFunctionService(eval *function.Evaluator) *FunctionService {
	return &FunctionService{eval: eval}
}

// Evaluate runs the named function.
func (s *FunctionService) Evaluate(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	return s.eval.Evaluate(ctx, name, inputs)
}
