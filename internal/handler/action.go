package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/auth"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/middleware"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/service"
)

// ActionRequest is the body of an action invocation. The principal comes
// from the bearer token, or from PrincipalToken when there is none.
type ActionRequest struct {
	TargetID       string         `json:"target_id"`
	Parameters     map[string]any `json:"parameters"`
	PrincipalToken string         `json:"principal_token"`
}

// FunctionRequest is the body of a function evaluation.
type FunctionRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// ActionHandler serves actions, functions and the audit log.
type ActionHandler struct {
	actionService   *service.ActionService
	functionService *service.FunctionService
	authService     *auth.Service
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actionService *service.ActionService, functionService *service.FunctionService, authService *auth.Service) *ActionHandler {
	return &ActionHandler{
		actionService:   actionService,
		functionService: functionService,
		authService:     authService,
	}
}

// ExecuteAction invokes an action.
func (h *ActionHandler) ExecuteAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, err := h.principal(c, req.PrincipalToken)
	if err != nil {
		Fail(c, err)
		return
	}

	result, err := h.actionService.Execute(c.Request.Context(), c.Param("name"), req.TargetID, req.Parameters, principal)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

func (h *ActionHandler) principal(c *gin.Context, bodyToken string) (permission.Principal, error) {
	if p, ok := middleware.PrincipalFrom(c); ok {
		return p, nil
	}
	if bodyToken == "" {
		return permission.Principal{}, auth.ErrUnauthenticated
	}
	sess, err := h.authService.Resolve(bodyToken)
	if err != nil {
		return permission.Principal{}, err
	}
	return sess.User.Principal, nil
}

// EvaluateFunction evaluates a function. Functions are read-only and open to
// anonymous callers.
func (h *ActionHandler) EvaluateFunction(c *gin.Context) {
	var req FunctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.functionService.Evaluate(c.Request.Context(), c.Param("name"), req.Inputs)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, out)
}

// ListAudit returns audit records newest first.
func (h *ActionHandler) ListAudit(c *gin.Context) {
	f := audit.Filter{
		Action:    c.Query("action"),
		TargetID:  c.Query("target_id"),
		Principal: c.Query("principal"),
		Limit:     100,
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	records, err := h.actionService.ListAudit(c.Request.Context(), f)
	if err != nil {
		Fail(c, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	Success(c, records)
}
