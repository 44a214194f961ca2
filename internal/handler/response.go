package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/auth"
)

// Response is the envelope of every API response.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      any         `json:"data,omitempty"`
	Errors    []ErrorItem `json:"errors,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ErrorItem is one field or rule problem.
type ErrorItem struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:      http.StatusOK,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Error writes an error response without details.
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Fail maps err to a status code and writes it with any violations it
// carries. Server errors get a generic message.
func Fail(c *gin.Context, err error) {
	code := StatusOf(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	}
	c.JSON(code, Response{
		Code:      code,
		Message:   message,
		Errors:    errorItems(err),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// StatusOf returns the HTTP status for an error.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrExecution):
		return http.StatusInternalServerError
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrParameterValidation),
		errors.Is(err, apperr.ErrRuleViolation),
		errors.Is(err, apperr.ErrSchemaViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrConcurrentModification),
		errors.Is(err, apperr.ErrDuplicateIdentifier),
		errors.Is(err, apperr.ErrReferentialIntegrity),
		errors.Is(err, apperr.ErrCardinality):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func errorItems(err error) []ErrorItem {
	var violations []apperr.Violation
	var (
		pve *apperr.ParameterValidationError
		rve *apperr.RuleViolationError
		sve *apperr.SchemaViolationError
	)
	switch {
	case errors.Is(err, apperr.ErrExecution):
		return nil
	case errors.As(err, &pve):
		violations = pve.Violations
	case errors.As(err, &rve):
		violations = rve.Violations
	case errors.As(err, &sve):
		violations = sve.Violations
	}
	items := make([]ErrorItem, 0, len(violations))
	for _, v := range violations {
		items = append(items, ErrorItem(v))
	}
	return items
}
