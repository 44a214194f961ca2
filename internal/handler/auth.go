package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/auth"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/middleware"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler serves login and session endpoints.
type AuthHandler struct {
	authService *auth.Service
}

func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "username and password are required")
		return
	}
	sess, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, sess)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.authService.Logout(middleware.BearerToken(c))
	Success(c, nil)
}

// Me returns the caller's session.
func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		Fail(c, auth.ErrUnauthenticated)
		return
	}
	Success(c, sess)
}
