package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/auth"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
)

const sessionKey = "tmhna.session"

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate resolves a bearer token into a session. Requests without a
// token pass through anonymous; an unknown or expired token is rejected.
func Authenticate(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		sess, err := svc.Resolve(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFrom(c); !ok {
			abort(c, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
			return
		}
		c.Next()
	}
}

// RequireRole rejects principals without role. Admins always pass.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		switch {
		case !ok:
			abort(c, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		case sess.User.Principal.Role != role && !sess.User.Principal.IsAdmin():
			abort(c, http.StatusForbidden, "role '"+role+"' required")
		default:
			c.Next()
		}
	}
}

// SessionFrom returns the session Authenticate attached to the request.
func SessionFrom(c *gin.Context) (auth.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}, false
	}
	sess, ok := v.(auth.Session)
	return sess, ok
}

// PrincipalFrom returns the authenticated principal.
func PrincipalFrom(c *gin.Context) (permission.Principal, bool) {
	sess, ok := SessionFrom(c)
	return sess.User.Principal, ok
}
