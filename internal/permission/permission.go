// Package permission decides whether a principal may invoke an action.
package permission

import (
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
)

// RoleAdmin holds every permission.
const RoleAdmin = "admin"

// Principal is the identity an action runs as.
type Principal struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Role        string              `json:"role"`
	Permissions []string            `json:"permissions"`
	Scopes      map[string][]string `json:"scopes,omitempty"`
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Has reports whether the principal holds perm.
func (p Principal) Has(perm string) bool {
	return p.IsAdmin() || slices.Contains(p.Permissions, perm)
}

// HasAny reports whether the principal holds at least one of perms.
func (p Principal) HasAny(perms []string) bool {
	return slices.ContainsFunc(perms, p.Has)
}

// InScope reports whether value is among the principal's values for scope.
// Admins and principals without that scope restriction are unrestricted.
func (p Principal) InScope(scope, value string) bool {
	if p.IsAdmin() {
		return true
	}
	allowed, ok := p.Scopes[scope]
	if !ok {
		return true
	}
	return slices.Contains(allowed, value) || slices.Contains(allowed, "*")
}

// Gate checks principals against action definitions.
type Gate struct {
	reg *registry.Registry
}

// NewGate creates a gate over reg.
func NewGate(reg *registry.Registry) *Gate {
	return &Gate{reg: reg}
}

// Authorize fails with PermissionDeniedError when the principal holds none of
// the action's required permissions, and NotFoundError for unknown actions.
func (g *Gate) Authorize(p Principal, action string) error {
	def, err := g.reg.GetAction(action)
	if err != nil {
		return err
	}
	if p.HasAny(def.RequiredPermissions) {
		return nil
	}
	return &apperr.PermissionDeniedError{
		Principal: p.ID,
		Action:    action,
		Required:  slices.Clone(def.RequiredPermissions),
	}
}
