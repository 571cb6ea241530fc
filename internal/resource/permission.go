package resource

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Permission decides whether a principal may run an operation. The principal
// is nil for anonymous requests.
type Permission interface {
	HasPermission(r *http.Request, p *shared.Principal) bool
}

// PermissionFactory builds a fresh Permission for a single resolution.
type PermissionFactory func() Permission

// PermissionFunc adapts a function into a Permission.
type PermissionFunc func(r *http.Request, p *shared.Principal) bool

// HasPermission implements Permission.
func (f PermissionFunc) HasPermission(r *http.Request, p *shared.Principal) bool {
	return f(r, p)
}

// AllowAny admits every request.
func AllowAny() Permission {
	return PermissionFunc(func(*http.Request, *shared.Principal) bool { return true })
}

// IsAuthenticated admits any authenticated principal.
func IsAuthenticated() Permission {
	return PermissionFunc(func(_ *http.Request, p *shared.Principal) bool { return p != nil })
}

// IsManager admits managers and administrators.
func IsManager() Permission {
	return PermissionFunc(func(_ *http.Request, p *shared.Principal) bool { return p.IsManager() })
}

// IsAdmin admits administrators only.
func IsAdmin() Permission {
	return PermissionFunc(func(_ *http.Request, p *shared.Principal) bool { return p.IsAdmin() })
}

// Perms is shorthand for a permission list literal.
func Perms(factories ...PermissionFactory) []PermissionFactory {
	return factories
}
