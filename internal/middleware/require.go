package middleware

import (
	"context"
	"net/http"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/roles"
)

// RoleSource computes a principal's role set. *roles.Resolver satisfies it.
type RoleSource interface {
	Lookup(ctx context.Context, principalID string) roles.RoleSet
}

// RequireAuthenticated refuses requests without an authenticated principal.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole refuses requests whose principal does not definitively hold
// one of the required roles. An unresolved or failed lookup is a refusal,
// never a pass.
func RequireRole(source RoleSource, required ...roles.Role) func(http.Handler) http.Handler {
	requiredSet := roles.NewSet(required...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			rs := source.Lookup(r.Context(), principal.MemberID)
			if rs.Status != roles.StatusResolved || !rs.Roles.Intersects(requiredSet) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
