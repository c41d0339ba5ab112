package identity

import (
	"net/http"

	"coopmarket/internal/transport/http/shared"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
)

// RequireRole denies with forbidden unless the resolved principal's role is
// in the allowed set. A missing principal is unauthenticated; that path is
// unreachable when ordered after the resolver but is kept defensive.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := FromContext(r.Context())
			if !ok {
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerified denies principals that have not completed email
// verification.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := FromContext(r.Context())
		if !ok {
			shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
			return
		}
		// The development bypass principal skips verification; it only exists
		// when no provider is configured.
		if !principal.IsVerified && principal.Role != domain.RoleUser {
			shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Forbidden: User is not verified"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwnership allows the resource owner or an admin, denying everyone
// else with forbidden. Used by mutation handlers after they load the
// resource.
func RequireOwnership(principal Principal, ownerID domain.UserID) error {
	if principal.IsAdmin() || principal.InternalID == ownerID {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "Not authorized to modify this resource")
}
