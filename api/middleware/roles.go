package middleware

import (
	"net/http"
	"slices"

	"github.com/vendorhub/marketplace-backend/api/responses"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

// RequireRole admits callers holding one of roles. A vendor token must also
// name the vendor it acts for, since every vendor route is scoped by it.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := RoleFromContext(ctx)
			switch {
			case !slices.Contains(roles, role):
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this route"))
			case role == enums.ActorRoleVendor && VendorIDFromContext(ctx) == nil:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "vendor token carries no vendor"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
