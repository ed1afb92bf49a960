package vendorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vendorhub/marketplace-backend/api/middleware"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

// ResolveVendorID extracts the vendor scope and enforces vendor access.
func ResolveVendorID(r *http.Request) (uuid.UUID, error) {
	ctx := r.Context()
	if middleware.RoleFromContext(ctx) != enums.ActorRoleVendor {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor access required")
	}
	vendorID := middleware.VendorIDFromContext(ctx)
	if vendorID == nil || *vendorID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context required")
	}
	return *vendorID, nil
}

// ResolveUserID returns the authenticated user or an unauthorized error.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

// Viewer describes the caller for read access checks.
func Viewer(r *http.Request) (orders.Viewer, error) {
	userID, err := ResolveUserID(r)
	if err != nil {
		return orders.Viewer{}, err
	}
	ctx := r.Context()
	return orders.Viewer{
		UserID:   userID,
		Role:     middleware.RoleFromContext(ctx),
		VendorID: middleware.VendorIDFromContext(ctx),
	}, nil
}
