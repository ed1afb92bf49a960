package vendorcontext

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/api/middleware"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

func requestAs(userID uuid.UUID, role enums.ActorRole, vendorID *uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(middleware.WithIdentity(req.Context(), userID, role, vendorID))
}

func TestResolveVendorID(t *testing.T) {
	vendorID := uuid.New()
	got, err := ResolveVendorID(requestAs(uuid.New(), enums.ActorRoleVendor, &vendorID))
	require.NoError(t, err)
	assert.Equal(t, vendorID, got)

	_, err = ResolveVendorID(requestAs(uuid.New(), enums.ActorRoleCustomer, &vendorID))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = ResolveVendorID(requestAs(uuid.New(), enums.ActorRoleVendor, nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestViewerRequiresIdentity(t *testing.T) {
	_, err := Viewer(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	userID := uuid.New()
	viewer, err := Viewer(requestAs(userID, enums.ActorRoleAdmin, nil))
	require.NoError(t, err)
	assert.Equal(t, userID, viewer.UserID)
	assert.Equal(t, enums.ActorRoleAdmin, viewer.Role)
	assert.Nil(t, viewer.VendorID)
}
