package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/api/middleware"
	"github.com/vendorhub/marketplace-backend/internal/disputes"
	internalorders "github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

type stubOrders struct {
	internalorders.Service
	placeFn  func(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderView, error)
	cancelFn func(ctx context.Context, input internalorders.CancelInput) (*internalorders.OrderView, error)
}

func (s stubOrders) PlaceOrder(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderView, error) {
	return s.placeFn(ctx, input)
}

func (s stubOrders) Cancel(ctx context.Context, input internalorders.CancelInput) (*internalorders.OrderView, error) {
	return s.cancelFn(ctx, input)
}

type stubDisputes struct {
	disputes.Service
	openFn func(ctx context.Context, input disputes.OpenInput) (*disputes.DisputeView, error)
}

func (s stubDisputes) Open(ctx context.Context, input disputes.OpenInput) (*disputes.DisputeView, error) {
	return s.openFn(ctx, input)
}

func authed(req *http.Request, userID uuid.UUID, role enums.ActorRole) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), userID, role, nil))
}

func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestPlaceMapsLines(t *testing.T) {
	customerID := uuid.New()
	vendorID := uuid.New()
	var captured internalorders.PlaceOrderInput
	svc := stubOrders{placeFn: func(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderView, error) {
		captured = input
		return &internalorders.OrderView{OrderNumber: 1001, Status: enums.OrderStatusPendingPayment}, nil
	}}

	body := `{
		"items":[{"vendor_id":"` + vendorID.String() + `","product_id":"` + uuid.NewString() + `","quantity":2,"unit_price":"150.00","product":{"product_name":"Kettle","price":"150.00"}}],
		"shipping":"20",
		"shipping_address":{"recipient_name":"Ana","phone":"0812","line1":"Jl. Mawar 1","city":"Bandung","province":"Jawa Barat","postal_code":"40111"},
		"coupon_code":" HEMAT10 "
	}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), customerID, enums.ActorRoleCustomer)
	resp := httptest.NewRecorder()
	Place(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, customerID, captured.CustomerID)
	require.Len(t, captured.Lines, 1)
	assert.Equal(t, vendorID, captured.Lines[0].VendorID)
	assert.True(t, captured.Lines[0].UnitPrice.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "HEMAT10", captured.CouponCode)

	var envelope struct {
		Data internalorders.OrderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, int64(1001), envelope.Data.OrderNumber)
}

func TestPlaceRejectsEmptyCart(t *testing.T) {
	svc := stubOrders{placeFn: func(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderView, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`)), uuid.New(), enums.ActorRoleCustomer)
	resp := httptest.NewRecorder()
	Place(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelSurfacesStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := stubOrders{cancelFn: func(ctx context.Context, input internalorders.CancelInput) (*internalorders.OrderView, error) {
		assert.Equal(t, orderID, input.OrderID)
		assert.Equal(t, enums.ActorRoleCustomer, input.Role)
		return nil, pkgerrors.StateConflict("invalid_transition", "order can no longer be cancelled")
	}}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"found it cheaper elsewhere"}`))
	req = withParam(authed(req, uuid.New(), enums.ActorRoleCustomer), "orderId", orderID.String())
	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid_transition")
}

func TestCancelRequiresReason(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"nope"}`))
	req = withParam(authed(req, uuid.New(), enums.ActorRoleCustomer), "orderId", uuid.NewString())
	resp := httptest.NewRecorder()
	Cancel(stubOrders{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOpenDisputeValidatesEvidence(t *testing.T) {
	called := false
	svc := stubDisputes{openFn: func(ctx context.Context, input disputes.OpenInput) (*disputes.DisputeView, error) {
		called = true
		assert.Equal(t, enums.DisputeReasonDamagedItem, input.Reason)
		return &disputes.DisputeView{Status: enums.DisputeStatusOpen}, nil
	}}
	orderID := uuid.NewString()

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"DAMAGED_ITEM","description":"the glass arrived shattered in the box","evidence":["not a url"]}`))
	bad = withParam(authed(bad, uuid.New(), enums.ActorRoleCustomer), "orderId", orderID)
	resp := httptest.NewRecorder()
	OpenDispute(svc, nil).ServeHTTP(resp, bad)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, called)

	good := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"damaged_item","description":"the glass arrived shattered in the box","evidence":["https://cdn.example.com/a.jpg"]}`))
	good = withParam(authed(good, uuid.New(), enums.ActorRoleCustomer), "orderId", orderID)
	resp = httptest.NewRecorder()
	OpenDispute(svc, nil).ServeHTTP(resp, good)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.True(t, called)
}
