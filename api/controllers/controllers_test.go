package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/api/middleware"
	"github.com/vendorhub/marketplace-backend/internal/ledger"
	internalorders "github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/internal/payouts"
	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

type stubLedger struct {
	ledger.Service
	wallet *models.Wallet
}

func (s stubLedger) GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error) {
	return s.wallet, nil
}

type stubPayouts struct {
	payouts.Service
	requested payouts.RequestInput
}

func (s *stubPayouts) Request(ctx context.Context, input payouts.RequestInput) (*models.Payout, error) {
	s.requested = input
	return &models.Payout{ID: uuid.New(), VendorID: input.VendorID, Amount: input.Amount, Status: enums.PayoutStatusPending, RequestedAt: time.Now()}, nil
}

type stubDeliverer struct {
	trigger internalorders.Trigger
}

func (s *stubDeliverer) MarkDelivered(ctx context.Context, orderID uuid.UUID, trigger internalorders.Trigger) (*internalorders.DeliveryResult, error) {
	s.trigger = trigger
	return &internalorders.DeliveryResult{Order: &models.Order{ID: orderID, Status: enums.OrderStatusDelivered}}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func as(req *http.Request, role enums.ActorRole, vendorID *uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), role, vendorID))
}

func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestVendorWalletRequiresVendorScope(t *testing.T) {
	svc := stubLedger{wallet: &models.Wallet{ID: uuid.New(), AvailableBalance: decimal.NewFromInt(900)}}

	resp := httptest.NewRecorder()
	VendorWallet(svc, nil).ServeHTTP(resp, as(httptest.NewRequest(http.MethodGet, "/", nil), enums.ActorRoleCustomer, nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	vendorID := uuid.New()
	resp = httptest.NewRecorder()
	VendorWallet(svc, nil).ServeHTTP(resp, as(httptest.NewRequest(http.MethodGet, "/", nil), enums.ActorRoleVendor, &vendorID))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"available_balance":"900"`)
}

func TestVendorRequestPayoutUsesTokenVendor(t *testing.T) {
	svc := &stubPayouts{}
	vendorID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"250.50","bank_reference":"BCA-001"}`))

	resp := httptest.NewRecorder()
	VendorRequestPayout(svc, nil).ServeHTTP(resp, as(req, enums.ActorRoleVendor, &vendorID))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, vendorID, svc.requested.VendorID)
	assert.True(t, svc.requested.Amount.Equal(decimal.RequireFromString("250.50")))
	assert.Contains(t, resp.Body.String(), `"status":"PENDING"`)
}

func TestAdminDeliverRecordsAdminTrigger(t *testing.T) {
	svc := &stubDeliverer{}
	orderID := uuid.New()
	req := withParam(as(httptest.NewRequest(http.MethodPost, "/", nil), enums.ActorRoleAdmin, nil), "orderId", orderID.String())

	resp := httptest.NewRecorder()
	AdminDeliver(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, internalorders.TriggerAdminOverride, svc.trigger.Source)
	assert.Equal(t, enums.ActorRoleAdmin, svc.trigger.Role)
	require.NotNil(t, svc.trigger.ActorID)
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, stubPinger{}, stubPinger{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	HealthReady(cfg, stubPinger{}, stubPinger{err: errors.New("dial tcp: refused")}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
