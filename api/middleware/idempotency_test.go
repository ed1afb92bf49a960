package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

var testUser = uuid.MustParse("7f1c1c4e-2b0e-4c59-8d39-3c1f5a3b9a01")

func idempotentRequest(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithIdentity(req.Context(), testUser, enums.ActorRoleCustomer, nil))
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name string
		path string
		want time.Duration
		ok   bool
	}{
		{"place order", "/api/v1/orders", criticalIdempotencyTTL, true},
		{"cancel", "/api/v1/orders/456/cancel", criticalIdempotencyTTL, true},
		{"payout request", "/api/v1/vendor/payouts", criticalIdempotencyTTL, true},
		{"dispute resolve", "/api/admin/v1/disputes/abc/resolve", criticalIdempotencyTTL, true},
		{"item status", "/api/v1/vendor/items/abc/status", defaultIdempotencyTTL, true},
		{"admin override", "/api/admin/v1/orders/abc/status", defaultIdempotencyTTL, true},
		{"payment webhook", "/api/v1/webhooks/payments", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := routeTTL(http.MethodPost, tt.path)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, ttl, tt.name)
		}
	}
	_, ok := routeTTL(http.MethodGet, "/api/v1/orders")
	assert.False(t, ok)
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest("/api/v1/orders", "", `{}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, called)
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_number":1001}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest("/api/v1/orders", "abc", `{"items":[]}`))
	require.Equal(t, http.StatusCreated, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, idempotentRequest("/api/v1/orders", "abc", `{"items":[]}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, `{"data":{"order_number":1001}}`, strings.TrimSpace(replay.Body.String()))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/api/v1/orders/1/cancel", "xyz", `{"reason":"changed my mind"}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest("/api/v1/orders/1/cancel", "xyz", `{"reason":"something else"}`))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp.Body.Bytes()))
}

func TestIdempotencyMiddlewareRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	key := store.IdempotencyKey(strings.Join([]string{testUser.String(), http.MethodPost, "/api/v1/vendor/payouts"}, "|"), "dup")
	store.data[key] = inFlightMarker

	called := false
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest("/api/v1/vendor/payouts", "dup", `{}`))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.False(t, called)
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest("/api/v1/orders/1/confirm-delivery", "retry", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Empty(t, store.data)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest("/api/v1/orders/1/confirm-delivery", "retry", `{}`))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, calls)
}
