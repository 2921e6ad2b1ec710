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

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) onlyRecord(t *testing.T) (string, replayRecord) {
	t.Helper()
	require.Len(t, f.data, 1)
	for key, raw := range f.data {
		var record replayRecord
		require.NoError(t, json.Unmarshal([]byte(raw), &record))
		return key, record
	}
	return "", replayRecord{}
}

func keyedRequest(method, path, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyTTL(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"open dispute", http.MethodPost, "/api/v1/disputes", financialIdempotencyTTL, true},
		{"open dispute trailing slash", http.MethodPost, "/api/v1/disputes/", financialIdempotencyTTL, true},
		{"resolve dispute", http.MethodPatch, "/api/v1/admin/disputes/5b0f8a3e-7c1d-4b8e-9a2f-0d6c1e4b7a90/resolve", financialIdempotencyTTL, true},
		{"invoice cycle", http.MethodPost, "/api/v1/admin/billing/invoice-cycle", financialIdempotencyTTL, true},
		{"mark paid", http.MethodPost, "/api/v1/admin/billing/invoices/abc/paid", financialIdempotencyTTL, true},
		{"supplier respond", http.MethodPost, "/api/v1/suppliers/disputes/abc/respond", mutationIdempotencyTTL, true},
		{"fee policy", http.MethodPut, "/api/v1/admin/suppliers/abc/fee-policy", mutationIdempotencyTTL, true},
		{"entry transition", http.MethodPost, "/api/v1/admin/billing/entries/abc/transition", mutationIdempotencyTTL, true},
		{"extra segment", http.MethodPatch, "/api/v1/admin/disputes/a/b/resolve", 0, false},
		{"wrong method", http.MethodGet, "/api/v1/disputes", 0, false},
		{"export", http.MethodGet, "/api/v1/suppliers/billing/export", 0, false},
		{"empty", http.MethodPost, "/", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := idempotencyTTL(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestIdempotencyPassesThroughUnlistedRoutes(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodGet, "/api/v1/suppliers/billing/ledger", "", ""))
	assert.True(t, called)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/disputes", "", `{"orderId":"x"}`))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, resp))
	assert.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"d-1"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/v1/disputes", "abc", `{"orderId":"x"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(IdempotentReplayHeader))

	_, record := store.onlyRecord(t)
	assert.False(t, record.InFlight)
	assert.Equal(t, http.StatusCreated, record.Status)
	for _, ttl := range store.ttls {
		assert.Equal(t, financialIdempotencyTTL, ttl)
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest(http.MethodPost, "/api/v1/disputes", "abc", `{"orderId":"x"}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(IdempotentReplayHeader))
	assert.JSONEq(t, `{"data":{"id":"d-1"}}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/disputes", "xyz", `{"orderId":"a"}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/disputes", "xyz", `{"orderId":"b"}`))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp))
}

func TestIdempotencyRejectsConcurrentRetry(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, keyedRequest(http.MethodPost, "/api/v1/admin/billing/invoice-cycle", "run-1", `{}`))
		}
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/admin/billing/invoice-cycle", "run-1", `{}`))

	assert.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	status := http.StatusServiceUnavailable
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/admin/billing/invoices/abc/paid", "pay-1", ``))
	assert.Empty(t, store.data)

	status = http.StatusOK
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/admin/billing/invoices/abc/paid", "pay-1", ``))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesKeysPerCaller(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"buyer-1", "buyer-2"} {
		req := keyedRequest(http.MethodPost, "/api/v1/disputes", "same", `{}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 2)
}
