package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/feeledger/pkg/auth"
	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func signToken(t *testing.T, cfg config.JWTConfig, p auth.Principal) string {
	t.Helper()
	signer, err := auth.NewSigner(cfg)
	require.NoError(t, err)
	token, err := signer.Sign(time.Now(), p)
	require.NoError(t, err)
	return token
}

func testVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	verifier, err := auth.NewVerifier(testJWTConfig())
	require.NoError(t, err)
	return verifier
}

func TestAuthRejects(t *testing.T) {
	foreign := testJWTConfig()
	foreign.Issuer = "someone-else"
	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic dXNlcjpwYXNz",
		"invalid token":  "Bearer invalid",
		"foreign issuer": "Bearer " + signToken(t, foreign, auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}),
	}
	handler := Auth(testVerifier(t), nil)(okHandler())
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestAuthSeedsContext(t *testing.T) {
	supplierID := uuid.New()
	principal := auth.Principal{UserID: uuid.New(), Role: enums.RoleSupplier, SupplierID: &supplierID}
	token := signToken(t, testJWTConfig(), principal)

	var gotUser, gotRole, gotSupplier string
	handler := Auth(testVerifier(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotSupplier = SupplierIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, principal.UserID.String(), gotUser)
	assert.Equal(t, string(enums.RoleSupplier), gotRole)
	assert.Equal(t, supplierID.String(), gotSupplier)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		role    enums.Role
		allowed []enums.Role
		want    int
	}{
		{"admin allowed", enums.RoleAdmin, []enums.Role{enums.RoleAdmin}, http.StatusOK},
		{"buyer on admin route", enums.RoleBuyer, []enums.Role{enums.RoleAdmin}, http.StatusForbidden},
		{"one of many", enums.RoleSupplier, []enums.Role{enums.RoleAdmin, enums.RoleSupplier}, http.StatusOK},
		{"missing role", "", []enums.Role{enums.RoleBuyer}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithRole(req.Context(), string(tt.role)))
			resp := httptest.NewRecorder()
			RequireRole(nil, tt.allowed...)(okHandler()).ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestSupplierContextRequiresSupplierID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	SupplierContext(nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = req.WithContext(WithSupplierID(req.Context(), uuid.NewString()))
	resp = httptest.NewRecorder()
	SupplierContext(nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
