package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

func operatorConfig() config.OperatorConfig {
	return config.OperatorConfig{Secret: "secret", Issuer: "storefront-checkout", ExpirationMinutes: 10}
}

func mintToken(t *testing.T, cfg config.OperatorConfig, role enums.OperatorRole) string {
	t.Helper()
	token, err := pkgAuth.MintOperatorToken(cfg, time.Now(), pkgAuth.OperatorTokenPayload{Subject: "ops@example.com", Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestOperatorAuthSeedsContext(t *testing.T) {
	cfg := operatorConfig()
	var subject string
	var role enums.OperatorRole
	handler := OperatorAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = OperatorFromContext(r.Context())
		role = OperatorRoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/reconciliation", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.OperatorRoleViewer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if subject != "ops@example.com" || role != enums.OperatorRoleViewer {
		t.Fatalf("unexpected operator %q %q", subject, role)
	}
}

func TestOperatorAuthRejects(t *testing.T) {
	cfg := operatorConfig()
	other := cfg
	other.Secret = "other"

	tests := []struct {
		name   string
		cfg    config.OperatorConfig
		header string
	}{
		{"missing header", cfg, ""},
		{"wrong secret", cfg, "Bearer " + mintToken(t, other, enums.OperatorRoleViewer)},
		{"garbage", cfg, "Bearer not-a-jwt"},
		{"unconfigured", config.OperatorConfig{}, "Bearer " + mintToken(t, cfg, enums.OperatorRoleViewer)},
	}
	for _, tt := range tests {
		called := false
		handler := OperatorAuth(tt.cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/admin/reconciliation", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized || called {
			t.Fatalf("%s: expected 401 without calling handler, got %d", tt.name, rec.Code)
		}
	}
}

func TestRequireOperatorRole(t *testing.T) {
	handler := RequireOperatorRole(nil, enums.OperatorRoleReconciler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithOperator(req.Context(), "ops", enums.OperatorRoleViewer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rec.Code)
	}

	req = req.WithContext(WithOperator(req.Context(), "ops", enums.OperatorRoleReconciler))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reconciler, got %d", rec.Code)
	}
}

func TestRequestIDAndRecoverer(t *testing.T) {
	var seen string
	handler := RequestID(nil)(Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "req-123" || rec.Header().Get("X-Request-Id") != "req-123" {
		t.Fatalf("request id not propagated: %q %q", seen, rec.Header().Get("X-Request-Id"))
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	for _, inbound := range []string{"bad id with spaces", "line\nbreak", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", inbound)
		rec := httptest.NewRecorder()
		RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-Id")
		if got == inbound || got == "" {
			t.Fatalf("expected a generated id for %q, got %q", inbound, got)
		}
	}
	if !acceptableRequestID("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01") {
		t.Fatalf("traceparent style ids should be accepted")
	}
}
