package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const processPaymentPath = "/api/checkout/mercadopago/process-payment"

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
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

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func paymentRequest(key, body, session string) *http.Request {
	req := requestWithPattern(http.MethodPost, processPaymentPath, processPaymentPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: session})
	}
	return req
}

func TestPolicySelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		ok      bool
		minTTL  time.Duration
	}{
		{"payment intent", http.MethodPost, "/api/checkout/payment-intent", true, 0},
		{"preference", http.MethodPost, "/api/checkout/mercadopago", true, 0},
		{"process payment", http.MethodPost, processPaymentPath, true, paymentReplayTTL},
		{"config", http.MethodGet, "/api/checkout/mercadopago/config", false, 0},
		{"set customer", http.MethodPost, "/api/checkout/set-customer", false, 0},
		{"group wildcard", http.MethodPost, "/api/checkout/*", false, 0},
	}

	for _, tt := range tests {
		policy, ok := policyFor(requestWithPattern(tt.method, "/unrelated", tt.pattern, nil))
		if tt.pattern == "/api/checkout/*" {
			// wildcard patterns fall back to the raw path
			policy, ok = policyFor(requestWithPattern(tt.method, "/api/checkout/set-customer", tt.pattern, nil))
		}
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && policy.minTTL != tt.minTTL {
			t.Fatalf("%s: expected min ttl %v got %v", tt.name, tt.minTTL, policy.minTTL)
		}
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), paymentRequest("k", `{"token":"tok"}`, "s1"))
	}
	if calls != 2 {
		t.Fatalf("a retry after a 5xx must reach the handler, got %d calls", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("server errors must not be stored")
	}
}

func TestIdempotencyMiddlewareDropsCorruptRecord(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := paymentRequest("k", `{}`, "s1")
	store.data[store.IdempotencyKey(replayScope(req), "k")] = "{not json"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected request to be handled after dropping the record, status %d calls %d", rec.Code, calls)
	}
}

func TestIdempotencyMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), paymentRequest("", `{"token":"tok"}`, "s1"))
	}
	if calls != 2 {
		t.Fatalf("expected both requests handled, got %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Set-Cookie", "session=rotated; Path=/")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, paymentRequest("abc", `{"token":"tok"}`, "s1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected first response 200 got %d", resp.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, paymentRequest("abc", `{"token":"tok"}`, "s1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected replay status 200 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if got := rec.Header().Values("Set-Cookie"); len(got) != 1 || got[0] != "session=rotated; Path=/" {
		t.Fatalf("expected cookies replayed, got %v", got)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for _, ttl := range store.ttls {
		if ttl != paymentReplayTTL {
			t.Fatalf("process-payment records should use the critical ttl, got %v", ttl)
		}
	}
}

func TestIdempotencyMiddlewareScopesBySession(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), paymentRequest("same", `{}`, "browser-a"))
	handler.ServeHTTP(httptest.NewRecorder(), paymentRequest("same", `{}`, "browser-b"))
	if calls != 2 {
		t.Fatalf("keys from different sessions must not collide, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), paymentRequest("xyz", `{"amount":100}`, "s1"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, paymentRequest("xyz", `{"amount":200}`, "s1"))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload types.ErrorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Code)
	}
}
