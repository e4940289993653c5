package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	sessionCookieName = "session"
	paymentReplayTTL  = 7 * 24 * time.Hour
)

// replayPolicy marks a route whose responses are stored for replay. minTTL
// raises the configured TTL for that route.
type replayPolicy struct {
	minTTL time.Duration
}

var replayPolicies = map[string]replayPolicy{
	"POST /api/checkout/payment-intent": {},
	"POST /api/checkout/mercadopago":    {},
	// charges money
	"POST /api/checkout/mercadopago/process-payment": {minTTL: paymentReplayTTL},
}

type storedResponse struct {
	Status      int      `json:"status"`
	ContentType string   `json:"content_type,omitempty"`
	Cookies     []string `json:"cookies,omitempty"`
	Body        []byte   `json:"body"`
	BodyHash    string   `json:"body_hash"`
}

// Idempotency replays the stored response of a checkout POST retried with the
// same Idempotency-Key. The header is optional. Keys are scoped by the
// caller's Vendure session and the route. Server errors are not stored, so a
// retry after a 5xx reaches the handler again.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := policyFor(r)
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			bodyHash := hashValue(string(body))
			key := store.IdempotencyKey(replayScope(r), clientKey)

			raw, err := store.Get(ctx, key)
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			default:
				var stored storedResponse
				if decodeErr := json.Unmarshal([]byte(raw), &stored); decodeErr != nil {
					logg.Warn(ctx, "idempotency.corrupt_record")
					if delErr := store.Del(ctx, key); delErr != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, delErr, "drop idempotency record"))
						return
					}
					break
				}
				if stored.BodyHash != bodyHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				logg.Info(ctx, "idempotency.replay")
				stored.replay(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Cookies:     capture.Header().Values("Set-Cookie"),
				Body:        capture.body.Bytes(),
				BodyHash:    bodyHash,
			})
			if err != nil {
				logg.Error(ctx, "idempotency.encode_failed", err)
				return
			}
			if _, err := store.SetNX(ctx, key, string(payload), policy.ttl(ttl)); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func (p replayPolicy) ttl(configured time.Duration) time.Duration {
	if configured < p.minTTL {
		return p.minTTL
	}
	return configured
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	responses.ForwardCookies(w, s.Cookies)
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func policyFor(r *http.Request) (replayPolicy, bool) {
	policy, ok := replayPolicies[r.Method+" "+routePath(r)]
	return policy, ok
}

// routePath prefers the chi pattern. Group middleware runs before the
// sub-route resolves, so a wildcard pattern falls back to the raw path.
func routePath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

// replayScope ties the key to the Vendure session, or the client IP for
// anonymous callers, so two browsers reusing a key never share responses.
func replayScope(r *http.Request) string {
	owner := clientIP(r)
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		owner = hashValue(cookie.Value)
	}
	return owner + "|" + r.Method + "|" + r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
