package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mercadopagowebhook "github.com/angelmondragon/storefront-checkout/internal/webhooks/mercadopago"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

type fakeNotificationService struct {
	calls   []mercadopagowebhook.Notification
	outcome mercadopagowebhook.Outcome
	err     error
}

func (f *fakeNotificationService) HandleNotification(_ context.Context, n mercadopagowebhook.Notification) (mercadopagowebhook.Outcome, error) {
	f.calls = append(f.calls, n)
	if f.err != nil {
		return "", f.err
	}
	return f.outcome, nil
}

func signedRequest(t *testing.T, secret, target, body, requestID, dataID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", requestID)
	ts := "1700000000"
	v1 := mercadopagowebhook.ComputeSignature(secret, mercadopagowebhook.SignatureManifest(dataID, requestID, ts))
	req.Header.Set("x-signature", "ts="+ts+",v1="+v1)
	return req
}

func TestMercadoPagoWebhookAppliesSignedNotification(t *testing.T) {
	svc := &fakeNotificationService{outcome: mercadopagowebhook.OutcomeApplied}
	handler := MercadoPagoWebhook(svc, "whsec", nil)

	body := `{"id":9001,"action":"payment.updated","type":"payment","data":{"id":"123"}}`
	req := signedRequest(t, "whsec", "/api/webhooks/mercadopago?data.id=123&type=payment", body, "req-1", "123")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(svc.calls))
	}
	n := svc.calls[0]
	if n.PaymentID() != "123" || n.DedupeKey() != "9001" || n.Kind() != "payment" {
		t.Fatalf("unexpected notification %+v", n)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "applied" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestMercadoPagoWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeNotificationService{outcome: mercadopagowebhook.OutcomeApplied}
	handler := MercadoPagoWebhook(svc, "whsec", nil)

	body := `{"type":"payment","data":{"id":"123"}}`
	req := signedRequest(t, "other-secret", "/api/webhooks/mercadopago", body, "req-1", "123")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service must not run on bad signature")
	}
}

func TestMercadoPagoWebhookRejectsMissingSignature(t *testing.T) {
	svc := &fakeNotificationService{}
	handler := MercadoPagoWebhook(svc, "whsec", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", bytes.NewBufferString(`{"type":"payment","data":{"id":"1"}}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMercadoPagoWebhookFoldsLegacyQuery(t *testing.T) {
	svc := &fakeNotificationService{outcome: mercadopagowebhook.OutcomeApplied}
	handler := MercadoPagoWebhook(svc, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago?topic=payment&id=555", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := svc.calls[0]; got.Kind() != "payment" || got.PaymentID() != "555" {
		t.Fatalf("unexpected notification %+v", got)
	}
}

func TestMercadoPagoWebhookSurfacesServiceErrors(t *testing.T) {
	svc := &fakeNotificationService{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("redis down"), "check notification dedupe")}
	handler := MercadoPagoWebhook(svc, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", bytes.NewBufferString(`{"type":"payment","data":{"id":"1"}}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 so the provider retries, got %d", rec.Code)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "DEPENDENCY_ERROR" {
		t.Fatalf("unexpected code %s", body.Code)
	}
}

func TestMercadoPagoWebhookInvalidJSON(t *testing.T) {
	svc := &fakeNotificationService{}
	handler := MercadoPagoWebhook(svc, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", bytes.NewBufferString(`{`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMercadoPagoWebhookNilService(t *testing.T) {
	rec := httptest.NewRecorder()
	MercadoPagoWebhook(nil, "", nil)(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
