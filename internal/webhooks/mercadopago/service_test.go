package mercadopagowebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
)

type stubPayments struct {
	payment *mercadopago.Payment
	err     error
	calls   []string
}

func (s *stubPayments) GetPayment(_ context.Context, paymentID string) (*mercadopago.Payment, error) {
	s.calls = append(s.calls, paymentID)
	return s.payment, s.err
}

type stubLedger struct {
	reconciliation.Service
	applied []reconciliation.ProviderStatusInput
	err     error
}

func (s *stubLedger) ApplyProviderStatus(_ context.Context, input reconciliation.ProviderStatusInput) (bool, error) {
	s.applied = append(s.applied, input)
	return s.err == nil, s.err
}

type memoryStore struct {
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func approvedPayment() *mercadopago.Payment {
	return &mercadopago.Payment{
		ID:                "123456",
		Status:            enums.ProviderPaymentApproved,
		StatusDetail:      "accredited",
		TransactionAmount: money.Minor(15000).ToMajor(),
		ExternalReference: "X100",
	}
}

func newTestService(t *testing.T, payments *stubPayments, ledger *stubLedger, store *memoryStore) *Service {
	t.Helper()
	guard, err := NewIdempotencyGuard(store, time.Hour, DedupeScope)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	svc, err := NewService(ServiceParams{Payments: payments, Ledger: ledger, Guard: guard})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func decode(t *testing.T, body string) Notification {
	t.Helper()
	var n Notification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	return n
}

func TestHandleNotificationAppliesPaymentStatus(t *testing.T) {
	payments := &stubPayments{payment: approvedPayment()}
	ledger := &stubLedger{}
	svc := newTestService(t, payments, ledger, newMemoryStore())

	n := decode(t, `{"id":9001,"action":"payment.updated","type":"payment","data":{"id":"123456"}}`)
	outcome, err := svc.HandleNotification(context.Background(), n)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	if len(ledger.applied) != 1 {
		t.Fatalf("expected one ledger update, got %d", len(ledger.applied))
	}
	got := ledger.applied[0]
	if got.OrderCode != "X100" || got.ProviderPaymentID != "123456" || got.Status != "approved" {
		t.Fatalf("unexpected ledger input %+v", got)
	}
	if got.AmountMinor != 15000 || got.Provider != enums.PaymentMethodMercadoPago {
		t.Fatalf("unexpected amount or provider %+v", got)
	}
}

func TestHandleNotificationSkipsDuplicates(t *testing.T) {
	payments := &stubPayments{payment: approvedPayment()}
	ledger := &stubLedger{}
	svc := newTestService(t, payments, ledger, newMemoryStore())

	n := decode(t, `{"id":9001,"type":"payment","data":{"id":123456}}`)
	if _, err := svc.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	outcome, err := svc.HandleNotification(context.Background(), n)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}
	if len(payments.calls) != 1 {
		t.Fatalf("payment should be fetched once, got %d", len(payments.calls))
	}
}

func TestHandleNotificationReleasesMarkOnFailure(t *testing.T) {
	store := newMemoryStore()
	payments := &stubPayments{err: pkgerrors.New(pkgerrors.CodeMercadoPagoAPI, "boom")}
	ledger := &stubLedger{}
	svc := newTestService(t, payments, ledger, store)

	n := decode(t, `{"id":"77","type":"payment","data":{"id":"5"}}`)
	if _, err := svc.HandleNotification(context.Background(), n); !pkgerrors.IsCode(err, pkgerrors.CodeMercadoPagoAPI) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Fatalf("dedupe mark should be released, got %v", store.keys)
	}

	payments.err = nil
	payments.payment = approvedPayment()
	if outcome, err := svc.HandleNotification(context.Background(), n); err != nil || outcome != OutcomeApplied {
		t.Fatalf("retry should apply, got %s %v", outcome, err)
	}
}

func TestHandleNotificationLedgerFailureIsReturned(t *testing.T) {
	store := newMemoryStore()
	ledger := &stubLedger{err: errors.New("db down")}
	svc := newTestService(t, &stubPayments{payment: approvedPayment()}, ledger, store)

	n := decode(t, `{"type":"payment","action":"payment.created","data":{"id":"5"}}`)
	if _, err := svc.HandleNotification(context.Background(), n); err == nil {
		t.Fatalf("expected ledger error")
	}
	if _, ok := store.keys[DedupeScope+":5:payment.created"]; ok {
		t.Fatalf("dedupe mark should be released")
	}
}

func TestHandleNotificationIgnoresOtherTopics(t *testing.T) {
	payments := &stubPayments{}
	svc := newTestService(t, payments, &stubLedger{}, newMemoryStore())

	outcome, err := svc.HandleNotification(context.Background(), Notification{Topic: "merchant_order", Data: NotificationData{ID: "1"}})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s %v", outcome, err)
	}
	if len(payments.calls) != 0 {
		t.Fatalf("no payment should be fetched")
	}
}

func TestHandleNotificationRequiresPaymentID(t *testing.T) {
	svc := newTestService(t, &stubPayments{}, &stubLedger{}, newMemoryStore())
	_, err := svc.HandleNotification(context.Background(), Notification{Type: "payment"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleNotificationWithoutGuard(t *testing.T) {
	ledger := &stubLedger{}
	svc, err := NewService(ServiceParams{Payments: &stubPayments{payment: approvedPayment()}, Ledger: ledger})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	n := Notification{Topic: "payment", Data: NotificationData{ID: "5"}}
	for i := 0; i < 2; i++ {
		if _, err := svc.HandleNotification(context.Background(), n); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(ledger.applied) != 2 {
		t.Fatalf("expected both deliveries applied, got %d", len(ledger.applied))
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Ledger: &stubLedger{}}); err == nil {
		t.Fatalf("expected error without payments client")
	}
	if _, err := NewService(ServiceParams{Payments: &stubPayments{}}); err == nil {
		t.Fatalf("expected error without ledger")
	}
}

func TestNewIdempotencyGuardValidation(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, DedupeScope); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), -time.Second, DedupeScope); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, ""); err == nil {
		t.Fatalf("expected error without scope")
	}
}
