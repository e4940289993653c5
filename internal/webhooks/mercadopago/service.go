// Package mercadopagowebhook applies MercadoPago payment notifications to the
// reconciliation ledger. It never mutates the order in Vendure.
package mercadopagowebhook

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
)

const (
	// DedupeScope namespaces notification ids in Redis.
	DedupeScope = "mercadopago_webhook"

	topicPayment = "payment"
)

// Notification is the body MercadoPago posts to the notification URL. The
// legacy IPN format only sends topic and id as query parameters, which the
// controller folds into the same struct.
type Notification struct {
	ID     mercadopago.PaymentID `json:"id"`
	Action string                `json:"action"`
	Type   string                `json:"type"`
	Topic  string                `json:"topic"`
	Data   NotificationData      `json:"data"`
}

type NotificationData struct {
	ID mercadopago.PaymentID `json:"id"`
}

// Kind returns the notification type, falling back to the IPN topic.
func (n Notification) Kind() string {
	if n.Type != "" {
		return n.Type
	}
	return n.Topic
}

// PaymentID returns the referenced resource id.
func (n Notification) PaymentID() string {
	return strings.TrimSpace(n.Data.ID.String())
}

// DedupeKey identifies one delivery of the notification.
func (n Notification) DedupeKey() string {
	if id := strings.TrimSpace(n.ID.String()); id != "" {
		return id
	}
	key := n.PaymentID()
	if n.Action != "" {
		key += ":" + n.Action
	}
	return key
}

// Outcome describes what the webhook did with a notification.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type paymentReader interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type dedupeGuard interface {
	CheckAndMark(ctx context.Context, notificationID string) (bool, error)
	Release(ctx context.Context, notificationID string) error
}

type ServiceParams struct {
	Payments paymentReader
	Ledger   reconciliation.Service
	Guard    dedupeGuard
	Logger   *logger.Logger
}

type Service struct {
	payments paymentReader
	ledger   reconciliation.Service
	guard    dedupeGuard
	logg     *logger.Logger
}

// NewService builds the webhook service. The guard is optional; without it
// every delivery is applied, which is safe because ledger updates are upserts.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mercadopago client required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation ledger required")
	}
	return &Service{
		payments: params.Payments,
		ledger:   params.Ledger,
		guard:    params.Guard,
		logg:     params.Logger,
	}, nil
}

// HandleNotification fetches the referenced payment and records its status.
// A failure releases the dedupe mark so the provider retry is processed.
func (s *Service) HandleNotification(ctx context.Context, n Notification) (Outcome, error) {
	if n.Kind() != topicPayment {
		return OutcomeIgnored, nil
	}
	paymentID := n.PaymentID()
	if paymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "notification payment id is required").
			WithDetails(map[string]string{"data.id": "is required"})
	}
	if s.logg != nil {
		ctx = s.logg.WithPaymentID(ctx, paymentID)
	}

	key := n.DedupeKey()
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, key)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check notification dedupe")
		}
		if seen {
			if s.logg != nil {
				s.logg.Info(ctx, "mercadopago.webhook.duplicate")
			}
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := s.apply(ctx, paymentID)
	if err != nil {
		s.release(ctx, key)
		return "", err
	}
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, paymentID string) (Outcome, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", pkgerrors.New(pkgerrors.CodeMercadoPagoAPI, "payment not found")
	}

	orderCode := strings.TrimSpace(payment.ExternalReference)
	if s.logg != nil && orderCode != "" {
		ctx = s.logg.WithOrderCode(ctx, orderCode)
	}

	known, err := s.ledger.ApplyProviderStatus(ctx, reconciliation.ProviderStatusInput{
		OrderCode:         orderCode,
		Provider:          enums.PaymentMethodMercadoPago,
		ProviderPaymentID: payment.ID.String(),
		Status:            payment.Status.String(),
		StatusDetail:      payment.StatusDetail,
		AmountMinor:       int64(payment.TransactionAmount.ToMinor()),
	})
	if err != nil {
		return "", err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"status":        payment.Status.String(),
			"status_detail": payment.StatusDetail,
			"ledger_row":    known,
		})
		s.logg.Info(ctx, "mercadopago.webhook.applied")
	}
	return OutcomeApplied, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil && s.logg != nil {
		s.logg.Error(ctx, "mercadopago.webhook.release_failed", err)
	}
}
