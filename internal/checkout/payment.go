package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

const (
	defaultInstallments = 1
	paymentDescription  = "Order %s"
)

// ProcessMercadoPagoPayment charges a tokenized card and records the payment
// on the order. The card is only charged once the active order is in
// ArrangingPayment and matches the submitted order code. A charge the
// provider accepted is attached to the order exactly once; when that fails
// the attempt is flagged for reconciliation.
func (s *service) ProcessMercadoPagoPayment(ctx context.Context, session *vendure.Session, input ProcessPaymentInput) (*ProcessPaymentResult, error) {
	client, err := s.mercadoPagoClient()
	if err != nil {
		return nil, err
	}
	if err := validateProcessPayment(input); err != nil {
		return nil, err
	}

	order, err := s.coordinator.EnsureArrangingPayment(ctx, session)
	if err != nil {
		return nil, err
	}
	orderCode := strings.TrimSpace(input.OrderCode)
	if orderCode != order.Code {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderCode does not match the active order").
			WithDetails(map[string]string{"orderCode": "must be the code of the active order"})
	}

	key := s.providerIdempotencyKey(orderCode, input.IdempotencyKey)
	payment, err := client.CreatePayment(ctx, buildPaymentRequest(input, orderCode), key)
	if err != nil {
		s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), "provider_error")
		return nil, err
	}

	paymentID := payment.ID.String()
	logCtx := s.logWithOrder(ctx, orderCode)
	if s.logg != nil {
		logCtx = s.logg.WithPaymentID(logCtx, paymentID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_status":        payment.Status,
			"payment_status_detail": payment.StatusDetail,
		})
		s.logg.Info(logCtx, "checkout.mercadopago_payment_created")
	}

	attempt := reconciliation.RecordAttemptInput{
		OrderCode:         orderCode,
		Provider:          enums.PaymentMethodMercadoPago,
		ProviderPaymentID: paymentID,
		Status:            string(payment.Status),
		StatusDetail:      payment.StatusDetail,
		AmountMinor:       int64(input.Amount),
		CurrencyCode:      mercadopago.CurrencyARS,
		IdempotencyKey:    key,
	}

	switch {
	case payment.Status == enums.ProviderPaymentRejected:
		s.ledger.RecordAttempt(ctx, attempt)
		s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), string(payment.Status))
		message := payment.StatusDetail
		if message == "" {
			message = "Your payment was declined"
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentRejected, message).
			WithDetails(statusDetails(payment))
	case payment.Status.Recordable():
		return s.recordPayment(logCtx, session, payment, orderCode, attempt)
	default:
		s.ledger.RecordAttempt(ctx, attempt)
		s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), "unexpected_status")
		return nil, pkgerrors.New(pkgerrors.CodeUnexpectedPaymentStatus, fmt.Sprintf("Payment status: %s", payment.Status)).
			WithDetails(statusDetails(payment))
	}
}

func (s *service) recordPayment(ctx context.Context, session *vendure.Session, payment *mercadopago.Payment, orderCode string, attempt reconciliation.RecordAttemptInput) (*ProcessPaymentResult, error) {
	paymentID := payment.ID.String()
	res := s.gateway.Execute(ctx, vendure.Request{
		Query: vendure.AddPaymentToOrderMutation,
		Variables: map[string]any{
			"input": vendure.PaymentInput{
				Method: string(enums.PaymentMethodMercadoPago),
				Metadata: map[string]any{
					"paymentId":         paymentID,
					"status":            payment.Status,
					"statusDetail":      payment.StatusDetail,
					"transactionAmount": payment.TransactionAmount,
				},
			},
		},
	}, session)

	if res.HasErrors() {
		return nil, s.orderUpdateFailed(ctx, attempt, res.FirstMessage("addPaymentToOrder failed"), map[string]any{
			"paymentId":     paymentID,
			"vendureErrors": res.Errors,
		})
	}

	var data struct {
		Result *vendure.OrderResult `json:"addPaymentToOrder"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, s.orderUpdateFailed(ctx, attempt, err.Error(), map[string]any{"paymentId": paymentID})
	}

	result := data.Result
	if result.IsOrder() {
		s.ledger.RecordAttempt(ctx, attempt)
		s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), string(payment.Status))
		return &ProcessPaymentResult{
			Success:    true,
			PaymentID:  paymentID,
			Status:     payment.Status,
			OrderCode:  orderCode,
			OrderState: result.State,
		}, nil
	}

	var typeName string
	var errResult vendure.ErrorResult
	if result != nil {
		typeName = result.TypeName
		errResult = result.ErrorResult
	}
	attempt.VendureError = vendureErrorSummary(typeName, errResult)
	s.ledger.RecordAttempt(ctx, attempt)
	s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), "order_rejected_payment")

	switch typeName {
	case vendure.TypePaymentDeclinedError:
		return nil, pkgerrors.New(pkgerrors.CodeVendurePaymentDeclined, firstNonEmpty(errResult.PaymentErrorMessage, "Payment was declined"))
	case vendure.TypePaymentFailedError:
		return nil, pkgerrors.New(pkgerrors.CodeVendurePaymentFailed, firstNonEmpty(errResult.PaymentErrorMessage, "Payment failed"))
	case vendure.TypeOrderPaymentStateError:
		return nil, pkgerrors.New(pkgerrors.CodeOrderPaymentState, firstNonEmpty(errResult.Message, "Invalid order state for payment"))
	default:
		return nil, supportError(paymentID, map[string]any{
			"paymentId":     paymentID,
			"vendureErrors": []map[string]string{{
				"__typename": typeName,
				"errorCode":  errResult.ErrorCode,
				"message":    errResult.Message,
			}},
		})
	}
}

// orderUpdateFailed reports a provider charge that could not be attached to the order.
func (s *service) orderUpdateFailed(ctx context.Context, attempt reconciliation.RecordAttemptInput, summary string, details map[string]any) error {
	attempt.VendureError = summary
	s.ledger.RecordAttempt(ctx, attempt)
	s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), "order_update_failed")
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "vendure_error", summary), "checkout.order_update_failed")
	}
	return supportError(attempt.ProviderPaymentID, details)
}

func supportError(paymentID string, details map[string]any) error {
	return pkgerrors.New(pkgerrors.CodeOrderUpdateFailed, "Please contact support with payment ID: "+paymentID).
		WithDetails(details)
}

func buildPaymentRequest(input ProcessPaymentInput, orderCode string) mercadopago.PaymentRequest {
	installments := input.Installments
	if installments <= 0 {
		installments = defaultInstallments
	}
	req := mercadopago.PaymentRequest{
		Token:             strings.TrimSpace(input.Token),
		PaymentMethodID:   strings.TrimSpace(input.PaymentMethodID),
		IssuerID:          strings.TrimSpace(input.IssuerID),
		Installments:      installments,
		TransactionAmount: input.Amount.ToMajor(),
		ExternalReference: orderCode,
		Description:       fmt.Sprintf(paymentDescription, orderCode),
		Payer: mercadopago.PaymentPayer{
			Email: strings.TrimSpace(input.Email),
		},
	}
	idType := strings.TrimSpace(input.IdentificationType)
	idNumber := strings.TrimSpace(input.IdentificationNumber)
	if idType != "" && idNumber != "" {
		req.Payer.Identification = &mercadopago.Identification{Type: idType, Number: idNumber}
	}
	return req
}

func validateProcessPayment(input ProcessPaymentInput) error {
	details := map[string]string{}
	if strings.TrimSpace(input.Token) == "" && strings.TrimSpace(input.PaymentMethodID) == "" {
		details["token"] = "token or paymentMethodId is required"
	}
	if strings.TrimSpace(input.Email) == "" {
		details["email"] = "is required"
	}
	if input.Amount <= 0 {
		details["amount"] = "must be greater than 0"
	}
	if strings.TrimSpace(input.OrderCode) == "" {
		details["orderCode"] = "is required"
	}
	if input.Installments < 0 {
		details["installments"] = "must be at least 1"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "token, email, amount, and orderCode are required").
		WithTitle("Missing required fields").
		WithDetails(details)
}

func statusDetails(payment *mercadopago.Payment) map[string]any {
	return map[string]any{"status": payment.Status, "detail": payment.StatusDetail}
}

func vendureErrorSummary(typeName string, result vendure.ErrorResult) string {
	parts := []string{}
	for _, part := range []string{typeName, result.ErrorCode, result.Message, result.PaymentErrorMessage} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "addPaymentToOrder returned no result"
	}
	return strings.Join(parts, ": ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
