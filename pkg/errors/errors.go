package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Order lifecycle.
	CodeNoActiveOrder         Code = "NO_ACTIVE_ORDER"
	CodeOrderTransitionFailed Code = "ORDER_TRANSITION_FAILED"
	CodeEmailConflict         Code = "EMAIL_ADDRESS_CONFLICT"
	CodeOrdersFetch           Code = "ORDERS_FETCH_ERROR"

	// Payment providers.
	CodeMercadoPagoConfig       Code = "MERCADOPAGO_CONFIG_ERROR"
	CodeMercadoPagoAPI          Code = "MERCADOPAGO_API_ERROR"
	CodeStripeConfig            Code = "STRIPE_CONFIG_ERROR"
	CodePaymentRejected         Code = "PAYMENT_REJECTED"
	CodeUnexpectedPaymentStatus Code = "UNEXPECTED_PAYMENT_STATUS"

	// Recording a provider payment against the order.
	CodeOrderUpdateFailed      Code = "ORDER_UPDATE_FAILED"
	CodeVendurePaymentDeclined Code = "VENDURE_PAYMENT_DECLINED"
	CodeVendurePaymentFailed   Code = "VENDURE_PAYMENT_FAILED"
	CodeOrderPaymentState      Code = "ORDER_PAYMENT_STATE_ERROR"
)

// Metadata describes how a code is surfaced to API clients. Title populates the
// envelope's "error" field; PublicMessage replaces the message when the code
// must not leak internals.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	Title          string
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Title:          "Validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		Title:         "Authentication required",
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		Title:         "Access denied",
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus: http.StatusNotFound,
		Title:      "Not found",
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Title:          "Conflict",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Title:          "Idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		Title:         "Rate limit exceeded",
		PublicMessage: "rate limit exceeded",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		Title:         "Internal server error",
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		Title:          "Dependency unavailable",
		DetailsAllowed: true,
	},
	CodeNoActiveOrder: {
		HTTPStatus: http.StatusConflict,
		Title:      "No active order",
	},
	CodeOrderTransitionFailed: {
		HTTPStatus:     http.StatusConflict,
		Title:          "Failed to transition order",
		DetailsAllowed: true,
	},
	CodeEmailConflict: {
		HTTPStatus: http.StatusConflict,
		Title:      "Email address already registered",
	},
	CodeOrdersFetch: {
		HTTPStatus:     http.StatusInternalServerError,
		Title:          "Failed to fetch orders",
		DetailsAllowed: true,
	},
	CodeMercadoPagoConfig: {
		HTTPStatus: http.StatusInternalServerError,
		Title:      "MercadoPago not configured",
	},
	CodeMercadoPagoAPI: {
		HTTPStatus:     http.StatusBadRequest,
		Title:          "MercadoPago API error",
		DetailsAllowed: true,
	},
	CodeStripeConfig: {
		HTTPStatus: http.StatusInternalServerError,
		Title:      "Stripe not configured",
	},
	CodePaymentRejected: {
		HTTPStatus:     http.StatusBadRequest,
		Title:          "Payment rejected",
		DetailsAllowed: true,
	},
	CodeUnexpectedPaymentStatus: {
		HTTPStatus:     http.StatusBadRequest,
		Title:          "Unexpected payment status",
		DetailsAllowed: true,
	},
	CodeOrderUpdateFailed: {
		HTTPStatus:     http.StatusInternalServerError,
		Title:          "Payment recorded but order update failed",
		DetailsAllowed: true,
	},
	CodeVendurePaymentDeclined: {
		HTTPStatus: http.StatusBadRequest,
		Title:      "Payment declined by order system",
	},
	CodeVendurePaymentFailed: {
		HTTPStatus: http.StatusBadRequest,
		Title:      "Payment failed in order system",
	},
	CodeOrderPaymentState: {
		HTTPStatus: http.StatusConflict,
		Title:      "Order payment state error",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	title   string
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Title returns the short summary for the envelope, falling back to the code's default.
func (e *Error) Title() string {
	if e == nil {
		return MetadataFor(CodeInternal).Title
	}
	if e.title != "" {
		return e.title
	}
	return MetadataFor(e.code).Title
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// WithTitle overrides the default summary for this code.
func (e *Error) WithTitle(title string) *Error {
	if e == nil {
		return nil
	}
	e.title = title
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
