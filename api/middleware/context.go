package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	operatorKey
)

type operatorIdentity struct {
	subject string
	role    enums.OperatorRole
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(orBackground(ctx), requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := valueOf[string](ctx, requestIDKey)
	return id
}

// WithOperator stores the identity OperatorAuth extracted from the bearer token.
func WithOperator(ctx context.Context, subject string, role enums.OperatorRole) context.Context {
	return context.WithValue(orBackground(ctx), operatorKey, operatorIdentity{subject: subject, role: role})
}

// OperatorFromContext returns the subject of the authenticated operator, or "".
func OperatorFromContext(ctx context.Context) string {
	op, _ := valueOf[operatorIdentity](ctx, operatorKey)
	return op.subject
}

func OperatorRoleFromContext(ctx context.Context) enums.OperatorRole {
	op, _ := valueOf[operatorIdentity](ctx, operatorKey)
	return op.role
}

func valueOf[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
