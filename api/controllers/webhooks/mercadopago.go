package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	mercadopagowebhook "github.com/angelmondragon/storefront-checkout/internal/webhooks/mercadopago"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
)

const maxNotificationBytes = 64 << 10

type MercadoPagoWebhookService interface {
	HandleNotification(ctx context.Context, n mercadopagowebhook.Notification) (mercadopagowebhook.Outcome, error)
}

// MercadoPagoWebhook receives payment notifications. When a secret is
// configured the x-signature header must match, otherwise notifications are
// accepted unsigned.
func MercadoPagoWebhook(svc MercadoPagoWebhookService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var notification mercadopagowebhook.Notification
		if len(strings.TrimSpace(string(payload))) > 0 {
			if err := json.Unmarshal(payload, &notification); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
				return
			}
		}
		foldQuery(&notification, r)

		if secret != "" {
			err := mercadopagowebhook.VerifySignature(secret,
				r.Header.Get("x-signature"),
				r.Header.Get("x-request-id"),
				notification.PaymentID(),
			)
			if err != nil {
				code := pkgerrors.CodeUnauthorized
				if errors.Is(err, mercadopagowebhook.ErrSignatureMissing) || errors.Is(err, mercadopagowebhook.ErrSignatureMalformed) {
					code = pkgerrors.CodeValidation
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(code, err, "verify signature"))
				return
			}
		}

		outcome, err := svc.HandleNotification(ctx, notification)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(outcome)})
	}
}

// foldQuery fills fields MercadoPago also sends as query parameters. The
// legacy IPN format only uses the query string.
func foldQuery(n *mercadopagowebhook.Notification, r *http.Request) {
	q := r.URL.Query()
	if n.Type == "" {
		n.Type = strings.TrimSpace(q.Get("type"))
	}
	if n.Topic == "" {
		n.Topic = strings.TrimSpace(q.Get("topic"))
	}
	if n.Data.ID == "" {
		if id := strings.TrimSpace(q.Get("data.id")); id != "" {
			n.Data.ID = mercadopago.PaymentID(id)
		} else if n.Topic != "" && n.Type == "" {
			n.Data.ID = mercadopago.PaymentID(strings.TrimSpace(q.Get("id")))
		}
	}
}
