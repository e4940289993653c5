// Package orders exposes the confirmation-page and account-page order reads.
package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	internalorders "github.com/angelmondragon/storefront-checkout/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

// ByCode returns the order for the confirmation page.
func ByCode(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		ctx := r.Context()
		if logg != nil && code != "" {
			ctx = logg.WithOrderCode(ctx, code)
		}

		session := vendure.SessionFromRequest(r)
		order, err := svc.OrderByCode(ctx, session, code)
		responses.ForwardCookies(w, session.SetCookies())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CustomerOrders returns one page of the signed-in customer's orders.
func CustomerOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		query := internalorders.ListQuery{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  validators.QueryIntOrZero(r, "limit"),
			Page:   validators.QueryIntOrZero(r, "page"),
		}

		session := vendure.SessionFromRequest(r)
		page, err := svc.CustomerOrders(r.Context(), session, query)
		responses.ForwardCookies(w, session.SetCookies())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "private, no-store")
		responses.WriteSuccess(w, page)
	}
}
