// Package admin exposes the operator view of the payment attempt ledger.
package admin

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxNoteLength = 1000

// ListAttempts returns ledger rows, newest first, optionally filtered by
// reconciliation status.
func ListAttempts(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", validators.IntRange{Default: 25, Min: 1, Max: 100})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", validators.IntRange{Default: 1, Min: 1, Max: math.MaxInt32})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), reconciliation.ListQuery{
			Status: enums.ReconciliationStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
			Limit:  limit,
			Page:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type resolveRequest struct {
	Note string `json:"note" validate:"required"`
}

// ResolveAttempt marks a flagged attempt as reconciled by the calling operator.
func ResolveAttempt(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid attempt id").
				WithDetails(map[string]string{"id": "must be a valid uuid"}))
			return
		}

		var payload resolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.Resolve(r.Context(), id, reconciliation.ResolveInput{
			Operator: middleware.OperatorFromContext(r.Context()),
			Note:     validators.CleanText(payload.Note, maxNoteLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if attempt == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found"))
			return
		}
		responses.WriteSuccess(w, reconciliation.ToDTO(*attempt))
	}
}
