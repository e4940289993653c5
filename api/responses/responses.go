package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// WriteSuccess writes payload as the JSON body of a 200 response.
func WriteSuccess(w http.ResponseWriter, payload any) {
	WriteJSON(w, http.StatusOK, payload)
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("response.encode_failed")
	}
}

// ForwardCookies relays Set-Cookie values received from the commerce backend.
// It must run before the status line is written.
func ForwardCookies(w http.ResponseWriter, cookies []string) {
	for _, c := range cookies {
		if c == "" {
			continue
		}
		w.Header().Add("Set-Cookie", c)
	}
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := typed.Message()
	if msg == "" || (typed.Code() == pkgerrors.CodeInternal && typed.Unwrap() != nil) {
		msg = meta.PublicMessage
	}
	if msg == "" {
		msg = typed.Title()
	}

	payload := types.ErrorEnvelope{
		Error:   typed.Title(),
		Message: msg,
		Code:    string(typed.Code()),
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Details = details
		}
	}

	fields := pkgerrors.Dump(err).Fields()
	fields["http_status"] = meta.HTTPStatus
	if dm, ok := typed.Details().(map[string]any); ok {
		if paymentID, ok := dm["paymentId"]; ok {
			fields["payment_id"] = paymentID
		}
	}
	ctx = logg.WithFields(ctx, fields)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
	} else {
		logg.Warn(ctx, "request.error")
	}

	WriteJSON(w, meta.HTTPStatus, payload)
}
