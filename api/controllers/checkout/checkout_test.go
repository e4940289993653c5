package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

const rotatedCookie = "session=rotated; Path=/; HttpOnly"

type stubService struct {
	checkoutsvc.Service
	err           error
	intentInput   checkoutsvc.PaymentIntentInput
	processInput  checkoutsvc.ProcessPaymentInput
	preferenceKey string
	cookieSeen    string
	intentID      string
	shippingIDs   []string
}

// touch mimics a Shop API call that rotates the session cookie.
func (s *stubService) touch(session *vendure.Session) {
	s.cookieSeen = session.CookieHeader()
	session.Absorb([]string{rotatedCookie})
}

func (s *stubService) CreatePaymentIntent(_ context.Context, session *vendure.Session, input checkoutsvc.PaymentIntentInput) (any, error) {
	s.touch(session)
	s.intentInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.StripePaymentIntent{ClientSecret: "pi_1_secret", OrderCode: "X100"}, nil
}

func (s *stubService) CreateMercadoPagoPreference(_ context.Context, session *vendure.Session, key string) (*checkoutsvc.MercadoPagoPreference, error) {
	s.touch(session)
	s.preferenceKey = key
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.MercadoPagoPreference{PreferenceID: "pref-1", OrderCode: "X100", TotalAmount: 15000, CurrencyCode: "ARS"}, nil
}

func (s *stubService) ProcessMercadoPagoPayment(_ context.Context, session *vendure.Session, input checkoutsvc.ProcessPaymentInput) (*checkoutsvc.ProcessPaymentResult, error) {
	s.touch(session)
	s.processInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.ProcessPaymentResult{
		Success:    true,
		PaymentID:  "123",
		Status:     enums.ProviderPaymentApproved,
		OrderCode:  input.OrderCode,
		OrderState: enums.OrderStatePaymentSettled,
	}, nil
}

func (s *stubService) MercadoPagoCardForm(context.Context) (*checkoutsvc.CardFormConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.CardFormConfig{PublicKey: "TEST-pk", Env: "dev", CheckoutSessionID: "sess-1"}, nil
}

func (s *stubService) SetShippingMethods(_ context.Context, session *vendure.Session, ids []string) (*vendure.Order, error) {
	s.touch(session)
	s.shippingIDs = ids
	return &vendure.Order{Code: "X100"}, s.err
}

func (s *stubService) StripePaymentIntentStatus(_ context.Context, id string) (*checkoutsvc.StripeIntentStatus, error) {
	s.intentID = id
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.StripeIntentStatus{ID: id, Status: "succeeded", Amount: 15000, Currency: "ARS"}, nil
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestPaymentIntentDefaultsOnEmptyOrMalformedBody(t *testing.T) {
	for _, body := range []string{"", "{oops"} {
		svc := &stubService{}
		rec := httptest.NewRecorder()
		PaymentIntent(svc, nil).ServeHTTP(rec, post("/api/checkout/payment-intent", body))

		require.Equal(t, http.StatusOK, rec.Code, body)
		assert.Equal(t, enums.PaymentMethod(""), svc.intentInput.PaymentMethod)
		assert.Equal(t, "session=abc", svc.cookieSeen)
		assert.Equal(t, []string{rotatedCookie}, rec.Result().Header.Values("Set-Cookie"))

		var payload map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, "pi_1_secret", payload["clientSecret"])
	}
}

func TestPaymentIntentPassesMethodAndKey(t *testing.T) {
	svc := &stubService{}
	req := post("/api/checkout/payment-intent", `{"paymentMethod":" MercadoPago "}`)
	req.Header.Set("Idempotency-Key", "k-1")
	PaymentIntent(svc, nil).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, enums.PaymentMethodMercadoPago, svc.intentInput.PaymentMethod)
	assert.Equal(t, "k-1", svc.intentInput.IdempotencyKey)
}

func TestErrorsStillRelayCookies(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeNoActiveOrder, "Add items to cart before payment")}
	rec := httptest.NewRecorder()
	MercadoPagoPreference(svc, nil).ServeHTTP(rec, post("/api/checkout/mercadopago", ""))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{rotatedCookie}, rec.Result().Header.Values("Set-Cookie"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "NO_ACTIVE_ORDER", env.Code)
	assert.Equal(t, "No active order", env.Error)
}

func TestProcessPaymentDecodesCardBrickPayload(t *testing.T) {
	svc := &stubService{}
	req := post("/api/checkout/mercadopago/process-payment", `{
		"token":"card-token","paymentMethodId":"visa","issuerId":310,"installments":3,
		"email":"buyer@example.com","amount":15000,"orderCode":"X100",
		"identificationType":"DNI","identificationNumber":12345678,"extra":"ignored"}`)
	req.Header.Set("Idempotency-Key", "browser-key")
	rec := httptest.NewRecorder()
	ProcessMercadoPagoPayment(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	in := svc.processInput
	assert.Equal(t, "310", in.IssuerID)
	assert.Equal(t, "12345678", in.IdentificationNumber)
	assert.EqualValues(t, 15000, in.Amount)
	assert.Equal(t, 3, in.Installments)
	assert.Equal(t, "browser-key", in.IdempotencyKey)

	var payload checkoutsvc.ProcessPaymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, enums.OrderStatePaymentSettled, payload.OrderState)
}

func TestProcessPaymentRejectsInvalidJSON(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	ProcessMercadoPagoPayment(svc, nil).ServeHTTP(rec, post("/api/checkout/mercadopago/process-payment", `{"amount":"lots"`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processInput.OrderCode)
}

const validPaymentBody = `{"token":"card-token","email":"buyer@example.com","amount":15000,"orderCode":"X100"}`

func TestProcessPaymentValidatesBodyBeforeCallingService(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
		msg   string
	}{
		"malformed email": {
			body:  `{"token":"card-token","email":"nope","amount":15000,"orderCode":"X100"}`,
			field: "email",
			msg:   "must be a valid email",
		},
		"no token or payment method": {
			body:  `{"email":"buyer@example.com","amount":15000,"orderCode":"X100"}`,
			field: "token",
			msg:   "is required when PaymentMethodID is missing",
		},
		"zero amount": {
			body:  `{"token":"card-token","email":"buyer@example.com","amount":0,"orderCode":"X100"}`,
			field: "amount",
			msg:   "must be greater than 0",
		},
		"missing order code": {
			body:  `{"token":"card-token","email":"buyer@example.com","amount":15000}`,
			field: "orderCode",
			msg:   "is required",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubService{}
			rec := httptest.NewRecorder()
			ProcessMercadoPagoPayment(svc, nil).ServeHTTP(rec, post("/api/checkout/mercadopago/process-payment", tc.body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, string(pkgerrors.CodeValidation), env.Code)
			details, ok := env.Details.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.msg, details[tc.field])
			assert.Empty(t, svc.cookieSeen, "service must not be called")
		})
	}
}

func TestSetCustomerRejectsMalformedEmail(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	SetCustomer(svc, nil).ServeHTTP(rec, post("/api/checkout/customer",
		`{"firstName":"Ana","lastName":"Gomez","emailAddress":"ana-at-example"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	details, ok := env.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["emailAddress"])
}

func TestProcessPaymentSurfacesSupportError(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeOrderUpdateFailed, "Please contact support with payment ID: 123").
		WithDetails(map[string]any{"paymentId": "123"})}
	rec := httptest.NewRecorder()
	ProcessMercadoPagoPayment(svc, nil).ServeHTTP(rec, post("/api/checkout/mercadopago/process-payment", validPaymentBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "ORDER_UPDATE_FAILED", env.Code)
	assert.Contains(t, env.Message, "123")
	assert.NotNil(t, env.Details)
}

func TestMercadoPagoConfigIsNotCached(t *testing.T) {
	rec := httptest.NewRecorder()
	MercadoPagoConfig(&stubService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checkout/mercadopago/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var payload checkoutsvc.CardFormConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "sess-1", payload.CheckoutSessionID)
}

func TestSetShippingMethodRequiresIDs(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	SetShippingMethod(svc, nil).ServeHTTP(rec, post("/api/checkout/shipping-methods", `{"shippingMethodIds":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	SetShippingMethod(svc, nil).ServeHTTP(rec, post("/api/checkout/shipping-methods", `{"shippingMethodIds":["1"]}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"1"}, svc.shippingIDs)
}

func TestStripePaymentIntentStatusReadsPathOrQuery(t *testing.T) {
	svc := &stubService{}
	router := chi.NewRouter()
	router.Get("/api/checkout/stripe/payment-intents/{id}", StripePaymentIntentStatus(svc, nil))
	router.Get("/api/checkout/stripe/payment-intents", StripePaymentIntentStatus(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checkout/stripe/payment-intents/pi_123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi_123", svc.intentID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checkout/stripe/payment-intents?payment_intent=pi_456&redirect_status=succeeded", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi_456", svc.intentID)
}

func TestNilServiceIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	PaymentIntent(nil, nil).ServeHTTP(rec, post("/api/checkout/payment-intent", ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
