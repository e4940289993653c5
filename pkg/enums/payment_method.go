package enums

// PaymentMethod identifies the provider a checkout attempt is paid with. The
// same value is stored as the provider of a ledger row.
type PaymentMethod string

const (
	PaymentMethodStripe      PaymentMethod = "stripe"
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
)

func (p PaymentMethod) String() string {
	return string(p)
}
