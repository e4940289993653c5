package enums

// ProviderPaymentStatus is the status MercadoPago reports for a card payment.
type ProviderPaymentStatus string

const (
	ProviderPaymentApproved   ProviderPaymentStatus = "approved"
	ProviderPaymentInProcess  ProviderPaymentStatus = "in_process"
	ProviderPaymentPending    ProviderPaymentStatus = "pending"
	ProviderPaymentRejected   ProviderPaymentStatus = "rejected"
	ProviderPaymentCancelled  ProviderPaymentStatus = "cancelled"
	ProviderPaymentRefunded   ProviderPaymentStatus = "refunded"
	ProviderPaymentChargeback ProviderPaymentStatus = "charged_back"
)

// String implements fmt.Stringer.
func (s ProviderPaymentStatus) String() string {
	return string(s)
}

// Recordable reports whether the payment must be attached to the order.
func (s ProviderPaymentStatus) Recordable() bool {
	switch s {
	case ProviderPaymentApproved, ProviderPaymentInProcess, ProviderPaymentPending:
		return true
	}
	return false
}
