package enums

// ReconciliationStatus marks whether a payment attempt needs operator attention.
type ReconciliationStatus string

const (
	ReconciliationNotRequired ReconciliationStatus = "not_required"
	ReconciliationRequired    ReconciliationStatus = "required"
	ReconciliationResolved    ReconciliationStatus = "resolved"
)

var validReconciliationStatuses = []ReconciliationStatus{
	ReconciliationNotRequired,
	ReconciliationRequired,
	ReconciliationResolved,
}

// String implements fmt.Stringer.
func (s ReconciliationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReconciliationStatus.
func (s ReconciliationStatus) IsValid() bool {
	for _, candidate := range validReconciliationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
