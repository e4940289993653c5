package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records upstream latency and payment outcomes for the checkout flow.
type CheckoutMetrics struct {
	graphqlDuration  *prometheus.HistogramVec
	providerDuration *prometheus.HistogramVec
	paymentOutcome   *prometheus.CounterVec
	reconciliation   *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	graphqlDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vendure_graphql_duration_seconds",
		Help:    "Duration of Vendure Shop API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_duration_seconds",
		Help:    "Duration of payment provider API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	paymentOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_outcome_total",
		Help: "Checkout payment attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reconciliation_required_total",
		Help: "Provider payments that could not be recorded against the order.",
	}, []string{"provider"})
	reg.MustRegister(graphqlDuration, providerDuration, paymentOutcome, reconciliation)
	return &CheckoutMetrics{
		graphqlDuration:  graphqlDuration,
		providerDuration: providerDuration,
		paymentOutcome:   paymentOutcome,
		reconciliation:   reconciliation,
	}
}

// ObserveGraphQL records the round-trip duration of a Vendure operation.
func (c *CheckoutMetrics) ObserveGraphQL(operation, outcome string, duration time.Duration) {
	if c == nil || c.graphqlDuration == nil {
		return
	}
	c.graphqlDuration.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(duration.Seconds())
}

// ObserveProvider records the duration of a payment provider call.
func (c *CheckoutMetrics) ObserveProvider(provider, operation string, duration time.Duration) {
	if c == nil || c.providerDuration == nil {
		return
	}
	c.providerDuration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncPaymentOutcome counts a payment attempt outcome such as approved or rejected.
func (c *CheckoutMetrics) IncPaymentOutcome(provider, outcome string) {
	if c == nil || c.paymentOutcome == nil {
		return
	}
	c.paymentOutcome.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncReconciliationRequired counts payments that need manual reconciliation.
func (c *CheckoutMetrics) IncReconciliationRequired(provider string) {
	if c == nil || c.reconciliation == nil {
		return
	}
	c.reconciliation.WithLabelValues(normalizeLabel(provider)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
