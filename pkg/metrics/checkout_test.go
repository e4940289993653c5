package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.ObserveGraphQL("activeOrder", "ok", 120*time.Millisecond)
	metrics.ObserveProvider("mercadopago", "create_payment", 300*time.Millisecond)
	metrics.IncPaymentOutcome("mercadopago", "approved")
	metrics.IncPaymentOutcome("mercadopago", "approved")
	metrics.IncReconciliationRequired("mercadopago")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_payment_outcome_total", map[string]string{"provider": "mercadopago", "outcome": "approved"}); err != nil {
		t.Fatalf("fetch outcome: %v", err)
	} else if got != 2 {
		t.Fatalf("expected approved=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "checkout_reconciliation_required_total", map[string]string{"provider": "mercadopago"}); err != nil {
		t.Fatalf("fetch reconciliation: %v", err)
	} else if got != 1 {
		t.Fatalf("expected reconciliation=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "vendure_graphql_duration_seconds", map[string]string{"operation": "activeOrder", "outcome": "ok"}); err != nil {
		t.Fatalf("fetch graphql duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "payment_provider_duration_seconds", map[string]string{"provider": "mercadopago", "operation": "create_payment"}); err != nil {
		t.Fatalf("fetch provider duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var metrics *CheckoutMetrics
	metrics.ObserveGraphQL("x", "ok", time.Second)
	metrics.IncPaymentOutcome("stripe", "ok")

	unregistered := NewCheckoutMetrics(nil)
	unregistered.ObserveProvider("mercadopago", "get_payment", time.Second)
	unregistered.IncReconciliationRequired("mercadopago")
}

func TestNormalizeLabelDefaultsEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.IncPaymentOutcome("", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if _, err := fetchCounterValue(mfs, "checkout_payment_outcome_total", map[string]string{"provider": "unknown", "outcome": "unknown"}); err != nil {
		t.Fatalf("expected unknown labels: %v", err)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
