package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "test-job"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "job_success", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "job_failure", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestTransactionMetricsExportsPipelineCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewTransactionMetrics(reg)
	metrics.IncBookingCreated("X1")
	metrics.IncBookingCreated("X1")
	metrics.IncVerification("captured")
	metrics.IncSettlement("settled")
	metrics.IncOutcomeResolved("completed")
	metrics.ObserveGatewayDuration("create_order", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "bookings_created_total", "model", "X1"); err != nil {
		t.Fatalf("fetch bookings: %v", err)
	} else if got != 2 {
		t.Fatalf("expected bookings=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_verifications_total", "result", "captured"); err != nil {
		t.Fatalf("fetch verifications: %v", err)
	} else if got != 1 {
		t.Fatalf("expected verifications=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "settlements_total", "outcome", "settled"); err != nil {
		t.Fatalf("fetch settlements: %v", err)
	} else if got != 1 {
		t.Fatalf("expected settlements=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "gateway_request_duration_seconds", "operation", "create_order"); err != nil {
		t.Fatalf("fetch gateway duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected gateway duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("job")
	cron.IncFailure("job")
	cron.ObserveDuration("job", time.Second)

	var txn *TransactionMetrics
	txn.IncBookingCreated("X1")
	txn.IncVerification("failed")
	txn.IncSettlement("rejected")
	txn.IncOutcomeResolved("dismissed")
	txn.ObserveGatewayDuration("capture_status", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
