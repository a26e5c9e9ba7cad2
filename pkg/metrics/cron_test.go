package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsTracksOutcomesPerJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("sheet-reconcile", 250*time.Millisecond)
	m.ObserveDuration("sheet-reconcile", 750*time.Millisecond)
	m.IncSuccess("sheet-reconcile")
	m.IncFailure("sheet-reconcile")
	m.IncFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stockledger_job_success", "job", "sheet-reconcile"); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stockledger_job_failure", "job", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected blank job name to be labelled unknown, got %f (%v)", got, err)
	}

	series, err := findSeries(mfs, "stockledger_job_duration_seconds", "job", "sheet-reconcile")
	if err != nil {
		t.Fatalf("duration series: %v", err)
	}
	hist := series.GetHistogram()
	if hist.GetSampleCount() != 2 || hist.GetSampleSum() != 1.0 {
		t.Fatalf("expected 2 samples summing to 1s, got %d / %f", hist.GetSampleCount(), hist.GetSampleSum())
	}
}

func TestCronJobMetricsWithoutRegistererIsNoop(t *testing.T) {
	var nilMetrics *CronJobMetrics
	unregistered := NewCronJobMetrics(nil)

	for _, m := range []*CronJobMetrics{nilMetrics, unregistered} {
		m.ObserveDuration("sheet-reconcile", time.Second)
		m.IncSuccess("sheet-reconcile")
		m.IncFailure("sheet-reconcile")
	}
}
