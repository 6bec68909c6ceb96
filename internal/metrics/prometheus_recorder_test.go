package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncStageResult("build-frontend", ResultSuccess)
	rec.IncStageResult("build-frontend", ResultSuccess)
	rec.IncStageResult("build-pages", ResultFailed)
	rec.IncBuildOutcome("failed")
	rec.ObserveArtifactBytes("statics", "upload", 2048)
	rec.ObserveStageDuration("build-frontend", 120*time.Millisecond)
	rec.ObserveBuildDuration(time.Second)

	if got := testutil.ToFloat64(rec.stageResults.WithLabelValues("build-frontend", "success")); got != 2 {
		t.Errorf("stage_results_total{build-frontend,success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.buildOutcome.WithLabelValues("failed")); got != 1 {
		t.Errorf("build_outcomes_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.artifactBytes.WithLabelValues("statics", "upload")); got != 2048 {
		t.Errorf("artifact_bytes_total{statics,upload} = %v, want 2048", got)
	}
}

func TestNoopRecorderIsSafe(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	rec.ObserveStageDuration("x", time.Second)
	rec.ObserveBuildDuration(time.Second)
	rec.IncStageResult("x", ResultSkipped)
	rec.IncBuildOutcome("success")
	rec.ObserveArtifactBytes("x", "download", 1)
}
