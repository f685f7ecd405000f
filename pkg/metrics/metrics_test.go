package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEvaluationMetricsIncrement(t *testing.T) {
	// Use a test label to avoid colliding with other tests
	lbl := "test-rule"

	Evaluations.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(Evaluations.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected Evaluations >= 1, got %v", v)
	}

	FieldWrites.WithLabelValues("test-profile", "MODEL").Add(2)
	if v := testutil.ToFloat64(FieldWrites.WithLabelValues("test-profile", "MODEL")); v < 2 {
		t.Fatalf("expected FieldWrites >= 2, got %v", v)
	}

	AttestationChecks.WithLabelValues("blocked", "test").Inc()
	if v := testutil.ToFloat64(AttestationChecks.WithLabelValues("blocked", "test")); v < 1 {
		t.Fatalf("expected AttestationChecks >= 1, got %v", v)
	}
}

func TestAuditSinkConnectedGauge(t *testing.T) {
	AuditSinkConnected.WithLabelValues("test-sink").Set(1)
	if v := testutil.ToFloat64(AuditSinkConnected.WithLabelValues("test-sink")); v != 1 {
		t.Fatalf("expected gauge 1, got %v", v)
	}
	AuditSinkConnected.WithLabelValues("test-sink").Set(0)
	if v := testutil.ToFloat64(AuditSinkConnected.WithLabelValues("test-sink")); v != 0 {
		t.Fatalf("expected gauge 0, got %v", v)
	}
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	FeatureQueries.WithLabelValues("suppressed").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "props_feature_queries_total") {
		t.Fatalf("expected props_feature_queries_total in metrics output")
	}
}
