package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluations counts evaluate calls by the rule that matched
	// (certified, photos, stock_fingerprint, model, default, none, exempt).
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_evaluations_total",
		Help: "Total number of caller identity evaluations grouped by matched rule",
	}, []string{"rule"})
	// Profile is a bounded label (built-in profile names only).
	FieldWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_field_writes_total",
		Help: "Total number of identity field overrides written to the sink",
	}, []string{"profile", "field"})
	FieldWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_field_write_failures_total",
		Help: "Total number of identity field overrides rejected by the sink",
	}, []string{"profile", "field"})
	AttestationChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_attestation_checks_total",
		Help: "Total number of attestation guard checks grouped by outcome and reason",
	}, []string{"outcome", "reason"})
	FeatureQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_feature_queries_total",
		Help: "Total number of feature flag queries grouped by outcome (passed/suppressed)",
	}, []string{"outcome"})
	RateLimitedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_api_rate_limited_requests_total",
		Help: "Total number of decision service requests rejected by the rate limiter",
	}, []string{"route"})

	// Audit metrics
	AuditEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_audit_events_emitted_total",
		Help: "Total number of audit events handed to the audit manager",
	}, []string{"type"})
	AuditEventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_audit_events_processed_total",
		Help: "Total number of audit events delivered to a sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_audit_events_dropped_total",
		Help: "Total number of audit events dropped before reaching a sink",
	}, []string{"sink", "reason"})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "props_audit_sink_errors_total",
		Help: "Total number of audit sink write errors grouped by error type",
	}, []string{"sink", "error_type"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "props_audit_sink_write_duration_seconds",
		Help:    "Latency of audit sink writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
	AuditSinkConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "props_audit_sink_connected",
		Help: "Whether the audit sink is currently connected (1) or not (0)",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(Evaluations)
	prometheus.MustRegister(FieldWrites)
	prometheus.MustRegister(FieldWriteFailures)
	prometheus.MustRegister(AttestationChecks)
	prometheus.MustRegister(FeatureQueries)
	prometheus.MustRegister(RateLimitedRequests)
	prometheus.MustRegister(AuditEventsEmitted)
	prometheus.MustRegister(AuditEventsProcessed)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkLatency)
	prometheus.MustRegister(AuditSinkConnected)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
