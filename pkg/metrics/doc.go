// Package metrics defines Prometheus metrics for the override engine,
// covering evaluations per rule, identity field writes, attestation guard
// outcomes, feature suppression, and audit sink delivery.
package metrics
