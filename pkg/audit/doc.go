// Package audit records override decisions made by the policy evaluator and
// forwards them to configurable sinks (log, Kafka) through isolated queues
// with circuit breaker protection.
package audit
