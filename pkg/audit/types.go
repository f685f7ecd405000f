/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Evaluation outcomes ===
	EventOverrideApplied EventType = "override.applied"
	EventOverrideNone    EventType = "override.none"
	EventOverrideExempt  EventType = "override.exempt"

	// === Sink failures while applying a profile ===
	EventFieldUnavailable EventType = "field.unavailable"

	// === Restrictions ===
	EventAttestationBlocked EventType = "attestation.blocked"
	EventAttestationAllowed EventType = "attestation.allowed"
	EventFeatureSuppressed  EventType = "feature.suppressed"

	// === Audit meta events ===
	EventAuditStarted EventType = "audit.started"
	EventAuditStopped EventType = "audit.stopped"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the type of event
	Type EventType `json:"type"`

	// Severity indicates the importance of the event
	Severity Severity `json:"severity"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Caller is the application identity the decision was made for
	Caller Caller `json:"caller"`

	// Rule is the evaluator rule that matched, if any
	Rule string `json:"rule,omitempty"`

	// Profile is the override profile involved, if any
	Profile string `json:"profile,omitempty"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`
}

// Caller identifies the application an event refers to.
type Caller struct {
	Package string `json:"package"`
	Process string `json:"process,omitempty"`
}

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	case EventAttestationBlocked:
		return SeverityCritical
	case EventFieldUnavailable, EventFeatureSuppressed:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// NewOverrideEvent describes the result of one evaluation.
func NewOverrideEvent(eventType EventType, caller Caller, rule, profile string, fields []string) *Event {
	e := &Event{Type: eventType, Caller: caller, Rule: rule, Profile: profile}
	if len(fields) > 0 {
		e.Details = map[string]interface{}{"fields": fields}
	}
	return e
}

// NewFieldUnavailableEvent records a write rejected by the identity sink.
func NewFieldUnavailableEvent(caller Caller, profile, field string, err error) *Event {
	details := map[string]interface{}{"field": field}
	if err != nil {
		details["error"] = err.Error()
	}
	return &Event{Type: EventFieldUnavailable, Caller: caller, Profile: profile, Details: details}
}

// NewAttestationEvent records an attestation guard outcome.
func NewAttestationEvent(caller Caller, blocked bool, reason string) *Event {
	t := EventAttestationAllowed
	if blocked {
		t = EventAttestationBlocked
	}
	e := &Event{Type: t, Caller: caller}
	if reason != "" {
		e.Details = map[string]interface{}{"reason": reason}
	}
	return e
}

// NewFeatureSuppressedEvent records a feature query answered with false.
func NewFeatureSuppressedEvent(caller Caller, feature, matched string) *Event {
	return &Event{
		Type:    EventFeatureSuppressed,
		Caller:  caller,
		Details: map[string]interface{}{"feature": feature, "matched": matched},
	}
}

// IsHighVolumeEvent returns true if this event type is typically high-volume
// and may be skipped by sinks that only care about decisions.
func IsHighVolumeEvent(eventType EventType) bool {
	switch eventType {
	case EventOverrideNone, EventOverrideExempt, EventAttestationAllowed:
		return true
	default:
		return false
	}
}
