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
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/metrics"
)

// Manager stamps events and hands them to a sink. A nil *Manager is valid
// and discards every event, so callers never need to check whether
// auditing is enabled.
type Manager struct {
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time
	closed  atomic.Bool
	emitted atomic.Int64
	failed  atomic.Int64
}

// NewManager creates a manager writing to sink.
func NewManager(sink Sink, logger *zap.Logger) *Manager {
	return &Manager{sink: sink, logger: logger.Named("audit-manager"), now: time.Now}
}

// NewFromConfig builds the sinks described by cfg, each behind its own
// queue. It returns a nil manager when auditing is disabled.
func NewFromConfig(cfg config.Audit, logger *zap.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var sinks []Sink
	if cfg.Log {
		sinks = append(sinks, NewLogSink(logger))
	}
	if cfg.Kafka != nil {
		kcfg, err := KafkaSinkConfigFrom(*cfg.Kafka)
		if err != nil {
			return nil, err
		}
		ks, err := NewKafkaSink(kcfg, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ks)
	}
	if len(sinks) == 0 {
		return nil, errors.New("audit enabled but no sinks configured")
	}

	qcfg := DefaultQueuedSinkConfig()
	qcfg.QueueSize = cfg.Queue.Size
	qcfg.WorkerCount = cfg.Queue.Workers
	return NewManager(NewIsolatedMultiSink(sinks, qcfg, logger), logger), nil
}

func (m *Manager) stamp(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}
}

// Emit records an event. Delivery errors are logged, never returned.
func (m *Manager) Emit(ctx context.Context, event *Event) {
	if err := m.EmitSync(ctx, event); err != nil && m != nil {
		m.logger.Warn("audit event not delivered",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// EmitSync records an event and returns the sink error.
func (m *Manager) EmitSync(ctx context.Context, event *Event) error {
	if m == nil || event == nil || m.closed.Load() {
		return nil
	}
	m.stamp(event)
	m.emitted.Add(1)
	metrics.AuditEventsEmitted.WithLabelValues(string(event.Type)).Inc()
	if err := m.sink.Write(ctx, event); err != nil {
		m.failed.Add(1)
		return err
	}
	return nil
}

// Close stops accepting events and closes the sink.
func (m *Manager) Close() error {
	if m == nil || m.closed.Swap(true) {
		return nil
	}
	return m.sink.Close()
}

// ManagerStats reports emission counters.
type ManagerStats struct {
	Emitted int64 `json:"emitted"`
	Failed  int64 `json:"failed"`
}

func (m *Manager) Stats() ManagerStats {
	if m == nil {
		return ManagerStats{}
	}
	return ManagerStats{Emitted: m.emitted.Load(), Failed: m.failed.Load()}
}
