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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/metrics"
)

// QueuedSinkConfig configures a QueuedSink.
type QueuedSinkConfig struct {
	// QueueSize is the size of the async event queue. Default: 1000
	QueueSize int

	// WorkerCount is the number of delivery workers. Default: 1
	WorkerCount int

	// WriteTimeout bounds a single write to the underlying sink. Default: 5s
	WriteTimeout time.Duration

	// CircuitBreakerThreshold is the number of consecutive failures before
	// events are dropped without trying the sink. Default: 5
	CircuitBreakerThreshold int

	// CircuitBreakerResetTime is how long the circuit stays open. Default: 30s
	CircuitBreakerResetTime time.Duration
}

// DefaultQueuedSinkConfig returns the defaults used by the decision service.
func DefaultQueuedSinkConfig() QueuedSinkConfig {
	return QueuedSinkConfig{
		QueueSize:               1000,
		WorkerCount:             1,
		WriteTimeout:            5 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerResetTime: 30 * time.Second,
	}
}

// QueuedSinkHealth represents the health status of a queued sink.
type QueuedSinkHealth struct {
	Name             string    `json:"name"`
	Healthy          bool      `json:"healthy"`
	QueueLength      int       `json:"queueLength"`
	QueueCapacity    int       `json:"queueCapacity"`
	DroppedEvents    int64     `json:"droppedEvents"`
	ProcessedEvents  int64     `json:"processedEvents"`
	FailedEvents     int64     `json:"failedEvents"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	CircuitOpen      bool      `json:"circuitOpen"`
	LastError        string    `json:"lastError,omitempty"`
	LastErrorTime    time.Time `json:"lastErrorTime,omitempty"`
}

// QueuedSink decouples event emission from delivery. Write never blocks:
// when the queue is full or the circuit is open the event is dropped and
// counted.
type QueuedSink struct {
	sink   Sink
	queue  chan *Event
	config QueuedSinkConfig
	logger *zap.Logger

	droppedEvents   atomic.Int64
	processedEvents atomic.Int64
	failedEvents    atomic.Int64

	consecutiveFails atomic.Int32
	circuitOpen      atomic.Bool
	openedAt         atomic.Int64 // unix nanos

	mu            sync.RWMutex
	lastError     string
	lastErrorTime time.Time

	wg        sync.WaitGroup
	closeOnce sync.Once
	closing   sync.RWMutex
	closed    bool
}

// NewQueuedSink wraps sink with its own queue and starts the workers.
func NewQueuedSink(sink Sink, cfg QueuedSinkConfig, logger *zap.Logger) *QueuedSink {
	def := DefaultQueuedSinkConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = def.CircuitBreakerThreshold
	}
	if cfg.CircuitBreakerResetTime <= 0 {
		cfg.CircuitBreakerResetTime = def.CircuitBreakerResetTime
	}

	qs := &QueuedSink{
		sink:   sink,
		queue:  make(chan *Event, cfg.QueueSize),
		config: cfg,
		logger: logger.Named("queued-sink").With(zap.String("sink", sink.Name())),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		qs.wg.Add(1)
		go qs.processQueue(i)
	}
	return qs
}

// Write enqueues an event for async delivery.
func (qs *QueuedSink) Write(_ context.Context, event *Event) error {
	qs.closing.RLock()
	defer qs.closing.RUnlock()
	if qs.closed {
		return fmt.Errorf("queued sink %s is closed", qs.sink.Name())
	}

	if qs.circuitOpen.Load() {
		opened := time.Unix(0, qs.openedAt.Load())
		if time.Since(opened) < qs.config.CircuitBreakerResetTime {
			qs.drop(event, "circuit_open")
			return nil
		}
		if qs.circuitOpen.CompareAndSwap(true, false) {
			qs.consecutiveFails.Store(0)
			qs.logger.Info("circuit breaker half-open, retrying sink")
		}
	}

	select {
	case qs.queue <- event:
	default:
		qs.drop(event, "queue_full")
	}
	return nil
}

func (qs *QueuedSink) drop(event *Event, reason string) {
	qs.droppedEvents.Add(1)
	metrics.AuditEventsDropped.WithLabelValues(qs.sink.Name(), reason).Inc()
	qs.logger.Debug("audit event dropped",
		zap.String("reason", reason),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

func (qs *QueuedSink) processQueue(workerID int) {
	defer qs.wg.Done()

	for event := range qs.queue {
		ctx, cancel := context.WithTimeout(context.Background(), qs.config.WriteTimeout)
		err := qs.sink.Write(ctx, event)
		cancel()

		if err == nil {
			qs.processedEvents.Add(1)
			qs.consecutiveFails.Store(0)
			metrics.AuditEventsProcessed.WithLabelValues(qs.sink.Name()).Inc()
			continue
		}

		qs.failedEvents.Add(1)
		fails := qs.consecutiveFails.Add(1)
		metrics.AuditSinkErrors.WithLabelValues(qs.sink.Name(), "write").Inc()

		qs.mu.Lock()
		qs.lastError = err.Error()
		qs.lastErrorTime = time.Now()
		qs.mu.Unlock()

		qs.logger.Error("failed to write audit event",
			zap.Int("worker", workerID),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
			zap.Int32("consecutive_fails", fails))

		if int(fails) >= qs.config.CircuitBreakerThreshold && qs.circuitOpen.CompareAndSwap(false, true) {
			qs.openedAt.Store(time.Now().UnixNano())
			qs.logger.Warn("circuit breaker opened for sink", zap.Int32("consecutive_fails", fails))
		}
	}
}

// Health returns the current health status of this sink.
func (qs *QueuedSink) Health() QueuedSinkHealth {
	qs.mu.RLock()
	lastError, lastErrorTime := qs.lastError, qs.lastErrorTime
	qs.mu.RUnlock()

	queueLen, queueCap := len(qs.queue), cap(qs.queue)
	circuitOpen := qs.circuitOpen.Load()
	return QueuedSinkHealth{
		Name:             qs.sink.Name(),
		Healthy:          !circuitOpen && float64(queueLen) < float64(queueCap)*0.8,
		QueueLength:      queueLen,
		QueueCapacity:    queueCap,
		DroppedEvents:    qs.droppedEvents.Load(),
		ProcessedEvents:  qs.processedEvents.Load(),
		FailedEvents:     qs.failedEvents.Load(),
		ConsecutiveFails: int(qs.consecutiveFails.Load()),
		CircuitOpen:      circuitOpen,
		LastError:        lastError,
		LastErrorTime:    lastErrorTime,
	}
}

// Close drains the queue, waits for the workers and closes the wrapped sink.
func (qs *QueuedSink) Close() error {
	var err error
	qs.closeOnce.Do(func() {
		qs.closing.Lock()
		qs.closed = true
		close(qs.queue)
		qs.closing.Unlock()

		qs.wg.Wait()
		err = qs.sink.Close()
	})
	return err
}

// Name returns the underlying sink's name.
func (qs *QueuedSink) Name() string {
	return qs.sink.Name()
}

// IsolatedMultiSink fans events out to several QueuedSinks, each with its
// own queue, so a slow or failing sink cannot hold up the others.
type IsolatedMultiSink struct {
	sinks []*QueuedSink
}

// NewIsolatedMultiSink wraps every sink in its own QueuedSink.
func NewIsolatedMultiSink(sinks []Sink, cfg QueuedSinkConfig, logger *zap.Logger) *IsolatedMultiSink {
	queued := make([]*QueuedSink, 0, len(sinks))
	for _, sink := range sinks {
		queued = append(queued, NewQueuedSink(sink, cfg, logger))
	}
	return &IsolatedMultiSink{sinks: queued}
}

// Write enqueues the event on every sink.
func (ims *IsolatedMultiSink) Write(ctx context.Context, event *Event) error {
	for _, qs := range ims.sinks {
		_ = qs.Write(ctx, event)
	}
	return nil
}

// Close shuts down all queued sinks.
func (ims *IsolatedMultiSink) Close() error {
	var errs []error
	for _, qs := range ims.sinks {
		if err := qs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name returns the sink identifier.
func (ims *IsolatedMultiSink) Name() string {
	return "isolated-multi"
}

// Health returns the health status of all underlying sinks.
func (ims *IsolatedMultiSink) Health() []QueuedSinkHealth {
	out := make([]QueuedSinkHealth, 0, len(ims.sinks))
	for _, qs := range ims.sinks {
		out = append(out, qs.Health())
	}
	return out
}
