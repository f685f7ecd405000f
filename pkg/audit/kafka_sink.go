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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/metrics"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	// Name is the identifier for this sink instance. Default: "kafka"
	Name string

	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic receives one message per audit event.
	Topic string

	TLS  *KafkaTLSConfig
	SASL *KafkaSASLConfig

	// BatchSize is the number of messages to batch before flushing. Default: 100
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing a batch. Default: 1s
	BatchTimeout time.Duration

	// WriteTimeout is the timeout for writing messages. Default: 10s
	WriteTimeout time.Duration

	// RequiredAcks: -1 all replicas, 1 leader only. Default: -1
	RequiredAcks int

	// Async enables fire-and-forget writes.
	Async bool

	// CompressionCodec is one of "none", "gzip", "snappy", "lz4", "zstd". Default: "snappy"
	CompressionCodec string
}

// KafkaTLSConfig holds PEM material for TLS connections.
type KafkaTLSConfig struct {
	Enabled            bool
	CACert             []byte
	ClientCert         []byte
	ClientKey          []byte
	InsecureSkipVerify bool
}

// KafkaSASLConfig holds SASL credentials.
type KafkaSASLConfig struct {
	// Mechanism is "PLAIN", "SCRAM-SHA-256" or "SCRAM-SHA-512".
	Mechanism string
	Username  string
	Password  string
}

// KafkaSinkConfigFrom converts the file configuration, reading TLS material
// from disk and the SASL password from the configured environment variable.
func KafkaSinkConfigFrom(k config.Kafka) (KafkaSinkConfig, error) {
	cfg := KafkaSinkConfig{
		Brokers:          k.Brokers,
		Topic:            k.Topic,
		BatchSize:        k.BatchSize,
		Async:            k.Async,
		CompressionCodec: k.CompressionCodec,
	}
	if k.TLS != nil && k.TLS.Enabled {
		t := &KafkaTLSConfig{Enabled: true, InsecureSkipVerify: k.TLS.InsecureSkipVerify}
		var err error
		if t.CACert, err = readOptional(k.TLS.CAFile); err != nil {
			return cfg, err
		}
		if t.ClientCert, err = readOptional(k.TLS.CertFile); err != nil {
			return cfg, err
		}
		if t.ClientKey, err = readOptional(k.TLS.KeyFile); err != nil {
			return cfg, err
		}
		cfg.TLS = t
	}
	if k.SASL != nil && k.SASL.Mechanism != "" {
		cfg.SASL = &KafkaSASLConfig{
			Mechanism: k.SASL.Mechanism,
			Username:  k.SASL.Username,
			Password:  os.Getenv(k.SASL.PasswordEnv),
		}
	}
	return cfg, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading kafka tls file: %w", err)
	}
	return b, nil
}

// KafkaSink writes audit events to a Kafka topic.
type KafkaSink struct {
	name   string
	writer *kafka.Writer
	logger *zap.Logger
	mu     sync.Mutex
	closed bool

	messagesWritten atomic.Int64
	messagesFailed  atomic.Int64
	batchesSent     atomic.Int64
	connected       atomic.Bool
	lastError       atomic.Value // error
	lastErrorTime   atomic.Value // time.Time
}

// NewKafkaSink creates a new KafkaSink. No connection is made until the
// first write.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	transport := &kafka.Transport{}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		transport.TLS = tlsConfig
	}
	if cfg.SASL != nil && cfg.SASL.Mechanism != "" {
		mechanism, err := buildSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("failed to build SASL mechanism: %w", err)
		}
		transport.SASL = mechanism
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	requiredAcks := cfg.RequiredAcks
	if requiredAcks == 0 {
		requiredAcks = -1
	}

	compression, err := compressionCodec(cfg.CompressionCodec)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "kafka"
	}

	sink := &KafkaSink{
		name: name,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              batchSize,
			BatchTimeout:           batchTimeout,
			WriteTimeout:           writeTimeout,
			RequiredAcks:           kafka.RequiredAcks(requiredAcks),
			Async:                  cfg.Async,
			Compression:            compression,
			Transport:              transport,
			AllowAutoTopicCreation: false,
		},
		logger: logger.Named("kafka-audit"),
	}
	sink.connected.Store(true)
	metrics.AuditSinkConnected.WithLabelValues(name).Set(1)

	logger.Info("Kafka audit sink created",
		zap.String("name", name),
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("tls_enabled", cfg.TLS != nil && cfg.TLS.Enabled),
		zap.Bool("sasl_enabled", cfg.SASL != nil && cfg.SASL.Mechanism != ""))

	return sink, nil
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch name {
	case "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	case "snappy", "":
		return kafka.Snappy, nil
	default:
		return 0, fmt.Errorf("unsupported compression codec: %s", name)
	}
}

// classifyKafkaError categorizes Kafka errors for metrics and logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "SASL") || strings.Contains(msg, "authentication"):
		return "auth"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return "network"
	case strings.Contains(msg, "TLS") || strings.Contains(msg, "certificate"):
		return "tls"
	case strings.Contains(msg, "topic"):
		return "topic"
	default:
		return "other"
	}
}

func (s *KafkaSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *KafkaSink) message(event *Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal audit event: %w", err)
	}
	headers := []kafka.Header{
		{Key: "event-type", Value: []byte(event.Type)},
		{Key: "severity", Value: []byte(event.Severity)},
		{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
	}
	if event.Caller.Package != "" {
		headers = append(headers, kafka.Header{Key: "caller-package", Value: []byte(event.Caller.Package)})
	}
	return kafka.Message{Key: partitionKey(event), Value: value, Headers: headers}, nil
}

// partitionKey keeps one application's decisions on one partition.
func partitionKey(event *Event) []byte {
	if event.Caller.Package != "" {
		return []byte(event.Caller.Package)
	}
	return []byte(event.ID)
}

// Write sends an audit event to Kafka.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	return s.WriteBatch(ctx, []*Event{event})
}

// WriteBatch writes multiple audit events in one request. Events that fail
// to serialize are skipped.
func (s *KafkaSink) WriteBatch(ctx context.Context, events []*Event) error {
	if s.isClosed() {
		metrics.AuditSinkErrors.WithLabelValues(s.name, "closed").Inc()
		return fmt.Errorf("kafka sink is closed")
	}
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := s.message(event)
		if err != nil {
			metrics.AuditSinkErrors.WithLabelValues(s.name, "serialization").Inc()
			s.messagesFailed.Add(1)
			s.logger.Warn("skipping audit event", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil
	}

	err := s.writer.WriteMessages(ctx, messages...)
	duration := time.Since(start)
	metrics.AuditSinkLatency.WithLabelValues(s.name).Observe(duration.Seconds())

	if err != nil {
		errorType := classifyKafkaError(err)
		metrics.AuditSinkErrors.WithLabelValues(s.name, errorType).Inc()
		s.messagesFailed.Add(int64(len(messages)))
		if s.connected.Swap(false) {
			metrics.AuditSinkConnected.WithLabelValues(s.name).Set(0)
		}
		s.lastError.Store(err)
		s.lastErrorTime.Store(time.Now())

		fields := []zap.Field{
			zap.Error(err),
			zap.String("error_type", errorType),
			zap.Int("batch_size", len(messages)),
			zap.Duration("duration", duration),
		}
		switch errorType {
		case "network", "dns", "timeout":
			s.logger.Warn("Kafka sink temporarily unavailable, events dropped", fields...)
		default:
			s.logger.Error("failed to write audit events to Kafka", fields...)
		}
		return fmt.Errorf("failed to write to Kafka (%s): %w", errorType, err)
	}

	s.messagesWritten.Add(int64(len(messages)))
	s.batchesSent.Add(1)
	if !s.connected.Swap(true) {
		metrics.AuditSinkConnected.WithLabelValues(s.name).Set(1)
		s.logger.Info("Kafka sink connection restored", zap.String("name", s.name))
	}
	return nil
}

// Close closes the Kafka writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	metrics.AuditSinkConnected.WithLabelValues(s.name).Set(0)

	s.logger.Info("closing Kafka audit sink",
		zap.String("name", s.name),
		zap.Int64("messages_written", s.messagesWritten.Load()),
		zap.Int64("messages_failed", s.messagesFailed.Load()),
		zap.Int64("batches_sent", s.batchesSent.Load()))

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Name returns the sink identifier.
func (s *KafkaSink) Name() string {
	return s.name
}

// IsConnected returns the last observed connection state.
func (s *KafkaSink) IsConnected() bool {
	return s.connected.Load()
}

// LastError returns the last error encountered and when it occurred.
func (s *KafkaSink) LastError() (time.Time, error) {
	err, _ := s.lastError.Load().(error)
	t, _ := s.lastErrorTime.Load().(time.Time)
	return t, err
}

// MessageStats returns message counters for monitoring.
func (s *KafkaSink) MessageStats() (written, failed, batches int64) {
	return s.messagesWritten.Load(), s.messagesFailed.Load(), s.batchesSent.Load()
}

func buildTLSConfig(cfg *KafkaTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // Configurable for testing
	}
	if len(cfg.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.CACert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	if len(cfg.ClientCert) > 0 && len(cfg.ClientKey) > 0 {
		cert, err := tls.X509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func buildSASLMechanism(cfg *KafkaSASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
