package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/props-override/pkg/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Config{}
	cfg.Defaults()
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 1000, cfg.Audit.Queue.Size)
	assert.Equal(t, 1, cfg.Audit.Queue.Workers)
	assert.False(t, cfg.Audit.Log)
	assert.Equal(t, 20.0, cfg.Server.RateLimit.Rate)
	assert.Equal(t, 50, cfg.Server.RateLimit.Burst)
}

func TestDefaultsKeepDisabledRateLimit(t *testing.T) {
	cfg := config.Config{Server: config.Server{RateLimit: config.RateLimit{Rate: -1, Burst: 1}}}
	cfg.Defaults()
	assert.Equal(t, -1.0, cfg.Server.RateLimit.Rate)
	assert.Equal(t, 1, cfg.Server.RateLimit.Burst)
}

func TestDefaultsEnableLogSinkWithoutKafka(t *testing.T) {
	cfg := config.Config{Audit: config.Audit{Enabled: true}}
	cfg.Defaults()
	assert.True(t, cfg.Audit.Log)
}

func TestDefaultsKafkaCompression(t *testing.T) {
	cfg := config.Config{Audit: config.Audit{Enabled: true, Kafka: &config.Kafka{Brokers: []string{"b:9092"}, Topic: "t"}}}
	cfg.Defaults()
	assert.Equal(t, "snappy", cfg.Audit.Kafka.CompressionCodec)
	assert.False(t, cfg.Audit.Log)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"empty config is valid", config.Config{}, false},
		{"negative burst", config.Config{Server: config.Server{RateLimit: config.RateLimit{Burst: -1}}}, true},
		{"tls cert without key", config.Config{Server: config.Server{TLSCertFile: "c"}}, true},
		{"kafka disabled is not validated", config.Config{Audit: config.Audit{Kafka: &config.Kafka{}}}, false},
		{"kafka missing brokers", config.Config{Audit: config.Audit{Enabled: true, Kafka: &config.Kafka{Topic: "t"}}}, true},
		{"kafka missing topic", config.Config{Audit: config.Audit{Enabled: true, Kafka: &config.Kafka{Brokers: []string{"b"}}}}, true},
		{"kafka bad compression", config.Config{Audit: config.Audit{Enabled: true, Kafka: &config.Kafka{Brokers: []string{"b"}, Topic: "t", CompressionCodec: "brotli"}}}, true},
		{"kafka bad sasl", config.Config{Audit: config.Audit{Enabled: true, Kafka: &config.Kafka{Brokers: []string{"b"}, Topic: "t", SASL: &config.KafkaSASL{Mechanism: "GSSAPI"}}}}, true},
		{"kafka scram", config.Config{Audit: config.Audit{Enabled: true, Kafka: &config.Kafka{Brokers: []string{"b"}, Topic: "t", SASL: &config.KafkaSASL{Mechanism: "SCRAM-SHA-512"}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
