package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/props-override/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name             string
		configContent    string
		expectedFP       string
		expectedListen   string
		expectedExtra    []string
		expectKafkaTopic string
		expectError      bool
	}{
		{
			name: "full config",
			configContent: `
overrides:
  certifiedFingerprint: "google/walleye/walleye:8.1.0/OPM1.171019.011/4448085:user/release-keys"
  certifiedDevice: "walleye"
  certifiedModel: "Pixel 2"
  stockFingerprint: "vendor/device:13/ABC/1:user/release-keys"
  netflixSpoofModel: "Pixel 7"
matching:
  extraPackages:
    - "com.example.store"
server:
  listenAddress: ":9090"
audit:
  enabled: true
  kafka:
    brokers: ["localhost:9092"]
    topic: "props-audit"
`,
			expectedFP:       "google/walleye/walleye:8.1.0/OPM1.171019.011/4448085:user/release-keys",
			expectedListen:   ":9090",
			expectedExtra:    []string{"com.example.store"},
			expectKafkaTopic: "props-audit",
		},
		{
			name: "overrides only",
			configContent: `
overrides:
  stockFingerprint: "x"
`,
			expectedFP: "",
		},
		{
			name:          "invalid YAML",
			configContent: `invalid: yaml: content [`,
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.configContent)
			cfg, err := config.Load(path)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedFP, cfg.Overrides.CertifiedFingerprint)
			assert.Equal(t, tt.expectedListen, cfg.Server.ListenAddress)
			assert.Equal(t, tt.expectedExtra, cfg.Matching.ExtraPackages)
			if tt.expectKafkaTopic != "" {
				require.NotNil(t, cfg.Audit.Kafka)
				assert.Equal(t, tt.expectKafkaTopic, cfg.Audit.Kafka.Topic)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Config{}, cfg)
}

func TestResolvePathFromEnv(t *testing.T) {
	t.Setenv("PROPS_CONFIG_PATH", "/etc/props/config.yaml")
	assert.Equal(t, "/etc/props/config.yaml", config.ResolvePath())
	assert.Equal(t, "explicit.yaml", config.ResolvePath("explicit.yaml"))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PROPS_CERTIFIED_FINGERPRINT", "env-fp")
	t.Setenv("PROPS_NETFLIX_SPOOF_MODEL", "env-model")
	t.Setenv("PROPS_AUDIT_ENABLED", "true")

	cfg := config.Config{Overrides: config.Overrides{CertifiedFingerprint: "file-fp", CertifiedDevice: "dev"}}
	cfg.ApplyEnv()

	assert.Equal(t, "env-fp", cfg.Overrides.CertifiedFingerprint)
	assert.Equal(t, "dev", cfg.Overrides.CertifiedDevice)
	assert.Equal(t, "env-model", cfg.Overrides.NetflixSpoofModel)
	assert.True(t, cfg.Audit.Enabled)
}

func TestApplyEnvEmptyValueClears(t *testing.T) {
	t.Setenv("PROPS_STOCK_FINGERPRINT", "")
	cfg := config.Config{Overrides: config.Overrides{StockFingerprint: "file"}}
	cfg.ApplyEnv()
	assert.Empty(t, cfg.Overrides.StockFingerprint)
}

func TestCertifiedIncomplete(t *testing.T) {
	assert.False(t, config.Overrides{}.CertifiedIncomplete())
	assert.True(t, config.Overrides{CertifiedFingerprint: "fp"}.CertifiedIncomplete())
	assert.False(t, config.Overrides{CertifiedFingerprint: "fp", CertifiedDevice: "d", CertifiedModel: "m"}.CertifiedIncomplete())
}
