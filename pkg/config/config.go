package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultPath is used when neither an explicit path nor PROPS_CONFIG_PATH is set.
const DefaultPath = "./config.yaml"

// Overrides carries the externally supplied values for the certified and
// single-field profiles. An empty string means "not configured".
type Overrides struct {
	CertifiedFingerprint string `yaml:"certifiedFingerprint" json:"certifiedFingerprint"`
	CertifiedDevice      string `yaml:"certifiedDevice" json:"certifiedDevice"`
	CertifiedModel       string `yaml:"certifiedModel" json:"certifiedModel"`
	StockFingerprint     string `yaml:"stockFingerprint" json:"stockFingerprint"`
	NetflixSpoofModel    string `yaml:"netflixSpoofModel" json:"netflixSpoofModel"`
}

// CertifiedIncomplete reports a certified fingerprint configured without a
// device codename or model. Those fields are then written as empty strings.
func (o Overrides) CertifiedIncomplete() bool {
	return o.CertifiedFingerprint != "" && (o.CertifiedDevice == "" || o.CertifiedModel == "")
}

// Matching extends the built-in match sets. Entries are added to the
// defaults, never replacing them.
type Matching struct {
	ExemptPackages     []string `yaml:"exemptPackages" json:"exemptPackages,omitempty"`
	ExtraPackages      []string `yaml:"extraPackages" json:"extraPackages,omitempty"`
	FeatureBlacklist   []string `yaml:"featureBlacklist" json:"featureBlacklist,omitempty"`
	AttestationMarkers []string `yaml:"attestationMarkers" json:"attestationMarkers,omitempty"`
}

type Server struct {
	ListenAddress string `yaml:"listenAddress" json:"listenAddress"`
	TLSCertFile   string `yaml:"tlsCertFile" json:"tlsCertFile,omitempty"`
	TLSKeyFile    string `yaml:"tlsKeyFile" json:"tlsKeyFile,omitempty"`
	// AllowedOrigins enables CORS for the listed origins. Empty disables CORS.
	AllowedOrigins []string  `yaml:"allowedOrigins" json:"allowedOrigins,omitempty"`
	RateLimit      RateLimit `yaml:"rateLimit" json:"rateLimit"`
}

// RateLimit is a per-client token bucket. A negative rate disables limiting.
type RateLimit struct {
	Rate  float64 `yaml:"rate" json:"rate"`
	Burst int     `yaml:"burst" json:"burst"`
}

type KafkaSASL struct {
	Mechanism string `yaml:"mechanism" json:"mechanism"`
	Username  string `yaml:"username" json:"username"`
	// PasswordEnv names the environment variable holding the password so the
	// secret never lives in the file.
	PasswordEnv string `yaml:"passwordEnv" json:"passwordEnv"`
}

type KafkaTLS struct {
	Enabled            bool   `yaml:"enabled" json:"enabled"`
	CAFile             string `yaml:"caFile" json:"caFile,omitempty"`
	CertFile           string `yaml:"certFile" json:"certFile,omitempty"`
	KeyFile            string `yaml:"keyFile" json:"keyFile,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify" json:"insecureSkipVerify,omitempty"`
}

type Kafka struct {
	Brokers          []string   `yaml:"brokers" json:"brokers"`
	Topic            string     `yaml:"topic" json:"topic"`
	CompressionCodec string     `yaml:"compression" json:"compression,omitempty"`
	BatchSize        int        `yaml:"batchSize" json:"batchSize,omitempty"`
	Async            bool       `yaml:"async" json:"async,omitempty"`
	TLS              *KafkaTLS  `yaml:"tls" json:"tls,omitempty"`
	SASL             *KafkaSASL `yaml:"sasl" json:"sasl,omitempty"`
}

type Queue struct {
	Size    int `yaml:"size" json:"size"`
	Workers int `yaml:"workers" json:"workers"`
}

type Audit struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Log     bool   `yaml:"log" json:"log"`
	Kafka   *Kafka `yaml:"kafka" json:"kafka,omitempty"`
	Queue   Queue  `yaml:"queue" json:"queue"`
}

type Config struct {
	Overrides Overrides `yaml:"overrides" json:"overrides"`
	Matching  Matching  `yaml:"matching" json:"matching"`
	Server    Server    `yaml:"server" json:"server"`
	Audit     Audit     `yaml:"audit" json:"audit"`
}

// Load loads the configuration from a file path.
// If configPath is empty, PROPS_CONFIG_PATH is consulted and then DefaultPath.
func Load(configPath ...string) (Config, error) {
	path := ResolvePath(configPath...)

	var config Config
	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open props config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return config, nil
}

// LoadOrDefault behaves like Load but returns an empty config when the file
// does not exist. Any other error is returned.
func LoadOrDefault(configPath ...string) (Config, error) {
	cfg, err := Load(configPath...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// ResolvePath picks the explicit path, then PROPS_CONFIG_PATH, then DefaultPath.
func ResolvePath(configPath ...string) string {
	if len(configPath) > 0 && configPath[0] != "" {
		return configPath[0]
	}
	return getEnvString("PROPS_CONFIG_PATH", DefaultPath)
}

// ApplyEnv overlays PROPS_* environment variables on the override values.
func (c *Config) ApplyEnv() {
	c.Overrides.CertifiedFingerprint = getEnvString("PROPS_CERTIFIED_FINGERPRINT", c.Overrides.CertifiedFingerprint)
	c.Overrides.CertifiedDevice = getEnvString("PROPS_CERTIFIED_DEVICE", c.Overrides.CertifiedDevice)
	c.Overrides.CertifiedModel = getEnvString("PROPS_CERTIFIED_MODEL", c.Overrides.CertifiedModel)
	c.Overrides.StockFingerprint = getEnvString("PROPS_STOCK_FINGERPRINT", c.Overrides.StockFingerprint)
	c.Overrides.NetflixSpoofModel = getEnvString("PROPS_NETFLIX_SPOOF_MODEL", c.Overrides.NetflixSpoofModel)
	c.Server.ListenAddress = getEnvString("PROPS_LISTEN_ADDRESS", c.Server.ListenAddress)
	c.Audit.Enabled = getEnvBool("PROPS_AUDIT_ENABLED", c.Audit.Enabled)
}

// Defaults fills unset values.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Server.RateLimit.Rate == 0 {
		c.Server.RateLimit.Rate = 20
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 50
	}
	if c.Audit.Queue.Size <= 0 {
		c.Audit.Queue.Size = 1000
	}
	if c.Audit.Queue.Workers <= 0 {
		c.Audit.Queue.Workers = 1
	}
	if c.Audit.Enabled && c.Audit.Kafka == nil {
		c.Audit.Log = true
	}
	if c.Audit.Kafka != nil && c.Audit.Kafka.CompressionCodec == "" {
		c.Audit.Kafka.CompressionCodec = "snappy"
	}
}

// Validate checks the parts of the configuration that cannot be defaulted.
func (c *Config) Validate() error {
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("server.tlsCertFile and server.tlsKeyFile must be set together")
	}
	if c.Server.RateLimit.Burst < 0 {
		return errors.New("server.rateLimit.burst must not be negative")
	}
	if !c.Audit.Enabled || c.Audit.Kafka == nil {
		return nil
	}
	k := c.Audit.Kafka
	if len(k.Brokers) == 0 {
		return errors.New("audit.kafka.brokers requires at least one broker")
	}
	if k.Topic == "" {
		return errors.New("audit.kafka.topic is required")
	}
	switch k.CompressionCodec {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("audit.kafka.compression %q is not supported", k.CompressionCodec)
	}
	if k.SASL != nil {
		switch k.SASL.Mechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return fmt.Errorf("audit.kafka.sasl.mechanism %q is not supported", k.SASL.Mechanism)
		}
	}
	return nil
}

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
