// Package config loads the sales service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ServiceName identifies the service in logs, metrics and traces
const ServiceName = "sales-service"

// Config holds the sales service configuration
type Config struct {
	ServerAddr      string        `env:"SERVER_ADDR" yaml:"serverAddr"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdownTimeout"`
	LogLevel        string        `env:"LOG_LEVEL" yaml:"logLevel"`
	Environment     string        `env:"ENVIRONMENT" yaml:"environment"`
	Version         string        `env:"VERSION" yaml:"version"`

	Kafka KafkaConfig `yaml:"kafka"`

	TracingEnabled    bool    `env:"TRACING_ENABLED" yaml:"tracingEnabled"`
	OTLPEndpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otlpEndpoint"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" yaml:"tracingSampleRate"`

	OpenAPIValidation     bool `env:"OPENAPI_VALIDATION" yaml:"openapiValidation"`
	EventSchemaValidation bool `env:"EVENT_SCHEMA_VALIDATION" yaml:"eventSchemaValidation"`

	MetricsSummaryInterval time.Duration `env:"METRICS_SUMMARY_INTERVAL" yaml:"metricsSummaryInterval"`
	MetricsAlertP99        time.Duration `env:"METRICS_ALERT_P99" yaml:"metricsAlertP99"`

	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

// IdempotencyConfig controls Idempotency-Key handling and consumer deduplication
type IdempotencyConfig struct {
	RequireKey      bool          `env:"IDEMPOTENCY_REQUIRED" yaml:"requireKey"`
	TTL             time.Duration `env:"IDEMPOTENCY_TTL" yaml:"ttl"`
	CleanupInterval time.Duration `env:"IDEMPOTENCY_CLEANUP_INTERVAL" yaml:"cleanupInterval"`
}

// KafkaConfig holds the event bus settings
type KafkaConfig struct {
	Enabled         bool     `env:"KAFKA_ENABLED" yaml:"enabled"`
	Brokers         []string `env:"KAFKA_BROKERS" envSeparator:"," yaml:"brokers"`
	Topic           string   `env:"KAFKA_TOPIC" yaml:"topic"`
	ConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" yaml:"consumerGroup"`
	ConsumerEnabled bool     `env:"CONSUMER_ENABLED" yaml:"consumerEnabled"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		ServerAddr:      ":8080",
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		Environment:     "development",
		Version:         "dev",
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			Topic:         "sales.events",
			ConsumerGroup: ServiceName,
		},
		OTLPEndpoint:           "localhost:4317",
		TracingSampleRate:      1.0,
		OpenAPIValidation:      true,
		EventSchemaValidation:  true,
		MetricsSummaryInterval: 60 * time.Second,
		MetricsAlertP99:        time.Second,
		Idempotency: IdempotencyConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Load builds the configuration from the defaults, the YAML file named by
// CONFIG_FILE when set, and finally the environment
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"), nil)
}

// LoadFrom is Load with an explicit file and environment. A nil environment
// reads the process environment.
func LoadFrom(path string, environment map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("SERVER_ADDR must not be empty"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must list at least one broker when Kafka is enabled"))
	}
	if c.Kafka.ConsumerEnabled && !c.Kafka.Enabled {
		errs = append(errs, errors.New("CONSUMER_ENABLED requires KAFKA_ENABLED"))
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE must be within [0,1], got %v", c.TracingSampleRate))
	}
	if c.MetricsSummaryInterval <= 0 {
		errs = append(errs, errors.New("METRICS_SUMMARY_INTERVAL must be positive"))
	}
	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
