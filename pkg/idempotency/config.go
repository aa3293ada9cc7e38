package idempotency

import (
	"time"

	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/metrics"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long a key stays locked by a running request
	DefaultLockTimeout = 30 * time.Second

	// DefaultRetentionPeriod is how long completed keys are replayed
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response body that is cached (1MB)
	DefaultMaxResponseSize = 1 << 20
)

// Config holds configuration for the idempotency middleware
type Config struct {
	Store KeyStore

	// RequireKey rejects mutating requests without an Idempotency-Key header
	RequireKey bool

	MaxKeyLength    int
	RetentionPeriod time.Duration
	MaxResponseSize int

	// Metrics may be nil
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// DefaultConfig returns an optional-key configuration over store
func DefaultConfig(store KeyStore, logger *logging.Logger) *Config {
	return &Config{
		Store:           store,
		MaxKeyLength:    DefaultMaxKeyLength,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
		Logger:          logger,
	}
}
