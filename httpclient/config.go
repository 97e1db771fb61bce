package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/mediaflow/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to request paths that are not absolute URLs.
	BaseURL string
	// Timeout bounds one attempt. Defaults to 30s.
	Timeout time.Duration
	// Headers are sent with every request.
	Headers map[string]string
	// Retry configures retries. Nil disables them.
	Retry *resilience.RetryConfig
	// CircuitBreaker guards every attempt. Nil disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return nil
}

// DefaultRetryConfig retries errors classified as retryable.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	return &cfg
}

// DefaultCircuitBreakerConfig returns the resilience defaults for name.
func DefaultCircuitBreakerConfig(name string) *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(name)
	return &cfg
}
