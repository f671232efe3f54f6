package dbpool

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPoolName          = "FeedbackAppPool"
	DefaultMaxPoolSize       = 10
	DefaultMinIdle           = 5
	DefaultIdleTimeout       = 5 * time.Minute
	DefaultConnectionTimeout = 20 * time.Second
	DefaultHealthCheckPeriod = 30 * time.Second
)

// Config describes the target database and how many connections to keep.
type Config struct {
	URL      string
	Username string
	Password string
	Name     string

	// MaxPoolSize bounds the number of open physical connections.
	MaxPoolSize int32
	// MinIdle connections are opened at startup and kept warm.
	MinIdle int32
	// IdleTimeout closes idle connections above MinIdle.
	IdleTimeout time.Duration
	// ConnectionTimeout bounds how long Acquire waits.
	ConnectionTimeout time.Duration
	// HealthCheckPeriod is how often idle connections are reaped.
	HealthCheckPeriod time.Duration
}

// DefaultConfig returns the stock tuning with an empty URL.
func DefaultConfig() Config {
	return Config{
		Name:              DefaultPoolName,
		MaxPoolSize:       DefaultMaxPoolSize,
		MinIdle:           DefaultMinIdle,
		IdleTimeout:       DefaultIdleTimeout,
		ConnectionTimeout: DefaultConnectionTimeout,
		HealthCheckPeriod: DefaultHealthCheckPeriod,
	}
}

// withDefaults fills zero durations, sizes and name. MinIdle is left alone
// since zero is a meaningful value.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultPoolName
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = DefaultMaxPoolSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	return c
}

func (c Config) validate(needURL bool) error {
	if needURL && strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrConfiguration)
	}
	if c.MaxPoolSize < 1 {
		return fmt.Errorf("%w: max pool size must be positive, got %d", ErrConfiguration, c.MaxPoolSize)
	}
	if c.MinIdle < 0 || c.MinIdle > c.MaxPoolSize {
		return fmt.Errorf("%w: min idle %d outside [0, %d]", ErrConfiguration, c.MinIdle, c.MaxPoolSize)
	}
	return nil
}
