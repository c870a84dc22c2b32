package worker

import (
	"strings"
	"time"
)

// Config holds configuration for the order Handler and Poller.
type Config struct {
	// Table is the logical table orders are written to.
	// Default: "Orders"
	Table string

	// Queue is the logical queue the Poller consumes.
	// Default: "orders"
	Queue string

	// MaxAttempts bounds the read-modify-write loop of a status update
	// that keeps losing to concurrent writers.
	// Default: 3
	// Max: 10
	MaxAttempts int

	// BatchSize is the number of messages the Poller receives per call.
	// Default: 10
	// Max: 10
	BatchSize int

	// ErrorBackoff is how long the Poller waits after a failed receive.
	// Default: 5s
	ErrorBackoff time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:        "Orders",
		Queue:        "orders",
		MaxAttempts:  3,
		BatchSize:    10,
		ErrorBackoff: 5 * time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	c.Table = strings.TrimSpace(c.Table)
	if c.Table == "" {
		c.Table = "Orders"
	}
	c.Queue = strings.TrimSpace(c.Queue)
	if c.Queue == "" {
		c.Queue = "orders"
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.MaxAttempts > 10 {
		c.MaxAttempts = 10
	}
	if c.BatchSize < 1 || c.BatchSize > 10 {
		c.BatchSize = 10
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
}
