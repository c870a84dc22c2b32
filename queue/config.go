package queue

import "strings"

// Config holds configuration for the Queue.
type Config struct {
	// QueuePrefix is prepended to every logical queue name.
	// Default: "" (no prefix).
	QueuePrefix string

	// AutoCreate creates a missing queue on first use.
	// Default: true
	AutoCreate bool

	// WaitTimeSeconds is the long-poll duration of Receive.
	// Default: 10
	// Max: 20
	WaitTimeSeconds int32

	// VisibilityTimeout hides a received message from other consumers
	// until it is deleted or the timeout elapses.
	// Default: 30
	VisibilityTimeout int32
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AutoCreate:        true,
		WaitTimeSeconds:   10,
		VisibilityTimeout: 30,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	c.QueuePrefix = strings.TrimSpace(c.QueuePrefix)
	if c.WaitTimeSeconds < 0 {
		c.WaitTimeSeconds = 0
	}
	if c.WaitTimeSeconds > 20 {
		c.WaitTimeSeconds = 20
	}
	if c.VisibilityTimeout < 1 {
		c.VisibilityTimeout = 30
	}
}
