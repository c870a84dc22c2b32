package store

import "strings"

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to every logical table name (e.g. "dev-" turns
	// "Orders" into "dev-Orders"). Default: "" (no prefix).
	TablePrefix string

	// AutoCreateTables creates a missing table on the first insert into it
	// and retries the insert once. Reads never create tables.
	// Default: true
	AutoCreateTables bool

	// TableWaitSeconds bounds how long EnsureTable waits for a new table to
	// become active.
	// Default: 60
	// Max: 600
	TableWaitSeconds int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AutoCreateTables: true,
		TableWaitSeconds: 60,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	c.TablePrefix = strings.TrimSpace(c.TablePrefix)
	if c.TableWaitSeconds < 1 {
		c.TableWaitSeconds = 60
	}
	if c.TableWaitSeconds > 600 {
		c.TableWaitSeconds = 600
	}
}
