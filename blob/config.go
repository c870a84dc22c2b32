package blob

import "strings"

// Config holds configuration for the blob Store.
type Config struct {
	// BucketPrefix is prepended to every container name to form the bucket
	// name. Bucket names are global, so deployments usually set this.
	// Default: "" (no prefix).
	BucketPrefix string

	// Region is used as the bucket location constraint. Empty or us-east-1
	// sends no constraint.
	Region string

	// PublicBaseURL is the base of object URLs returned by Upload, for
	// example "https://cdn.example.com". Empty yields s3:// URLs.
	PublicBaseURL string

	// AutoCreate creates the bucket before uploads.
	// Default: true
	AutoCreate bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{AutoCreate: true}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	c.BucketPrefix = strings.ToLower(strings.TrimSpace(c.BucketPrefix))
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}
