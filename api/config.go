package api

import "strings"

// Config holds configuration for the Server.
type Config struct {
	// OrdersQueue receives bodies posted to /orders/enqueue.
	// Default: "orders"
	OrdersQueue string

	// MaxUploadBytes bounds multipart uploads and message bodies.
	// Default: 32 MiB
	MaxUploadBytes int64

	// Resources are created by /storage/initialize and probed by
	// /storage/health.
	Resources Resources
}

// Resources names the storage provisioned for the storefront.
type Resources struct {
	Tables         []string
	Containers     []string
	Queues         []string
	Share          string
	ShareDirectory string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		OrdersQueue:    "orders",
		MaxUploadBytes: 32 << 20,
		Resources: Resources{
			Tables:         []string{"Customers", "Products", "Orders"},
			Containers:     []string{"product-images", "payment-proofs"},
			Queues:         []string{"orders", "order-notifications", "stock-updates"},
			Share:          "contracts",
			ShareDirectory: "payments",
		},
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	c.OrdersQueue = strings.TrimSpace(c.OrdersQueue)
	if c.OrdersQueue == "" {
		c.OrdersQueue = "orders"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 32 << 20
	}
}
