package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.HTTP.Addr)
	}
	if !cfg.Store.AutoCreateTables {
		t.Error("expected auto_create_tables default true")
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("expected max_attempts 3, got %d", cfg.Worker.MaxAttempts)
	}
	if cfg.Worker.ErrorBackoff != 5*time.Second {
		t.Errorf("expected error_backoff 5s, got %v", cfg.Worker.ErrorBackoff)
	}
	if len(cfg.Storage.Tables) != 3 || cfg.Storage.Tables[2] != "Orders" {
		t.Errorf("unexpected default tables %v", cfg.Storage.Tables)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
app:
  name: shop
  log_level: debug
store:
  table_prefix: dev-
worker:
  max_attempts: 5
  error_backoff: 2s
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STOREFRONT_HTTP_ADDR", ":9090")
	t.Setenv("STOREFRONT_STORE_TABLE_PREFIX", "prod-")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "shop" {
		t.Errorf("expected app.name from file, got %q", cfg.App.Name)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected http.addr from env, got %q", cfg.HTTP.Addr)
	}
	if cfg.Store.TablePrefix != "prod-" {
		t.Errorf("expected env to override file, got %q", cfg.Store.TablePrefix)
	}
	if cfg.Worker.MaxAttempts != 5 || cfg.Worker.ErrorBackoff != 2*time.Second {
		t.Errorf("unexpected worker config %+v", cfg.Worker)
	}
	if got := cfg.StoreConfig().TablePrefix; got != "prod-" {
		t.Errorf("expected StoreConfig to carry prefix, got %q", got)
	}
	if got := cfg.WorkerConfig().Queue; got != "orders" {
		t.Errorf("expected worker queue orders, got %q", got)
	}
}

func TestAPIConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	got := cfg.APIConfig()
	if got.OrdersQueue != "orders" {
		t.Errorf("expected orders queue, got %q", got.OrdersQueue)
	}
	if got.MaxUploadBytes != 32<<20 {
		t.Errorf("expected 32 MiB upload limit, got %d", got.MaxUploadBytes)
	}
	if got.Resources.Share != "contracts" || got.Resources.ShareDirectory != "payments" {
		t.Errorf("unexpected share %+v", got.Resources)
	}
	if len(got.Resources.Queues) != 3 {
		t.Errorf("expected 3 queues, got %v", got.Resources.Queues)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no app name", func(c *Config) { c.App.Name = "" }},
		{"bad log level", func(c *Config) { c.App.LogLevel = "loud" }},
		{"no http addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"no orders queue", func(c *Config) { c.Queue.Orders = "" }},
		{"no worker table", func(c *Config) { c.Worker.Table = "" }},
		{"zero attempts", func(c *Config) { c.Worker.MaxAttempts = 0 }},
		{"directory without share", func(c *Config) { c.Storage.Share = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(AppConfig{Name: "shop", Env: "test", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "orderId", "O1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "shown" || line["app"] != "shop" || line["orderId"] != "O1" {
		t.Errorf("unexpected log line %v", line)
	}
}
