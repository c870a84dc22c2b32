// Package config loads process configuration from an optional YAML file and
// STOREFRONT_* environment variables.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/viper"

	"github.com/jacentio/storefront/api"
	"github.com/jacentio/storefront/blob"
	"github.com/jacentio/storefront/queue"
	"github.com/jacentio/storefront/store"
	"github.com/jacentio/storefront/worker"
)

// EnvPrefix namespaces environment overrides, e.g. STOREFRONT_HTTP_ADDR.
const EnvPrefix = "STOREFRONT"

// Config is the full process configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	AWS     AWSConfig     `mapstructure:"aws"`
	Store   StoreConfig   `mapstructure:"store"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Storage StorageConfig `mapstructure:"storage"`
}

// AppConfig identifies the process.
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// AWSConfig selects the region and, for local emulators, the endpoint.
type AWSConfig struct {
	Region      string `mapstructure:"region"`
	Profile     string `mapstructure:"profile"`
	Endpoint    string `mapstructure:"endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
}

// StoreConfig mirrors store.Config.
type StoreConfig struct {
	TablePrefix      string `mapstructure:"table_prefix"`
	AutoCreateTables bool   `mapstructure:"auto_create_tables"`
	TableWaitSeconds int    `mapstructure:"table_wait_seconds"`
}

// QueueConfig mirrors queue.Config plus the orders queue name.
type QueueConfig struct {
	Prefix            string `mapstructure:"prefix"`
	Orders            string `mapstructure:"orders"`
	AutoCreate        bool   `mapstructure:"auto_create"`
	WaitTimeSeconds   int32  `mapstructure:"wait_time_seconds"`
	VisibilityTimeout int32  `mapstructure:"visibility_timeout"`
}

// BlobConfig mirrors blob.Config.
type BlobConfig struct {
	BucketPrefix  string `mapstructure:"bucket_prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	AutoCreate    bool   `mapstructure:"auto_create"`
}

// WorkerConfig mirrors worker.Config.
type WorkerConfig struct {
	Table        string        `mapstructure:"table"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BatchSize    int           `mapstructure:"batch_size"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

// StorageConfig lists the resources created by storage initialization.
type StorageConfig struct {
	Tables         []string `mapstructure:"tables"`
	Containers     []string `mapstructure:"containers"`
	Queues         []string `mapstructure:"queues"`
	Share          string   `mapstructure:"share"`
	ShareDirectory string   `mapstructure:"share_directory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_upload_bytes", 32<<20)

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.s3_path_style", false)

	v.SetDefault("store.table_prefix", "")
	v.SetDefault("store.auto_create_tables", true)
	v.SetDefault("store.table_wait_seconds", 60)

	v.SetDefault("queue.prefix", "")
	v.SetDefault("queue.orders", "orders")
	v.SetDefault("queue.auto_create", true)
	v.SetDefault("queue.wait_time_seconds", 10)
	v.SetDefault("queue.visibility_timeout", 30)

	v.SetDefault("blob.bucket_prefix", "")
	v.SetDefault("blob.public_base_url", "")
	v.SetDefault("blob.auto_create", true)

	v.SetDefault("worker.table", "Orders")
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.error_backoff", 5*time.Second)

	v.SetDefault("storage.tables", []string{"Customers", "Products", "Orders"})
	v.SetDefault("storage.containers", []string{"product-images", "payment-proofs"})
	v.SetDefault("storage.queues", []string{"orders", "order-notifications", "stock-updates"})
	v.SetDefault("storage.share", "contracts")
	v.SetDefault("storage.share_directory", "payments")
}

// Load reads configuration. configPath may be empty, in which case only
// defaults and environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if _, err := ParseLevel(c.App.LogLevel); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Queue.Orders == "" {
		return fmt.Errorf("queue.orders is required")
	}
	if c.Worker.Table == "" {
		return fmt.Errorf("worker.table is required")
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("worker.max_attempts must be at least 1")
	}
	if c.Storage.ShareDirectory != "" && c.Storage.Share == "" {
		return fmt.Errorf("storage.share is required when storage.share_directory is set")
	}
	return nil
}

// StoreConfig converts to the store package's Config.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		TablePrefix:      c.Store.TablePrefix,
		AutoCreateTables: c.Store.AutoCreateTables,
		TableWaitSeconds: c.Store.TableWaitSeconds,
	}
}

// QueueConfig converts to the queue package's Config.
func (c *Config) QueueConfig() queue.Config {
	return queue.Config{
		QueuePrefix:       c.Queue.Prefix,
		AutoCreate:        c.Queue.AutoCreate,
		WaitTimeSeconds:   c.Queue.WaitTimeSeconds,
		VisibilityTimeout: c.Queue.VisibilityTimeout,
	}
}

// BlobConfig converts to the blob package's Config.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		BucketPrefix:  c.Blob.BucketPrefix,
		Region:        c.AWS.Region,
		PublicBaseURL: c.Blob.PublicBaseURL,
		AutoCreate:    c.Blob.AutoCreate,
	}
}

// WorkerConfig converts to the worker package's Config.
func (c *Config) WorkerConfig() worker.Config {
	return worker.Config{
		Table:        c.Worker.Table,
		Queue:        c.Queue.Orders,
		MaxAttempts:  c.Worker.MaxAttempts,
		BatchSize:    c.Worker.BatchSize,
		ErrorBackoff: c.Worker.ErrorBackoff,
	}
}

// APIConfig converts to the api package's Config.
func (c *Config) APIConfig() api.Config {
	return api.Config{
		OrdersQueue:    c.Queue.Orders,
		MaxUploadBytes: c.HTTP.MaxUploadBytes,
		Resources: api.Resources{
			Tables:         c.Storage.Tables,
			Containers:     c.Storage.Containers,
			Queues:         c.Storage.Queues,
			Share:          c.Storage.Share,
			ShareDirectory: c.Storage.ShareDirectory,
		},
	}
}

// LoadAWS resolves credentials and region through the SDK's default chain.
// A non-empty endpoint points every client at a local emulator.
func LoadAWS(ctx context.Context, c AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(c.Endpoint))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("app.log_level: %w", err)
	}
	return l, nil
}

// NewLogger builds the process logger: JSON lines at the configured level,
// tagged with the app name and environment.
func NewLogger(app AppConfig, w io.Writer) *slog.Logger {
	level, err := ParseLevel(app.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("app", app.Name, "env", app.Env)
}
