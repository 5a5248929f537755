package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config captures runtime configuration for the checkout API.
type Config struct {
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Kafka       KafkaConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
	Checkout    CheckoutConfig
	Gateway     GatewayConfig
	Idempotency IdempotencyConfig
}

type HTTPConfig struct {
	Port          int    `envconfig:"API_HTTP_PORT" default:"8080"`
	MetricsPath   string `envconfig:"API_METRICS_PATH" default:"/metrics"`
	ShutdownGrace int    `envconfig:"API_SHUTDOWN_GRACE_SECONDS" default:"15"`
}

func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownGrace) * time.Second
}

// DatabaseConfig is built from DATABASE_URL, or from the DB_* parts when it is unset.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD" default:"postgres"`
	Name            string        `envconfig:"DB_NAME" default:"checkout"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"5m"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"true"`
	MigrationsPath  string        `envconfig:"MIGRATIONS_PATH" default:"migrations"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver          string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	CatalogSeedFile string `envconfig:"CATALOG_SEED_FILE"`
}

type KafkaConfig struct {
	// Brokers is a comma separated list. Empty disables publishing.
	Brokers     string `envconfig:"KAFKA_BROKERS"`
	TopicPrefix string `envconfig:"KAFKA_TOPIC_PREFIX" default:"checkout"`
}

type TelemetryConfig struct {
	LogLevel         string  `envconfig:"LOG_LEVEL" default:"info"`
	OTelEndpoint     string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	EnableTracing    bool    `envconfig:"OTEL_ENABLE_TRACING" default:"true"`
	EnableMetrics    bool    `envconfig:"OTEL_ENABLE_METRICS" default:"true"`
	EnablePrometheus bool    `envconfig:"OTEL_ENABLE_PROMETHEUS" default:"true"`
	SampleRate       float64 `envconfig:"OTEL_SAMPLE_RATE" default:"1.0"`
}

type ServiceConfig struct {
	Name        string `envconfig:"API_SERVICE_NAME" default:"checkout-api"`
	Version     string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// CheckoutConfig holds pricing inputs. Amounts are minor units.
type CheckoutConfig struct {
	TaxRate               decimal.Decimal `envconfig:"CHECKOUT_TAX_RATE" default:"0.05"`
	ShippingFee           int64           `envconfig:"CHECKOUT_SHIPPING_FEE_MINOR" default:"0"`
	FreeShippingThreshold int64           `envconfig:"CHECKOUT_FREE_SHIPPING_THRESHOLD_MINOR" default:"0"`
	Currency              string          `envconfig:"CHECKOUT_CURRENCY" default:"INR"`
	CompensationTimeout   time.Duration   `envconfig:"CHECKOUT_COMPENSATION_TIMEOUT" default:"10s"`
}

type GatewayConfig struct {
	BaseURL   string        `envconfig:"GATEWAY_BASE_URL" default:"https://api.razorpay.com"`
	KeyID     string        `envconfig:"GATEWAY_KEY_ID"`
	KeySecret string        `envconfig:"GATEWAY_KEY_SECRET"`
	Timeout   time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
}

type IdempotencyConfig struct {
	TTL           time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	PurgeInterval time.Duration `envconfig:"IDEMPOTENCY_PURGE_INTERVAL" default:"1h"`
}

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	var cfg Config

	sections := []struct {
		name   string
		target any
	}{
		{"HTTP", &cfg.HTTP},
		{"database", &cfg.Database},
		{"storage", &cfg.Storage},
		{"kafka", &cfg.Kafka},
		{"telemetry", &cfg.Telemetry},
		{"service", &cfg.Service},
		{"checkout", &cfg.Checkout},
		{"gateway", &cfg.Gateway},
		{"idempotency", &cfg.Idempotency},
	}
	for _, section := range sections {
		if err := envconfig.Process("", section.target); err != nil {
			return nil, fmt.Errorf("loading %s config: %w", section.name, err)
		}
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.buildURL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver))
	}
	if c.Checkout.TaxRate.IsNegative() || c.Checkout.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("CHECKOUT_TAX_RATE must be between 0 and 1"))
	}
	if c.Checkout.ShippingFee < 0 {
		errs = append(errs, errors.New("CHECKOUT_SHIPPING_FEE_MINOR must not be negative"))
	}
	if c.Checkout.FreeShippingThreshold < 0 {
		errs = append(errs, errors.New("CHECKOUT_FREE_SHIPPING_THRESHOLD_MINOR must not be negative"))
	}
	if strings.TrimSpace(c.Checkout.Currency) == "" {
		errs = append(errs, errors.New("CHECKOUT_CURRENCY is required"))
	}
	if c.Gateway.KeySecret == "" {
		errs = append(errs, errors.New("GATEWAY_KEY_SECRET is required"))
	}
	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}

	return errors.Join(errs...)
}

func (c DatabaseConfig) buildURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	return u.String()
}
