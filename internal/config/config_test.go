package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GATEWAY_KEY_SECRET", "secret")
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.HTTP.Port != 8080 || cfg.HTTP.MetricsPath != "/metrics" || cfg.HTTP.ShutdownTimeout() != 15*time.Second {
			t.Fatalf("unexpected HTTP config %+v", cfg.HTTP)
		}
		if !cfg.Checkout.TaxRate.Equal(decimal.RequireFromString("0.05")) || cfg.Checkout.Currency != "INR" {
			t.Fatalf("unexpected checkout config %+v", cfg.Checkout)
		}
		if cfg.Storage.Driver != StoragePostgres || !cfg.Database.AutoMigrate {
			t.Fatalf("unexpected storage config %+v %+v", cfg.Storage, cfg.Database)
		}
		if cfg.Gateway.Timeout != 10*time.Second || cfg.Idempotency.TTL != 24*time.Hour {
			t.Fatalf("unexpected durations %+v %+v", cfg.Gateway, cfg.Idempotency)
		}
	})

	t.Run("builds the database url from parts", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_HOST", "db")
		t.Setenv("DB_PASSWORD", "p@ss")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		want := "postgres://postgres:p%40ss@db:5432/checkout?sslmode=disable"
		if cfg.Database.URL != want {
			t.Fatalf("expected %s, got %s", want, cfg.Database.URL)
		}
	})

	t.Run("prefers DATABASE_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DATABASE_URL", "postgres://elsewhere/db")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if cfg.Database.URL != "postgres://elsewhere/db" {
			t.Fatalf("unexpected url %s", cfg.Database.URL)
		}
	})

	t.Run("reads overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("API_HTTP_PORT", "9090")
		t.Setenv("CHECKOUT_TAX_RATE", "0.18")
		t.Setenv("CHECKOUT_SHIPPING_FEE_MINOR", "4900")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		t.Setenv("STORAGE_DRIVER", "memory")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if cfg.HTTP.Port != 9090 || cfg.Checkout.ShippingFee != 4900 || cfg.Storage.Driver != StorageMemory {
			t.Fatalf("overrides not applied: %+v", cfg)
		}
		if !cfg.Checkout.TaxRate.Equal(decimal.RequireFromString("0.18")) {
			t.Fatalf("unexpected tax rate %s", cfg.Checkout.TaxRate)
		}
		if cfg.Kafka.Brokers != "k1:9092,k2:9092" {
			t.Fatalf("unexpected brokers %q", cfg.Kafka.Brokers)
		}
	})

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "rejects a malformed port", env: map[string]string{"API_HTTP_PORT": "eighty"}, want: "HTTP"},
		{name: "rejects a tax rate above one", env: map[string]string{"CHECKOUT_TAX_RATE": "1.5"}, want: "CHECKOUT_TAX_RATE"},
		{name: "rejects a negative shipping fee", env: map[string]string{"CHECKOUT_SHIPPING_FEE_MINOR": "-1"}, want: "CHECKOUT_SHIPPING_FEE_MINOR"},
		{name: "rejects an unknown storage driver", env: map[string]string{"STORAGE_DRIVER": "mongo"}, want: "STORAGE_DRIVER"},
		{name: "requires the gateway secret", env: map[string]string{"GATEWAY_KEY_SECRET": ""}, want: "GATEWAY_KEY_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
