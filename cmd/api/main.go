package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dejobratic/checkout/internal/config"
	"github.com/dejobratic/checkout/internal/database"
	"github.com/dejobratic/checkout/internal/kafka"
	"github.com/dejobratic/checkout/internal/orders/adapters"
	"github.com/dejobratic/checkout/internal/orders/adapters/gateway"
	httpadapter "github.com/dejobratic/checkout/internal/orders/adapters/http"
	ordersapp "github.com/dejobratic/checkout/internal/orders/app"
	ordersmetrics "github.com/dejobratic/checkout/internal/orders/metrics"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/orders/pricing"
	"github.com/dejobratic/checkout/internal/telemetry"
)

const meterName = "github.com/dejobratic/checkout"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, err := telemetry.ParseLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		slog.Warn("falling back to info logging", "error", err)
	}
	logger := telemetry.NewLogger(os.Stdout, level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("checkout api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:      cfg.Service.Name,
		ServiceVersion:   cfg.Service.Version,
		Environment:      cfg.Service.Environment,
		OTLPEndpoint:     cfg.Telemetry.OTelEndpoint,
		EnableTracing:    cfg.Telemetry.EnableTracing,
		EnableMetrics:    cfg.Telemetry.EnableMetrics,
		EnablePrometheus: cfg.Telemetry.EnablePrometheus,
		SampleRate:       cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush telemetry", "error", err)
		}
	}()

	meter := tel.Meter(meterName)
	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return err
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return err
	}
	eventMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		return err
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	events, closeEvents, err := openEventBus(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	}, &http.Client{
		Timeout:   cfg.Gateway.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return fmt.Errorf("create gateway client: %w", err)
	}

	engine, err := pricing.NewEngine(pricing.Policy{
		TaxRate:               cfg.Checkout.TaxRate,
		ShippingFee:           cfg.Checkout.ShippingFee,
		FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
	})
	if err != nil {
		return err
	}

	service, err := ordersapp.NewService(ordersapp.Dependencies{
		Repository:          adapters.NewObservableRepository(store.orders, dbMetrics),
		Catalog:             store.catalog,
		Ledger:              adapters.NewObservableLedger(store.ledger, orderMetrics),
		Gateway:             gatewayClient,
		Events:              adapters.NewObservableEventBus(events, eventMetrics),
		Idempotency:         store.idempotency,
		Pricing:             engine,
		Logger:              logger,
		Metrics:             orderMetrics,
		Currency:            cfg.Checkout.Currency,
		CompensationTimeout: cfg.Checkout.CompensationTimeout,
	})
	if err != nil {
		return fmt.Errorf("create checkout service: %w", err)
	}

	var handlerOpts []httpadapter.Option
	if store.ready != nil {
		handlerOpts = append(handlerOpts, httpadapter.WithReadinessCheck(store.ready))
	}

	mux := http.NewServeMux()
	httpadapter.NewHandler(service, logger, handlerOpts...).Register(mux)
	if metricsHandler := tel.MetricsHandler(); metricsHandler != nil {
		mux.Handle("GET "+cfg.HTTP.MetricsPath, metricsHandler)
	}

	var handler http.Handler = httpadapter.WithMetrics(mux, httpMetrics)
	handler = httpadapter.WithRequestLogging(handler, logger)
	handler = httpadapter.WithRecovery(handler, logger)
	handler = otelhttp.NewHandler(handler, "checkout-api")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if store.purge != nil {
		go purgeIdempotencyKeys(ctx, store.purge, cfg.Idempotency.PurgeInterval, logger)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}

	service.Wait()
	logger.Info("order notifications drained")
	return nil
}

// openEventBus publishes to Kafka when brokers are configured and only logs otherwise.
func openEventBus(cfg config.KafkaConfig, logger *slog.Logger) (ports.EventBus, func(), error) {
	brokers := kafka.ParseBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		logger.Info("kafka brokers not configured, order events will only be logged")
		return kafka.NewNoopEventBus(logger), func() {}, nil
	}

	publisher, err := kafka.NewPublisher(kafka.NewWriter(brokers), cfg.TopicPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close kafka publisher", "error", err)
		}
	}
	return publisher, closeFn, nil
}

func purgeIdempotencyKeys(ctx context.Context, purge func(context.Context) (int64, error), interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := purge(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to purge idempotency keys", "error", err)
				continue
			}
			if removed > 0 {
				logger.InfoContext(ctx, "purged expired idempotency keys", "count", removed)
			}
		}
	}
}
