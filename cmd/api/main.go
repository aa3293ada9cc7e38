package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/marcelogudines/sales/internal/api"
	"github.com/marcelogudines/sales/internal/api/contract"
	"github.com/marcelogudines/sales/internal/application"
	"github.com/marcelogudines/sales/internal/config"
	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/internal/infrastructure/memory"
	"github.com/marcelogudines/sales/internal/infrastructure/messaging"
	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/contracts/asyncapi"
	"github.com/marcelogudines/sales/pkg/contracts/openapi"
	"github.com/marcelogudines/sales/pkg/idempotency"
	"github.com/marcelogudines/sales/pkg/kafka"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/metrics"
	"github.com/marcelogudines/sales/pkg/tracing"
)

type eventConsumer interface {
	messaging.Subscriber
	Start(ctx context.Context) error
	Close() error
}

type eventProducer interface {
	messaging.EventProducer
	Close() error
}

var loadConfig = config.Load

var initTracing = tracing.Initialize

var newEventProducer = func(cfg *kafka.Config, m *metrics.Metrics, logger *logging.Logger) eventProducer {
	return kafka.NewProductionProducer(cfg, m, logger)
}

var newEventConsumer = func(cfg *kafka.Config, m *metrics.Metrics, logger *logging.Logger) eventConsumer {
	return kafka.NewProductionConsumer(cfg, m, logger)
}

var startHTTPServer = func(srv *http.Server) error {
	return srv.ListenAndServe()
}

func main() {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(context.Background(), signalCh); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, signalCh <-chan os.Signal) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logConfig.Version = cfg.Version
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting sales-service API", "addr", cfg.ServerAddr)

	tracingConfig := tracing.DefaultConfig(config.ServiceName)
	tracingConfig.Enabled = cfg.TracingEnabled
	tracingConfig.OTLPEndpoint = cfg.OTLPEndpoint
	tracingConfig.SampleRate = cfg.TracingSampleRate
	tracingConfig.Environment = cfg.Environment
	tracingConfig.ServiceVersion = cfg.Version

	tracerProvider, err := initTracing(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", cfg.TracingEnabled, "endpoint", cfg.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	var apiValidator *openapi.Validator
	if cfg.OpenAPIValidation {
		apiValidator, err = openapi.NewValidatorFromBytes(contract.OpenAPI)
		if err != nil {
			return fmt.Errorf("failed to load OpenAPI contract: %w", err)
		}
	}

	var eventValidator *asyncapi.EventValidator
	if cfg.EventSchemaValidation {
		eventValidator, err = asyncapi.NewEventValidatorFromBytes(contract.AsyncAPI)
		if err != nil {
			return fmt.Errorf("failed to load AsyncAPI contract: %w", err)
		}
	}

	eventFactory := cloudevents.NewEventFactory("/" + config.ServiceName)
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = cfg.Kafka.Brokers
	kafkaConfig.ConsumerGroup = cfg.Kafka.ConsumerGroup

	var publisher domain.EventPublisher
	if cfg.Kafka.Enabled {
		producer := newEventProducer(kafkaConfig, m, logger)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Kafka producer")
			}
		}()
		publisher = messaging.NewKafkaPublisher(producer, eventFactory, eventValidator, cfg.Kafka.Topic, m, logger)
		logger.Info("Kafka publisher initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		publisher = messaging.NewLogPublisher(eventFactory, logger)
		logger.Info("Kafka disabled, sale events are logged only")
	}

	repo := memory.NewSaleRepository()
	service := application.NewSaleService(repo, publisher, domain.DefaultProviders(), m, logger)

	keyStore := idempotency.NewMemoryStore(idempotency.DefaultLockTimeout)
	idempotencyConfig := idempotency.DefaultConfig(keyStore, logger)
	idempotencyConfig.RequireKey = cfg.Idempotency.RequireKey
	idempotencyConfig.RetentionPeriod = cfg.Idempotency.TTL
	idempotencyConfig.Metrics = m
	messageStore := idempotency.NewMessageStore(cfg.Idempotency.TTL)

	var shuttingDown atomic.Bool
	router := api.NewRouter(api.RouterConfig{
		ServiceName: config.ServiceName,
		Service:     service,
		Logger:      logger,
		Metrics:     m,
		OpenAPI:     apiValidator,
		Idempotency: idempotencyConfig,
		Ready: func() error {
			if shuttingDown.Load() {
				return errors.New("shutting down")
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.ServerAddr)
		if err := startHTTPServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return metrics.RunSummary(gctx, m.Window(), metrics.SummaryConfig{
			Interval:       cfg.MetricsSummaryInterval,
			AlertThreshold: cfg.MetricsAlertP99,
		}, logger.WithComponent("metrics-summary"))
	})

	g.Go(func() error {
		return idempotency.RunCleanup(gctx, cfg.Idempotency.CleanupInterval,
			logger.WithComponent("idempotency-cleanup"), keyStore, messageStore)
	})

	if cfg.Kafka.ConsumerEnabled {
		consumer := newEventConsumer(kafkaConfig, m, logger)
		messaging.NewSaleEventLogger(logger).
			Deduplicate(&idempotency.ConsumerConfig{
				Topic:         cfg.Kafka.Topic,
				ConsumerGroup: cfg.Kafka.ConsumerGroup,
				Store:         messageStore,
				Metrics:       m,
				Logger:        logger,
			}).
			Register(consumer, cfg.Kafka.Topic)
		g.Go(func() error {
			if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("event consumer: %w", err)
			}
			return nil
		})
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Kafka consumer")
			}
		}()
		logger.Info("Sale event consumer started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.ConsumerGroup)
	}

	g.Go(func() error {
		select {
		case sig := <-signalCh:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}

		shuttingDown.Store(true)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server forced to shutdown")
		}
		cancel()
		return nil
	})

	err = g.Wait()
	if err != nil {
		logger.WithError(err).Error("Server exited with error")
		return err
	}
	logger.Info("Server exited")
	return nil
}
