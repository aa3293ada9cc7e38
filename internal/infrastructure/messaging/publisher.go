package messaging

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/contracts/asyncapi"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/metrics"
	"github.com/marcelogudines/sales/pkg/tracing"
)

// EventProducer delivers a CloudEvent to a topic
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.SalesCloudEvent) error
}

// KafkaPublisher implements domain event publishing on top of an EventProducer
type KafkaPublisher struct {
	producer  EventProducer
	factory   *cloudevents.EventFactory
	validator *asyncapi.EventValidator
	topic     string
	metrics   *metrics.Metrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewKafkaPublisher creates a publisher. A nil validator disables payload
// validation; m may be nil.
func NewKafkaPublisher(
	producer EventProducer,
	factory *cloudevents.EventFactory,
	validator *asyncapi.EventValidator,
	topic string,
	m *metrics.Metrics,
	logger *logging.Logger,
) *KafkaPublisher {
	return &KafkaPublisher{
		producer:  producer,
		factory:   factory,
		validator: validator,
		topic:     topic,
		metrics:   m,
		logger:    logger.WithComponent("event-publisher"),
		tracer:    otel.Tracer("sales-events"),
	}
}

// Publish validates and publishes a single domain event
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	_, err := tracing.TracedOperation(ctx, p.tracer, "sales.event.publish",
		func(ctx context.Context) (*cloudevents.SalesCloudEvent, error) {
			ce, err := ToCloudEvent(ctx, p.factory, event)
			if err != nil {
				return nil, err
			}

			if p.validator != nil {
				if err := p.validator.ValidateData(ce.Type, ce.Data); err != nil {
					p.metrics.RecordEventSchemaFailure(ce.Type)
					return nil, fmt.Errorf("event %s rejected by schema: %w", ce.ID, err)
				}
			}

			if err := p.producer.PublishEvent(ctx, p.topic, ce); err != nil {
				return nil, fmt.Errorf("failed to publish event to kafka: %w", err)
			}
			return ce, nil
		},
		tracing.SaleSpanAttributes(event.AggregateID(), "")...,
	)
	return err
}

// PublishAll publishes events in order, stopping at the first failure
func (p *KafkaPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	for _, event := range events {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Topic returns the topic this publisher publishes to
func (p *KafkaPublisher) Topic() string {
	return p.topic
}

// LogPublisher writes every event as a business log line. It is used when
// Kafka is disabled.
type LogPublisher struct {
	factory *cloudevents.EventFactory
	logger  *logging.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(factory *cloudevents.EventFactory, logger *logging.Logger) *LogPublisher {
	return &LogPublisher{
		factory: factory,
		logger:  logger.WithComponent("event-log"),
	}
}

// Publish logs a single domain event
func (p *LogPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	ce, err := ToCloudEvent(ctx, p.factory, event)
	if err != nil {
		return err
	}
	logSaleEvent(ctx, p.logger, ce)
	return nil
}

// PublishAll logs events in order
func (p *LogPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	for _, event := range events {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
