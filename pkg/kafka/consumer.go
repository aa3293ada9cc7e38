package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/logging"
)

// EventHandler is a function that handles a CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.SalesCloudEvent) error

// MessageReader is the subset of *kafka.Reader used by Consumer
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer handles consuming messages from Kafka topics
type Consumer struct {
	config    *Config
	readers   map[string]MessageReader
	handlers  map[string]map[string]EventHandler // topic -> eventType -> handler
	logger    *logging.Logger
	newReader func(topic string) MessageReader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *Config, logger *logging.Logger) *Consumer {
	c := &Consumer{
		config:   config,
		readers:  make(map[string]MessageReader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger.WithComponent("kafka-consumer"),
	}
	c.newReader = c.kafkaReader
	return c
}

// NewConsumerWithReader creates a consumer whose readers come from newReader
func NewConsumerWithReader(config *Config, logger *logging.Logger, newReader func(topic string) MessageReader) *Consumer {
	c := NewConsumer(config, logger)
	c.newReader = newReader
	return c
}

func (c *Consumer) kafkaReader(topic string) MessageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       c.config.MinBytes,
		MaxBytes:       c.config.MaxBytes,
		MaxWait:        c.config.MaxWait,
		CommitInterval: c.config.CommitInterval,
	})
}

// Subscribe registers a handler for one event type on a topic.
// Subscriptions must be made before Start.
func (c *Consumer) Subscribe(topic string, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

// SubscribeAll subscribes to all event types on a topic with a single handler
func (c *Consumer) SubscribeAll(topic string, handler EventHandler) {
	c.Subscribe(topic, "*", handler)
}

// Start consumes every subscribed topic until ctx is canceled
func (c *Consumer) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for topic := range c.handlers {
		reader := c.newReader(topic)
		c.readers[topic] = reader
		g.Go(func() error {
			c.consumeTopic(ctx, topic, reader)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string, reader MessageReader) {
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return
			}
			c.logger.WithError(err).Error("Error fetching message", "topic", topic)
			continue
		}

		c.logger.KafkaConsume(ctx, topic, headerValue(msg, cloudevents.HeaderPrefix+"type"), msg.Partition, msg.Offset)

		event, err := ParseMessage(msg)
		if err != nil {
			// Poison message: commit to move past it
			c.logger.WithError(err).Error("Error parsing message", "topic", topic, "offset", msg.Offset)
			c.commit(ctx, topic, reader, msg)
			continue
		}

		if err := c.handleEvent(ctx, topic, event); err != nil {
			// Uncommitted so the group redelivers it
			c.logger.WithError(err).Error("Error handling event",
				"topic", topic,
				"eventType", event.Type,
				"eventId", event.ID,
			)
			continue
		}

		c.commit(ctx, topic, reader, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, topic string, reader MessageReader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WithError(err).Error("Error committing message", "topic", topic)
	}
}

// ParseMessage decodes a structured-mode CloudEvent and applies extension headers
func ParseMessage(msg kafka.Message) (*cloudevents.SalesCloudEvent, error) {
	var event cloudevents.SalesCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.SpecVersion != cloudevents.SpecVersion {
		return nil, fmt.Errorf("unsupported specversion %q", event.SpecVersion)
	}
	if event.Type == "" || event.ID == "" {
		return nil, fmt.Errorf("event type and id are required")
	}

	for _, header := range msg.Headers {
		event.ApplyHeader(header.Key, string(header.Value))
	}

	return &event, nil
}

// handleEvent routes an event to the appropriate handler
func (c *Consumer) handleEvent(ctx context.Context, topic string, event *cloudevents.SalesCloudEvent) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if handler, exists := handlers[event.Type]; exists {
		return handler(ctx, event)
	}
	if handler, exists := handlers["*"]; exists {
		return handler(ctx, event)
	}

	c.logger.Warn("No handler found for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}

func headerValue(msg kafka.Message, key string) string {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}
