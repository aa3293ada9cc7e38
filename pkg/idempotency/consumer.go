package idempotency

import (
	"context"

	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/kafka"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/metrics"
)

// ConsumerConfig scopes message deduplication to one topic and consumer group
type ConsumerConfig struct {
	Topic         string
	ConsumerGroup string
	Store         *MessageStore
	Metrics       *metrics.Metrics
	Logger        *logging.Logger
}

// DeduplicatingHandler skips CloudEvents whose id was already handled by the
// consumer group. Failed events are not marked so a redelivery runs again.
func DeduplicatingHandler(config *ConsumerConfig, handler kafka.EventHandler) kafka.EventHandler {
	return func(ctx context.Context, event *cloudevents.SalesCloudEvent) error {
		processed, err := config.Store.IsProcessed(ctx, event.ID, config.Topic, config.ConsumerGroup)
		if err != nil {
			return err
		}
		if processed {
			config.Logger.WithContext(ctx).Info("Duplicate message skipped",
				"messageId", event.ID,
				"topic", config.Topic,
				"eventType", event.Type,
			)
			config.Metrics.RecordIdempotency("duplicate_message")
			return nil
		}

		if err := handler(ctx, event); err != nil {
			return err
		}
		return config.Store.MarkProcessed(ctx, event.ID, config.Topic, config.ConsumerGroup)
	}
}
