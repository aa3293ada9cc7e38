package messaging

import (
	"context"

	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/idempotency"
	"github.com/marcelogudines/sales/pkg/kafka"
	"github.com/marcelogudines/sales/pkg/logging"
)

// Subscriber registers event handlers on a topic
type Subscriber interface {
	Subscribe(topic string, eventType string, handler kafka.EventHandler)
}

// SaleEventLogger logs sale events received from the bus
type SaleEventLogger struct {
	logger *logging.Logger
	dedup  *idempotency.ConsumerConfig
}

// NewSaleEventLogger creates a SaleEventLogger
func NewSaleEventLogger(logger *logging.Logger) *SaleEventLogger {
	return &SaleEventLogger{logger: logger.WithComponent("sale-event-consumer")}
}

// Deduplicate skips redelivered events already logged by the consumer group
func (l *SaleEventLogger) Deduplicate(config *idempotency.ConsumerConfig) *SaleEventLogger {
	l.dedup = config
	return l
}

// Register subscribes the logger to every sale event type on topic
func (l *SaleEventLogger) Register(subscriber Subscriber, topic string) {
	handler := kafka.EventHandler(l.Handle)
	if l.dedup != nil {
		handler = idempotency.DeduplicatingHandler(l.dedup, handler)
	}
	for _, eventType := range []string{
		cloudevents.SaleCreated,
		cloudevents.SaleUpdated,
		cloudevents.SaleItemCanceled,
		cloudevents.SaleCanceled,
	} {
		subscriber.Subscribe(topic, eventType, handler)
	}
}

// Handle logs one received event. Payloads that do not decode are dropped
// with an error log so the message is still committed.
func (l *SaleEventLogger) Handle(ctx context.Context, event *cloudevents.SalesCloudEvent) error {
	logSaleEvent(ctx, l.logger, event)
	return nil
}

// logSaleEvent writes the business fields of a sale CloudEvent
func logSaleEvent(ctx context.Context, logger *logging.Logger, event *cloudevents.SalesCloudEvent) {
	var data struct {
		cloudevents.SaleEventData
		ItemID string `json:"itemId"`
		Reason string `json:"reason"`
	}
	if err := event.DecodeData(&data); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Undecodable sale event",
			"eventType", event.Type,
			"eventId", event.ID,
		)
		return
	}

	fields := map[string]any{
		"eventId":    event.ID,
		"subject":    event.Subject,
		"occurredAt": data.OccurredAt,
	}
	if data.ItemID != "" {
		fields["itemId"] = data.ItemID
	}
	if data.Reason != "" {
		fields["reason"] = data.Reason
	}
	logger.SaleEvent(ctx, event.Type, data.SaleID, data.Number, fields)
}
