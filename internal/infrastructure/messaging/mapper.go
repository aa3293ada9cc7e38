// Package messaging turns sale domain events into CloudEvents and delivers them.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/pkg/cloudevents"
	"github.com/marcelogudines/sales/pkg/logging"
)

// ToCloudEvent maps a domain event onto its integration CloudEvent. The
// correlation id of ctx, if any, travels as the salescorrelationid extension.
func ToCloudEvent(ctx context.Context, factory *cloudevents.EventFactory, event domain.DomainEvent) (*cloudevents.SalesCloudEvent, error) {
	var (
		eventType string
		data      any
	)

	switch e := event.(type) {
	case domain.SaleCreated:
		eventType = cloudevents.SaleCreated
		data = eventData(e.SaleID, e.Number, e.OccurredAt())
	case domain.SaleUpdated:
		eventType = cloudevents.SaleUpdated
		data = eventData(e.SaleID, e.Number, e.OccurredAt())
	case domain.SaleItemCanceled:
		eventType = cloudevents.SaleItemCanceled
		data = cloudevents.SaleItemCanceledData{
			SaleEventData: eventData(e.SaleID, e.Number, e.OccurredAt()),
			ItemID:        e.ItemID,
		}
	case domain.SaleCanceled:
		eventType = cloudevents.SaleCanceled
		data = cloudevents.SaleCanceledData{
			SaleEventData: eventData(e.SaleID, e.Number, e.OccurredAt()),
			Reason:        e.Reason,
		}
	default:
		return nil, fmt.Errorf("unsupported domain event %T", event)
	}

	return factory.CreateEventWithCorrelation(
		ctx,
		eventType,
		cloudevents.SaleSubject(event.AggregateID()),
		event.OccurredAt(),
		data,
		logging.CorrelationIDFromContext(ctx),
	), nil
}

func eventData(saleID, number string, occurredAt time.Time) cloudevents.SaleEventData {
	return cloudevents.SaleEventData{
		SaleID:     saleID,
		Number:     number,
		OccurredAt: occurredAt.UTC(),
	}
}
