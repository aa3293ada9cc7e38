package cloudevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

// EventFactory creates CloudEvents for sale domain events
type EventFactory struct {
	source string
	newID  func() string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{
		source: source,
		newID:  func() string { return uuid.New().String() },
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithIDGenerator overrides how event ids are generated
func (f *EventFactory) WithIDGenerator(newID func() string) *EventFactory {
	f.newID = newID
	return f
}

// WithClock overrides the clock used when an event has no occurrence time
func (f *EventFactory) WithClock(now func() time.Time) *EventFactory {
	f.now = now
	return f
}

// CreateEvent creates a new SalesCloudEvent. A zero occurredAt falls back to
// the factory clock. The W3C trace context found in ctx is copied onto the event.
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	occurredAt time.Time,
	data any,
) *SalesCloudEvent {
	if occurredAt.IsZero() {
		occurredAt = f.now()
	}

	event := &SalesCloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              f.newID(),
		Time:            occurredAt.UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	event.TraceParent = carrier.Get("traceparent")
	event.TraceState = carrier.Get("tracestate")

	return event
}

// CreateEventWithCorrelation creates an event with correlation tracking
func (f *EventFactory) CreateEventWithCorrelation(
	ctx context.Context,
	eventType string,
	subject string,
	occurredAt time.Time,
	data any,
	correlationID string,
) *SalesCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, occurredAt, data)
	event.CorrelationID = correlationID
	return event
}

// SaleSubject returns the subject of every event about a sale
func SaleSubject(saleID string) string {
	return "sale/" + saleID
}

// DecodeData decodes the event payload into v
func (e *SalesCloudEvent) DecodeData(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to encode data of event %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode data of event %s: %w", e.ID, err)
	}
	return nil
}
