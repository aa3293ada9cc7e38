package cloudevents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var occurred = time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

func newTestFactory() *EventFactory {
	return NewEventFactory(SourceSalesService).
		WithIDGenerator(func() string { return "evt-1" }).
		WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
}

func TestCreateEvent(t *testing.T) {
	data := SaleEventData{SaleID: "s-1", Number: "S-100", OccurredAt: occurred}

	event := newTestFactory().CreateEventWithCorrelation(context.Background(), SaleCreated, SaleSubject("s-1"), occurred, data, "corr-1")

	assert.Equal(t, SpecVersion, event.SpecVersion)
	assert.Equal(t, SaleCreated, event.Type)
	assert.Equal(t, "/sales-service", event.Source)
	assert.Equal(t, "sale/s-1", event.Subject)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, time.UTC, event.Time.Location())
	assert.True(t, occurred.Equal(event.Time))
	assert.Equal(t, "application/json", event.DataContentType)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Empty(t, event.TraceParent)
}

func TestCreateEventDefaultsTimeToClock(t *testing.T) {
	event := newTestFactory().CreateEvent(context.Background(), SaleUpdated, SaleSubject("s-1"), time.Time{}, nil)

	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), event.Time)
}

func TestCreateEventCopiesTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	event := newTestFactory().CreateEvent(ctx, SaleCanceled, SaleSubject("s-1"), occurred, nil)

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", event.TraceParent)
}

func TestHeadersAndApplyHeader(t *testing.T) {
	event := newTestFactory().CreateEventWithCorrelation(context.Background(), SaleItemCanceled, SaleSubject("s-1"), occurred, nil, "corr-1")

	headers := event.Headers()
	assert.Equal(t, "1.0", headers["ce-specversion"])
	assert.Equal(t, SaleItemCanceled, headers["ce-type"])
	assert.Equal(t, "sale/s-1", headers["ce-subject"])
	assert.Equal(t, "corr-1", headers["ce-salescorrelationid"])
	assert.Equal(t, "application/json", headers["content-type"])
	assert.NotContains(t, headers, "ce-traceparent")

	var parsed SalesCloudEvent
	assert.True(t, parsed.ApplyHeader("CE-SalesCorrelationID", "corr-2"))
	assert.True(t, parsed.ApplyHeader("ce-traceparent", "tp"))
	assert.False(t, parsed.ApplyHeader("ce-type", SaleCreated))
	assert.False(t, parsed.ApplyHeader("x-other", "v"))
	assert.Equal(t, "corr-2", parsed.CorrelationID)
	assert.Equal(t, "tp", parsed.TraceParent)
}

func TestDecodeData(t *testing.T) {
	event := &SalesCloudEvent{ID: "evt-1", Data: map[string]any{"saleId": "s-1", "number": "S-100", "itemId": "i-2"}}

	var data SaleItemCanceledData
	require.NoError(t, event.DecodeData(&data))

	assert.Equal(t, "s-1", data.SaleID)
	assert.Equal(t, "S-100", data.Number)
	assert.Equal(t, "i-2", data.ItemID)
}
