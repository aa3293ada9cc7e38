package cloudevents

import (
	"time"
)

// EventType constants for sales integration events
const (
	SaleCreated      = "sales.sale.created"
	SaleUpdated      = "sales.sale.updated"
	SaleItemCanceled = "sales.sale.item-canceled"
	SaleCanceled     = "sales.sale.canceled"
)

// SourceSalesService is the source of every event published by the sales service
const SourceSalesService = "/sales-service"

// SpecVersion is the CloudEvents version produced and accepted
const SpecVersion = "1.0"

// SalesCloudEvent represents a CloudEvents v1.0 compliant sales event
type SalesCloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject,omitempty"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`

	// Extensions
	CorrelationID string `json:"salescorrelationid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
	TraceState    string `json:"tracestate,omitempty"`
}

// SaleEventData is the payload shared by every sale event
type SaleEventData struct {
	SaleID     string    `json:"saleId"`
	Number     string    `json:"number"`
	OccurredAt time.Time `json:"occurredAt"`
}

// SaleItemCanceledData is the payload of SaleItemCanceled
type SaleItemCanceledData struct {
	SaleEventData
	ItemID string `json:"itemId"`
}

// SaleCanceledData is the payload of SaleCanceled
type SaleCanceledData struct {
	SaleEventData
	Reason string `json:"reason,omitempty"`
}
