package domain

import "time"

// Event type names
const (
	EventTypeSaleCreated      = "sale.created"
	EventTypeSaleUpdated      = "sale.updated"
	EventTypeSaleItemCanceled = "sale.item_canceled"
	EventTypeSaleCanceled     = "sale.canceled"
)

// DomainEvent is one of SaleCreated, SaleUpdated, SaleItemCanceled or
// SaleCanceled. The set is sealed to this package.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
	isSaleEvent()
}

// saleEventBase holds the fields every sale event carries
type saleEventBase struct {
	SaleID    string    `json:"saleId"`
	Number    string    `json:"number"`
	Timestamp time.Time `json:"occurredAt"`
}

func (e saleEventBase) AggregateID() string   { return e.SaleID }
func (e saleEventBase) OccurredAt() time.Time { return e.Timestamp }
func (saleEventBase) isSaleEvent()            {}

// SaleCreated is raised once when a sale is accepted
type SaleCreated struct {
	saleEventBase
}

func (SaleCreated) EventType() string { return EventTypeSaleCreated }

// SaleUpdated is raised after any successful mutation of the item set
type SaleUpdated struct {
	saleEventBase
}

func (SaleUpdated) EventType() string { return EventTypeSaleUpdated }

// SaleItemCanceled is raised when a line transitions to canceled
type SaleItemCanceled struct {
	saleEventBase
	ItemID string `json:"itemId"`
}

func (SaleItemCanceled) EventType() string { return EventTypeSaleItemCanceled }

// SaleCanceled is raised when the whole sale is canceled. Reason is optional.
type SaleCanceled struct {
	saleEventBase
	Reason string `json:"reason,omitempty"`
}

func (SaleCanceled) EventType() string { return EventTypeSaleCanceled }

func newEventBase(s *Sale) saleEventBase {
	return saleEventBase{SaleID: s.id, Number: s.number, Timestamp: s.providers.Clock.Now()}
}
