package domain

import (
	"fmt"
	"strings"
	"time"
)

// SaleStatus represents the lifecycle state of a sale
type SaleStatus string

const (
	SaleStatusNotCanceled SaleStatus = "NotCanceled"
	SaleStatusCanceled    SaleStatus = "Canceled"
)

// Sale is the aggregate root for a sale and its lines.
// SaleTotal is derived from the non-canceled items and never stored.
type Sale struct {
	id        string
	number    string
	saleDate  time.Time
	customer  CustomerRef
	branch    BranchRef
	status    SaleStatus
	items     []*SaleItem
	events    []DomainEvent
	providers Providers
}

// NewSaleParams carries the raw input for CreateSale. Nil refs mean absent.
type NewSaleParams struct {
	Number   string
	SaleDate time.Time
	Customer *CustomerRef
	Branch   *BranchRef
	Items    []SaleItemInput
}

// CreateSale validates the header and items and builds a new sale.
// Invalid items are dropped and reported as warnings as long as at least one
// valid item remains and the header is valid.
func CreateSale(p Providers, params NewSaleParams) Result[*Sale] {
	p = p.withDefaults()

	var header NotificationsBag
	number := strings.TrimSpace(params.Number)
	if number == "" {
		header.Add(CodeSaleNumberRequired, "sale number is required", "number")
	}
	if params.Customer == nil {
		header.Add(CodeSaleCustomerRequired, "customer is required", "customer")
	}
	if params.Branch == nil {
		header.Add(CodeSaleBranchRequired, "branch is required", "branch")
	}

	var itemNotes NotificationsBag
	items := make([]*SaleItem, 0, len(params.Items))
	for idx, input := range params.Items {
		res := NewSaleItem(p.IDs, input, fmt.Sprintf("items[%d]", idx))
		itemNotes.Merge(res.Notifications(), "")
		if res.IsValid() {
			items = append(items, res.Value())
		}
	}

	bag := header.Clone()
	switch {
	case len(items) == 0:
		bag.Merge(&itemNotes, "")
		bag.Add(CodeSaleItemsMin1, "sale must have at least one item", "items")
	case header.HasErrors():
		bag.Merge(&itemNotes, "")
	default:
		bag.MergeAs(&itemNotes, "", SeverityWarning)
	}
	if bag.HasErrors() {
		return From[*Sale](nil, bag)
	}

	sale := &Sale{
		id:        p.IDs.NewID(),
		number:    number,
		saleDate:  params.SaleDate,
		customer:  *params.Customer,
		branch:    *params.Branch,
		status:    SaleStatusNotCanceled,
		items:     items,
		providers: p,
	}
	sale.raise(SaleCreated{saleEventBase: newEventBase(sale)})
	return From(sale, bag)
}

// AddItem appends a new line to the sale
func (s *Sale) AddItem(input SaleItemInput) Result[SaleItem] {
	if s.IsCanceled() {
		return canceledMutation[SaleItem]()
	}
	res := NewSaleItem(s.providers.IDs, input, fmt.Sprintf("items[%d]", len(s.items)))
	if !res.IsValid() {
		return Fail[SaleItem](res.Items()...)
	}
	item := res.Value()
	s.items = append(s.items, item)
	s.raise(SaleUpdated{saleEventBase: newEventBase(s)})
	return Ok(*item)
}

// ReplaceItemQuantity sets a new quantity on an existing line
func (s *Sale) ReplaceItemQuantity(itemID string, quantity int) Result[SaleItem] {
	if s.IsCanceled() {
		return canceledMutation[SaleItem]()
	}
	idx, item := s.findItem(itemID)
	if item == nil {
		return itemNotFound[SaleItem](itemID)
	}
	res := item.ReplaceQuantity(quantity, fmt.Sprintf("items[%d].quantity", idx))
	if !res.IsValid() {
		return Fail[SaleItem](res.Items()...)
	}
	s.raise(SaleUpdated{saleEventBase: newEventBase(s)})
	return Ok(*item)
}

// CancelItem cancels a line. Events are only raised on the first cancellation.
func (s *Sale) CancelItem(itemID string) Result[SaleItem] {
	if s.IsCanceled() {
		return canceledMutation[SaleItem]()
	}
	_, item := s.findItem(itemID)
	if item == nil {
		return itemNotFound[SaleItem](itemID)
	}
	if item.Cancel() {
		s.raise(SaleItemCanceled{saleEventBase: newEventBase(s), ItemID: item.ID()})
		s.raise(SaleUpdated{saleEventBase: newEventBase(s)})
	}
	return Ok(*item)
}

// Cancel cancels the whole sale. Canceling twice is a no-op.
func (s *Sale) Cancel(reason string) Result[*Sale] {
	if s.IsCanceled() {
		return Ok(s)
	}
	s.status = SaleStatusCanceled
	s.raise(SaleCanceled{saleEventBase: newEventBase(s), Reason: strings.TrimSpace(reason)})
	return Ok(s)
}

// Clone returns an independent copy of the sale, its lines and pending events
func (s *Sale) Clone() *Sale {
	clone := *s
	clone.items = make([]*SaleItem, 0, len(s.items))
	for _, item := range s.items {
		copied := *item
		clone.items = append(clone.items, &copied)
	}
	clone.events = append([]DomainEvent(nil), s.events...)
	return &clone
}

// DequeueEvents returns pending events in raise order and clears the queue
func (s *Sale) DequeueEvents() []DomainEvent {
	events := s.events
	s.events = nil
	if events == nil {
		return []DomainEvent{}
	}
	return events
}

// PendingEvents returns the number of events not yet dequeued
func (s *Sale) PendingEvents() int {
	return len(s.events)
}

// SaleTotal sums the totals of the non-canceled items
func (s *Sale) SaleTotal() Money {
	total := ZeroMoney
	for _, item := range s.items {
		if !item.IsCanceled() {
			total = total.Add(item.ItemTotal())
		}
	}
	return total
}

// Items returns snapshots of the lines in insertion order
func (s *Sale) Items() []SaleItem {
	out := make([]SaleItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

// Item looks up a line by id
func (s *Sale) Item(itemID string) (SaleItem, bool) {
	_, item := s.findItem(itemID)
	if item == nil {
		return SaleItem{}, false
	}
	return *item, true
}

func (s *Sale) ID() string            { return s.id }
func (s *Sale) Number() string        { return s.number }
func (s *Sale) SaleDate() time.Time   { return s.saleDate }
func (s *Sale) Customer() CustomerRef { return s.customer }
func (s *Sale) Branch() BranchRef     { return s.branch }
func (s *Sale) Status() SaleStatus    { return s.status }
func (s *Sale) IsCanceled() bool      { return s.status == SaleStatusCanceled }

func (s *Sale) findItem(itemID string) (int, *SaleItem) {
	for idx, item := range s.items {
		if item.id == itemID {
			return idx, item
		}
	}
	return -1, nil
}

func (s *Sale) raise(event DomainEvent) {
	s.events = append(s.events, event)
}

func canceledMutation[T any]() Result[T] {
	return FailWith[T](CodeSaleCanceledMutation, "cannot modify a canceled sale", "")
}

func itemNotFound[T any](itemID string) Result[T] {
	return FailWith[T](CodeSaleItemNotFound, fmt.Sprintf("item %s not found", itemID), "items")
}
