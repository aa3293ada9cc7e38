package domain

import (
	"fmt"
	"strings"
)

// Code identifies a domain failure or warning. The set is closed; the string
// form is only produced at serialization boundaries.
type Code int

const (
	CodeUnknown Code = iota
	CodeMoneyRequired
	CodeMoneyNonNegative
	CodeCustomerIDRequired
	CodeCustomerNameRequired
	CodeBranchIDRequired
	CodeBranchNameRequired
	CodeProductIDRequired
	CodeProductNameRequired
	CodeItemProductRequired
	CodeItemUnitPriceRequired
	CodeItemQuantityRange
	CodeItemCanceledMutation
	CodeSaleNumberRequired
	CodeSaleCustomerRequired
	CodeSaleBranchRequired
	CodeSaleItemsMin1
	CodeSaleCanceledMutation
	CodeSaleItemNotFound
	CodeSaleNotFound
	CodeSaleAlreadyExists
)

// String returns the wire form of the code
func (c Code) String() string {
	switch c {
	case CodeMoneyRequired:
		return "money.required"
	case CodeMoneyNonNegative:
		return "money.non_negative"
	case CodeCustomerIDRequired:
		return "customer.id_required"
	case CodeCustomerNameRequired:
		return "customer.name_required"
	case CodeBranchIDRequired:
		return "branch.id_required"
	case CodeBranchNameRequired:
		return "branch.name_required"
	case CodeProductIDRequired:
		return "product.id_required"
	case CodeProductNameRequired:
		return "product.name_required"
	case CodeItemProductRequired:
		return "item.product_required"
	case CodeItemUnitPriceRequired:
		return "item.unit_price_required"
	case CodeItemQuantityRange:
		return "item.quantity_range"
	case CodeItemCanceledMutation:
		return "item.canceled_mutation"
	case CodeSaleNumberRequired:
		return "sale.number_required"
	case CodeSaleCustomerRequired:
		return "sale.customer_required"
	case CodeSaleBranchRequired:
		return "sale.branch_required"
	case CodeSaleItemsMin1:
		return "sale.items_min_1"
	case CodeSaleCanceledMutation:
		return "sale.canceled_mutation"
	case CodeSaleItemNotFound:
		return "sale.item_not_found"
	case CodeSaleNotFound:
		return "sale.not_found"
	case CodeSaleAlreadyExists:
		return "sale.already_exists"
	default:
		return "unknown"
	}
}

// IsNotFound reports whether the code describes a missing resource
func (c Code) IsNotFound() bool {
	return c == CodeSaleNotFound || c == CodeSaleItemNotFound
}

// MarshalText implements encoding.TextMarshaler
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Code) UnmarshalText(text []byte) error {
	parsed, ok := ParseCode(string(text))
	if !ok {
		return fmt.Errorf("unknown notification code %q", string(text))
	}
	*c = parsed
	return nil
}

// ParseCode resolves a wire-form code
func ParseCode(s string) (Code, bool) {
	for c := CodeMoneyRequired; c <= CodeSaleAlreadyExists; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return CodeUnknown, false
}

// Severity classifies a notification. Error is the zero value.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "error"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Notification is a single validation or business-rule outcome
type Notification struct {
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Severity Severity `json:"severity"`
}

// IsError reports whether the notification blocks the operation
func (n Notification) IsError() bool {
	return n.Severity == SeverityError
}

// NotificationsBag accumulates notifications in insertion order.
// The zero value is ready to use.
type NotificationsBag struct {
	items []Notification
}

// NewNotificationsBag creates a bag seeded with the given notifications
func NewNotificationsBag(notifications ...Notification) *NotificationsBag {
	bag := &NotificationsBag{}
	bag.items = append(bag.items, notifications...)
	return bag
}

// Add appends an error-severity notification
func (b *NotificationsBag) Add(code Code, message, path string) {
	b.Append(Notification{Code: code, Message: message, Path: path, Severity: SeverityError})
}

// AddWarning appends a warning-severity notification
func (b *NotificationsBag) AddWarning(code Code, message, path string) {
	b.Append(Notification{Code: code, Message: message, Path: path, Severity: SeverityWarning})
}

// Append adds a fully built notification
func (b *NotificationsBag) Append(n Notification) {
	b.items = append(b.items, n)
}

// Items returns a copy of the accumulated notifications
func (b *NotificationsBag) Items() []Notification {
	if b == nil || len(b.items) == 0 {
		return []Notification{}
	}
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of notifications
func (b *NotificationsBag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// HasErrors reports whether any notification has error severity
func (b *NotificationsBag) HasErrors() bool {
	if b == nil {
		return false
	}
	for _, n := range b.items {
		if n.IsError() {
			return true
		}
	}
	return false
}

// Has reports whether a notification with the given code is present
func (b *NotificationsBag) Has(code Code) bool {
	if b == nil {
		return false
	}
	for _, n := range b.items {
		if n.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the codes in insertion order
func (b *NotificationsBag) Codes() []Code {
	codes := make([]Code, 0, b.Len())
	if b == nil {
		return codes
	}
	for _, n := range b.items {
		codes = append(codes, n.Code)
	}
	return codes
}

// Merge appends every notification of other, rewriting paths under prefix.
// A blank prefix keeps paths unchanged; a blank path becomes the prefix itself.
func (b *NotificationsBag) Merge(other *NotificationsBag, prefix string) {
	b.merge(other, prefix, nil)
}

// MergeAs behaves like Merge but forces every merged notification to severity
func (b *NotificationsBag) MergeAs(other *NotificationsBag, prefix string, severity Severity) {
	b.merge(other, prefix, &severity)
}

func (b *NotificationsBag) merge(other *NotificationsBag, prefix string, severity *Severity) {
	if other == nil {
		return
	}
	prefix = strings.TrimSpace(prefix)
	for _, n := range other.items {
		n.Path = prefixPath(prefix, n.Path)
		if severity != nil {
			n.Severity = *severity
		}
		b.items = append(b.items, n)
	}
}

func prefixPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	if strings.TrimSpace(path) == "" {
		return prefix
	}
	return prefix + "." + path
}

// Clone returns an independent copy of the bag
func (b *NotificationsBag) Clone() *NotificationsBag {
	return NewNotificationsBag(b.Items()...)
}

// Error renders the bag as a single message
func (b *NotificationsBag) Error() string {
	parts := make([]string, 0, b.Len())
	for _, n := range b.Items() {
		if n.Path != "" {
			parts = append(parts, fmt.Sprintf("%s: %s (%s)", n.Path, n.Message, n.Code))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", n.Message, n.Code))
	}
	return strings.Join(parts, "; ")
}
