package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SaleItemInput carries the raw data for a new line. Nil pointers mean absent.
type SaleItemInput struct {
	Product   *ProductRef
	Quantity  int
	UnitPrice *Money
}

// SaleItem is a single line of a sale.
// DiscountPercent and ItemTotal are always derived from Quantity and UnitPrice.
type SaleItem struct {
	id              string
	product         ProductRef
	quantity        int
	unitPrice       Money
	discountPercent int
	itemTotal       Money
	canceled        bool
}

// NewSaleItem validates input and builds a line with its derived totals.
// Notification paths are rooted at path.
func NewSaleItem(ids IDGenerator, input SaleItemInput, path string) Result[*SaleItem] {
	if path == "" {
		path = "items[]"
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}

	var bag NotificationsBag
	if input.Product == nil {
		bag.Add(CodeItemProductRequired, "product is required", path+".product")
	}
	if input.UnitPrice == nil {
		bag.Add(CodeItemUnitPriceRequired, "unit price is required", path+".unitPrice")
	}
	if !(QuantityDiscountPolicy{}).IsAllowed(input.Quantity) {
		bag.Add(CodeItemQuantityRange, quantityRangeMessage(), path+".quantity")
	}
	if bag.HasErrors() {
		return From[*SaleItem](nil, &bag)
	}

	item := &SaleItem{
		id:        ids.NewID(),
		product:   *input.Product,
		quantity:  input.Quantity,
		unitPrice: *input.UnitPrice,
	}
	item.recalculate()
	return Ok(item)
}

// ReplaceQuantity sets a new quantity and recalculates totals
func (i *SaleItem) ReplaceQuantity(quantity int, path string) Result[*SaleItem] {
	if path == "" {
		path = "quantity"
	}
	if i.canceled {
		return FailWith[*SaleItem](CodeItemCanceledMutation, "cannot change a canceled item", path)
	}
	if !(QuantityDiscountPolicy{}).IsAllowed(quantity) {
		return FailWith[*SaleItem](CodeItemQuantityRange, quantityRangeMessage(), path)
	}
	i.quantity = quantity
	i.recalculate()
	return Ok(i)
}

// Cancel marks the line canceled. It reports false when it already was.
func (i *SaleItem) Cancel() bool {
	if i.canceled {
		return false
	}
	i.canceled = true
	return true
}

func (i *SaleItem) recalculate() {
	i.discountPercent = QuantityDiscountPolicy{}.DiscountPercentFor(i.quantity)
	pct := min(max(i.discountPercent, 0), 100)
	factor := decimal.NewFromInt(int64(100 - pct)).Div(hundred)
	i.itemTotal = i.unitPrice.Mul(i.quantity).MulDecimal(factor)
}

func quantityRangeMessage() string {
	return fmt.Sprintf("quantity must be between %d and %d", MinQuantityPerItem, MaxQuantityPerItem)
}

func (i SaleItem) ID() string           { return i.id }
func (i SaleItem) Product() ProductRef  { return i.product }
func (i SaleItem) Quantity() int        { return i.quantity }
func (i SaleItem) UnitPrice() Money     { return i.unitPrice }
func (i SaleItem) DiscountPercent() int { return i.discountPercent }
func (i SaleItem) ItemTotal() Money     { return i.itemTotal }
func (i SaleItem) IsCanceled() bool     { return i.canceled }
