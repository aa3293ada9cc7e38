package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleItemCommand carries one line of a create or add-item request.
// UnitPrice is nil when the client omitted it.
type SaleItemCommand struct {
	ProductID   string           `json:"productId" binding:"max=64"`
	ProductName string           `json:"productName" binding:"max=200"`
	SKU         string           `json:"sku,omitempty" binding:"max=64"`
	Quantity    int              `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
}

// CreateSaleCommand represents command to create a sale.
// A nil SaleDate defaults to the current time.
type CreateSaleCommand struct {
	Number       string            `json:"number" binding:"max=64"`
	SaleDate     *time.Time        `json:"saleDate,omitempty"`
	CustomerID   string            `json:"customerId" binding:"max=64"`
	CustomerName string            `json:"customerName" binding:"max=200"`
	BranchID     string            `json:"branchId" binding:"max=64"`
	BranchName   string            `json:"branchName" binding:"max=200"`
	Items        []SaleItemCommand `json:"items" binding:"max=100,dive"`
}

// AddItemCommand represents command to append a line to a sale
type AddItemCommand struct {
	SaleID string `json:"-"`
	SaleItemCommand
}

// ReplaceItemQuantityCommand represents command to change a line's quantity
type ReplaceItemQuantityCommand struct {
	SaleID      string `json:"-"`
	ItemID      string `json:"-"`
	NewQuantity int    `json:"newQuantity"`
}

// CancelItemCommand represents command to cancel a single line
type CancelItemCommand struct {
	SaleID string
	ItemID string
}

// CancelSaleCommand represents command to cancel a sale
type CancelSaleCommand struct {
	SaleID string `json:"-"`
	Reason string `json:"reason,omitempty" binding:"max=500"`
}

// ListSalesQuery represents query to list sales
type ListSalesQuery struct {
	Page     int
	PageSize int
}
