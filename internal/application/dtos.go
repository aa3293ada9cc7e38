package application

import (
	"encoding/json"
	"time"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/pkg/errors"
)

// SaleDTO is the read projection of a sale
type SaleDTO struct {
	ID           string        `json:"id"`
	Number       string        `json:"number"`
	SaleDate     time.Time     `json:"saleDate"`
	CustomerID   string        `json:"customerId"`
	CustomerName string        `json:"customerName"`
	BranchID     string        `json:"branchId"`
	BranchName   string        `json:"branchName"`
	Status       string        `json:"status"`
	SaleTotal    json.Number   `json:"saleTotal"`
	Items        []SaleItemDTO `json:"items"`
}

// SaleItemDTO is the read projection of a sale line
type SaleItemDTO struct {
	ID              string      `json:"id"`
	ProductID       string      `json:"productId"`
	ProductName     string      `json:"productName"`
	SKU             string      `json:"sku,omitempty"`
	Quantity        int         `json:"quantity"`
	DiscountPercent int         `json:"discountPercent"`
	UnitPrice       json.Number `json:"unitPrice"`
	ItemTotal       json.Number `json:"itemTotal"`
	Canceled        bool        `json:"canceled"`
}

// SaleListDTO is one page of sales
type SaleListDTO struct {
	Items      []SaleDTO `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// ItemRefDTO identifies the line touched by a mutation
type ItemRefDTO struct {
	ItemID string `json:"itemId"`
}

// SaleRefDTO identifies the sale touched by a mutation
type SaleRefDTO struct {
	SaleID string `json:"saleId"`
}

// Outcome is a successful command result plus any non-blocking notifications
type Outcome[T any] struct {
	Data          T
	Notifications []errors.Notification
}

// ToSaleDTO converts a domain Sale to SaleDTO
func ToSaleDTO(sale *domain.Sale) *SaleDTO {
	if sale == nil {
		return nil
	}

	items := sale.Items()
	dto := &SaleDTO{
		ID:           sale.ID(),
		Number:       sale.Number(),
		SaleDate:     sale.SaleDate(),
		CustomerID:   sale.Customer().ID,
		CustomerName: sale.Customer().Name,
		BranchID:     sale.Branch().ID,
		BranchName:   sale.Branch().Name,
		Status:       string(sale.Status()),
		SaleTotal:    json.Number(sale.SaleTotal().String()),
		Items:        make([]SaleItemDTO, 0, len(items)),
	}
	for i := range items {
		dto.Items = append(dto.Items, toSaleItemDTO(&items[i]))
	}
	return dto
}

func toSaleItemDTO(item *domain.SaleItem) SaleItemDTO {
	return SaleItemDTO{
		ID:              item.ID(),
		ProductID:       item.Product().ID,
		ProductName:     item.Product().Name,
		SKU:             item.Product().SKU,
		Quantity:        item.Quantity(),
		DiscountPercent: item.DiscountPercent(),
		UnitPrice:       json.Number(item.UnitPrice().String()),
		ItemTotal:       json.Number(item.ItemTotal().String()),
		Canceled:        item.IsCanceled(),
	}
}

// ToNotifications converts domain notifications to their transport form
func ToNotifications(notifications []domain.Notification) []errors.Notification {
	out := make([]errors.Notification, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, errors.Notification{
			Code:     n.Code.String(),
			Message:  n.Message,
			Path:     n.Path,
			Severity: n.Severity.String(),
		})
	}
	return out
}
