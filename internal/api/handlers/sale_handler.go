package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcelogudines/sales/internal/application"
	"github.com/marcelogudines/sales/pkg/api"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/middleware"
)

// SaleHandler handles sale HTTP requests
type SaleHandler struct {
	service *application.SaleService
	logger  *logging.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(service *application.SaleService, logger *logging.Logger) *SaleHandler {
	return &SaleHandler{
		service: service,
		logger:  logger.WithComponent("sale-handler"),
	}
}

// lookupQuery is the query of GET /sales/lookup
type lookupQuery struct {
	Number   string `form:"number" binding:"required,not_blank"`
	BranchID string `form:"branchId" binding:"required,not_blank"`
}

// RegisterRoutes registers the sale routes
func (h *SaleHandler) RegisterRoutes(r *gin.RouterGroup) {
	sales := r.Group("/sales")
	{
		sales.POST("", h.CreateSale)
		sales.GET("", h.ListSales)
		sales.GET("/lookup", h.GetSaleByNumber)
		sales.GET("/:saleId", h.GetSale)
		sales.DELETE("/:saleId", h.DeleteSale)
		sales.POST("/:saleId/items", h.AddItem)
		sales.PUT("/:saleId/items/:itemId/quantity", h.ReplaceItemQuantity)
		sales.POST("/:saleId/items/:itemId/cancel", h.CancelItem)
		sales.POST("/:saleId/cancel", h.CancelSale)
	}
}

// CreateSale handles POST /sales
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var cmd application.CreateSaleCommand
	if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
		middleware.RespondError(c, appErr, nil)
		return
	}

	middleware.AddSpanAttributes(c, map[string]any{
		"sales.sale_number": cmd.Number,
		"sales.branch_id":   cmd.BranchID,
		"operation":         "create_sale",
	})

	out, err := h.service.CreateSale(c.Request.Context(), cmd)
	if err != nil {
		// A conflict carries the sale already stored under the same key
		var data any
		if out.Data != nil {
			data = out.Data
		}
		middleware.RespondError(c, err, data)
		return
	}

	c.Header("Location", c.FullPath()+"/"+out.Data.ID)
	middleware.Respond(c, http.StatusCreated, out.Data, out.Notifications)
}

// ListSales handles GET /sales
func (h *SaleHandler) ListSales(c *gin.Context) {
	page := api.ParsePagination(c)

	list, err := h.service.ListSales(c.Request.Context(), application.ListSalesQuery{
		Page:     page.Page,
		PageSize: page.PageSize,
	})
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	middleware.Respond(c, http.StatusOK, list, nil)
}

// GetSaleByNumber handles GET /sales/lookup
func (h *SaleHandler) GetSaleByNumber(c *gin.Context) {
	var query lookupQuery
	if appErr := api.BindQueryAndValidate(c, &query); appErr != nil {
		middleware.RespondError(c, appErr, nil)
		return
	}

	sale, err := h.service.GetSaleByNumber(c.Request.Context(), query.Number, query.BranchID)
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	middleware.Respond(c, http.StatusOK, sale, nil)
}

// GetSale handles GET /sales/:saleId
func (h *SaleHandler) GetSale(c *gin.Context) {
	saleID := c.Param("saleId")

	sale, err := h.service.GetSale(c.Request.Context(), saleID)
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	middleware.Respond(c, http.StatusOK, sale, nil)
}

// DeleteSale handles DELETE /sales/:saleId
func (h *SaleHandler) DeleteSale(c *gin.Context) {
	saleID := c.Param("saleId")

	deleted, err := h.service.DeleteSale(c.Request.Context(), saleID)
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}
	if !deleted {
		middleware.RespondError(c, application.SaleNotFound("saleId"), nil)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddItem handles POST /sales/:saleId/items
func (h *SaleHandler) AddItem(c *gin.Context) {
	var item application.SaleItemCommand
	if appErr := api.BindAndValidate(c, &item); appErr != nil {
		middleware.RespondError(c, appErr, nil)
		return
	}

	cmd := application.AddItemCommand{SaleID: c.Param("saleId"), SaleItemCommand: item}
	middleware.AddSpanAttributes(c, map[string]any{
		"sales.sale_id": cmd.SaleID,
		"operation":     "add_item",
	})

	out, err := h.service.AddItem(c.Request.Context(), cmd)
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	middleware.Respond(c, http.StatusOK, out.Data, out.Notifications)
}

// ReplaceItemQuantity handles PUT /sales/:saleId/items/:itemId/quantity
func (h *SaleHandler) ReplaceItemQuantity(c *gin.Context) {
	var cmd application.ReplaceItemQuantityCommand
	if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
		middleware.RespondError(c, appErr, nil)
		return
	}
	cmd.SaleID = c.Param("saleId")
	cmd.ItemID = c.Param("itemId")

	out, err := h.service.ReplaceItemQuantity(c.Request.Context(), cmd)
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	middleware.Respond(c, http.StatusOK, out.Data, out.Notifications)
}

// CancelItem handles POST /sales/:saleId/items/:itemId/cancel
func (h *SaleHandler) CancelItem(c *gin.Context) {
	out, err := h.service.CancelItem(c.Request.Context(), application.CancelItemCommand{
		SaleID: c.Param("saleId"),
		ItemID: c.Param("itemId"),
	})
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	middleware.Respond(c, http.StatusOK, out.Data, out.Notifications)
}

// CancelSale handles POST /sales/:saleId/cancel. The body is optional.
func (h *SaleHandler) CancelSale(c *gin.Context) {
	var cmd application.CancelSaleCommand
	if c.Request.ContentLength != 0 {
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			middleware.RespondError(c, appErr, nil)
			return
		}
	}
	cmd.SaleID = c.Param("saleId")

	out, err := h.service.CancelSale(c.Request.Context(), cmd)
	if err != nil {
		middleware.RespondError(c, err, nil)
		return
	}

	h.logger.WithContext(c.Request.Context()).Info("Sale canceled", "saleId", cmd.SaleID)
	middleware.Respond(c, http.StatusOK, out.Data, out.Notifications)
}
