package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

// RestockRequest is the body of a restock.
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// InventoryHandler handles stock deliveries.
type InventoryHandler struct {
	restock *service.RestockService
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(restock *service.RestockService) *InventoryHandler {
	return &InventoryHandler{restock: restock}
}

// Restock handles POST /api/inventory/:productId/restock
func (h *InventoryHandler) Restock(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_QUANTITY", "quantity must be a positive integer")
		return
	}

	level, err := h.restock.Restock(c.Request.Context(), productID, req.Quantity)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Product restocked", gin.H{"productId": productID, "stockLevel": level})
}
