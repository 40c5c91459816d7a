package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/middleware"
	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

// OrderHandler handles order HTTP endpoints.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID := c.GetInt(middleware.ContextUserID)
	if userID == 0 {
		utils.Error(c, 401, "UNAUTHORIZED", "User ID is missing")
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "Invalid request body")
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), userID, &req)
	if err != nil {
		// An unknown product in the body is the caller's mistake.
		if errors.Is(err, utils.ErrInvalidReference) {
			utils.Error(c, 400, "INVALID_REFERENCE", err.Error())
			return
		}
		handleError(c, err)
		return
	}

	utils.Success(c, 201, "Order created", order)
}

// GetOrder handles GET /api/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Order retrieved", order)
}

// UpdateOrder handles PUT /api/orders/:id
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "Invalid request body")
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), id, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Order updated", order)
}

// DeleteOrder handles DELETE /api/orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Order deleted", gin.H{"orderId": id})
}

// pathID parses a positive integer path parameter or writes a 400.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.Error(c, 400, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return id, true
}
