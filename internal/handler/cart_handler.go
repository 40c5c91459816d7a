package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/middleware"
	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

// CartItemRequest is the body of cart writes.
type CartItemRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// CartHandler handles cart endpoints for signed-in and anonymous shoppers.
type CartHandler struct {
	carts *service.CartService
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

func cartOwner(c *gin.Context) service.CartOwner {
	return service.CartOwner{
		UserID:  c.GetInt(middleware.ContextUserID),
		CartKey: c.GetString(middleware.ContextCartKey),
	}
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.Get(c.Request.Context(), cartOwner(c))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Cart retrieved", cart)
}

// AddItem handles POST /api/cart
func (h *CartHandler) AddItem(c *gin.Context) {
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID <= 0 {
		utils.Error(c, 400, "MISSING_FIELD", "productId and quantity are required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.carts.Add(c.Request.Context(), cartOwner(c), req.ProductID, req.Quantity)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Product added to cart", cart)
}

// UpdateItem handles PUT /api/cart/:productId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "quantity is required")
		return
	}

	cart, err := h.carts.Update(c.Request.Context(), cartOwner(c), productID, req.Quantity)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Cart updated", cart)
}

// RemoveItem handles DELETE /api/cart/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	cart, err := h.carts.Remove(c.Request.Context(), cartOwner(c), productID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Product quantity updated or removed from cart", cart)
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	cart, err := h.carts.Clear(c.Request.Context(), cartOwner(c))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Cart cleared", cart)
}
