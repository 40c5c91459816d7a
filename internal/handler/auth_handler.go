package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/middleware"
	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

// AuthHandler handles customer sign-up and sign-in.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "name, email and a password of at least 8 characters are required")
		return
	}

	res, err := h.auth.Register(c.Request.Context(), &req, c.GetString(middleware.ContextCartKey))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 201, "Registration successful", res)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "Email and password are required")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), &req, c.GetString(middleware.ContextCartKey))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Login successful", res)
}
