package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/utils"
)

// handleError maps service errors to the response envelope.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrInsufficientStock):
		utils.Error(c, 400, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, utils.ErrInvalidQuantity):
		utils.Error(c, 400, "INVALID_QUANTITY", err.Error())
	case errors.Is(err, utils.ErrSessionMissing):
		utils.Error(c, 400, "SESSION_MISSING", "No active shopping session found")
	case errors.Is(err, utils.ErrInvalidDate):
		utils.Error(c, 400, "INVALID_DATE", err.Error())
	case errors.Is(err, utils.ErrInvalidOrderUpdate):
		utils.Error(c, 400, "INVALID_ORDER_UPDATE", err.Error())
	case errors.Is(err, utils.ErrInvalidReference):
		utils.Error(c, 404, "INVALID_REFERENCE", err.Error())
	case errors.Is(err, utils.ErrOrderNotFound):
		utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, utils.ErrProductNotFound):
		utils.Error(c, 404, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, utils.ErrInvalidCredentials):
		utils.Error(c, 401, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, utils.ErrEmailTaken):
		utils.Error(c, 409, "EMAIL_TAKEN", "Email is already registered")
	case errors.Is(err, utils.ErrPersistenceFailure):
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Persistence failure")
		utils.Error(c, 500, "PERSISTENCE_FAILURE", err.Error())
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
	}
}
