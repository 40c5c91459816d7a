package utils

import "errors"

// Common application errors used across services.
// Services wrap these with context; handlers match them with errors.Is.
var (
	ErrInsufficientStock  = errors.New("INSUFFICIENT_STOCK")
	ErrInvalidReference   = errors.New("INVALID_REFERENCE")
	ErrInvalidQuantity    = errors.New("INVALID_QUANTITY")
	ErrSessionMissing     = errors.New("SESSION_MISSING")
	ErrPersistenceFailure = errors.New("PERSISTENCE_FAILURE")
	ErrBroadcastFailure   = errors.New("BROADCAST_FAILURE")
	ErrOrderNotFound      = errors.New("ORDER_NOT_FOUND")
	ErrProductNotFound    = errors.New("PRODUCT_NOT_FOUND")
	ErrInvalidOrderUpdate = errors.New("INVALID_ORDER_UPDATE")
	ErrInvalidDate        = errors.New("INVALID_DATE")

	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrEmailTaken         = errors.New("EMAIL_TAKEN")
)
