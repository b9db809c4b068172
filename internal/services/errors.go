package services

import "errors"

// Failure classes surfaced by the core services. Handlers and tests
// match on these with errors.Is instead of message text; infrastructure
// failures (ErrPersistence, ErrDelivery) are kept distinct from
// business-rule rejections.
var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrRateLimited       = errors.New("otp generation limit reached")
	ErrOtpExpired        = errors.New("otp has expired")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("storage unavailable")
	ErrDelivery          = errors.New("email delivery failed")
)
