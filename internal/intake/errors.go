package intake

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUserNotFound        = errors.New("user not found")
	ErrPremiumRequired     = errors.New("premium subscription required")
	ErrQuotaExceeded       = errors.New("daily chat limit reached")
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	ErrPersistence         = errors.New("failed to save chat history")
)
