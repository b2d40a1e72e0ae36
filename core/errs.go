package core

import "errors"

var (
	ErrInvalidPercent  = errors.New("percent threshold must be positive")
	ErrInvalidPeriod   = errors.New("period must be positive")
	ErrEmptyUniverse   = errors.New("empty symbol universe")
	ErrFeedExhausted   = errors.New("feed reconnect attempts exhausted")
	ErrUserNotFound    = errors.New("user not found")
	ErrCodeNotFound    = errors.New("code not found or already used")
	ErrCodeAlreadyUsed = errors.New("user already redeemed a promo code")
	ErrUnknownExchange = errors.New("unknown exchange")
)
