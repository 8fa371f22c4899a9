package model

import "errors"

// Sentinel errors returned by the engine, lifecycle manager, and stores.
// The HTTP layer maps these to response codes with errors.Is.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrOptionNotFound      = errors.New("option not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrEventNotTradable    = errors.New("event is not live for trading")
	ErrEventNotSettleable  = errors.New("event is not available for settlement")
	ErrInvalidTradeState   = errors.New("invalid trade state")
	ErrEmailTaken          = errors.New("user with this email already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrValidation          = errors.New("validation failed")
	ErrLockHeld            = errors.New("lock already held")
)
