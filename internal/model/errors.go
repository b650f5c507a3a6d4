package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Purchase errors
	ErrUnknownAircraft   = errors.New("unknown aircraft")
	ErrAlreadyOwned      = errors.New("aircraft already owned")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// World registry errors
	ErrTokenRegistered = errors.New("token already registered")

	// Protocol errors
	ErrBadFrame   = errors.New("malformed frame")
	ErrBadMessage = errors.New("malformed message")
)
