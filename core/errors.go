package core

import "errors"

// Authentication errors. These are returned to the caller and never retried.
var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrAlreadyRegistered = errors.New("address already registered")
	ErrNotRegistered     = errors.New("address not registered")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidChallenge  = errors.New("invalid challenge")
	ErrInvalidAddress    = errors.New("invalid ethereum address")
)

// Session errors
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session has expired")
	ErrSessionRevoked = errors.New("session has been revoked")
)

// Ledger and cache errors
var (
	ErrLedgerUnreachable = errors.New("ledger unreachable")
	ErrEntityNotFound    = errors.New("ledger entity not found")
	ErrCacheMiss         = errors.New("cache record not found")
)
