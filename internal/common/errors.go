package common

import "errors"

// Callers should use errors.Is to match these values; most of them are
// returned wrapped with additional context.
var (
	// Storage-level errors.
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// Registration errors.
	ErrIdentityAlreadyExists  = errors.New("identity already exists")
	ErrNetworkOperationFailed = errors.New("network operation failed")
	ErrCryptoFailure          = errors.New("crypto failure")
	ErrRollbackIncomplete     = errors.New("rollback incomplete")

	// Process engine errors.
	ErrProcessAlreadyStarted = errors.New("process already started")
	ErrWaiterTimeout         = errors.New("waiter timed out")

	// Transport auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
