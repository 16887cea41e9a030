package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")

	// ErrAlreadyActive rejects a new run while another one holds the active slot.
	ErrAlreadyActive = errors.New("another sending process is already active")
	ErrNotActive     = errors.New("no sending process is active")
	ErrShuttingDown  = errors.New("dispatcher is shutting down")

	// ErrInitialization aborts a whole run: the transport could not start or
	// the target session could not be authenticated.
	ErrInitialization = errors.New("initialization failed")
	// ErrDataFormat aborts a run before any delivery: the recipient source is malformed.
	ErrDataFormat = errors.New("invalid recipient data")
	// ErrDelivery marks a single failed attempt; it never escapes the recipient boundary.
	ErrDelivery = errors.New("delivery failed")
)
