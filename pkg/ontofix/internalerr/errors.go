package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Reasoning failures
	ErrOracle     = errors.New("oracle failure")
	ErrNotFlushed = errors.New("reasoner queried with pending changes")
	ErrUndecided  = errors.New("reasoner could not decide")
	ErrNoConflict = errors.New("no conflict found")
)
