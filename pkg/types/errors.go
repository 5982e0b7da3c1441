package types

import "errors"

// Common errors shared by the allocator, task loop, scheduler and supervisor
var (
	// ErrCapacityExhausted means no node can host a single replica right now.
	// It is retried on the next tick and never reported as a failure.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	ErrLaunchFailed        = errors.New("launch failed")
	ErrAlreadyRunning      = errors.New("already running")
	ErrTimeout             = errors.New("execution timeout")
	ErrTerminateFailed     = errors.New("terminate failed")
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	ErrInvalidCost         = errors.New("cost per replica must be positive")
	ErrNotFound            = errors.New("not found")
)
