package service

import "errors"

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Validation errors
var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidRole  = errors.New("role outside the allowed set")
)

// Scheduler specific errors
var (
	ErrAlreadyScheduled = errors.New("participant already has a scheduled match")
)

// Coordinator specific errors
var (
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)
