package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrConfiguration - required credential or endpoint missing; fatal at startup, never retried
	ErrConfiguration = errors.New("configuration error")

	// ErrModelCall - transport/auth failure talking to the model; fatal to the current process() call
	ErrModelCall = errors.New("model call failed")

	// ErrUnknownTool - no provider exposes the requested operation
	ErrUnknownTool = errors.New("unknown tool")

	// ErrAmbiguousTool - a bare operation name matched more than one provider
	ErrAmbiguousTool = errors.New("ambiguous tool name")

	// ErrDuplicateTool - a (provider, operation) pair registered twice without replacement
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrInvalidInput - malformed arguments or request; never retried
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - remote resource not found
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied - remote rejected credentials or access
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransient - network timeout, rate limit, 5xx; safe to retry idempotent reads
	ErrTransient = errors.New("transient error")

	// ErrProviderClosed - adapter transport is gone (subprocess exited, connection closed)
	ErrProviderClosed = errors.New("provider closed")

	// ErrInternal - anything that fits no other category
	ErrInternal = errors.New("internal error")
)
