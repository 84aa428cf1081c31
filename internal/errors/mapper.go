package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MapError maps external errors to the renga error taxonomy.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	// Propagate context cancellation as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	// Already categorized
	for _, sentinel := range []error{
		ErrConfiguration, ErrModelCall, ErrUnknownTool, ErrAmbiguousTool,
		ErrDuplicateTool, ErrInvalidInput, ErrNotFound, ErrPermissionDenied,
		ErrTransient, ErrProviderClosed, ErrInternal,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	// Map based on error message content
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("%v: %w", err, ErrNotFound)

	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "forbidden"):
		return fmt.Errorf("%v: %w", err, ErrPermissionDenied)

	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "quota"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("%v: %w", err, ErrTransient)

	case strings.Contains(errStr, "invalid input"), strings.Contains(errStr, "invalid request"), strings.Contains(errStr, "bad request"):
		return fmt.Errorf("%v: %w", err, ErrInvalidInput)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("%v: %w", err, ErrTransient)

	case strings.Contains(errStr, "network"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"), strings.Contains(errStr, "broken pipe"):
		return fmt.Errorf("%v: %w", err, ErrTransient)

	default:
		return fmt.Errorf("%v: %w", err, ErrInternal)
	}
}

// MapHTTPStatus maps a remote status code to an error category.
// 2xx maps to nil.
func MapHTTPStatus(status int, body string) error {
	detail := strings.TrimSpace(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("remote returned %d: %s: %w", status, detail, ErrPermissionDenied)
	case status == http.StatusNotFound:
		return fmt.Errorf("remote returned %d: %s: %w", status, detail, ErrNotFound)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("remote returned %d: %s: %w", status, detail, ErrTransient)
	case status >= 400 && status < 500:
		return fmt.Errorf("remote returned %d: %s: %w", status, detail, ErrInvalidInput)
	case status >= 500:
		return fmt.Errorf("remote returned %d: %s: %w", status, detail, ErrTransient)
	default:
		return fmt.Errorf("remote returned %d: %s: %w", status, detail, ErrInternal)
	}
}

// IsRetryable reports whether an idempotent operation may be retried after err.
// Cancellation and validation failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Configuration wraps a message as a configuration error.
func Configuration(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConfiguration)
}

// InvalidInput wraps a message as an invalid input error.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps a message as a transient error.
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps a message as an internal error.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}
