package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorNil(t *testing.T) {
	require.NoError(t, MapError(nil))
}

func TestMapErrorContextPassthrough(t *testing.T) {
	err := MapError(context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTransient))

	err = MapError(context.DeadlineExceeded)
	assert.True(t, errors.Is(err, ErrTransient))
}

func TestMapErrorAlreadyCategorized(t *testing.T) {
	wrapped := fmt.Errorf("loading config: %w", ErrConfiguration)

	err := MapError(wrapped)
	assert.Equal(t, wrapped, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestMapErrorMessageHeuristics(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category error
	}{
		{name: "not found", input: "page does not exist", category: ErrNotFound},
		{name: "unauthorized", input: "401 unauthorized", category: ErrPermissionDenied},
		{name: "rate limit", input: "rate limit exceeded", category: ErrTransient},
		{name: "bad request", input: "bad request: missing field", category: ErrInvalidInput},
		{name: "timeout", input: "i/o timeout", category: ErrTransient},
		{name: "connection", input: "connection refused", category: ErrTransient},
		{name: "unclassified", input: "something odd happened", category: ErrInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := MapError(errors.New(tc.input))
			assert.True(t, errors.Is(err, tc.category), "want %v for %q, got %v", tc.category, tc.input, err)
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category error
	}{
		{name: "ok", status: http.StatusOK, category: nil},
		{name: "created", status: http.StatusCreated, category: nil},
		{name: "unauthorized", status: http.StatusUnauthorized, category: ErrPermissionDenied},
		{name: "forbidden", status: http.StatusForbidden, category: ErrPermissionDenied},
		{name: "not found", status: http.StatusNotFound, category: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, category: ErrTransient},
		{name: "other 4xx", status: http.StatusUnprocessableEntity, category: ErrInvalidInput},
		{name: "server error", status: http.StatusInternalServerError, category: ErrTransient},
		{name: "bad gateway", status: http.StatusBadGateway, category: ErrTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := MapHTTPStatus(tc.status, "details")
			if tc.category == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.category))
		})
	}
}

func TestMapHTTPStatusTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", 500)

	err := MapHTTPStatus(http.StatusInternalServerError, body)
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 300)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(InvalidInput("bad args")))
	assert.False(t, IsRetryable(fmt.Errorf("no access: %w", ErrPermissionDenied)))

	assert.True(t, IsRetryable(Transient("rate limited")))
	assert.True(t, IsRetryable(MapHTTPStatus(http.StatusServiceUnavailable, "")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))

	err := Wrap(ErrNotFound, "fetching page")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "fetching page")
}
