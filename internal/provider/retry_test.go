package provider

import (
	"context"
	"encoding/json"
	"testing"

	rengaErrors "github.com/harunnryd/renga/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithReadRetryTransient(t *testing.T) {
	calls := 0

	payload, err := WithReadRetry(context.Background(), 2, func() (json.RawMessage, error) {
		calls++
		if calls < 3 {
			return nil, rengaErrors.Transient("rate limited")
		}
		return json.RawMessage(`{}`), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.NotNil(t, payload)
}

func TestWithReadRetryExhausted(t *testing.T) {
	calls := 0

	_, err := WithReadRetry(context.Background(), 2, func() (json.RawMessage, error) {
		calls++
		return nil, rengaErrors.Transient("still down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithReadRetryNonRetryableStopsImmediately(t *testing.T) {
	calls := 0

	_, err := WithReadRetry(context.Background(), 5, func() (json.RawMessage, error) {
		calls++
		return nil, rengaErrors.InvalidInput("bad arguments")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithReadRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := WithReadRetry(ctx, 2, func() (json.RawMessage, error) {
		calls++
		return nil, rengaErrors.Transient("down")
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestProtectConvertsPanic(t *testing.T) {
	res := Protect(func() (json.RawMessage, error) {
		panic("boom")
	})

	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "boom")
}

func TestProtectPassesThroughSuccess(t *testing.T) {
	res := Protect(func() (json.RawMessage, error) {
		return json.RawMessage(`{"ok": true}`), nil
	})

	require.False(t, res.IsError())
	assert.JSONEq(t, `{"ok": true}`, string(res.Payload))
}
