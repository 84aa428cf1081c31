package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	rengaErrors "github.com/harunnryd/renga/internal/errors"
)

const retryBaseDelay = 200 * time.Millisecond

// WithReadRetry retries an idempotent read up to maxRetries extra times when
// the failure is transient. Writes must never go through here.
func WithReadRetry(ctx context.Context, maxRetries int, fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := fn()
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if !rengaErrors.IsRetryable(err) {
			return nil, err
		}
		if attempt == maxRetries {
			break
		}

		slog.Warn("Transient read failure, retrying", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * retryBaseDelay):
		}
	}

	return nil, lastErr
}
