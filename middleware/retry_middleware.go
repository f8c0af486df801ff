package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aerodome-usa/rpcmoq/rpcmoq"
	"go.uber.org/zap"
)

// RetryMiddleware retries a connector's setup step on transient failures —
// never a mid-stream send, which the core aborts immediately rather than
// retrying. An error is treated as transient if it's ErrSetupTimedOut or
// its message mentions "timeout" or "connection refused"; anything else
// is returned to the caller unchanged on the first attempt.
func RetryMiddleware[Req, Resp any](maxRetries int, baseDelay time.Duration, log *zap.Logger) Middleware[Req, Resp] {
	return func(next rpcmoq.Connector[Req, Resp]) rpcmoq.Connector[Req, Resp] {
		return func(ctx context.Context, clientID string, inbound *rpcmoq.DecodedInbound[Req]) (<-chan rpcmoq.Result[Resp], error) {
			responses, err := next(ctx, clientID, inbound)
			for attempt := 0; attempt < maxRetries; attempt++ {
				if err == nil {
					return responses, nil
				}
				if !isRetryable(err) {
					return nil, err
				}
				log.Info("retrying connector setup",
					zap.String("client_id", clientID),
					zap.Int("attempt", attempt+1),
					zap.Error(err))
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				responses, err = next(ctx, clientID, inbound)
			}
			return responses, err
		}
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrSetupTimedOut) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused")
}
