package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aerodome-usa/rpcmoq/rpcmoq"
)

// ErrSetupTimedOut is returned when a connector's setup step does not
// complete within TimeoutMiddleware's deadline.
var ErrSetupTimedOut = errors.New("rpcmoq: connector setup timed out")

// TimeoutMiddleware bounds the connector's setup step — the time it takes
// to produce the response channel, not the lifetime of the stream once
// established. A stream that is already flowing is never interrupted by
// this middleware; that would require inventing a cancellation signal the
// connector doesn't otherwise need.
//
// Implementation races the setup call against a deadline: the call runs
// in a goroutine, buffered so it never leaks if the timeout wins the
// race. ctx itself is passed to next unmodified — a successfully
// established connector's response stream must keep running on the
// caller's original context, not one tied to this middleware's setup
// deadline.
func TimeoutMiddleware[Req, Resp any](timeout time.Duration) Middleware[Req, Resp] {
	return func(next rpcmoq.Connector[Req, Resp]) rpcmoq.Connector[Req, Resp] {
		return func(ctx context.Context, clientID string, inbound *rpcmoq.DecodedInbound[Req]) (<-chan rpcmoq.Result[Resp], error) {
			type setupResult struct {
				responses <-chan rpcmoq.Result[Resp]
				err       error
			}
			done := make(chan setupResult, 1)
			go func() {
				responses, err := next(ctx, clientID, inbound)
				done <- setupResult{responses, err}
			}()

			timer := time.NewTimer(timeout)
			defer timer.Stop()

			select {
			case result := <-done:
				return result.responses, result.err
			case <-timer.C:
				return nil, ErrSetupTimedOut
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}
