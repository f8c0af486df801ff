package middleware

import (
	"context"
	"errors"

	"github.com/aerodome-usa/rpcmoq/rpcmoq"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when RateLimitMiddleware rejects a new
// session admission because the token bucket is empty.
var ErrRateLimited = errors.New("rpcmoq: rate limit exceeded")

// RateLimitMiddleware gates new session admission with a token bucket:
// tokens refill at r per second up to burst, and each call to the
// wrapped connector's setup step consumes one token. The limiter is
// created once per middleware instance and shared across every call
// through it — a fresh limiter per request would defeat the bucket
// entirely.
//
// Parameters:
//   - r: token refill rate (tokens per second)
//   - burst: maximum bucket size
func RateLimitMiddleware[Req, Resp any](r float64, burst int) Middleware[Req, Resp] {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next rpcmoq.Connector[Req, Resp]) rpcmoq.Connector[Req, Resp] {
		return func(ctx context.Context, clientID string, inbound *rpcmoq.DecodedInbound[Req]) (<-chan rpcmoq.Result[Resp], error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, clientID, inbound)
		}
	}
}
