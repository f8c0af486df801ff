package middleware

import (
	"context"
	"time"

	"github.com/aerodome-usa/rpcmoq/rpcmoq"
	"go.uber.org/zap"
)

// LoggingMiddleware records the gRPC path, setup duration, and any setup
// error for each call. grpcPath is fixed at Register time, since a
// connector wrapped by this middleware is always registered under exactly
// one path.
//
// Example log fields: grpc_path=drone.EchoService/Echo duration=42µs
func LoggingMiddleware[Req, Resp any](grpcPath string, log *zap.Logger) Middleware[Req, Resp] {
	return func(next rpcmoq.Connector[Req, Resp]) rpcmoq.Connector[Req, Resp] {
		return func(ctx context.Context, clientID string, inbound *rpcmoq.DecodedInbound[Req]) (<-chan rpcmoq.Result[Resp], error) {
			start := time.Now()
			responses, err := next(ctx, clientID, inbound)
			duration := time.Since(start)
			if err != nil {
				log.Warn("connector setup failed",
					zap.String("grpc_path", grpcPath),
					zap.String("client_id", clientID),
					zap.Duration("duration", duration),
					zap.Error(err))
				return nil, err
			}
			log.Info("connector established",
				zap.String("grpc_path", grpcPath),
				zap.String("client_id", clientID),
				zap.Duration("duration", duration))
			return responses, nil
		}
	}
}
