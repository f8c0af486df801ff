package rpcmoq

import (
	"context"

	"github.com/aerodome-usa/rpcmoq/moq"
	"github.com/aerodome-usa/rpcmoq/session"
	"github.com/aerodome-usa/rpcmoq/wireerr"
	"go.uber.org/zap"
)

// Connector is the user-supplied bridge from a decoded request stream to a
// response stream: given the client id and the decoded inbound, it
// produces a channel of responses (or an error if it couldn't even get
// started, e.g. the downstream gRPC dial failed).
//
// A plain (<-chan Result[Resp], error) return keeps this idiomatic Go — an
// unbuffered channel composes naturally with the dispatcher's receive loop
// without needing a boxed future or stream type.
type Connector[Req, Resp any] func(ctx context.Context, clientID string, inbound *DecodedInbound[Req]) (<-chan Result[Resp], error)

// Result carries one response item or a terminal backend error, one
// Result per streamed item rather than a single call-scoped error.
type Result[Resp any] struct {
	Value Resp
	Err   error
}

// ConnectionGuard bundles the two resources a live session holds: the
// session-registry slot and the response broadcast producer. Releasing it
// releases both, so a session can never outlive its response broadcast or
// vice versa.
type ConnectionGuard struct {
	sessionGuard *session.Guard
	broadcast    moq.BroadcastProducer
}

// Release evicts the session key and closes the response broadcast. Safe
// to call more than once.
func (g *ConnectionGuard) Release() {
	g.sessionGuard.Release()
	g.broadcast.Close()
}

// erasedHandler is the type-erased registry entry: a lookup table keyed by
// gRPC path method name to a closure that internalizes its own Req/Resp
// decode/encode, letting Register's generic type parameters disappear
// once the handler is stored.
type erasedHandler interface {
	spawn(ctx context.Context, clientID string, inbound *Inbound, outboundTrack moq.TrackProducer, guard *ConnectionGuard, log *zap.Logger)
}

type typedHandler[Req, Resp any] struct {
	connector Connector[Req, Resp]
	decode    func([]byte) (Req, error)
	encode    func(Resp) ([]byte, error)
}

func (h *typedHandler[Req, Resp]) spawn(ctx context.Context, clientID string, inbound *Inbound, outboundTrack moq.TrackProducer, guard *ConnectionGuard, log *zap.Logger) {
	outbound := NewOutbound[Resp](outboundTrack, h.encode)

	go func() {
		defer guard.Release()

		decoded := NewDecodedInbound[Req](inbound, h.decode, func() {
			outbound.AbortApp(wireerr.CodeDecode)
		}, log)

		responses, err := h.connector(ctx, clientID, decoded)
		if err != nil {
			log.Warn("connector failed to establish backend stream", zap.Error(err))
			outbound.AbortApp(wireerr.CodeGrpc)
			return
		}

		for {
			select {
			case result, ok := <-responses:
				if !ok {
					outbound.Close()
					return
				}
				if result.Err != nil {
					log.Warn("backend response stream errored", zap.Error(result.Err))
					outbound.AbortApp(wireerr.CodeGrpc)
					return
				}
				if err := outbound.Send(result.Value); err != nil {
					log.Warn("failed to send response frame", zap.Error(err))
					outbound.AbortApp(wireerr.CodeInternal)
					return
				}
			case <-ctx.Done():
				outbound.Close()
				return
			}
		}
	}()
}
