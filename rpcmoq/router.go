// Package rpcmoq is the core RPC-over-MoQ routing and session layer: path
// grammar and session registry are borrowed from rpcpath and session;
// this package owns the inbound/outbound adapters, the type-erased
// handler registry, the Router that observes announcements and dispatches
// to per-method handlers, and the Client connector that mirrors it from
// the caller's side.
//
// The Router's accept-loop-plus-dispatch shape and the Client's call
// lifecycle are generalized from a single-shot unary call over a TCP
// connection to a long-lived bidirectional stream over a MoQ broadcast
// pair.
package rpcmoq

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/moq"
	"github.com/aerodome-usa/rpcmoq/rpcpath"
	"github.com/aerodome-usa/rpcmoq/session"
	"github.com/aerodome-usa/rpcmoq/wireerr"
	"go.uber.org/zap"
)

// RouterConfig names the three namespace roots a Router operates under.
// Zero value fields fall back to the documented defaults via
// DefaultRouterConfig.
type RouterConfig struct {
	ClientPrefix   string // default "client"
	ResponsePrefix string // default "server"
	TrackName      string // default "primary"
}

// DefaultRouterConfig returns the standard client/server/primary namespace
// roots used when no override is needed.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{ClientPrefix: "client", ResponsePrefix: "server", TrackName: "primary"}
}

func (c RouterConfig) responsePath(clientID, grpcPath string) string {
	return fmt.Sprintf("%s/%s/%s", c.ResponsePrefix, clientID, grpcPath)
}

// Router observes client announcements under ClientPrefix and dispatches
// each to the handler registered for its gRPC path.
type Router struct {
	origin   moq.Origin
	sessions *session.Registry
	config   RouterConfig
	log      *zap.Logger

	mu       sync.RWMutex
	handlers map[string]erasedHandler
}

// NewRouter creates a router over origin. log may be nil (defaults to a
// no-op logger).
func NewRouter(origin moq.Origin, config RouterConfig, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if config.ClientPrefix == "" {
		config.ClientPrefix = "client"
	}
	if config.ResponsePrefix == "" {
		config.ResponsePrefix = "server"
	}
	if config.TrackName == "" {
		config.TrackName = "primary"
	}
	return &Router{
		origin:   origin,
		sessions: session.NewRegistry(),
		config:   config,
		log:      log,
		handlers: make(map[string]erasedHandler),
	}
}

// Register installs a typed handler for grpcPath. Re-registration
// overwrites the previous handler (spec.md §9 open question (b)). Safe
// only before Run, or from tests.
func Register[Req, Resp any](r *Router, grpcPath string, reqCodec codec.Codec[Req], respCodec codec.Codec[Resp], connector Connector[Req, Resp]) {
	h := &typedHandler[Req, Resp]{
		connector: connector,
		decode:    reqCodec.Decode,
		encode:    respCodec.Encode,
	}
	r.mu.Lock()
	r.handlers[grpcPath] = h
	r.mu.Unlock()
	r.log.Info("registered RPC handler", zap.String("grpc_path", grpcPath))
}

// HasHandler reports whether a handler is registered for grpcPath.
func (r *Router) HasHandler(grpcPath string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[grpcPath]
	return ok
}

// ActiveSessions returns the number of live sessions.
func (r *Router) ActiveSessions() int {
	return r.sessions.Len()
}

// Run loops awaiting announcements under ClientPrefix until the origin's
// announcement stream ends or ctx is cancelled. A single announcement's
// failure is logged and skipped; it never stops the loop.
func (r *Router) Run(ctx context.Context) error {
	announced := r.origin.Announced()
	if r.config.ClientPrefix != "" {
		announced = announced.WithRoot(r.config.ClientPrefix + "/")
		if announced == nil {
			return fmt.Errorf("rpcmoq: client prefix %q not authorized by transport", r.config.ClientPrefix)
		}
	}

	r.log.Info("router started", zap.String("client_prefix", r.config.ClientPrefix))

	for {
		ann, err := announced.Announced(ctx)
		if err != nil {
			r.log.Info("announcement stream closed, router shutting down", zap.Error(err))
			return nil
		}

		if ann.Broadcast == nil {
			r.log.Debug("client disconnected", zap.String("path", ann.Path))
			continue
		}

		if err := r.handleAnnouncement(ctx, ann.Path, ann.Broadcast); err != nil {
			r.log.Warn("failed to handle announcement", zap.String("path", ann.Path), zap.Error(err))
		}
	}
}

// handleAnnouncement implements the ordering mandated by spec.md §4.6: the
// response broadcast is created before handler lookup and before session
// admission, so the router can always deliver a precise abort code to the
// client — even a rejection costs one transient broadcast publication,
// acceptable since the relay is in-process or on the local network.
func (r *Router) handleAnnouncement(ctx context.Context, path string, broadcast moq.BroadcastConsumer) error {
	// WithRoot narrows announcements but keeps their full path, so the
	// client prefix is stripped before the client id is parsed out.
	reqPath, err := rpcpath.ParseRpcRequestPath(strings.TrimPrefix(path, r.config.ClientPrefix+"/"))
	if err != nil {
		return fmt.Errorf("rpcmoq: invalid announcement path %q: %w", path, err)
	}
	clientID := reqPath.ClientID
	grpcPath := reqPath.Grpc.FullPath()

	responsePath := r.config.responsePath(clientID, grpcPath)
	respBroadcast := r.origin.CreateBroadcast(responsePath)
	if respBroadcast == nil {
		return fmt.Errorf("rpcmoq: failed to create response broadcast at %q", responsePath)
	}

	outboundTrack := respBroadcast.CreateTrack(r.config.TrackName)

	r.mu.RLock()
	handler, ok := r.handlers[grpcPath]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("no handler registered for gRPC path", zap.String("client_id", clientID), zap.String("grpc_path", grpcPath))
		outboundTrack.Abort(wireerr.CodeNoHandler)
		respBroadcast.Close()
		return wireerr.NoHandler
	}

	sessionKey := session.Key{ClientID: clientID, GrpcPath: grpcPath}
	sessionGuard, err := r.sessions.TryCreate(sessionKey)
	if err != nil {
		outboundTrack.Abort(wireerr.CodeSessionAlreadyActive)
		respBroadcast.Close()
		return err
	}

	inbound := NewInbound(broadcast, r.config.TrackName)
	guard := &ConnectionGuard{sessionGuard: sessionGuard, broadcast: respBroadcast}

	r.log.Info("spawning handler for new connection",
		zap.String("client_id", clientID),
		zap.String("grpc_path", grpcPath),
		zap.String("response_path", responsePath))

	handler.spawn(ctx, clientID, inbound, outboundTrack, guard, r.log)
	return nil
}
