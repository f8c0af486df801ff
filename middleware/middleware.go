// Package middleware implements the onion model middleware chain for
// rpcmoq connectors.
//
// Middleware wraps a Connector to add cross-cutting concerns (logging,
// timeout, rate limiting, retry) without modifying the connector itself.
// The unit of work here is the connector's setup step — the call that
// turns a decoded inbound stream into a channel of responses — rather than
// a single (Args, Reply) pair, since the response stream itself is already
// owned by the router's dispatch loop by the time middleware would see it.
//
// Onion model execution order:
//
//	Chain(A, B, C)(connector)  →  A(B(C(connector)))
//
//	Setup:  A.before → B.before → C.before → connector
//	Return: connector → C.after → B.after → A.after
package middleware

import "github.com/aerodome-usa/rpcmoq/rpcmoq"

// Middleware takes a connector and returns a new connector wrapping it.
type Middleware[Req, Resp any] func(next rpcmoq.Connector[Req, Resp]) rpcmoq.Connector[Req, Resp]

// Chain composes multiple middlewares into one. The first middleware in
// the list is the outermost layer: it runs first on setup and last on
// return.
//
// Example:
//
//	chain := Chain(LoggingMiddleware[Req, Resp](grpcPath, log), TimeoutMiddleware[Req, Resp](5*time.Second))
//	connector := chain(businessConnector)
func Chain[Req, Resp any](middlewares ...Middleware[Req, Resp]) Middleware[Req, Resp] {
	return func(next rpcmoq.Connector[Req, Resp]) rpcmoq.Connector[Req, Resp] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
