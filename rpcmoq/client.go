package rpcmoq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/moq"
)

// ClientConfig configures a Connect call. Zero value fields fall back to
// DefaultClientConfig's defaults except ClientID, which callers must set.
type ClientConfig struct {
	ClientPrefix string        // default "client"
	ServerPrefix string        // default "server"
	TrackName    string        // default "primary"
	ClientID     string        // required
	Timeout      time.Duration // default 30s
}

// DefaultClientConfig returns the standard namespace roots and a 30s setup
// timeout for clientID.
func DefaultClientConfig(clientID string) ClientConfig {
	return ClientConfig{
		ClientPrefix: "client",
		ServerPrefix: "server",
		TrackName:    "primary",
		ClientID:     clientID,
		Timeout:      30 * time.Second,
	}
}

func (c ClientConfig) clientPath(grpcPath string) string {
	return fmt.Sprintf("%s/%s/%s", c.ClientPrefix, c.ClientID, grpcPath)
}

func (c ClientConfig) serverPath(grpcPath string) string {
	return fmt.Sprintf("%s/%s/%s", c.ServerPrefix, c.ClientID, grpcPath)
}

// ErrTimeout is returned by Connect when the server's response broadcast
// does not appear within the configured timeout.
var ErrTimeout = errors.New("rpcmoq: timed out waiting for server response broadcast")

// ErrServerNotFound is returned by Connect when the transport's
// announcement stream closes before the server's response broadcast
// appears.
var ErrServerNotFound = errors.New("rpcmoq: server closed without announcing a response broadcast")

// Connect mirrors the router from the caller's side: it announces a
// request broadcast at {ClientPrefix}/{ClientID}/{grpcPath}, waits for the
// server's matching response broadcast at
// {ServerPrefix}/{ClientID}/{grpcPath}, and returns a Connection that is
// both a sink of Req and a source of Resp.
func Connect[Req, Resp any](ctx context.Context, origin moq.Origin, grpcPath string, config ClientConfig, reqCodec codec.Codec[Req], respCodec codec.Codec[Resp]) (*Connection[Req, Resp], error) {
	if config.ClientPrefix == "" {
		config.ClientPrefix = "client"
	}
	if config.ServerPrefix == "" {
		config.ServerPrefix = "server"
	}
	if config.TrackName == "" {
		config.TrackName = "primary"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	clientPath := config.clientPath(grpcPath)
	serverPath := config.serverPath(grpcPath)

	broadcast := origin.CreateBroadcast(clientPath)
	if broadcast == nil {
		return nil, fmt.Errorf("rpcmoq: failed to create request broadcast at %q", clientPath)
	}
	track := broadcast.CreateTrack(config.TrackName)

	serverBroadcast, err := waitForServer(ctx, origin, serverPath, config.Timeout)
	if err != nil {
		broadcast.Close()
		return nil, err
	}

	inbound := NewInbound(serverBroadcast, config.TrackName)
	outbound := NewOutbound[Req](track, reqCodec.Encode)

	shared := &sharedBroadcast{producer: broadcast}
	shared.refs.Store(2)

	sender := &Sender[Req]{outbound: outbound, shared: shared}
	receiver := &Receiver[Resp]{inbound: inbound, decode: respCodec.Decode, shared: shared}

	return &Connection[Req, Resp]{sender: sender, receiver: receiver}, nil
}

func waitForServer(ctx context.Context, origin moq.Origin, serverPath string, timeout time.Duration) (moq.BroadcastConsumer, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	announced := origin.Announced().WithRoot(serverPath)
	if announced == nil {
		announced = origin.Announced()
	}

	for {
		ann, err := announced.Announced(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ErrServerNotFound
		}
		if ann.Path != serverPath {
			continue
		}
		if ann.Broadcast == nil {
			continue
		}
		return ann.Broadcast, nil
	}
}

// sharedBroadcast implements the "broadcast released when both halves are
// gone" requirement of spec.md §9 with a plain reference count instead of
// a one-shot last-dropper channel — either is a valid reading of the note,
// and a counter is the simpler primitive here since Go has no Drop to hook.
type sharedBroadcast struct {
	producer moq.BroadcastProducer
	refs     atomic.Int32
	once     sync.Once
}

func (s *sharedBroadcast) release() {
	if s.refs.Add(-1) == 0 {
		s.once.Do(func() { s.producer.Close() })
	}
}

// Connection is both a sink of Req and a source of Resp over one call.
// Split separates it into independently ownable halves that share the
// underlying request broadcast.
type Connection[Req, Resp any] struct {
	sender   *Sender[Req]
	receiver *Receiver[Resp]
}

// Send encodes and writes one request frame. Sends are always immediately
// ready; there is no backpressure exposed to the caller.
func (c *Connection[Req, Resp]) Send(msg Req) error {
	return c.sender.Send(msg)
}

// Recv blocks for the next decoded response, or returns an error once the
// stream ends: io.EOF on a clean close, a decode error, or the transport's
// error as-is — a *moq.AppError carrying the abort code on an abort
// (wireerr.FromCode maps that code to a Kind).
func (c *Connection[Req, Resp]) Recv(ctx context.Context) (Resp, error) {
	return c.receiver.Recv(ctx)
}

// Close releases this connection's share of the underlying broadcast.
// Teardown completes once both the sender and receiver close (or both
// halves returned by Split do).
func (c *Connection[Req, Resp]) Close() {
	c.sender.Close()
	c.receiver.Close()
}

// Split separates the connection into independently ownable send/receive
// halves, e.g. to run on separate goroutines.
func (c *Connection[Req, Resp]) Split() (*Sender[Req], *Receiver[Resp]) {
	return c.sender, c.receiver
}

// Sender is the send half of a Connection.
type Sender[Req any] struct {
	outbound *Outbound[Req]
	shared   *sharedBroadcast
	closed   sync.Once
}

// Send encodes and writes one request frame.
func (s *Sender[Req]) Send(msg Req) error {
	return s.outbound.Send(msg)
}

// Close releases this half's share of the underlying broadcast. A no-op
// on repeat calls.
func (s *Sender[Req]) Close() {
	s.closed.Do(s.shared.release)
}

// Receiver is the receive half of a Connection.
type Receiver[Resp any] struct {
	inbound *Inbound
	decode  func([]byte) (Resp, error)
	shared  *sharedBroadcast
	closed  sync.Once
}

// Recv blocks for the next decoded response frame.
func (r *Receiver[Resp]) Recv(ctx context.Context) (Resp, error) {
	var zero Resp
	frame, err := r.inbound.Next(ctx)
	if err != nil {
		return zero, err
	}
	return r.decode(frame)
}

// Close releases this half's share of the underlying broadcast. A no-op
// on repeat calls.
func (r *Receiver[Resp]) Close() {
	r.closed.Do(r.shared.release)
}
