package rpcmoq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/drone"
	"github.com/aerodome-usa/rpcmoq/moq"
	"github.com/aerodome-usa/rpcmoq/moq/memrelay"
	"github.com/aerodome-usa/rpcmoq/wireerr"
)

// echoConnector returns every request it receives, unchanged, until the
// inbound stream ends.
func echoConnector(ctx context.Context, clientID string, inbound *DecodedInbound[drone.EchoRequest]) (<-chan Result[drone.EchoResponse], error) {
	out := make(chan Result[drone.EchoResponse])
	go func() {
		defer close(out)
		for {
			req, err := inbound.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- Result[drone.EchoResponse]{Value: drone.EchoResponse{Payload: req.Payload}}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func failingConnector(ctx context.Context, clientID string, inbound *DecodedInbound[drone.EchoRequest]) (<-chan Result[drone.EchoResponse], error) {
	return nil, errors.New("backend unavailable")
}

func newTestRouter(hub *memrelay.Hub) *Router {
	return NewRouter(hub, RouterConfig{ClientPrefix: "client", ResponsePrefix: "server", TrackName: "primary"}, nil)
}

func dialClient(ctx context.Context, t *testing.T, hub *memrelay.Hub, clientID, grpcPath string) *Connection[drone.EchoRequest, drone.EchoResponse] {
	t.Helper()
	cfg := DefaultClientConfig(clientID)
	cfg.Timeout = 2 * time.Second
	conn, err := Connect[drone.EchoRequest, drone.EchoResponse](ctx, hub, grpcPath, cfg, codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}

func TestHappyEcho(t *testing.T) {
	hub := memrelay.NewHub()
	r := newTestRouter(hub)
	Register[drone.EchoRequest, drone.EchoResponse](r, "drone.EchoService/Echo", codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{}, echoConnector)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go r.Run(ctx)

	conn := dialClient(ctx, t, hub, "drone-1", "drone.EchoService/Echo")
	defer conn.Close()

	if err := conn.Send(drone.EchoRequest{Payload: "p:1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := conn.Send(drone.EchoRequest{Payload: "p:2"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	resp1, err := conn.Recv(ctx)
	if err != nil || resp1.Payload != "p:1" {
		t.Fatalf("Recv 1 = %+v, err = %v", resp1, err)
	}
	resp2, err := conn.Recv(ctx)
	if err != nil || resp2.Payload != "p:2" {
		t.Fatalf("Recv 2 = %+v, err = %v", resp2, err)
	}
}

func TestNoHandler(t *testing.T) {
	hub := memrelay.NewHub()
	r := newTestRouter(hub)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go r.Run(ctx)

	conn := dialClient(ctx, t, hub, "drone-1", "drone.EchoService/Echo")
	defer conn.Close()

	_, err := conn.Recv(ctx)
	appErr, ok := err.(*moq.AppError)
	if !ok || appErr.Code != wireerr.CodeNoHandler {
		t.Fatalf("expected NoHandler abort, got %v", err)
	}
}

func TestDuplicateSession(t *testing.T) {
	hub := memrelay.NewHub()
	r := newTestRouter(hub)

	block := make(chan struct{})
	Register[drone.EchoRequest, drone.EchoResponse](r, "drone.EchoService/Echo", codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{},
		func(ctx context.Context, clientID string, inbound *DecodedInbound[drone.EchoRequest]) (<-chan Result[drone.EchoResponse], error) {
			out := make(chan Result[drone.EchoResponse])
			go func() {
				<-block
				close(out)
			}()
			return out, nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go r.Run(ctx)

	first := dialClient(ctx, t, hub, "drone-1", "drone.EchoService/Echo")
	defer first.Close()
	defer close(block)

	time.Sleep(50 * time.Millisecond)
	if r.ActiveSessions() != 1 {
		t.Fatalf("expected 1 active session, got %d", r.ActiveSessions())
	}

	second, err := func() (*Connection[drone.EchoRequest, drone.EchoResponse], error) {
		cfg := DefaultClientConfig("drone-1")
		cfg.Timeout = 2 * time.Second
		return Connect[drone.EchoRequest, drone.EchoResponse](ctx, hub, "drone.EchoService/Echo", cfg, codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{})
	}()
	if err != nil {
		t.Fatalf("Connect (second): %v", err)
	}
	defer second.Close()

	_, err = second.Recv(ctx)
	appErr, ok := err.(*moq.AppError)
	if !ok || appErr.Code != wireerr.CodeSessionAlreadyActive {
		t.Fatalf("expected SessionAlreadyActive abort, got %v", err)
	}
	if r.ActiveSessions() != 1 {
		t.Fatalf("expected first call unaffected, got %d active sessions", r.ActiveSessions())
	}
}

func TestBadFrame(t *testing.T) {
	hub := memrelay.NewHub()
	r := newTestRouter(hub)
	Register[drone.EchoRequest, drone.EchoResponse](r, "drone.EchoService/Echo", codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{}, echoConnector)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go r.Run(ctx)

	clientBroadcast := hub.CreateBroadcast("client/drone-1/drone.EchoService/Echo")
	if clientBroadcast == nil {
		t.Fatal("failed to create client broadcast directly")
	}
	defer clientBroadcast.Close()
	track := clientBroadcast.CreateTrack("primary")

	serverAnnounced := hub.Announced().WithRoot("server/drone-1/drone.EchoService/Echo")
	ann, err := serverAnnounced.Announced(ctx)
	if err != nil {
		t.Fatalf("waiting for response broadcast: %v", err)
	}

	track.WriteFrame([]byte("not valid json"))

	inbound := NewInbound(ann.Broadcast, "primary")
	_, recvErr := inbound.Next(ctx)
	appErr, ok := recvErr.(*moq.AppError)
	if !ok || appErr.Code != wireerr.CodeDecode {
		t.Fatalf("expected Decode abort, got %v", recvErr)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.ActiveSessions() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected session freed, got %d active", r.ActiveSessions())
}

func TestBackendFailure(t *testing.T) {
	hub := memrelay.NewHub()
	r := newTestRouter(hub)
	Register[drone.EchoRequest, drone.EchoResponse](r, "drone.EchoService/Echo", codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{}, failingConnector)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go r.Run(ctx)

	conn := dialClient(ctx, t, hub, "drone-1", "drone.EchoService/Echo")
	defer conn.Close()

	_, err := conn.Recv(ctx)
	appErr, ok := err.(*moq.AppError)
	if !ok || appErr.Code != wireerr.CodeGrpc {
		t.Fatalf("expected Grpc abort, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.ActiveSessions() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected session freed, got %d active", r.ActiveSessions())
}

func TestNestedPackagePath(t *testing.T) {
	hub := memrelay.NewHub()
	r := newTestRouter(hub)
	Register[drone.EchoRequest, drone.EchoResponse](r, "com.example.drone.EchoService/Echo", codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{}, echoConnector)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go r.Run(ctx)

	conn := dialClient(ctx, t, hub, "r/fleet/d-9", "com.example.drone.EchoService/Echo")
	defer conn.Close()

	if err := conn.Send(drone.EchoRequest{Payload: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp, err := conn.Recv(ctx)
	if err != nil || resp.Payload != "hi" {
		t.Fatalf("Recv = %+v, err = %v", resp, err)
	}
}
