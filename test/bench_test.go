package test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/drone"
	"github.com/aerodome-usa/rpcmoq/moq/memrelay"
	"github.com/aerodome-usa/rpcmoq/moq/netrelay"
	"github.com/aerodome-usa/rpcmoq/rpcmoq"
	"go.uber.org/zap"
)

// setupBenchRouter mirrors startRouter from integration_test.go but
// returns only a single cleanup func (the caller already holds addr), the
// shape the benchmarks below need.
func setupBenchRouter(b *testing.B, addr string) func() {
	b.Helper()
	hub := memrelay.NewHub()
	relay := netrelay.NewServer(hub)
	router := rpcmoq.NewRouter(hub, rpcmoq.DefaultRouterConfig(), zap.NewNop())
	rpcmoq.Register(router, "drone.EchoService/Echo",
		codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{}, echoConnector)

	ctx, cancel := context.WithCancel(context.Background())
	go relay.ListenAndServe(addr)
	go router.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	return func() {
		cancel()
		relay.Close()
	}
}

func dialAndConnect(b *testing.B, addr, clientID string) *rpcmoq.Connection[drone.EchoRequest, drone.EchoResponse] {
	b.Helper()
	origin, err := netrelay.Dial(addr)
	if err != nil {
		b.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := rpcmoq.DefaultClientConfig(clientID)
	conn, err := rpcmoq.Connect(ctx, origin, "drone.EchoService/Echo", cfg,
		codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{})
	if err != nil {
		b.Fatal(err)
	}
	return conn
}

// BenchmarkSerialCall drives one connection, one request at a time.
func BenchmarkSerialCall(b *testing.B) {
	addr := "127.0.0.1:29090"
	stop := setupBenchRouter(b, addr)
	b.Cleanup(stop)

	conn := dialAndConnect(b, addr, "bench-serial")
	b.Cleanup(conn.Close)

	ctx := context.Background()
	req := drone.EchoRequest{Payload: "ping"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := conn.Send(req); err != nil {
			b.Fatal(err)
		}
		if _, err := conn.Recv(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkConcurrentCall drives one connection per goroutine, exercising
// the router's ability to hold many concurrent sessions rather than one
// transport's multiplexing (rpcmoq sessions are one-per-client-per-method,
// so each goroutine needs its own client ID).
func BenchmarkConcurrentCall(b *testing.B) {
	addr := "127.0.0.1:29091"
	stop := setupBenchRouter(b, addr)
	b.Cleanup(stop)

	var nextID atomic.Int64
	b.RunParallel(func(pb *testing.PB) {
		clientID := fmt.Sprintf("bench-concurrent-%d", nextID.Add(1))
		conn := dialAndConnect(b, addr, clientID)
		defer conn.Close()

		ctx := context.Background()
		req := drone.EchoRequest{Payload: "ping"}
		for pb.Next() {
			if err := conn.Send(req); err != nil {
				b.Error(err)
				return
			}
			if _, err := conn.Recv(ctx); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkCodecJSON measures JSONCodec's encode/decode cost in
// isolation, off the network path.
func BenchmarkCodecJSON(b *testing.B) {
	c := codec.JSONCodec[drone.EchoRequest]{}
	req := drone.EchoRequest{Payload: "the quick brown fox"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := c.Encode(req)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := c.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCodecBinary measures BinaryCodec against drone.Position, the
// type it was built to exercise.
func BenchmarkCodecBinary(b *testing.B) {
	c := codec.BinaryCodec[drone.Position, *drone.Position]{}
	pos := drone.Position{Lat: 37.7749, Lon: -122.4194, AltM: 120.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := c.Encode(pos)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := c.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
