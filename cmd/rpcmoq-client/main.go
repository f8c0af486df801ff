// Command rpcmoq-client dials a moq/netrelay.Server, connects to
// drone.EchoService/Echo through rpcmoq, sends one request, prints the
// response, and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/drone"
	"github.com/aerodome-usa/rpcmoq/moq/netrelay"
	"github.com/aerodome-usa/rpcmoq/rpcmoq"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:7070", "router netrelay address")
		clientID = flag.String("client-id", "demo-client", "rpcmoq client id")
		payload  = flag.String("payload", "hello from rpcmoq-client", "echo payload")
		timeout  = flag.Duration("timeout", 10*time.Second, "connect timeout")
	)
	flag.Parse()

	origin, err := netrelay.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer origin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := rpcmoq.DefaultClientConfig(*clientID)
	cfg.Timeout = *timeout

	conn, err := rpcmoq.Connect(ctx, origin, "drone.EchoService/Echo", cfg,
		codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.Send(drone.EchoRequest{Payload: *payload}); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	resp, err := conn.Recv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recv: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(resp.Payload)
}
