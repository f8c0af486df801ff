// Command rpcmoq-router hosts a moq/netrelay.Server over an in-process
// memrelay.Hub and runs an rpcmoq.Router against it, with a single demo
// handler registered: drone.EchoService/Echo, which just decodes and
// re-encodes the caller's payload back at them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/drone"
	"github.com/aerodome-usa/rpcmoq/middleware"
	"github.com/aerodome-usa/rpcmoq/moq/memrelay"
	"github.com/aerodome-usa/rpcmoq/moq/netrelay"
	"github.com/aerodome-usa/rpcmoq/rpcmoq"
	"go.uber.org/zap"
)

func main() {
	var (
		addr = flag.String("addr", "127.0.0.1:7070", "address to listen on")
	)
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	hub := memrelay.NewHub()
	relay := netrelay.NewServer(hub)

	router := rpcmoq.NewRouter(hub, rpcmoq.DefaultRouterConfig(), log)
	registerEchoHandler(router, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
		relay.Close()
	}()

	go func() {
		if err := relay.ListenAndServe(*addr); err != nil {
			log.Warn("netrelay listener stopped", zap.Error(err))
		}
	}()

	log.Info("router listening", zap.String("addr", *addr))
	if err := router.Run(ctx); err != nil {
		log.Fatal("router exited with error", zap.Error(err))
	}
}

// registerEchoHandler wires drone.EchoService/Echo through a logging
// middleware chain onto a connector that simply streams every
// decoded request straight back as a response.
func registerEchoHandler(router *rpcmoq.Router, log *zap.Logger) {
	const grpcPath = "drone.EchoService/Echo"

	var echo rpcmoq.Connector[drone.EchoRequest, drone.EchoResponse] = func(ctx context.Context, clientID string, inbound *rpcmoq.DecodedInbound[drone.EchoRequest]) (<-chan rpcmoq.Result[drone.EchoResponse], error) {
		out := make(chan rpcmoq.Result[drone.EchoResponse])
		go func() {
			defer close(out)
			for {
				req, err := inbound.Next(ctx)
				if err != nil {
					return
				}
				select {
				case out <- rpcmoq.Result[drone.EchoResponse]{Value: drone.EchoResponse{Payload: req.Payload}}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}

	chain := middleware.Chain[drone.EchoRequest, drone.EchoResponse](
		middleware.LoggingMiddleware[drone.EchoRequest, drone.EchoResponse](grpcPath, log),
	)

	rpcmoq.Register(router, grpcPath, codec.JSONCodec[drone.EchoRequest]{}, codec.JSONCodec[drone.EchoResponse]{}, chain(echo))
}
