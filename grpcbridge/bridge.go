package grpcbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aerodome-usa/rpcmoq/codec"
	"github.com/aerodome-usa/rpcmoq/loadbalance"
	"github.com/aerodome-usa/rpcmoq/registry"
	"github.com/aerodome-usa/rpcmoq/rpcmoq"
	"google.golang.org/grpc"
)

// Bridge locates and dials the downstream gRPC backend for a gRPC path.
type Bridge struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	pool     *ConnPool
}

// NewBridge builds a Bridge over the given discovery registry, instance
// selector, and connection pool.
func NewBridge(reg registry.Registry, balancer loadbalance.Balancer, pool *ConnPool) *Bridge {
	return &Bridge{registry: reg, balancer: balancer, pool: pool}
}

// Connector returns an rpcmoq.Connector[Req, Resp] for grpcPath: on each
// call it discovers backend instances, picks one, opens a bidi-streaming
// gRPC call to the corresponding method, forwards every decoded inbound
// request onto it, and decodes every gRPC response frame back into Resp.
func Connector[Req, Resp any](b *Bridge, grpcPath string, reqCodec codec.Codec[Req], respCodec codec.Codec[Resp]) rpcmoq.Connector[Req, Resp] {
	method := wireMethod(grpcPath)

	return func(ctx context.Context, clientID string, inbound *rpcmoq.DecodedInbound[Req]) (<-chan rpcmoq.Result[Resp], error) {
		instances, err := b.registry.Discover(grpcPath)
		if err != nil {
			return nil, fmt.Errorf("grpcbridge: discover %q: %w", grpcPath, err)
		}
		if len(instances) == 0 {
			return nil, fmt.Errorf("grpcbridge: no instances registered for %q", grpcPath)
		}
		instance, err := b.balancer.Pick(instances)
		if err != nil {
			return nil, fmt.Errorf("grpcbridge: pick instance for %q: %w", grpcPath, err)
		}

		conn, err := b.pool.Get(instance.Addr)
		if err != nil {
			return nil, fmt.Errorf("grpcbridge: dial %q: %w", instance.Addr, err)
		}

		stream, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, method, grpc.CallContentSubtype(codecName))
		if err != nil {
			return nil, fmt.Errorf("grpcbridge: open stream for %q at %q: %w", grpcPath, instance.Addr, err)
		}

		go forwardRequests(ctx, inbound, reqCodec, stream)

		out := make(chan rpcmoq.Result[Resp])
		go receiveResponses(stream, respCodec, out)
		return out, nil
	}
}

func forwardRequests[Req any](ctx context.Context, inbound *rpcmoq.DecodedInbound[Req], reqCodec codec.Codec[Req], stream grpc.ClientStream) {
	defer stream.CloseSend()
	for {
		req, err := inbound.Next(ctx)
		if err != nil {
			return
		}
		data, err := reqCodec.Encode(req)
		if err != nil {
			return
		}
		if err := stream.SendMsg(rawFrame(data)); err != nil {
			return
		}
	}
}

func receiveResponses[Resp any](stream grpc.ClientStream, respCodec codec.Codec[Resp], out chan<- rpcmoq.Result[Resp]) {
	defer close(out)
	for {
		var frame rawFrame
		if err := stream.RecvMsg(&frame); err != nil {
			if !errors.Is(err, io.EOF) {
				out <- rpcmoq.Result[Resp]{Err: err}
			}
			return
		}
		resp, err := respCodec.Decode(frame)
		if err != nil {
			out <- rpcmoq.Result[Resp]{Err: err}
			return
		}
		out <- rpcmoq.Result[Resp]{Value: resp}
	}
}

// wireMethod converts a rpcmoq gRPC path ("pkg.Service/Method") into the
// leading-slash form gRPC expects on the wire ("/pkg.Service/Method").
func wireMethod(grpcPath string) string {
	if strings.HasPrefix(grpcPath, "/") {
		return grpcPath
	}
	return "/" + grpcPath
}
