// Package grpcbridge builds rpcmoq Connectors backed by a downstream gRPC
// bidi-streaming method, located via registry + loadbalance and dialed
// through a shared connection pool. It is optional infrastructure: the
// core rpcmoq package has zero dependency on it, and a user is free to
// hand-write a Connector instead.
package grpcbridge

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// codecName is the gRPC content-subtype this package registers its raw
// byte-passthrough codec under.
const codecName = "rpcmoq-raw"

// rawFrame is the wire-level gRPC message type used for every bridged
// call. The bridge never decodes a gRPC message into a protobuf type —
// both legs of the bridge already encode/decode via the rpcmoq Codec for
// the method in question, so the gRPC leg just carries opaque bytes.
type rawFrame []byte

// rawCodec implements google.golang.org/grpc/encoding.Codec as a
// passthrough: Marshal/Unmarshal move bytes without reinterpreting them.
// Registered once at package init so CallContentSubtype(codecName) can
// select it per call.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	frame, ok := v.(rawFrame)
	if !ok {
		return nil, fmt.Errorf("grpcbridge: Marshal got %T, want rawFrame", v)
	}
	return frame, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	frame, ok := v.(*rawFrame)
	if !ok {
		return fmt.Errorf("grpcbridge: Unmarshal got %T, want *rawFrame", v)
	}
	*frame = append((*frame)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return codecName }
