// Package codec provides the frame serialization layer for rpcmoq: a
// pluggable, typed Codec[T] with two implementations —
//   - JSONCodec[T]: human-readable, easy to debug
//   - BinaryCodec[T, PT]: a compact format for types that implement
//     encoding.BinaryMarshaler/BinaryUnmarshaler
//
// generalized from a fixed single payload struct to any request/response
// type so the same codec type can (de)serialize whatever a registered
// handler's Req or Resp happens to be.
package codec

// CodecType identifies the serialization format. rpcmoq does not currently
// put this on the wire since a session negotiates its codec once at
// Register/Connect time, but it is kept for future use by moq/netrelay's
// handshake.
type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

// Codec serializes and deserializes values of type T to and from frame
// bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
	Type() CodecType
}
