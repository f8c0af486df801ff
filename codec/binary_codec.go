package codec

import "encoding"

// BinaryCodec serializes T via the standard encoding.BinaryMarshaler /
// encoding.BinaryUnmarshaler interfaces rather than a hand-rolled wire
// format. PT is *T, constrained to implement both interfaces — the
// two-type-parameter "pointer method set" pattern needed because Go
// generics can't express "the pointer to T implements these methods"
// directly from T alone.
//
// Req/Resp types vary per registered method rather than sharing one fixed
// message shape, so the codec stays generic instead of hand-rolling a
// layout for a single struct; drone.Position is the concrete type that
// exercises this path.
type BinaryCodec[T any, PT interface {
	*T
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}] struct{}

func (BinaryCodec[T, PT]) Encode(v T) ([]byte, error) {
	return PT(&v).MarshalBinary()
}

func (BinaryCodec[T, PT]) Decode(data []byte) (T, error) {
	var v T
	err := PT(&v).UnmarshalBinary(data)
	return v, err
}

func (BinaryCodec[T, PT]) Type() CodecType {
	return CodecTypeBinary
}
