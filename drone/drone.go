// Package drone supplies the concrete request/response types the demo
// router and client (cmd/rpcmoq-router, cmd/rpcmoq-client) and the codec
// and rpcmoq test suites exercise, standing in for the real generated gRPC
// message types a production service would bring.
//
// Modeled on a simulated drone fleet's echo/position/command surface.
package drone

import (
	"encoding/binary"
	"errors"
	"math"
)

// EchoRequest/EchoResponse back the "happy echo" scenario: the simplest
// possible round trip through the router.
type EchoRequest struct {
	Payload string `json:"payload"`
}

type EchoResponse struct {
	Payload string `json:"payload"`
}

// Position is a drone's location, binary-encoded so codec.BinaryCodec has a
// real type to exercise instead of only JSON payloads.
type Position struct {
	Lat  float64
	Lon  float64
	AltM float64
}

const positionWireLen = 24 // 3 float64s, big-endian, fixed width

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Position) MarshalBinary() ([]byte, error) {
	buf := make([]byte, positionWireLen)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(p.Lat))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(p.Lon))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(p.AltM))
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Position) UnmarshalBinary(data []byte) error {
	if len(data) != positionWireLen {
		return errors.New("drone: Position wire data has wrong length")
	}
	p.Lat = math.Float64frombits(binary.BigEndian.Uint64(data[0:8]))
	p.Lon = math.Float64frombits(binary.BigEndian.Uint64(data[8:16]))
	p.AltM = math.Float64frombits(binary.BigEndian.Uint64(data[16:24]))
	return nil
}

// Command is a named control instruction with string-keyed arguments. No
// handler, demo binary or test in this module uses it.
type Command struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}
