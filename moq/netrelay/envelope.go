// Package netrelay is a TCP-hosted implementation of the moq transport
// contract, so a router and a client can run as separate processes against
// the same broadcast namespace instead of sharing an in-process
// moq/memrelay.Hub. A netrelay.Server fronts a Hub; a netrelay.Client dials
// it and implements moq.Origin over the connection.
//
// Framing is protocol.Header/Encode/Decode, the 14-byte fixed header
// whose request/response/heartbeat message types are extended with four MsgType
// values carrying announce/subscribe/frame/abort control traffic. Bodies
// are JSON-encoded Envelope values rather than the binary codec.BinaryCodec
// formats, since the relay's own control plane has no generated message
// types to drive a binary layout from.
//
// Because moq/memrelay already flattens a track to exactly one restartable
// group spanning its whole lifetime (see memrelay/track.go), a netrelay
// subscription never needs to represent group boundaries on the wire: one
// subscribe-open exchange yields one continuous sequence of frame pushes
// terminated by a close or an abort.
package netrelay

// Kind discriminates the operation an Envelope carries. A handful of Kinds
// are one-shot requests answered by a single Kind: KindAck/KindErr
// response; the rest are pushes delivered over a standing announce or
// subscribe stream.
type Kind string

const (
	KindCreateBroadcast Kind = "create_broadcast"
	KindCreateTrack     Kind = "create_track"
	KindWriteFrame      Kind = "write_frame"
	KindAbortTrack      Kind = "abort_track"
	KindCloseTrack      Kind = "close_track"
	KindCloseBroadcast  Kind = "close_broadcast"
	KindAck             Kind = "ack"
	KindErr             Kind = "error"

	KindAnnounceOpen Kind = "announce_open"
	KindAnnouncement Kind = "announcement"
	KindDeparture    Kind = "departure"

	KindSubscribeOpen Kind = "subscribe_open"
	KindFrame         Kind = "frame"
	KindTrackClosed   Kind = "track_closed"
	KindTrackAborted  Kind = "track_aborted"
)

// Envelope is the JSON body carried inside every protocol.Header frame a
// netrelay connection exchanges. Adapted from message.RPCMessage's
// envelope-with-an-error-string shape, generalized from one
// (ServiceMethod, Payload, Error) triple to the handful of fields the
// relay's control operations need; unused fields are omitted on the wire.
type Envelope struct {
	Kind        Kind   `json:"kind"`
	Path        string `json:"path,omitempty"`
	Track       string `json:"track,omitempty"`
	BroadcastID uint64 `json:"broadcast_id,omitempty"`
	TrackID     uint64 `json:"track_id,omitempty"`
	Frame       []byte `json:"frame,omitempty"`
	Code        uint32 `json:"code,omitempty"`
	Error       string `json:"error,omitempty"`
}
