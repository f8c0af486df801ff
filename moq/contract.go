// Package moq defines the transport contract the rpcmoq core consumes from
// a Media-over-QUIC relay: an Origin producing matched broadcast
// producer/consumer pairs, broadcasts carrying named tracks, and tracks
// yielding ordered groups of frames. The real MoQ/QUIC wire protocol is an
// external collaborator (spec §1); this package only pins down the shape a
// transport must have for the core to route and dispatch calls against it.
//
// A concrete transport satisfying this contract lives in moq/memrelay
// (in-process) and moq/netrelay (TCP-hosted).
package moq

import (
	"context"
	"fmt"
)

// Frame is a single opaque byte payload delivered atomically on a track.
type Frame = []byte

// Group is an ordered, restartable sub-sequence of frames within a track.
type Group interface {
	// ReadFrame blocks until the next frame is available, returns
	// (nil, io.EOF) when the group has no more frames, or a transport
	// error if the group failed.
	ReadFrame(ctx context.Context) (Frame, error)
}

// TrackProducer is the write side of a single named track within a
// broadcast. Writes are accepted non-blocking by the transport.
type TrackProducer interface {
	// WriteFrame appends one frame to the track's current group.
	WriteFrame(frame Frame) error
	// Abort closes the track with an application error code, signalling a
	// data-plane failure (see wireerr) to subscribers.
	Abort(code uint32)
	// Close ends the track cleanly (no abort code).
	Close() error
}

// TrackConsumer is the read side of a single named track.
type TrackConsumer interface {
	// NextGroup blocks until the next group is available, returns
	// (nil, io.EOF) on a clean close, or a transport error.
	NextGroup(ctx context.Context) (Group, error)
}

// BroadcastProducer is the write side of a broadcast: a named publication
// that can expose one or more tracks.
type BroadcastProducer interface {
	CreateTrack(name string) TrackProducer
	// Close ends the broadcast, and with it every track created on it.
	Close() error
}

// BroadcastConsumer is the read side of a broadcast.
type BroadcastConsumer interface {
	SubscribeTrack(name string) TrackConsumer
}

// Announcement reports that a broadcast at Path has appeared (Broadcast !=
// nil) or departed (Broadcast == nil).
type Announcement struct {
	Path      string
	Broadcast BroadcastConsumer
}

// AnnouncementConsumer is an async sequence of announcements under some
// namespace root.
type AnnouncementConsumer interface {
	// Announced blocks for the next announcement. It returns (ann, nil)
	// for an appearance or departure, or (Announcement{}, io.EOF) when the
	// transport has closed the stream.
	Announced(ctx context.Context) (Announcement, error)
	// WithRoot narrows this consumer to only observe announcements whose
	// path starts with prefix, returning nil if the transport refuses the
	// prefix (e.g. the caller isn't authorized for it).
	WithRoot(prefix string) AnnouncementConsumer
}

// Origin is the entry point into the transport: it produces broadcasts and
// observes announcements of broadcasts published by others.
type Origin interface {
	// CreateBroadcast publishes a new broadcast at path, or returns nil if
	// the transport refuses the path.
	CreateBroadcast(path string) BroadcastProducer
	// Announced returns a consumer observing every announcement in the
	// origin's namespace.
	Announced() AnnouncementConsumer
}

// AppError is returned by TrackConsumer/Group reads when the track was
// closed via Abort rather than Close, carrying the application error code
// the writer aborted with. Every transport implementation (memrelay,
// netrelay) surfaces aborts this way so the core's wireerr mapping stays
// transport-agnostic.
type AppError struct {
	Code uint32
}

func (e *AppError) Error() string {
	return fmt.Sprintf("moq: track aborted with app code %d", e.Code)
}
