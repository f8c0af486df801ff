package netrelay

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"github.com/aerodome-usa/rpcmoq/moq"
	"github.com/aerodome-usa/rpcmoq/moq/memrelay"
	"github.com/aerodome-usa/rpcmoq/protocol"
)

// Server fronts a single in-process memrelay.Hub with a TCP listener.
//
// An accept-loop-plus-per-connection-goroutine shape, generalized from
// "decode a request, dispatch to a registered service method" to "decode a
// relay control envelope, dispatch to the hub".
type Server struct {
	hub      *memrelay.Hub
	listener net.Listener
}

// NewServer builds a Server fronting hub. Call ListenAndServe to start
// accepting connections.
func NewServer(hub *memrelay.Hub) *Server {
	return &Server{hub: hub}
}

// ListenAndServe accepts connections on addr until the listener is closed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go newServerConn(s.hub, conn).serve()
	}
}

// Close stops accepting new connections. Connections already accepted are
// left to drain on their own.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// serverConn is the per-connection state a Server keeps: every broadcast,
// remote broadcast, and track the peer has referenced, keyed by a
// server-assigned handle so the wire protocol never has to carry pointers.
type serverConn struct {
	hub     *memrelay.Hub
	conn    net.Conn
	writeMu sync.Mutex

	mu               sync.Mutex
	broadcasts       map[uint64]moq.BroadcastProducer
	remoteBroadcasts map[uint64]moq.BroadcastConsumer
	tracks           map[uint64]moq.TrackProducer
	nextHandle       uint64

	connCtx context.Context
	cancel  context.CancelFunc
}

func newServerConn(hub *memrelay.Hub, conn net.Conn) *serverConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &serverConn{
		hub:              hub,
		conn:             conn,
		broadcasts:       make(map[uint64]moq.BroadcastProducer),
		remoteBroadcasts: make(map[uint64]moq.BroadcastConsumer),
		tracks:           make(map[uint64]moq.TrackProducer),
		connCtx:          ctx,
		cancel:           cancel,
	}
}

func (c *serverConn) serve() {
	defer c.conn.Close()
	defer c.cancel()

	for {
		header, body, err := protocol.Decode(c.conn)
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			continue
		}
		switch header.MsgType {
		case protocol.MsgTypeRequest:
			go c.handleRequest(header.Seq, env)
		case protocol.MsgTypeAnnounceOpen:
			go c.handleAnnounceOpen(header.Seq)
		case protocol.MsgTypeSubscribeOpen:
			go c.handleSubscribeOpen(header.Seq, env)
		case protocol.MsgTypeHeartbeat:
			continue
		}
	}
}

func (c *serverConn) handleRequest(seq uint32, env Envelope) {
	resp := Envelope{Kind: KindAck}
	switch env.Kind {
	case KindCreateBroadcast:
		producer := c.hub.CreateBroadcast(env.Path)
		if producer == nil {
			resp = Envelope{Kind: KindErr, Error: "broadcast path already in use"}
			break
		}
		id := c.newHandle()
		c.mu.Lock()
		c.broadcasts[id] = producer
		c.mu.Unlock()
		resp = Envelope{Kind: KindAck, BroadcastID: id}

	case KindCreateTrack:
		c.mu.Lock()
		producer, ok := c.broadcasts[env.BroadcastID]
		c.mu.Unlock()
		if !ok {
			resp = Envelope{Kind: KindErr, Error: "unknown broadcast handle"}
			break
		}
		track := producer.CreateTrack(env.Track)
		id := c.newHandle()
		c.mu.Lock()
		c.tracks[id] = track
		c.mu.Unlock()
		resp = Envelope{Kind: KindAck, TrackID: id}

	case KindWriteFrame:
		c.mu.Lock()
		track, ok := c.tracks[env.TrackID]
		c.mu.Unlock()
		if !ok {
			resp = Envelope{Kind: KindErr, Error: "unknown track handle"}
			break
		}
		if err := track.WriteFrame(env.Frame); err != nil {
			resp = Envelope{Kind: KindErr, Error: err.Error()}
		}

	case KindAbortTrack:
		c.mu.Lock()
		track, ok := c.tracks[env.TrackID]
		c.mu.Unlock()
		if ok {
			track.Abort(env.Code)
		}

	case KindCloseTrack:
		c.mu.Lock()
		track, ok := c.tracks[env.TrackID]
		delete(c.tracks, env.TrackID)
		c.mu.Unlock()
		if ok {
			if err := track.Close(); err != nil {
				resp = Envelope{Kind: KindErr, Error: err.Error()}
			}
		}

	case KindCloseBroadcast:
		c.mu.Lock()
		producer, ok := c.broadcasts[env.BroadcastID]
		delete(c.broadcasts, env.BroadcastID)
		c.mu.Unlock()
		if ok {
			if err := producer.Close(); err != nil {
				resp = Envelope{Kind: KindErr, Error: err.Error()}
			}
		}

	default:
		resp = Envelope{Kind: KindErr, Error: "unknown request kind"}
	}
	c.writeEnvelope(protocol.MsgTypeResponse, seq, resp)
}

// handleAnnounceOpen starts a goroutine pushing every announcement the hub
// ever emits (live until the connection closes) back to the peer tagged
// with seq. Prefix filtering (moq.AnnouncementConsumer.WithRoot) happens
// client-side, not here, matching memrelay's own announceConsumer which
// filters an unfiltered replay stream rather than asking the hub for a
// narrowed one.
func (c *serverConn) handleAnnounceOpen(seq uint32) {
	announced := c.hub.Announced()
	for {
		ann, err := announced.Announced(c.connCtx)
		if err != nil {
			return
		}
		if ann.Broadcast == nil {
			c.writeEnvelope(protocol.MsgTypeAnnouncePush, seq, Envelope{Kind: KindDeparture, Path: ann.Path})
			continue
		}
		id := c.newHandle()
		c.mu.Lock()
		c.remoteBroadcasts[id] = ann.Broadcast
		c.mu.Unlock()
		c.writeEnvelope(protocol.MsgTypeAnnouncePush, seq, Envelope{Kind: KindAnnouncement, Path: ann.Path, BroadcastID: id})
	}
}

func (c *serverConn) handleSubscribeOpen(seq uint32, env Envelope) {
	c.mu.Lock()
	consumer, ok := c.remoteBroadcasts[env.BroadcastID]
	c.mu.Unlock()
	if !ok {
		c.writeEnvelope(protocol.MsgTypeFramePush, seq, Envelope{Kind: KindTrackClosed})
		return
	}

	track := consumer.SubscribeTrack(env.Track)
	group, err := track.NextGroup(c.connCtx)
	if err != nil {
		c.pushTrackEnd(seq, err)
		return
	}
	for {
		frame, err := group.ReadFrame(c.connCtx)
		if err != nil {
			c.pushTrackEnd(seq, err)
			return
		}
		c.writeEnvelope(protocol.MsgTypeFramePush, seq, Envelope{Kind: KindFrame, Frame: frame})
	}
}

func (c *serverConn) pushTrackEnd(seq uint32, err error) {
	if appErr, ok := err.(*moq.AppError); ok {
		c.writeEnvelope(protocol.MsgTypeFramePush, seq, Envelope{Kind: KindTrackAborted, Code: appErr.Code})
		return
	}
	c.writeEnvelope(protocol.MsgTypeFramePush, seq, Envelope{Kind: KindTrackClosed})
}

func (c *serverConn) writeEnvelope(msgType protocol.MsgType, seq uint32, env Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		return
	}
	header := protocol.Header{CodecType: protocol.CodecTypeJSON, MsgType: msgType, Seq: seq, BodyLen: uint32(len(body))}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	protocol.Encode(c.conn, &header, body)
}

func (c *serverConn) newHandle() uint64 {
	return atomic.AddUint64(&c.nextHandle, 1)
}
