package netrelay

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aerodome-usa/rpcmoq/moq"
	"github.com/aerodome-usa/rpcmoq/protocol"
)

// CreateBroadcast implements moq.Origin.
func (c *Client) CreateBroadcast(path string) moq.BroadcastProducer {
	resp, err := c.request(Envelope{Kind: KindCreateBroadcast, Path: path})
	if err != nil {
		return nil
	}
	return &clientBroadcastProducer{client: c, id: resp.BroadcastID}
}

// Announced implements moq.Origin. The returned consumer replays every
// announcement the server has ever pushed since the stream opened; prefix
// filtering happens client-side via WithRoot, matching memrelay's own
// announceConsumer.
func (c *Client) Announced() moq.AnnouncementConsumer {
	seq, ch := c.openStream(protocol.MsgTypeAnnounceOpen, Envelope{Kind: KindAnnounceOpen})
	return &clientAnnounceConsumer{client: c, seq: seq, ch: ch}
}

type clientAnnounceConsumer struct {
	client *Client
	seq    uint32
	ch     chan Envelope
	prefix string
}

func (a *clientAnnounceConsumer) Announced(ctx context.Context) (moq.Announcement, error) {
	for {
		select {
		case env, ok := <-a.ch:
			if !ok {
				return moq.Announcement{}, io.EOF
			}
			if a.prefix != "" && !strings.HasPrefix(env.Path, a.prefix) {
				continue
			}
			if env.Kind == KindDeparture {
				return moq.Announcement{Path: env.Path}, nil
			}
			return moq.Announcement{
				Path:      env.Path,
				Broadcast: &clientBroadcastConsumer{client: a.client, id: env.BroadcastID},
			}, nil
		case <-ctx.Done():
			return moq.Announcement{}, ctx.Err()
		}
	}
}

// WithRoot returns a new consumer sharing the same underlying push
// channel with a client-side path-prefix filter applied. As in memrelay,
// callers are expected to discard the parent consumer once WithRoot
// returns — only one of the two should ever be read from, since the
// channel (unlike memrelay's index-addressed queue) has no replay-by-many
// readers semantics.
func (a *clientAnnounceConsumer) WithRoot(prefix string) moq.AnnouncementConsumer {
	return &clientAnnounceConsumer{client: a.client, seq: a.seq, ch: a.ch, prefix: prefix}
}

type clientBroadcastProducer struct {
	client *Client
	id     uint64
}

func (p *clientBroadcastProducer) CreateTrack(name string) moq.TrackProducer {
	resp, err := p.client.request(Envelope{Kind: KindCreateTrack, BroadcastID: p.id, Track: name})
	if err != nil {
		return &clientTrackProducer{client: p.client, broken: true}
	}
	return &clientTrackProducer{client: p.client, id: resp.TrackID}
}

func (p *clientBroadcastProducer) Close() error {
	_, err := p.client.request(Envelope{Kind: KindCloseBroadcast, BroadcastID: p.id})
	return err
}

type clientTrackProducer struct {
	client *Client
	id     uint64
	broken bool
}

func (t *clientTrackProducer) WriteFrame(frame moq.Frame) error {
	if t.broken {
		return fmt.Errorf("netrelay: track unavailable")
	}
	_, err := t.client.request(Envelope{Kind: KindWriteFrame, TrackID: t.id, Frame: frame})
	return err
}

func (t *clientTrackProducer) Abort(code uint32) {
	if t.broken {
		return
	}
	t.client.request(Envelope{Kind: KindAbortTrack, TrackID: t.id, Code: code})
}

func (t *clientTrackProducer) Close() error {
	if t.broken {
		return nil
	}
	_, err := t.client.request(Envelope{Kind: KindCloseTrack, TrackID: t.id})
	return err
}

type clientBroadcastConsumer struct {
	client *Client
	id     uint64
}

func (b *clientBroadcastConsumer) SubscribeTrack(name string) moq.TrackConsumer {
	seq, ch := b.client.openStream(protocol.MsgTypeSubscribeOpen, Envelope{Kind: KindSubscribeOpen, BroadcastID: b.id, Track: name})
	return &clientTrackConsumer{stream: &trackStream{seq: seq, ch: ch}}
}

// clientTrackConsumer mirrors memrelay's one-group-per-track-lifetime
// model: NextGroup hands back a single restartable clientGroup the first
// time it's called, then blocks for the track's terminal close/abort on
// every call after that. The terminal condition is latched in trackStream
// rather than re-read off the channel, since the server pushes it exactly
// once and whichever of ReadFrame/waitClosed observes it must make it
// visible to the other.
type clientTrackConsumer struct {
	stream  *trackStream
	started bool
}

func (t *clientTrackConsumer) NextGroup(ctx context.Context) (moq.Group, error) {
	if !t.started {
		t.started = true
		return &clientGroup{stream: t.stream}, nil
	}
	return nil, t.stream.waitClosed(ctx)
}

// trackStream is the shared state a clientTrackConsumer and the
// clientGroup it hands out both read from: the push channel plus a
// latched terminal error, so the close/abort the server sends exactly
// once is visible whether it's observed first by a ReadFrame in progress
// or by a later NextGroup call.
type trackStream struct {
	seq uint32
	ch  chan Envelope

	mu       sync.Mutex
	terminal error
	done     bool
}

func (s *trackStream) latch(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.terminal = err
		s.done = true
	}
	return s.terminal
}

func (s *trackStream) readFrame(ctx context.Context) (moq.Frame, error) {
	s.mu.Lock()
	if s.done {
		err := s.terminal
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	select {
	case env, ok := <-s.ch:
		if !ok {
			return nil, s.latch(io.EOF)
		}
		switch env.Kind {
		case KindFrame:
			return env.Frame, nil
		case KindTrackClosed:
			return nil, s.latch(io.EOF)
		case KindTrackAborted:
			return nil, s.latch(&moq.AppError{Code: env.Code})
		default:
			return nil, fmt.Errorf("netrelay: unexpected push kind %q", env.Kind)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *trackStream) waitClosed(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		err := s.terminal
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	for {
		select {
		case env, ok := <-s.ch:
			if !ok {
				return s.latch(io.EOF)
			}
			switch env.Kind {
			case KindTrackClosed:
				return s.latch(io.EOF)
			case KindTrackAborted:
				return s.latch(&moq.AppError{Code: env.Code})
			}
			// stray frame after the caller stopped reading the group; ignore.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type clientGroup struct {
	stream *trackStream
}

func (g *clientGroup) ReadFrame(ctx context.Context) (moq.Frame, error) {
	return g.stream.readFrame(ctx)
}
