package memrelay

import (
	"context"
	"errors"

	"github.com/aerodome-usa/rpcmoq/moq"
)

// memTrack is a single named track's frame log. This relay models a track
// as exactly one restartable group spanning its whole lifetime — the RPC
// use case never needs more than ordered, gapless frame delivery, and the
// contract's group indirection is satisfied trivially by handing out one
// group per subscriber and blocking further NextGroup calls until close.
type memTrack struct {
	q *queue[moq.Frame]
}

func newMemTrack() *memTrack {
	return &memTrack{q: newQueue[moq.Frame]()}
}

type memTrackProducer struct {
	track *memTrack
}

func (p *memTrackProducer) WriteFrame(frame moq.Frame) error {
	if p.track.q.isClosed() {
		return errors.New("memrelay: write to closed track")
	}
	cp := make(moq.Frame, len(frame))
	copy(cp, frame)
	p.track.q.push(cp)
	return nil
}

func (p *memTrackProducer) Abort(code uint32) {
	p.track.q.closeWith(&moq.AppError{Code: code})
}

func (p *memTrackProducer) Close() error {
	p.track.q.closeWith(nil)
	return nil
}

type memTrackConsumer struct {
	track     *memTrack
	groupDone bool
}

func (c *memTrackConsumer) NextGroup(ctx context.Context) (moq.Group, error) {
	if c.groupDone {
		return nil, c.track.q.waitClosed(ctx)
	}
	c.groupDone = true
	return &memGroup{track: c.track}, nil
}

type memGroup struct {
	track *memTrack
	idx   int
}

func (g *memGroup) ReadFrame(ctx context.Context) (moq.Frame, error) {
	return g.track.q.next(ctx, &g.idx)
}
