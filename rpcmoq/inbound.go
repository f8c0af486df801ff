package rpcmoq

import (
	"context"
	"errors"
	"io"

	"github.com/aerodome-usa/rpcmoq/moq"
	"go.uber.org/zap"
)

// Inbound is a lazy, finite sequence of request frames borrowed from a
// subscribed track. It repeatedly awaits the next group and yields each
// frame as it becomes readable, then moves to the next group; it is
// non-restartable once exhausted or errored.
//
// Reads one frame at a time off the track consumer, the same shape as a
// TCP recvLoop's frame-at-a-time Decode but generalized to a MoQ track.
type Inbound struct {
	consumer moq.TrackConsumer
	group    moq.Group
}

// NewInbound subscribes to trackName on broadcast and returns an Inbound
// reading from it.
func NewInbound(broadcast moq.BroadcastConsumer, trackName string) *Inbound {
	return &Inbound{consumer: broadcast.SubscribeTrack(trackName)}
}

// Next blocks for the next frame. It returns (nil, io.EOF) when the track
// has closed cleanly, or a transport error (possibly *moq.AppError) on
// abort.
func (in *Inbound) Next(ctx context.Context) (moq.Frame, error) {
	for {
		if in.group == nil {
			group, err := in.consumer.NextGroup(ctx)
			if err != nil {
				return nil, err
			}
			in.group = group
		}

		frame, err := in.group.ReadFrame(ctx)
		if err == nil {
			return frame, nil
		}
		if errors.Is(err, io.EOF) {
			in.group = nil
			continue
		}
		return nil, err
	}
}

// DecodedInbound adapts Inbound by decoding each frame into Req. On a
// decode failure it terminates the sequence and invokes onDecodeError
// exactly once (the router wires this to abort the outbound track with
// wireerr.Decode); on a transport error it logs and terminates.
//
type DecodedInbound[Req any] struct {
	inner         *Inbound
	decode        func([]byte) (Req, error)
	onDecodeError func()
	log           *zap.Logger
	terminated    bool
}

// NewDecodedInbound wraps inner with a decode function. onDecodeError may
// be nil.
func NewDecodedInbound[Req any](inner *Inbound, decode func([]byte) (Req, error), onDecodeError func(), log *zap.Logger) *DecodedInbound[Req] {
	if log == nil {
		log = zap.NewNop()
	}
	return &DecodedInbound[Req]{inner: inner, decode: decode, onDecodeError: onDecodeError, log: log}
}

// Next returns the next decoded request, or (zero, io.EOF) once the
// sequence has ended for any reason: clean close, transport error, or a
// decode failure are all terminal.
func (d *DecodedInbound[Req]) Next(ctx context.Context) (Req, error) {
	var zero Req
	if d.terminated {
		return zero, io.EOF
	}

	frame, err := d.inner.Next(ctx)
	if err != nil {
		d.terminated = true
		if !errors.Is(err, io.EOF) {
			d.log.Debug("inbound transport error, ending request stream", zap.Error(err))
		}
		return zero, io.EOF
	}

	req, err := d.decode(frame)
	if err != nil {
		d.terminated = true
		d.log.Warn("failed to decode request frame", zap.Error(err))
		if d.onDecodeError != nil {
			d.onDecodeError()
		}
		return zero, io.EOF
	}
	return req, nil
}

// OkStream drains d into a plain channel, silently dropping nothing (every
// yielded item already decoded successfully) — it exists so a connector
// that wants an infallible channel of Req doesn't need to touch the (Req,
// error) pair itself, e.g. to feed a gRPC client method directly.
func (d *DecodedInbound[Req]) OkStream(ctx context.Context) <-chan Req {
	out := make(chan Req)
	go func() {
		defer close(out)
		for {
			req, err := d.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- req:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
