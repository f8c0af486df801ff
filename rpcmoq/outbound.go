package rpcmoq

import (
	"sync"

	"github.com/aerodome-usa/rpcmoq/moq"
)

// Outbound is a sink over a track producer: Send encodes and writes
// exactly one frame. It does not buffer — a write is complete once the
// transport accepts it.
//
// Outbound is cloneable-by-value in spirit (multiple references share the
// same underlying producer and the same abort action, first-abort-wins);
// Go expresses that by sharing a pointer to the aborted flag rather than
// literally cloning, since handing out *Outbound already gives every call
// site the same producer.
//
type Outbound[Resp any] struct {
	producer moq.TrackProducer
	encode   func(Resp) ([]byte, error)

	mu      sync.Mutex
	aborted bool
}

// NewOutbound wraps an already-created track producer.
func NewOutbound[Resp any](producer moq.TrackProducer, encode func(Resp) ([]byte, error)) *Outbound[Resp] {
	return &Outbound[Resp]{producer: producer, encode: encode}
}

// Send encodes msg and writes one frame.
func (o *Outbound[Resp]) Send(msg Resp) error {
	data, err := o.encode(msg)
	if err != nil {
		return err
	}
	return o.producer.WriteFrame(data)
}

// AbortApp closes the track with an application error code. First call
// wins; later calls (from this or any sharing reference) are no-ops.
func (o *Outbound[Resp]) AbortApp(code uint32) {
	o.mu.Lock()
	if o.aborted {
		o.mu.Unlock()
		return
	}
	o.aborted = true
	o.mu.Unlock()
	o.producer.Abort(code)
}

// Close ends the track cleanly. A no-op if already aborted.
func (o *Outbound[Resp]) Close() error {
	o.mu.Lock()
	if o.aborted {
		o.mu.Unlock()
		return nil
	}
	o.aborted = true
	o.mu.Unlock()
	return o.producer.Close()
}
