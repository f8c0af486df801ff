package netrelay

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/aerodome-usa/rpcmoq/protocol"
)

// Client is a moq.Origin backed by a single multiplexed TCP connection to
// a netrelay Server.
//
// A seq-keyed pending-map-plus-recvLoop multiplexes replies over the one
// connection, generalized from "one response per request" to "a response,
// or an open-ended stream of pushes, per request" depending on the
// request's Kind: one-shot requests (create, write, close) are answered
// once and removed from the pending table with LoadAndDelete; announce/
// subscribe opens instead register a buffered channel that stays
// registered for the life of the connection.
type Client struct {
	conn    net.Conn
	seq     uint32
	sending sync.Mutex

	mu      sync.Mutex
	oneShot map[uint32]chan Envelope
	streams map[uint32]chan Envelope
	closed  bool
}

// Dial connects to a netrelay Server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		oneShot: make(map[uint32]chan Envelope),
		streams: make(map[uint32]chan Envelope),
	}
	go c.recvLoop()
	return c, nil
}

// Close shuts down the underlying connection, unblocking every pending
// request and stream read.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) nextSeq() uint32 {
	return atomic.AddUint32(&c.seq, 1)
}

// request sends a one-shot envelope and blocks for its single response.
func (c *Client) request(env Envelope) (Envelope, error) {
	seq := c.nextSeq()
	ch := make(chan Envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Envelope{}, fmt.Errorf("netrelay: connection closed")
	}
	c.oneShot[seq] = ch
	c.mu.Unlock()

	if err := c.send(protocol.MsgTypeRequest, seq, env); err != nil {
		c.mu.Lock()
		delete(c.oneShot, seq)
		c.mu.Unlock()
		return Envelope{}, err
	}

	resp := <-ch
	if resp.Kind == KindErr {
		return Envelope{}, fmt.Errorf("netrelay: %s", resp.Error)
	}
	return resp, nil
}

// openStream sends a standing-subscription open and returns the channel
// every subsequent push sharing seq will arrive on.
func (c *Client) openStream(msgType protocol.MsgType, env Envelope) (uint32, chan Envelope) {
	seq := c.nextSeq()
	ch := make(chan Envelope, 64)

	c.mu.Lock()
	c.streams[seq] = ch
	c.mu.Unlock()

	if err := c.send(msgType, seq, env); err != nil {
		close(ch)
	}
	return seq, ch
}

func (c *Client) send(msgType protocol.MsgType, seq uint32, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	header := protocol.Header{CodecType: protocol.CodecTypeJSON, MsgType: msgType, Seq: seq, BodyLen: uint32(len(body))}
	c.sending.Lock()
	defer c.sending.Unlock()
	return protocol.Encode(c.conn, &header, body)
}

func (c *Client) recvLoop() {
	for {
		header, body, err := protocol.Decode(c.conn)
		if err != nil {
			c.closeAllPending(err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			continue
		}
		switch header.MsgType {
		case protocol.MsgTypeResponse:
			c.mu.Lock()
			ch, ok := c.oneShot[header.Seq]
			delete(c.oneShot, header.Seq)
			c.mu.Unlock()
			if ok {
				ch <- env
			}
		case protocol.MsgTypeAnnouncePush, protocol.MsgTypeFramePush:
			c.mu.Lock()
			ch, ok := c.streams[header.Seq]
			c.mu.Unlock()
			if ok {
				ch <- env
			}
		}
	}
}

func (c *Client) closeAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for seq, ch := range c.oneShot {
		ch <- Envelope{Kind: KindErr, Error: err.Error()}
		delete(c.oneShot, seq)
	}
	for seq, ch := range c.streams {
		close(ch)
		delete(c.streams, seq)
	}
}
