// Package memrelay is an in-process implementation of the moq transport
// contract: a single hub keyed by broadcast path, fanning out announcements
// and frames over the queue type in this package. It is the transport the
// rpcmoq test suite runs against; moq/netrelay fronts the same hub with a
// TCP listener so a router and a client can run as separate processes.
//
// Grounded on registry.EtcdRegistry's Watch-emits-on-change shape,
// translated from etcd leases to in-process channels, with each
// subscriber backed by a plain channel-as-queue.
package memrelay

import (
	"context"
	"strings"
	"sync"

	"github.com/aerodome-usa/rpcmoq/moq"
)

// Hub is a single relay's pub/sub namespace of broadcasts.
type Hub struct {
	mu          sync.Mutex
	broadcasts  map[string]*broadcastEntry
	subscribers []*queue[moq.Announcement]
}

// NewHub creates an empty relay namespace.
func NewHub() *Hub {
	return &Hub{broadcasts: make(map[string]*broadcastEntry)}
}

// CreateBroadcast implements moq.Origin. It refuses (returns nil) a path
// that already has a live broadcast — the same path must be torn down
// before it can be reused: reuse is permitted once the prior producer
// actually closed, not while it is still open.
func (h *Hub) CreateBroadcast(path string) moq.BroadcastProducer {
	h.mu.Lock()
	if _, exists := h.broadcasts[path]; exists {
		h.mu.Unlock()
		return nil
	}
	entry := newBroadcastEntry(path)
	h.broadcasts[path] = entry
	subs := append([]*queue[moq.Announcement](nil), h.subscribers...)
	h.mu.Unlock()

	ann := moq.Announcement{Path: path, Broadcast: &memBroadcastConsumer{entry: entry}}
	for _, s := range subs {
		s.push(ann)
	}

	return &memBroadcastProducer{hub: h, entry: entry}
}

func (h *Hub) removeBroadcast(path string) {
	h.mu.Lock()
	if _, ok := h.broadcasts[path]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.broadcasts, path)
	subs := append([]*queue[moq.Announcement](nil), h.subscribers...)
	h.mu.Unlock()

	ann := moq.Announcement{Path: path, Broadcast: nil}
	for _, s := range subs {
		s.push(ann)
	}
}

// Announced implements moq.Origin. Every new subscriber first replays the
// set of currently live broadcasts, then receives future appearances and
// departures as they happen, so a router started after a client has
// already announced still observes it.
func (h *Hub) Announced() moq.AnnouncementConsumer {
	h.mu.Lock()
	q := newQueue[moq.Announcement]()
	existing := make([]moq.Announcement, 0, len(h.broadcasts))
	for path, entry := range h.broadcasts {
		existing = append(existing, moq.Announcement{Path: path, Broadcast: &memBroadcastConsumer{entry: entry}})
	}
	h.subscribers = append(h.subscribers, q)
	h.mu.Unlock()

	for _, ann := range existing {
		q.push(ann)
	}

	return &announceConsumer{q: q}
}

type announceConsumer struct {
	q      *queue[moq.Announcement]
	idx    int
	prefix string
}

func (c *announceConsumer) Announced(ctx context.Context) (moq.Announcement, error) {
	for {
		ann, err := c.q.next(ctx, &c.idx)
		if err != nil {
			return moq.Announcement{}, err
		}
		if c.prefix == "" || strings.HasPrefix(ann.Path, c.prefix) {
			return ann, nil
		}
	}
}

func (c *announceConsumer) WithRoot(prefix string) moq.AnnouncementConsumer {
	return &announceConsumer{q: c.q, idx: c.idx, prefix: prefix}
}
