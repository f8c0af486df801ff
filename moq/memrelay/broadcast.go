package memrelay

import (
	"sync"

	"github.com/aerodome-usa/rpcmoq/moq"
)

// broadcastEntry is the shared state a producer and every consumer of the
// same broadcast path see: a set of named tracks, created lazily by
// whichever side (producer or subscriber) reaches a track name first.
type broadcastEntry struct {
	path string

	mu     sync.Mutex
	tracks map[string]*memTrack
	closed bool
}

func newBroadcastEntry(path string) *broadcastEntry {
	return &broadcastEntry{path: path, tracks: make(map[string]*memTrack)}
}

func (b *broadcastEntry) getOrCreateTrack(name string) *memTrack {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tracks[name]
	if !ok {
		t = newMemTrack()
		b.tracks[name] = t
	}
	return t
}

func (b *broadcastEntry) closeAllTracks() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	tracks := make([]*memTrack, 0, len(b.tracks))
	for _, t := range b.tracks {
		tracks = append(tracks, t)
	}
	b.mu.Unlock()

	for _, t := range tracks {
		t.q.closeWith(nil)
	}
}

type memBroadcastProducer struct {
	hub   *Hub
	entry *broadcastEntry
}

func (p *memBroadcastProducer) CreateTrack(name string) moq.TrackProducer {
	return &memTrackProducer{track: p.entry.getOrCreateTrack(name)}
}

func (p *memBroadcastProducer) Close() error {
	p.entry.closeAllTracks()
	p.hub.removeBroadcast(p.entry.path)
	return nil
}

type memBroadcastConsumer struct {
	entry *broadcastEntry
}

func (c *memBroadcastConsumer) SubscribeTrack(name string) moq.TrackConsumer {
	return &memTrackConsumer{track: c.entry.getOrCreateTrack(name)}
}
