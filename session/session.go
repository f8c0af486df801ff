// Package session tracks which (client, gRPC method) pairs currently have a
// live call in flight. A router allows at most one concurrent session per
// key; a second announcement for the same key is rejected with
// wireerr.SessionAlreadyActive rather than queued or dispatched alongside
// the first.
//
// Keyed entries live in a sync.Map and are removed by an explicit Release
// call from the goroutine that owns the entry, the same keyed-and-removed
// pending-table idiom used for in-flight request correlation elsewhere in
// this module.
package session

import (
	"fmt"
	"sync"

	"github.com/aerodome-usa/rpcmoq/wireerr"
)

// Key identifies one RPC session: a single client talking to a single
// fully-qualified gRPC method.
type Key struct {
	ClientID string
	GrpcPath string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.ClientID, k.GrpcPath)
}

// Registry tracks active session keys. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	sessions sync.Map // map[Key]struct{}
	mu       sync.Mutex
	count    int
}

// Guard holds one admitted session. Release frees the session key so a
// future call for the same key can be admitted again; it is safe to call
// more than once, and safe to call from any goroutine.
type Guard struct {
	registry *Registry
	key      Key
	once     sync.Once
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// TryCreate admits a new session for key, returning a Guard that must be
// released when the call ends. It returns wireerr.SessionAlreadyActive
// without creating anything if a session is already active for key. The
// vacant-check-and-insert is atomic against concurrent callers with the
// same key.
func (r *Registry) TryCreate(key Key) (*Guard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions.Load(key); exists {
		return nil, wireerr.SessionAlreadyActive
	}
	r.sessions.Store(key, struct{}{})
	r.count++
	return &Guard{registry: r, key: key}, nil
}

// Contains reports whether a session is currently active for key.
func (r *Registry) Contains(key Key) bool {
	_, ok := r.sessions.Load(key)
	return ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// IsEmpty reports whether there are no active sessions.
func (r *Registry) IsEmpty() bool {
	return r.Len() == 0
}

func (r *Registry) remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, existed := r.sessions.LoadAndDelete(key); existed {
		r.count--
	}
}

// Key returns the session key this guard holds.
func (g *Guard) Key() Key {
	return g.key
}

// ClientID returns the client half of the session key.
func (g *Guard) ClientID() string {
	return g.key.ClientID
}

// GrpcPath returns the gRPC-path half of the session key.
func (g *Guard) GrpcPath() string {
	return g.key.GrpcPath
}

// Release removes the session, permitting a future TryCreate for the same
// key to succeed. Idempotent.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.registry.remove(g.key)
	})
}
