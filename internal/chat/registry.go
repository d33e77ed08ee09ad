package chat

import (
	"sort"
	"sync"
)

// Conn is one live transport session owned by a single user. The
// registry and dispatcher only ever see this interface; the websocket
// client implements it, tests inject fakes.
type Conn interface {
	// User returns the owning username.
	User() string
	// Push enqueues a frame without blocking. It reports false when the
	// connection's outbound queue is full or already closed.
	Push(frame []byte) bool
	// CloseSend shuts the outbound side down. Safe to call more than once.
	CloseSend()
}

// Registry indexes live connections by username. It is an injected
// instance, not package state, so every test can own an isolated one.
//
// All methods are safe for concurrent use. No lock is held across a
// push or a storage call; readers get copied snapshots.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

// Register adds conn under user's bucket and reports whether this was
// the user's first connection (offline -> online transition).
func (r *Registry) Register(user string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.conns[user]
	if !ok {
		bucket = make(map[Conn]struct{})
		r.conns[user] = bucket
	}
	bucket[conn] = struct{}{}
	return !ok
}

// Unregister removes conn and reports whether the user went offline
// (last connection gone). Unregistering a connection that was already
// removed is a no-op, since transport close and explicit leave can race.
func (r *Registry) Unregister(user string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.conns[user]
	if !ok {
		return false
	}
	if _, ok := bucket[conn]; !ok {
		return false
	}
	delete(bucket, conn)
	if len(bucket) == 0 {
		delete(r.conns, user)
		return true
	}
	return false
}

// ConnectionsFor returns the user's current connections. Offline users
// yield an empty slice, not an error.
func (r *Registry) ConnectionsFor(user string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns[user]))
	for c := range r.conns[user] {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user owns at least one connection.
func (r *Registry) IsOnline(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[user]) > 0
}

// Online returns the sorted set of usernames with live connections.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns))
	for user := range r.conns {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}

// Connections returns every live connection across all users.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Conn
	for _, bucket := range r.conns {
		for c := range bucket {
			out = append(out, c)
		}
	}
	return out
}
