package core

import (
	"hash/fnv"
	"sync"
)

// presenceShardCount must be a power of two so the shard index is a
// cheap mask of the hash.
const presenceShardCount = 64

// Registry tracks which users are reachable on which live connections.
// State is process-local and rebuilt from zero on restart.
//
// The map is sharded by user identity so near-simultaneous connect and
// disconnect events for the same user serialize on one shard lock while
// unrelated users never contend.
type Registry struct {
	shards [presenceShardCount]presenceShard
}

type presenceShard struct {
	mu    sync.RWMutex
	users map[string]map[string]Conn // userID -> connID -> conn
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].users = make(map[string]map[string]Conn)
	}
	return r
}

func (r *Registry) shard(userID string) *presenceShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &r.shards[h.Sum32()&(presenceShardCount-1)]
}

// Admit adds the connection to the user's live set. Returns true if this
// was the user's first live connection (the went-online transition).
// Admitting the same handle twice is idempotent and never reports a
// second transition.
func (r *Registry) Admit(userID string, conn Conn) bool {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		conns = make(map[string]Conn, 1)
		s.users[userID] = conns
	}
	first := len(conns) == 0
	conns[conn.ID()] = conn
	return first
}

// Remove deletes the connection from the user's live set. Returns true if
// this was the user's last live connection (the went-offline transition).
// Removing a handle that was never admitted is a no-op.
func (r *Registry) Remove(userID, connID string) bool {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0
}

// ConnectionsOf returns a snapshot of the user's live connections,
// possibly empty. Callers send to the snapshot without holding any
// registry lock.
func (r *Registry) ConnectionsOf(userID string) []Conn {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.users[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}
