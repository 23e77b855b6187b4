package relay

import (
	"sync"
)

// Registry maps a client identity to its live connection. An identity holds
// at most one entry at any time.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Client)}
}

// Register binds id -> c. If the identity was already bound, the previous
// client is returned so the caller can kick it (close-then-replace policy).
func (r *Registry) Register(id string, c *Client) (prev *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.byID[id]
	if prev == c {
		prev = nil
	}
	r.byID[id] = c
	return prev
}

// Unregister removes the identity only while it still points at c, so a
// replaced connection tearing down late cannot evict its successor.
func (r *Registry) Unregister(id string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byID[id]; ok && cur == c {
		delete(r.byID, id)
	}
}

func (r *Registry) Get(id string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
