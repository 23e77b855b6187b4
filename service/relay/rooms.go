package relay

import (
	"sync"
)

// Rooms tracks which client identities are currently reachable per
// conversation. This is live fan-out state only, never the conversation's
// membership list of record.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // conversationID -> set of clientID
}

func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[string]struct{})}
}

func (r *Rooms) Join(conversationID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.members[conversationID]
	if set == nil {
		set = make(map[string]struct{})
		r.members[conversationID] = set
	}
	set[clientID] = struct{}{}
}

// Leave removes the client; the conversation entry itself is deleted once the
// last member leaves so abandoned conversations cannot leak.
func (r *Rooms) Leave(conversationID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.members[conversationID]
	if set == nil {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(r.members, conversationID)
	}
}

// Members returns a snapshot of the current member identities.
func (r *Rooms) Members(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[conversationID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Has reports whether the conversation currently holds any members. Exists to
// let tests assert the empty-entry cleanup rule.
func (r *Rooms) Has(conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[conversationID]
	return ok
}
