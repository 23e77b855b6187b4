package relay

import (
	"sync"
)

// Directory groups currently-connected agent identities per tenant, used only
// for live notification fan-out.
type Directory struct {
	mu     sync.RWMutex
	agents map[string]map[string]struct{} // companyID -> set of clientID
}

func NewDirectory() *Directory {
	return &Directory{agents: make(map[string]map[string]struct{})}
}

func (d *Directory) Add(companyID, clientID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.agents[companyID]
	if set == nil {
		set = make(map[string]struct{})
		d.agents[companyID] = set
	}
	set[clientID] = struct{}{}
}

func (d *Directory) Remove(companyID, clientID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.agents[companyID]
	if set == nil {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(d.agents, companyID)
	}
}

// AgentsOf returns a snapshot of the tenant's connected agent identities.
func (d *Directory) AgentsOf(companyID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set := d.agents[companyID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (d *Directory) Has(companyID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.agents[companyID]
	return ok
}
