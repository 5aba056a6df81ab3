package mws

import (
	"sync"
	"time"
)

// ProtocolInfo describes a registered protocol.
type ProtocolInfo struct {
	Protocol     ProtocolID
	Priority     Priority
	RegisteredAt time.Time
}

// Registry is a fixed table of registered protocols. Entries are never
// removed; registering again updates the priority.
type Registry struct {
	lock    sync.RWMutex
	entries [NumProtocols]*ProtocolInfo
}

// Register records p with its priority.
func (r *Registry) Register(p ProtocolID, prio Priority) error {
	if !p.Valid() {
		return ErrInvalidParameter
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if info := r.entries[p]; info != nil {
		info.Priority = prio
		return nil
	}
	r.entries[p] = &ProtocolInfo{Protocol: p, Priority: prio, RegisteredAt: time.Now()}
	return nil
}

// Lookup returns the entry of p.
func (r *Registry) Lookup(p ProtocolID) (ProtocolInfo, bool) {
	if !p.Valid() {
		return ProtocolInfo{}, false
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	if info := r.entries[p]; info != nil {
		return *info, true
	}
	return ProtocolInfo{}, false
}

// Registered tells whether p is registered.
func (r *Registry) Registered(p ProtocolID) bool {
	_, ok := r.Lookup(p)
	return ok
}

// Protocols lists registered protocols ordered by ID.
func (r *Registry) Protocols() []ProtocolInfo {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var infos []ProtocolInfo
	for _, info := range r.entries {
		if info != nil {
			infos = append(infos, *info)
		}
	}
	return infos
}
