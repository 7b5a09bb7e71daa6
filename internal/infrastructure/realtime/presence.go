package realtime

import (
	"sync"
)

// PresenceRegistry maps a user id to the set of its live connection handles.
// It is eventually consistent with socket liveness: a connection that dies
// without a clean unregister stays listed until the transport reports it.
type PresenceRegistry struct {
	mu          sync.RWMutex
	connections map[string]map[string]struct{}
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		connections: make(map[string]map[string]struct{}),
	}
}

func (r *PresenceRegistry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.connections[userID]
	if !ok {
		set = make(map[string]struct{})
		r.connections[userID] = set
	}
	set[connID] = struct{}{}
}

// Unregister removes connID and drops the user entry once its set is empty.
// It reports whether the user went offline as a result.
func (r *PresenceRegistry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.connections[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.connections, userID)
		return true
	}
	return false
}

func (r *PresenceRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections[userID]) > 0
}

// ConnectionsOf returns a snapshot; callers may use it after the lock is released.
func (r *PresenceRegistry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.connections[userID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (r *PresenceRegistry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

func (r *PresenceRegistry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, set := range r.connections {
		total += len(set)
	}
	return total
}
