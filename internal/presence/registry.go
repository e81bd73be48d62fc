// Package presence tracks which users currently hold a live connection.
//
// The registry keeps one connection handle per user id. A second registration
// for the same id replaces the first; the replaced connection stays open but no
// longer receives targeted deliveries. Every mutation is reported to a
// Broadcaster with the complete, sorted list of online ids.
package presence

import (
	"sort"
	"sync"
)

// Handle is a live connection that can be pushed to.
type Handle interface {
	// ID identifies the underlying connection, not the user.
	ID() string
	// Send queues data for delivery and reports whether it was accepted.
	Send(data []byte) bool
}

// Broadcaster receives the full online set after every registry change.
type Broadcaster interface {
	PresenceChanged(online []string)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(online []string)

// PresenceChanged calls f(online).
func (f BroadcasterFunc) PresenceChanged(online []string) { f(online) }

// Registry maps user ids to their current connection handle.
type Registry struct {
	mu          sync.RWMutex
	handles     map[string]Handle
	broadcaster Broadcaster
}

// NewRegistry creates an empty registry. b may be nil.
func NewRegistry(b Broadcaster) *Registry {
	return &Registry{
		handles:     make(map[string]Handle),
		broadcaster: b,
	}
}

// Register inserts or overwrites the handle for userID and broadcasts.
func (r *Registry) Register(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles[userID] = h
	r.broadcastLocked()
}

// Lookup returns the handle currently registered for userID.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[userID]
	return h, ok
}

// Unregister removes userID if present and broadcasts. Removing an absent id
// is a no-op apart from the broadcast.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, userID)
	r.broadcastLocked()
}

// Release removes userID only while it still maps to h. It reports whether
// the entry was removed; nothing is broadcast otherwise.
func (r *Registry) Release(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handles[userID]
	if !ok || current.ID() != h.ID() {
		return false
	}
	delete(r.handles, userID)
	r.broadcastLocked()
	return true
}

// Online returns the sorted list of registered user ids.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// NOTE: Caller must hold at least RLock
func (r *Registry) onlineLocked() []string {
	online := make([]string, 0, len(r.handles))
	for id := range r.handles {
		online = append(online, id)
	}
	sort.Strings(online)
	return online
}

// broadcastLocked runs under the write lock so that broadcasts are observed
// in mutation order. Broadcasters must not call back into the registry.
func (r *Registry) broadcastLocked() {
	if r.broadcaster == nil {
		return
	}
	r.broadcaster.PresenceChanged(r.onlineLocked())
}
