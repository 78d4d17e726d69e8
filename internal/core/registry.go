package core

import "sync"

// Registry is the authoritative in-memory map from user ID to the live
// connection serving that user. A user is online exactly when the registry
// holds an entry for them. The mutex is the sole serialization point for
// presence changes; callers must never perform store I/O while holding it,
// which the Registry enforces by not taking callbacks.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*Client),
	}
}

// Register associates userID with client, replacing any prior association.
// Returns the superseded client if a different connection held the entry,
// nil otherwise. The caller is responsible for closing the superseded client.
func (r *Registry) Register(userID int64, client *Client) (prior *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior = r.entries[userID]
	if prior == client {
		prior = nil
	}
	r.entries[userID] = client
	return prior
}

// Unregister removes the association only if the entry still points at the
// given client. A stale disconnect racing a fresh registration for the same
// user finds a different client stored and leaves the entry untouched.
// Reports whether the entry was removed.
func (r *Registry) Unregister(userID int64, client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[userID] != client {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Lookup returns the live client for userID, or nil if the user is offline.
func (r *Registry) Lookup(userID int64) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[userID]
}

// Online reports whether userID currently has a live connection.
func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// Clients returns a snapshot of all registered clients for fanout.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.entries))
	for _, c := range r.entries {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
