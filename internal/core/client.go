package core

import "sync"

// Client is one live connection as seen by the core layer. It starts
// unauthenticated, is bound to a user identity exactly once via Hub.Bind,
// and is closed exactly once when the connection goes away (or when a newer
// connection for the same identity supersedes it).
type Client struct {
	// ID identifies the connection handle, not the user. Two connections
	// for the same user carry different IDs; the registry's stale-unregister
	// guard relies on comparing client pointers, and the ID is used for logs.
	ID string

	// Events carries outbound notifications. Producers use TrySend and never
	// block; a slow consumer loses events rather than stalling the system.
	Events chan *Event

	closeOnce sync.Once
	closed    chan struct{}

	// Identity fields are written once by Hub.Bind before the client is
	// published in the registry, and only read afterwards.
	userID   int64
	username string
}

// NewClient constructs an unauthenticated client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 16),
		closed: make(chan struct{}),
	}
}

// Registered reports whether the client has been bound to a user identity.
func (c *Client) Registered() bool {
	return c.userID != 0
}

// UserID returns the bound user ID, or zero if unauthenticated.
func (c *Client) UserID() int64 {
	return c.userID
}

// Username returns the bound username, or empty if unauthenticated.
func (c *Client) Username() string {
	return c.username
}

// Close marks the client closed. Safe to call multiple times and from any
// goroutine; the first call wins.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Done returns a channel closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// TrySend delivers an event without blocking. Returns false if the client is
// closed or its event buffer is full.
func (c *Client) TrySend(ev *Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
