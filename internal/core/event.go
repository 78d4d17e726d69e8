package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoster delivers the full user roster to a client upon registration.
	EventRoster EventKind = iota
	// EventPresence notifies clients that a user went online or offline.
	EventPresence
	// EventDirectMessage delivers a direct message to its receiver.
	EventDirectMessage
	// EventError notifies a client about a domain error.
	EventError
)

// RosterEntry describes one user and their presence for roster delivery.
type RosterEntry struct {
	UserID   int64
	Username string
	Online   bool
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Roster  []RosterEntry // for EventRoster
	User    RosterEntry   // for EventPresence
	Message Message       // for EventDirectMessage
	Error   *CoreError    // for EventError
}
