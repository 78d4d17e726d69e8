package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Online       bool // last-known flag; live presence is owned by the registry
	CreatedAt    time.Time
}

// Message represents a persisted direct message between two users.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Body       string
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsersExcept lists all users except the given one, for roster delivery.
	ListUsersExcept(ctx context.Context, id int64) ([]*User, error)

	// SetOnline updates the stored last-known online flag.
	SetOnline(ctx context.Context, id int64, online bool) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its generated ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListConversation retrieves all messages exchanged between two users,
	// in either direction, ordered by creation time ascending.
	ListConversation(ctx context.Context, userA, userB int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
