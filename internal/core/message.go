package core

import "time"

// Message is the domain model for a direct message between two users.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	CreatedAt  time.Time
}
