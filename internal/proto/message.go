package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	// InboundTypeRegister binds the connection to its authenticated identity.
	InboundTypeRegister = "register"
	// InboundTypeSendMessage sends a direct message to another user.
	InboundTypeSendMessage = "send_message"

	OutboundTypeRoster     = "initial_roster"
	OutboundTypePresence   = "presence_change"
	OutboundTypeNewMessage = "new_message"
	OutboundTypeError      = "error"
)

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RosterEntry is one user in the initial roster.
type RosterEntry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// PresenceData announces an online/offline transition.
type PresenceData struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status"` // "online" or "offline"
}

// MessageData is a direct message delivered to its receiver.
type MessageData struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"text"`
	TS         int64  `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
