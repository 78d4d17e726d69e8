package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegister binds the connection to the authenticated identity.
	CommandRegister CommandKind = iota
	// CommandSendMessage sends a direct message to another user.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind       CommandKind
	ReceiverID int64
	Text       string
}
