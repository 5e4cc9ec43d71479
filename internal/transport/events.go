package transport

import "github.com/feiralink/chat/internal/store"

// InboundEvent is the closed set of events the engine handles off the
// push channel. Handling is an exhaustive type switch, not field probing.
type InboundEvent interface {
	inboundEvent()
	// Kind is the bus kind the event is published under.
	Kind() string
}

// Connected fires after a successful handshake, both on first connect and
// on every reconnect.
type Connected struct{}

// Disconnected fires when the connection is lost or cannot be
// established. It is an expected, recoverable state, not an error; the
// channel keeps redialing. Repeated dial failures within one outage
// publish it once.
type Disconnected struct {
	Reason string
}

// NewMessage carries a full message for the conversation the user has
// joined. The server echoes sent messages back through this event to both
// parties, including the sender.
type NewMessage struct {
	Message store.Message
}

// MessageNotification announces a message for a conversation that is not
// necessarily open. It updates the conversation summary, never the log.
type MessageNotification struct {
	ConversationID string
	Message        store.Message
}

// UserTyping marks a remote identity as typing in a conversation.
type UserTyping struct {
	ConversationID string
	UserID         string
}

// UserStopTyping clears a remote identity's typing state. Remote expiry is
// driven only by this event; there is no TTL on the wire.
type UserStopTyping struct {
	ConversationID string
	UserID         string
}

func (Connected) inboundEvent()           {}
func (Disconnected) inboundEvent()        {}
func (NewMessage) inboundEvent()          {}
func (MessageNotification) inboundEvent() {}
func (UserTyping) inboundEvent()          {}
func (UserStopTyping) inboundEvent()      {}

func (Connected) Kind() string           { return "channel.connected" }
func (Disconnected) Kind() string        { return "channel.disconnected" }
func (NewMessage) Kind() string          { return "channel.new_message" }
func (MessageNotification) Kind() string { return "channel.message_notification" }
func (UserTyping) Kind() string          { return "channel.user_typing" }
func (UserStopTyping) Kind() string      { return "channel.user_stop_typing" }
