package engine

import (
	"github.com/feiralink/chat/internal/status"
	"github.com/feiralink/chat/internal/store"
)

// Read-only views for presentation surfaces. Change notifications arrive
// as "chat." events on the bus; surfaces re-read the views they render.

// Conversations returns the conversation list ordered by last activity.
func (e *Engine) Conversations() []store.Conversation {
	return e.conversations.List()
}

// Messages returns the open conversation's log in order.
func (e *Engine) Messages() []store.Message {
	return e.messages.Messages()
}

// TypingUsers returns the identities typing in the open conversation.
func (e *Engine) TypingUsers() []string {
	return e.presence.Typing()
}

// UnreadTotal returns the aggregate unread count across conversations.
func (e *Engine) UnreadTotal() int {
	return e.conversations.TotalUnread()
}

// ActiveConversation returns the open conversation id, "" if none.
func (e *Engine) ActiveConversation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// State returns the engine lifecycle state.
func (e *Engine) State() status.State {
	return e.machine.Current()
}
