package store

// Party identifies one side of a conversation.
type Party struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Market string `json:"market,omitempty"` // seller stall label, empty for customers
}

// MessageRef is the denormalized last-message snapshot a conversation
// summary carries for list rendering.
type MessageRef struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	SentAt  int64  `json:"sent_at"`
}

// Conversation is a single customer–seller thread summary. At most one
// exists per (customer, seller) pair; the server enforces lazy creation.
type Conversation struct {
	ID            string      `json:"id"`
	Customer      Party       `json:"customer"`
	Seller        Party       `json:"seller"`
	LastMessage   *MessageRef `json:"last_message,omitempty"`
	LastMessageAt int64       `json:"last_message_at"`
	UnreadCount   int         `json:"unread_count"`
}

// Message is a single chat message. IDs are server-assigned and
// creation-ordered within a conversation.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Content        string `json:"content"`
	IsRead         bool   `json:"is_read"`
	SentAt         int64  `json:"sent_at"`
}

// Ref returns the last-message snapshot for a message.
func (m Message) Ref() *MessageRef {
	return &MessageRef{ID: m.ID, Content: m.Content, SentAt: m.SentAt}
}
