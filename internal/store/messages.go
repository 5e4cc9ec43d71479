package store

import "sync"

// MessageStore holds the message log for the single active conversation.
// Switching conversations discards the previous log; it is not a cache.
type MessageStore struct {
	mu     sync.RWMutex
	active string
	msgs   []Message
	seen   map[string]struct{}
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{seen: make(map[string]struct{})}
}

// Reset switches the active conversation and discards the previous log.
// An empty id deactivates the store entirely.
func (s *MessageStore) Reset(convID string) {
	s.mu.Lock()
	s.active = convID
	s.msgs = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()
}

// Replace installs a freshly loaded log for convID. It refuses the load
// (returns false) if convID is no longer the active conversation, so a
// late-arriving fetch can never leak into another conversation's view.
func (s *MessageStore) Replace(convID string, msgs []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if convID != s.active {
		return false
	}
	s.msgs = make([]Message, 0, len(msgs))
	s.seen = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.msgs = append(s.msgs, m)
	}
	return true
}

// Append adds a message delivered by push or a fallback send. Appends are
// idempotent by message id and ignored for non-active conversations.
// Arrival order is preserved; the store never reorders.
func (s *MessageStore) Append(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ConversationID != s.active || s.active == "" {
		return false
	}
	if _, dup := s.seen[msg.ID]; dup {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.msgs = append(s.msgs, msg)
	return true
}

// ActiveID returns the active conversation id ("" when none).
func (s *MessageStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Messages returns a copy of the active conversation's log in append order.
func (s *MessageStore) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the number of messages in the active log.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
