package store

import (
	"sort"
	"sync"
)

// ConversationStore holds the conversation summaries for the current
// identity. Push notifications may add and update entries; only a full
// snapshot replace may remove them.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[string]*Conversation)}
}

// ReplaceAll swaps in a full snapshot from the fallback API. Entries
// absent from the snapshot are dropped; this is the only removal path.
func (s *ConversationStore) ReplaceAll(convs []Conversation) {
	next := make(map[string]*Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		next[c.ID] = &c
	}
	s.mu.Lock()
	s.convs = next
	s.mu.Unlock()
}

// ApplyNotification records a pushed message for a conversation that is
// not currently open: last message moves forward and the unread count is
// incremented. Returns false if the conversation is unknown, which the
// engine treats as a cue to refresh the full snapshot.
func (s *ConversationStore) ApplyNotification(convID string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[convID]
	if !ok {
		return false
	}
	c.LastMessage = msg.Ref()
	c.LastMessageAt = msg.SentAt
	c.UnreadCount++
	return true
}

// SetLastMessage moves the last-message snapshot forward without touching
// the unread count. Used for the open conversation and for the local side
// of a fallback send.
func (s *ConversationStore) SetLastMessage(convID string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[convID]
	if !ok {
		return false
	}
	c.LastMessage = msg.Ref()
	c.LastMessageAt = msg.SentAt
	return true
}

// MarkRead zeroes a conversation's unread count and returns the amount
// cleared (0 when already read or unknown).
func (s *ConversationStore) MarkRead(convID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[convID]
	if !ok {
		return 0
	}
	cleared := c.UnreadCount
	c.UnreadCount = 0
	return cleared
}

// Upsert adds or updates a single conversation without dropping others.
// Used for the start-conversation path.
func (s *ConversationStore) Upsert(conv Conversation) {
	s.mu.Lock()
	c := conv
	s.convs[c.ID] = &c
	s.mu.Unlock()
}

// Get returns a copy of a conversation, or nil if unknown.
func (s *ConversationStore) Get(convID string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[convID]
	if !ok {
		return nil
	}
	out := *c
	return &out
}

// List returns conversations ordered by last activity descending, ties
// broken by id ascending for deterministic rendering.
func (s *ConversationStore) List() []Conversation {
	s.mu.RLock()
	out := make([]Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, *c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt != out[j].LastMessageAt {
			return out[i].LastMessageAt > out[j].LastMessageAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TotalUnread returns the aggregate unread count. It is derived from the
// per-conversation counts, so it always equals their sum.
func (s *ConversationStore) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.convs {
		total += c.UnreadCount
	}
	return total
}

// Len returns the number of conversations.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// Clear drops all conversations (logout).
func (s *ConversationStore) Clear() {
	s.mu.Lock()
	s.convs = make(map[string]*Conversation)
	s.mu.Unlock()
}
